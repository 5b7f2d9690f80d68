package tests

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/epochledger/epochledger/internal/config"
	"github.com/google/uuid"
)

const TestNodeId = "node-test"
const TestScopeId = "default"

func GetConfig() *config.Config {
	cfg := config.NewConfig()
	cfg.Debug = os.Getenv(config.ENV_PREFIX+"_DEBUG") == "true"
	cfg.DatabaseConfig = *GetDbConfigFromEnv()
	cfg.LedgerConfig.NodeId = TestNodeId
	cfg.LedgerConfig.ScopeId = TestScopeId
	return cfg
}

func GetDbConfigFromEnv() *config.DatabaseConfig {
	port, err := strconv.Atoi(os.Getenv(config.ENV_PREFIX + "_DATABASE_PORT"))
	if err != nil || port == 0 {
		port = 5432
	}
	host := os.Getenv(config.ENV_PREFIX + "_DATABASE_HOST")
	if host == "" {
		host = "localhost"
	}
	return &config.DatabaseConfig{
		Host:     host,
		Port:     port,
		User:     os.Getenv(config.ENV_PREFIX + "_DATABASE_USER"),
		Password: os.Getenv(config.ENV_PREFIX + "_DATABASE_PASSWORD"),
		DbName:   os.Getenv(config.ENV_PREFIX + "_DATABASE_DB_NAME"),
	}
}

// PostgresTestsEnabled gates tests that need a live postgres server.
func PostgresTestsEnabled() bool {
	return os.Getenv("TEST_POSTGRES") == "true"
}

func GenerateTestDbName() (string, error) {
	id, err := uuid.NewRandom()
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("test_%s", strings.ReplaceAll(id.String(), "-", "")), nil
}

package postgres

import (
	"database/sql"
	"fmt"
	"slices"
	"strings"

	"github.com/epochledger/epochledger/internal/config"
	"github.com/epochledger/epochledger/internal/tests"
	"github.com/epochledger/epochledger/pkg/postgres/migrations"
	"github.com/lib/pq"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

const (
	defaultSSLMode = "disable"
	maintenanceDb  = "postgres"
)

var validSSLModes = []string{"disable", "require", "verify-ca", "verify-full"}

type PostgresConfig struct {
	Host                string
	Port                int
	Username            string
	Password            string
	DbName              string
	CreateDbIfNotExists bool
	SchemaName          string
	SSLMode             string
	SSLCert             string
	SSLKey              string
	SSLRootCert         string
}

type Postgres struct {
	Db *sql.DB
}

func PostgresConfigFromDbConfig(dbCfg *config.DatabaseConfig) *PostgresConfig {
	return &PostgresConfig{
		Host:        dbCfg.Host,
		Port:        dbCfg.Port,
		Username:    dbCfg.User,
		Password:    dbCfg.Password,
		DbName:      dbCfg.DbName,
		SchemaName:  dbCfg.SchemaName,
		SSLMode:     dbCfg.SSLMode,
		SSLCert:     dbCfg.SSLCert,
		SSLKey:      dbCfg.SSLKey,
		SSLRootCert: dbCfg.SSLRootCert,
	}
}

// ConnectionString renders the lib/pq key/value DSN for dbName. The search_path
// is only set when connecting to the ledger database itself.
func (c *PostgresConfig) ConnectionString(dbName string) (string, error) {
	sslMode := defaultSSLMode
	if c.SSLMode != "" {
		if !slices.Contains(validSSLModes, c.SSLMode) {
			return "", fmt.Errorf("invalid ssl mode '%s', must be one of: %s", c.SSLMode, strings.Join(validSSLModes, ", "))
		}
		sslMode = c.SSLMode
	}

	parts := []string{fmt.Sprintf("host=%s", c.Host), fmt.Sprintf("port=%d", c.Port)}
	if c.Username != "" {
		parts = append(parts, fmt.Sprintf("user=%s", c.Username))
	}
	if c.Password != "" {
		parts = append(parts, fmt.Sprintf("password=%s", c.Password))
	}
	parts = append(parts,
		fmt.Sprintf("dbname=%s", dbName),
		fmt.Sprintf("sslmode=%s", sslMode),
		"TimeZone=UTC",
	)
	if c.SchemaName != "" && dbName == c.DbName {
		parts = append(parts, fmt.Sprintf("search_path=%s", c.SchemaName))
	}
	if sslMode != defaultSSLMode {
		for _, kv := range [][2]string{{"sslcert", c.SSLCert}, {"sslkey", c.SSLKey}, {"sslrootcert", c.SSLRootCert}} {
			if kv[1] != "" {
				parts = append(parts, fmt.Sprintf("%s=%s", kv[0], kv[1]))
			}
		}
	}
	return strings.Join(parts, " "), nil
}

func openMaintenance(cfg *PostgresConfig) (*sql.DB, error) {
	dsn, err := cfg.ConnectionString(maintenanceDb)
	if err != nil {
		return nil, err
	}
	return sql.Open("postgres", dsn)
}

// EnsureDatabase creates the configured database when it is missing and reports
// whether it did.
func EnsureDatabase(cfg *PostgresConfig) (bool, error) {
	db, err := openMaintenance(cfg)
	if err != nil {
		return false, err
	}
	defer db.Close()

	var exists bool
	if err := db.QueryRow(`select exists(select 1 from pg_catalog.pg_database where datname = $1)`, cfg.DbName).Scan(&exists); err != nil {
		return false, fmt.Errorf("failed to look up database '%s': %w", cfg.DbName, err)
	}
	if exists {
		return false, nil
	}
	if _, err := db.Exec("create database " + pq.QuoteIdentifier(cfg.DbName)); err != nil {
		return false, fmt.Errorf("failed to create database '%s': %w", cfg.DbName, err)
	}
	return true, nil
}

func DropDatabase(cfg *PostgresConfig, dbName string) error {
	db, err := openMaintenance(cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	if _, err := db.Exec("drop database if exists " + pq.QuoteIdentifier(dbName)); err != nil {
		return fmt.Errorf("failed to drop database '%s': %w", dbName, err)
	}
	return nil
}

func NewPostgres(cfg *PostgresConfig) (*Postgres, error) {
	if cfg.CreateDbIfNotExists {
		if _, err := EnsureDatabase(cfg); err != nil {
			return nil, err
		}
	}
	dsn, err := cfg.ConnectionString(cfg.DbName)
	if err != nil {
		return nil, err
	}
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database '%s': %w", cfg.DbName, err)
	}
	return &Postgres{Db: db}, nil
}

func NewGormFromPostgresConnection(pgDb *sql.DB) (*gorm.DB, error) {
	db, err := gorm.Open(postgres.New(postgres.Config{
		Conn: pgDb,
	}), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open gorm on postgres: %w", err)
	}
	return db, nil
}

// TestDatabase is a throwaway, fully migrated database used by tests that need
// real postgres locking rather than the single-connection sqlite harness.
type TestDatabase struct {
	Name string
	Sql  *sql.DB
	Gorm *gorm.DB

	config *PostgresConfig
	logger *zap.Logger
}

func NewTestDatabase(dbCfg config.DatabaseConfig, l *zap.Logger) (*TestDatabase, error) {
	name, err := tests.GenerateTestDbName()
	if err != nil {
		return nil, err
	}
	dbCfg.DbName = name

	pgConfig := PostgresConfigFromDbConfig(&dbCfg)
	pgConfig.CreateDbIfNotExists = true
	pg, err := NewPostgres(pgConfig)
	if err != nil {
		return nil, err
	}
	grm, err := NewGormFromPostgresConnection(pg.Db)
	if err != nil {
		_ = pg.Db.Close()
		return nil, err
	}

	td := &TestDatabase{Name: name, Sql: pg.Db, Gorm: grm, config: pgConfig, logger: l}
	if err := migrations.NewMigrator(pg.Db, grm, l).MigrateAll(); err != nil {
		td.Teardown()
		return nil, err
	}
	return td, nil
}

func (td *TestDatabase) Teardown() {
	_ = td.Sql.Close()
	if err := DropDatabase(td.config, td.Name); err != nil {
		td.logger.Sugar().Errorw("Failed to drop test database", zap.String("name", td.Name), zap.Error(err))
	}
}

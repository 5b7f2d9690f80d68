package config

import (
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
)

func Test_Config(t *testing.T) {
	t.Run("Should convert kebab case flag names to snake case keys", func(t *testing.T) {
		assert.Equal(t, "database.db_name", KebabToSnakeCase("database.db-name"))
		assert.Equal(t, "ledger.node_id", KebabToSnakeCase("ledger.node-id"))
		assert.Equal(t, "debug", KebabToSnakeCase("debug"))
	})
	t.Run("Should read values set in viper", func(t *testing.T) {
		viper.Reset()
		t.Cleanup(viper.Reset)

		viper.Set(LedgerNodeId, "node-a")
		viper.Set(LedgerScopeId, "default")
		viper.Set(DatabasePort, 5433)
		viper.Set(SchedulerInterval, "30s")

		cfg := NewConfig()
		assert.Equal(t, "node-a", cfg.LedgerConfig.NodeId)
		assert.Equal(t, "default", cfg.LedgerConfig.ScopeId)
		assert.Equal(t, 5433, cfg.DatabaseConfig.Port)
		assert.Equal(t, 30*time.Second, cfg.GetSchedulerInterval())
		assert.Nil(t, cfg.ValidateScope())
	})
	t.Run("Should require a node id", func(t *testing.T) {
		cfg := &Config{}
		assert.NotNil(t, cfg.Validate())
	})
	t.Run("Should require a scope id for scoped commands", func(t *testing.T) {
		cfg := &Config{LedgerConfig: LedgerConfig{NodeId: "node-a"}}
		assert.Nil(t, cfg.Validate())
		assert.NotNil(t, cfg.ValidateScope())
	})
	t.Run("Should default the scheduler interval", func(t *testing.T) {
		cfg := &Config{}
		assert.Equal(t, 5*time.Minute, cfg.GetSchedulerInterval())
	})
}

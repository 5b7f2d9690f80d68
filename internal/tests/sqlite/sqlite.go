package sqlite

import (
	"testing"

	"github.com/epochledger/epochledger/pkg/sqlite"
	"github.com/epochledger/epochledger/pkg/storage"
	"gorm.io/gorm"
)

// GetInMemorySqliteDatabaseConnection returns a migrated in-memory ledger database
// that is closed when the test finishes.
func GetInMemorySqliteDatabaseConnection(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := sqlite.NewGormSqliteFromSqlite(sqlite.NewSqlite(sqlite.NewInMemoryPath()))
	if err != nil {
		t.Fatalf("failed to open sqlite database: %v", err)
	}
	if err := db.AutoMigrate(storage.AllTables()...); err != nil {
		t.Fatalf("failed to migrate sqlite database: %v", err)
	}

	t.Cleanup(func() {
		rawDb, err := db.DB()
		if err == nil {
			_ = rawDb.Close()
		}
	})
	return db
}

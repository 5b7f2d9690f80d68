package sqlite

import (
	"fmt"

	"github.com/google/uuid"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// NewInMemoryPath returns a uniquely named shared-cache in-memory database so
// every connection of one pool sees the same data while separate pools stay isolated.
func NewInMemoryPath() string {
	return fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
}

func NewSqlite(path string) gorm.Dialector {
	return sqlite.Open(path)
}

func NewGormSqliteFromSqlite(dialector gorm.Dialector) (*gorm.DB, error) {
	db, err := gorm.Open(dialector, &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	if err != nil {
		return nil, err
	}

	pragmas := []string{
		`PRAGMA foreign_keys = ON;`,
		`PRAGMA busy_timeout = 5000;`,
	}

	for _, pragma := range pragmas {
		res := db.Exec(pragma)
		if res.Error != nil {
			return nil, res.Error
		}
	}

	// sqlite allows a single writer; serialising connections keeps transactions from
	// failing with SQLITE_BUSY.
	rawDb, err := db.DB()
	if err != nil {
		return nil, err
	}
	rawDb.SetMaxOpenConns(1)

	return db, nil
}

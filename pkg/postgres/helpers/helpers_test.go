package helpers

import (
	"errors"
	"fmt"
	"testing"

	"github.com/epochledger/epochledger/pkg/sqlite"
	"github.com/stretchr/testify/assert"
	"gorm.io/gorm"
)

type widget struct {
	Id   uint64 `gorm:"primaryKey"`
	Name string `gorm:"uniqueIndex"`
}

func setup(t *testing.T) *gorm.DB {
	db, err := sqlite.NewGormSqliteFromSqlite(sqlite.NewSqlite(sqlite.NewInMemoryPath()))
	if err != nil {
		t.Fatal(err)
	}
	if err := db.AutoMigrate(&widget{}); err != nil {
		t.Fatal(err)
	}
	return db
}

func Test_WrapTxAndCommit(t *testing.T) {
	t.Run("Should commit when fn succeeds", func(t *testing.T) {
		db := setup(t)
		_, err := WrapTxAndCommit(func(tx *gorm.DB) (int, error) {
			return 1, tx.Create(&widget{Id: 1, Name: "a"}).Error
		}, db, nil)
		assert.Nil(t, err)

		var count int64
		db.Model(&widget{}).Count(&count)
		assert.Equal(t, int64(1), count)
	})
	t.Run("Should roll back when fn fails", func(t *testing.T) {
		db := setup(t)
		_, err := WrapTxAndCommit(func(tx *gorm.DB) (int, error) {
			if res := tx.Create(&widget{Id: 1, Name: "a"}); res.Error != nil {
				return 0, res.Error
			}
			return 0, errors.New("boom")
		}, db, nil)
		assert.NotNil(t, err)

		var count int64
		db.Model(&widget{}).Count(&count)
		assert.Equal(t, int64(0), count)
	})
	t.Run("Should leave an outer transaction to its owner", func(t *testing.T) {
		db := setup(t)
		outer := db.Begin()
		_, err := WrapTxAndCommit(func(tx *gorm.DB) (int, error) {
			return 1, tx.Create(&widget{Id: 1, Name: "a"}).Error
		}, db, outer)
		assert.Nil(t, err)
		outer.Rollback()

		var count int64
		db.Model(&widget{}).Count(&count)
		assert.Equal(t, int64(0), count)
	})
}

func Test_IsDuplicateKeyError(t *testing.T) {
	t.Run("Should detect a sqlite unique violation", func(t *testing.T) {
		db := setup(t)
		assert.Nil(t, db.Create(&widget{Id: 1, Name: "a"}).Error)
		err := db.Create(&widget{Id: 2, Name: "a"}).Error
		assert.True(t, IsDuplicateKeyError(err))
	})
	t.Run("Should detect a postgres unique violation message", func(t *testing.T) {
		err := fmt.Errorf(`ERROR: duplicate key value violates unique constraint "activity_events_pkey" (SQLSTATE 23505)`)
		assert.True(t, IsDuplicateKeyError(err))
	})
	t.Run("Should ignore other errors", func(t *testing.T) {
		assert.False(t, IsDuplicateKeyError(nil))
		assert.False(t, IsDuplicateKeyError(errors.New("connection refused")))
	})
}

package helpers

import (
	"errors"
	"regexp"

	"gorm.io/gorm"
)

// WrapTxAndCommit runs fn inside tx when one is given, otherwise inside a new
// transaction on db that is committed on success and rolled back on error.
func WrapTxAndCommit[T any](fn func(*gorm.DB) (T, error), db *gorm.DB, tx *gorm.DB) (T, error) {
	exists := tx != nil

	if !exists {
		tx = db.Begin()
		if tx.Error != nil {
			var zero T
			return zero, tx.Error
		}
	}

	res, err := fn(tx)

	if err != nil && !exists {
		tx.Rollback()
	}
	if err == nil && !exists {
		if commitErr := tx.Commit().Error; commitErr != nil {
			return res, commitErr
		}
	}
	return res, err
}

var duplicateKeyPattern = regexp.MustCompile(`duplicate key value violates unique constraint|UNIQUE constraint failed`)

// IsDuplicateKeyError reports unique violations from both postgres and sqlite.
func IsDuplicateKeyError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	return duplicateKeyPattern.MatchString(err.Error())
}

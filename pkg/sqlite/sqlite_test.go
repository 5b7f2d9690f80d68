package sqlite

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func Test_Sqlite(t *testing.T) {
	t.Run("Should open isolated in-memory databases", func(t *testing.T) {
		a, err := NewGormSqliteFromSqlite(NewSqlite(NewInMemoryPath()))
		assert.Nil(t, err)
		b, err := NewGormSqliteFromSqlite(NewSqlite(NewInMemoryPath()))
		assert.Nil(t, err)

		assert.Nil(t, a.Exec(`create table things (id integer primary key)`).Error)
		assert.Nil(t, a.Exec(`insert into things (id) values (1)`).Error)

		var count int64
		assert.Nil(t, a.Raw(`select count(*) from things`).Scan(&count).Error)
		assert.Equal(t, int64(1), count)

		assert.NotNil(t, b.Exec(`select count(*) from things`).Error)
	})
}

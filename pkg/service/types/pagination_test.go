package types

import (
	"testing"

	"github.com/epochledger/epochledger/pkg/ledgerErrors"
	"github.com/stretchr/testify/assert"
)

func Test_ParsePagination(t *testing.T) {
	t.Run("Should default empty values", func(t *testing.T) {
		p, err := ParsePagination("", "")
		assert.Nil(t, err)
		assert.Equal(t, DefaultLimit, p.Limit)
		assert.Equal(t, 0, p.Offset)
	})
	t.Run("Should accept values in range", func(t *testing.T) {
		p, err := ParsePagination("200", "40")
		assert.Nil(t, err)
		assert.Equal(t, 200, p.Limit)
		assert.Equal(t, 40, p.Offset)
	})
	t.Run("Should reject values out of range", func(t *testing.T) {
		for _, c := range [][2]string{{"0", ""}, {"201", ""}, {"abc", ""}, {"", "-1"}, {"", "x"}, {"1.5", ""}} {
			_, err := ParsePagination(c[0], c[1])
			assert.True(t, ledgerErrors.IsKind(err, ledgerErrors.Kind_Validation), c)
			assert.ErrorIs(t, err, ledgerErrors.ErrInvalidPagination)
		}
	})
}

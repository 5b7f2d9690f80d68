package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func Test_Helpers(t *testing.T) {
	t.Run("Should round trip bytes through hex", func(t *testing.T) {
		s := ConvertBytesToString([]byte{0xde, 0xad, 0xbe, 0xef})
		assert.Equal(t, "0xdeadbeef", s)

		b, err := ConvertStringToBytes(s)
		assert.Nil(t, err)
		assert.Equal(t, []byte{0xde, 0xad, 0xbe, 0xef}, b)

		_, err = ConvertStringToBytes("0xnothex")
		assert.NotNil(t, err)
	})
	t.Run("Should parse epoch ids", func(t *testing.T) {
		id, err := ParseEpochId("42")
		assert.Nil(t, err)
		assert.Equal(t, uint64(42), id)

		id, err = ParseEpochId("0")
		assert.Nil(t, err)
		assert.Equal(t, uint64(0), id)

		for _, bad := range []string{"not-a-number", "-1", "", "1.5", "99999999999999999999999"} {
			_, err := ParseEpochId(bad)
			assert.NotNil(t, err, bad)
		}
	})
}

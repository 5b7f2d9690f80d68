package utils

import (
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"
)

func ConvertBytesToString(b []byte) string {
	return "0x" + hex.EncodeToString(b)
}

func ConvertStringToBytes(s string) ([]byte, error) {
	b, err := hex.DecodeString(strings.TrimPrefix(s, "0x"))
	if err != nil {
		return nil, fmt.Errorf("invalid hex string '%s': %w", s, err)
	}
	return b, nil
}

// ParseEpochId parses a path segment into an epoch id. Any unsigned integer is
// accepted; ids that name no epoch are left for the store to report.
func ParseEpochId(s string) (uint64, error) {
	return strconv.ParseUint(strings.TrimSpace(s), 10, 64)
}

func FormatInt(v int64) string {
	return strconv.FormatInt(v, 10)
}

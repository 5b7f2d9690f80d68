package types

import (
	"strconv"
	"strings"

	"github.com/epochledger/epochledger/pkg/ledgerErrors"
)

type Pagination struct {
	Limit  int `json:"limit"`
	Offset int `json:"offset"`
}

const DefaultLimit = 50
const MaxLimit = 200
const DefaultOffset = 0

func NewDefaultPagination() *Pagination {
	return &Pagination{
		Limit:  DefaultLimit,
		Offset: DefaultOffset,
	}
}

// ParsePagination reads limit and offset query values. Empty values fall back to
// the defaults; anything else must be an integer in range.
func ParsePagination(limit string, offset string) (*Pagination, error) {
	p := NewDefaultPagination()
	if v := strings.TrimSpace(limit); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 || n > MaxLimit {
			return nil, ledgerErrors.Validation(ledgerErrors.ErrInvalidPagination, "limit must be between 1 and %d, got '%s'", MaxLimit, limit)
		}
		p.Limit = n
	}
	if v := strings.TrimSpace(offset); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			return nil, ledgerErrors.Validation(ledgerErrors.ErrInvalidPagination, "offset must be a non-negative integer, got '%s'", offset)
		}
		p.Offset = n
	}
	return p, nil
}

package numbers

import (
	"fmt"
	"math/big"

	"github.com/shopspring/decimal"
)

// SharePrecision is the number of decimal places shown for a payout share.
const SharePrecision = 6

// FormatShare renders units/totalUnits as a fixed precision decimal string.
// The total is a big.Int because per-user units fit in 64 bits but their sum may not.
// Display only; credit amounts are never derived from it.
func FormatShare(units int64, totalUnits *big.Int) string {
	if totalUnits == nil || totalUnits.Sign() == 0 {
		return decimal.Zero.StringFixed(SharePrecision)
	}
	return decimal.NewFromInt(units).
		DivRound(decimal.NewFromBigInt(totalUnits, 0), SharePrecision).
		StringFixed(SharePrecision)
}

// ParseIntegerString parses a decimal string that must hold an integer that fits in an int64.
func ParseIntegerString(s string) (int64, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return 0, err
	}
	if !d.IsInteger() {
		return 0, fmt.Errorf("'%s' is not an integer", s)
	}
	b := d.BigInt()
	if !b.IsInt64() {
		return 0, fmt.Errorf("'%s' does not fit in 64 bits", s)
	}
	return b.Int64(), nil
}

// SumIntegerStrings adds decimal integer strings without overflow.
func SumIntegerStrings(values []string) (*big.Int, error) {
	total := new(big.Int)
	for _, v := range values {
		n, ok := new(big.Int).SetString(v, 10)
		if !ok {
			return nil, fmt.Errorf("'%s' is not an integer", v)
		}
		total.Add(total, n)
	}
	return total, nil
}

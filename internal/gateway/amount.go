package gateway

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// FormatAmount renders amt as the Gateway's 12-digit zero-padded integer
// number of cents, e.g. 1000.50 -> "000000100050",
// 0 -> "000000000000".
func FormatAmount(amt decimal.Decimal) string {
	cents := amt.Mul(decimal.NewFromInt(100)).Round(0)
	s := cents.String()
	if len(s) >= 12 {
		return s
	}
	return strings.Repeat("0", 12-len(s)) + s
}

// ParseAmount is the inverse of [FormatAmount]: it reconstructs a decimal
// amount from the Gateway's 12-digit cents string. Round-trips with
// [FormatAmount] for all non-negative amounts.
func ParseAmount(cents string) (decimal.Decimal, error) {
	n, err := decimal.NewFromString(strings.TrimLeft(cents, "0"))
	if err != nil {
		if strings.Trim(cents, "0") == "" {
			return decimal.Zero, nil
		}
		return decimal.Decimal{}, err
	}
	return n.Div(decimal.NewFromInt(100)), nil
}

// FormatTimestamp renders t in the Gateway's YYMMDDHHmmss wire
// format.
func FormatTimestamp(t time.Time) string {
	return t.Format("060102150405")
}

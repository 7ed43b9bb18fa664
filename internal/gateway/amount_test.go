package gateway_test

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/relaypay/switchcore/internal/gateway"
)

func TestFormatAmount(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"1000.50", "000000100050"},
		{"0", "000000000000"},
		{"1", "000000000100"},
		{"999999.99", "000099999999"},
	}
	for _, c := range cases {
		amt, err := decimal.NewFromString(c.in)
		require.NoError(t, err)
		assert.Equal(t, c.want, gateway.FormatAmount(amt), "amount %s", c.in)
	}
}

func TestParseAmount_RoundTrips(t *testing.T) {
	for _, in := range []string{"0", "1", "1000.50", "999999.99", "10"} {
		amt, err := decimal.NewFromString(in)
		require.NoError(t, err)

		formatted := gateway.FormatAmount(amt)
		back, err := gateway.ParseAmount(formatted)
		require.NoError(t, err)

		assert.True(t, amt.Equal(back), "round-trip %s -> %s -> %s", in, formatted, back)
	}
}

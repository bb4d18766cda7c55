package api

import (
	"strconv"
	"testing"

	"github.com/shopspring/decimal"
)

func money(t *testing.T, s string) decimal.Decimal {
	t.Helper()
	d, err := decimal.NewFromString(s)
	if err != nil {
		t.Fatalf("bad decimal %q: %v", s, err)
	}
	return d
}

func jsonNumber(id int64) string {
	return strconv.FormatInt(id, 10)
}

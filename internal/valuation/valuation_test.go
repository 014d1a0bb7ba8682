package valuation

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func TestValue_Exact(t *testing.T) {
	assert.True(t, d("25").Equal(Value(d("10"), d("2.5"))))
	assert.True(t, d("0.3").Equal(Value(d("0.1"), d("3"))))
}

func TestConsistent(t *testing.T) {
	tests := []struct {
		value, qty, price string
		want              bool
	}{
		{"25.0", "10", "2.5", true},
		{"25.01", "10", "2.5", true},
		{"24.99", "10", "2.5", true},
		{"25.02", "10", "2.5", false},
		{"30.0", "10", "2.5", false},
		{"0", "3", "0", true},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Consistent(d(tt.value), d(tt.qty), d(tt.price)), "%s vs %s x %s", tt.value, tt.qty, tt.price)
	}
}

func TestRound(t *testing.T) {
	assert.Equal(t, "2.34", Round(d("2.345")).String())
	assert.Equal(t, "2.36", Round(d("2.355")).String())
}

package rounding

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func TestRound(t *testing.T) {
	cases := map[string]string{
		"8.00":   "8",
		"0.005":  "0.01",
		"1.2349": "1.23",
		"-0.005": "-0.01",
	}
	for in, want := range cases {
		assert.True(t, Round(d(in)).Equal(d(want)), "Round(%s) = %s, want %s", in, Round(d(in)), want)
	}
}

func TestPerUnitRoundsUp(t *testing.T) {
	// 10.00 over 3 units is 3.333..., which must become 3.34 so the
	// multiplied-back total never falls short.
	got := PerUnit(d("10.00"), d("3"))
	assert.True(t, got.Equal(d("3.34")), "got %s", got)
	assert.True(t, got.Mul(d("3")).GreaterThanOrEqual(d("10.00")))

	assert.True(t, PerUnit(d("8.00"), d("2")).Equal(d("4")))
	assert.True(t, PerUnit(d("5"), decimal.Zero).IsZero())
}

func TestRoundUpKeepsExactValues(t *testing.T) {
	assert.True(t, RoundUp(d("1.10"), 2).Equal(d("1.1")))
	assert.True(t, RoundUp(d("1.101"), 2).Equal(d("1.11")))
}

func TestConvert(t *testing.T) {
	assert.True(t, Convert(d("10.00"), d("0.9")).Equal(d("9")))
	assert.True(t, Convert(d("1.005"), decimal.Zero).Equal(d("1.01")))
	assert.True(t, Convert(d("3.333"), d("1.5")).Equal(d("5")))
}

package money

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func d(s string) decimal.Decimal {
	v, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return v
}

func TestRoundHalfEven(t *testing.T) {
	cases := []struct {
		name string
		in   decimal.Decimal
		want decimal.Decimal
	}{
		{"rounds down on even cent", d("10.125"), d("10.12")},
		{"rounds up on odd cent", d("10.135"), d("10.14")},
		{"exact value untouched", d("10.50"), d("10.50")},
		{"negative value", d("-10.125"), d("-10.12")},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.True(t, tc.want.Equal(RoundHalfEven(tc.in)), "got %s want %s", RoundHalfEven(tc.in), tc.want)
		})
	}
}

func TestProrate(t *testing.T) {
	cases := []struct {
		name              string
		mrr               decimal.Decimal
		activeDays, total int
		want              decimal.Decimal
	}{
		{"full month", d("3000"), 30, 30, d("3000")},
		{"half month", d("3000"), 15, 30, d("1500")},
		{"zero total days", d("3000"), 0, 0, decimal.Zero},
		{"partial rounds half-even", d("100"), 1, 3, d("33.33")},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := Prorate(tc.mrr, tc.activeDays, tc.total)
			assert.True(t, tc.want.Equal(got), "got %s want %s", got, tc.want)
		})
	}
}

func TestWithinTolerance(t *testing.T) {
	assert.True(t, WithinTolerance(d("0.50"), d("0.50")))
	assert.True(t, WithinTolerance(d("-0.49"), d("0.50")))
	assert.False(t, WithinTolerance(d("0.51"), d("0.50")))
}

func TestSum(t *testing.T) {
	assert.True(t, decimal.Zero.Equal(Sum()))
	got := Sum(d("1.10"), d("2.20"), d("3.30"))
	assert.True(t, d("6.60").Equal(got), "got %s", got)
}

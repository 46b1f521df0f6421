// Package money holds the decimal rules shared by every amount in the ledger.
// Amounts are kept in shopspring decimals and only rounded where a rule says so.
package money

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// MinorUnitPlaces is the number of decimal places of the currency's minor unit.
const MinorUnitPlaces = 2

var (
	hundred = decimal.NewFromInt(100)
)

// Round rounds x to the minor unit, half away from zero. Every amount the
// ledger produces is non-negative, so this is round-half-up.
func Round(x decimal.Decimal) decimal.Decimal {
	return x.Round(MinorUnitPlaces)
}

// Floor truncates x down to the minor unit.
func Floor(x decimal.Decimal) decimal.Decimal {
	return x.RoundFloor(MinorUnitPlaces)
}

// ApplyPercentage returns base * (1 + pct/100) rounded once to the minor unit.
func ApplyPercentage(base, pct decimal.Decimal) decimal.Decimal {
	factor := decimal.NewFromInt(1).Add(pct.Div(hundred))
	return Round(base.Mul(factor))
}

// Split divides total into n shares floored to the minor unit. The residual
// goes entirely to the last share so the shares always add up to total.
func Split(total decimal.Decimal, n int) ([]decimal.Decimal, error) {
	if n < 1 {
		return nil, fmt.Errorf("money: cannot split into %d parts", n)
	}
	if total.IsNegative() {
		return nil, fmt.Errorf("money: cannot split negative amount %s", total)
	}

	share, _ := total.QuoRem(decimal.NewFromInt(int64(n)), MinorUnitPlaces)

	shares := make([]decimal.Decimal, n)
	for i := 0; i < n-1; i++ {
		shares[i] = share
	}
	shares[n-1] = total.Sub(share.Mul(decimal.NewFromInt(int64(n - 1))))
	return shares, nil
}

// Percent returns part/whole as a percentage clamped to [0, 100] and rounded
// to two places. A zero or negative whole yields zero.
func Percent(part, whole decimal.Decimal) decimal.Decimal {
	if whole.Sign() <= 0 {
		return decimal.Zero
	}
	p := part.Div(whole).Mul(hundred).Round(2)
	if p.IsNegative() {
		return decimal.Zero
	}
	if p.GreaterThan(hundred) {
		return hundred
	}
	return p
}

// Sum adds amounts, returning zero for an empty list.
func Sum(xs ...decimal.Decimal) decimal.Decimal {
	total := decimal.Zero
	for _, x := range xs {
		total = total.Add(x)
	}
	return total
}

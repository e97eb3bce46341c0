package valuation

import "github.com/shopspring/decimal"

// Thresholds are the three significance rules:
//
//	new > GrowthFactor*prev
//	new > BandFloor && new > prev && new < AbsoluteCeiling
//	new > AbsoluteCeiling
//
// All comparisons are strict. Rules only apply when a non-zero previous value exists.
type Thresholds struct {
	GrowthFactor    decimal.Decimal
	BandFloor       decimal.Decimal
	AbsoluteCeiling decimal.Decimal
}

func DefaultThresholds() Thresholds {
	return Thresholds{
		GrowthFactor:    decimal.RequireFromString("1.5"),
		BandFloor:       decimal.NewFromInt(21),
		AbsoluteCeiling: decimal.NewFromInt(100),
	}
}

// IsSignificant reports whether moving from previous to current should alert.
func (t Thresholds) IsSignificant(previous decimal.NullDecimal, current decimal.Decimal) bool {
	if !previous.Valid || previous.Decimal.IsZero() {
		return false
	}
	prev := previous.Decimal

	if current.GreaterThan(prev.Mul(t.GrowthFactor)) {
		return true
	}
	if current.GreaterThan(t.BandFloor) && current.GreaterThan(prev) && current.LessThan(t.AbsoluteCeiling) {
		return true
	}
	// Fires on every cycle while the value stays above the ceiling.
	return current.GreaterThan(t.AbsoluteCeiling)
}

// IsSignificant applies DefaultThresholds.
func IsSignificant(previous decimal.NullDecimal, current decimal.Decimal) bool {
	return DefaultThresholds().IsSignificant(previous, current)
}

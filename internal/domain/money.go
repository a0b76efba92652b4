package domain

import "github.com/shopspring/decimal"

// ToMinorUnits converts a settlement-currency amount into the fiscal API's
// integer minor units (kopecks). Amounts carry at most two decimals, so the
// conversion is exact; anything beyond two decimals is rounded half-up.
func ToMinorUnits(amount decimal.Decimal) int64 {
	return amount.Shift(2).Round(0).IntPart()
}

// FromMinorUnits is the inverse of ToMinorUnits.
func FromMinorUnits(v int64) decimal.Decimal {
	return decimal.NewFromInt(v).Shift(-2)
}

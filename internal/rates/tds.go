package rates

import (
	"github.com/shopspring/decimal"
)

// TDSCalculator applies the fixed Tax-Deducted-at-Source withholding to a
// gross amount. Withholding is applied independently to every distribution
// line, never to the aggregate; rounding is half-up to two decimal places
// so per-line totals reconcile exactly.
type TDSCalculator struct {
	rate decimal.Decimal
}

// NewTDSCalculator creates a calculator for the given withholding
// percentage (e.g. 2.0 for 2%).
func NewTDSCalculator(ratePercent float64) *TDSCalculator {
	return &TDSCalculator{rate: decimal.NewFromFloat(ratePercent)}
}

// RatePercent returns the withholding percentage.
func (t *TDSCalculator) RatePercent() decimal.Decimal {
	return t.rate
}

// Withhold returns amount × tdsRate / 100, rounded half-up to the smallest
// currency unit.
func (t *TDSCalculator) Withhold(amount decimal.Decimal) decimal.Decimal {
	return ApplyPercent(amount, t.rate)
}

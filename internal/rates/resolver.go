// Package rates provides the rate lookup tables and TDS withholding used by
// the commission engine. Resolvers are pure lookups over a read-only rate
// card; the only side effect is observing zero-rate fallbacks.
package rates

import (
	"log/slog"

	"github.com/shopspring/decimal"

	"github.com/loanpulse/commission-engine/internal/domain"
)

// ZeroRateObserver is notified whenever a lookup degrades to a zero rate.
// Wired to a metrics counter so misconfigured products stay visible.
type ZeroRateObserver func(kind string, key string)

// Zero-rate lookup kinds reported to the observer.
const (
	ZeroRateBankPayout    = "bank_payout"
	ZeroRateDSACommission = "dsa_commission"
	ZeroRateIncentive     = "employee_incentive"
)

// Resolver answers rate lookups against an injected rate card.
type Resolver struct {
	tables   *domain.RateTables
	observer ZeroRateObserver
}

// NewResolver creates a resolver over the given tables. observer may be nil.
func NewResolver(tables *domain.RateTables, observer ZeroRateObserver) *Resolver {
	if tables == nil {
		tables = DefaultRateTables()
	}
	return &Resolver{tables: tables, observer: observer}
}

// Tables returns the rate card the resolver was built with.
func (r *Resolver) Tables() *domain.RateTables {
	return r.tables
}

// BankPayoutRate returns the bank payout percentage for a loan type.
// Unknown loan types resolve to 0 with a recorded warning rather than
// failing the calculation; the fallback is observable via the observer.
func (r *Resolver) BankPayoutRate(loanType domain.LoanType) decimal.Decimal {
	rate, ok := r.tables.BankPayout[loanType]
	if !ok {
		slog.Warn("unknown loan type resolved to zero bank payout rate",
			"loan_type", loanType,
		)
		r.observe(ZeroRateBankPayout, string(loanType))
		return decimal.Zero
	}
	return decimal.NewFromFloat(rate)
}

// TotalBankPayout computes loanAmount × bankPayoutRate / 100, rounded
// half-up to the smallest currency unit.
func (r *Resolver) TotalBankPayout(loanType domain.LoanType, loanAmount decimal.Decimal) decimal.Decimal {
	return ApplyPercent(loanAmount, r.BankPayoutRate(loanType))
}

// DSACommissionRate returns the originator commission percentage for a
// (loan type, DSA category) pair. A missing combination returns 0, not an
// error, but is still counted by the observer.
func (r *Resolver) DSACommissionRate(loanType domain.LoanType, category domain.DSACategory) decimal.Decimal {
	byCat, ok := r.tables.DSACommission[loanType]
	if ok {
		if rate, ok := byCat[category]; ok {
			return decimal.NewFromFloat(rate)
		}
	}
	r.observe(ZeroRateDSACommission, string(loanType)+"/"+string(category))
	return decimal.Zero
}

// EmployeeIncentiveRate returns the incentive percentage for an employee
// grade at a given monthly volume. Bands are a step function evaluated
// highest threshold first; below the lowest band the rate is 0.
func (r *Resolver) EmployeeIncentiveRate(grade domain.EmployeeGrade, monthlyVolume decimal.Decimal) decimal.Decimal {
	bands := r.tables.IncentiveBands[domain.BandGroupForGrade(grade)]
	for _, band := range bands {
		if monthlyVolume.GreaterThanOrEqual(decimal.NewFromFloat(band.Threshold)) {
			return decimal.NewFromFloat(band.Rate)
		}
	}
	r.observe(ZeroRateIncentive, string(grade))
	return decimal.Zero
}

// LevelRate returns the override percentage for a hierarchy level from the
// given table, 0 when the level is unmapped.
func LevelRate(levelRates map[int]float64, level int) decimal.Decimal {
	rate, ok := levelRates[level]
	if !ok {
		return decimal.Zero
	}
	return decimal.NewFromFloat(rate)
}

// ApplyPercent computes amount × percent / 100 rounded half-up to two
// decimal places. All derived money amounts in the engine go through this
// so rounding is applied uniformly per line.
func ApplyPercent(amount, percent decimal.Decimal) decimal.Decimal {
	return amount.Mul(percent).Div(decimal.NewFromInt(100)).Round(2)
}

func (r *Resolver) observe(kind, key string) {
	if r.observer != nil {
		r.observer(kind, key)
	}
}

// Package payout computes payout schedules from disbursement facts.
package payout

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/loanpulse/commission-engine/internal/domain"
)

// Scheduler derives expected payout dates and advance-payout eligibility.
type Scheduler struct {
	tatDays          int
	advanceThreshold decimal.Decimal
}

// NewScheduler creates a scheduler with the given turnaround time in days
// and the advance-payout loan amount threshold.
func NewScheduler(tatDays int, advancePayoutThreshold float64) *Scheduler {
	return &Scheduler{
		tatDays:          tatDays,
		advanceThreshold: decimal.NewFromFloat(advancePayoutThreshold),
	}
}

// TATDays returns the configured turnaround time.
func (s *Scheduler) TATDays() int {
	return s.tatDays
}

// ExpectedPayoutDate returns disbursementDate + TAT. The date is not
// determinable before the bank has confirmed disbursement; ok is false
// then and the caller must not guess one.
func (s *Scheduler) ExpectedPayoutDate(conf *domain.BankConfirmation) (time.Time, bool) {
	if conf == nil || !conf.Confirmed || conf.DisbursementDate.IsZero() {
		return time.Time{}, false
	}
	return conf.DisbursementDate.AddDate(0, 0, s.tatDays), true
}

// AdvanceEligible reports whether the loan amount qualifies for the earlier
// manual payout track. Eligibility only; it never advances lifecycle state.
func (s *Scheduler) AdvanceEligible(loanAmount decimal.Decimal) bool {
	return loanAmount.GreaterThan(s.advanceThreshold)
}

// Apply fills in a commission's payout details from its current bank
// confirmation: TAT, the expected date when determinable, and the advance
// flag.
func (s *Scheduler) Apply(c *domain.Commission) {
	c.PayoutDetails.TATDays = s.tatDays
	c.PayoutDetails.AdvancePayout = s.AdvanceEligible(c.LoanAmount)
	if expected, ok := s.ExpectedPayoutDate(c.BankConfirmation); ok {
		c.PayoutDetails.ExpectedPayoutDate = &expected
	}
}

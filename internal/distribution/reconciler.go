package distribution

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/loanpulse/commission-engine/internal/domain"
)

// Reconciler is the sole writer of a commission's financial summary and
// derived flags. It recomputes totals from the current distribution and
// insurance entries and then verifies every financial invariant, so a
// mismatch can only mean a bug upstream.
type Reconciler struct {
	advanceThreshold decimal.Decimal
}

// NewReconciler creates a reconciler with the advance-payout threshold.
func NewReconciler(advancePayoutThreshold float64) *Reconciler {
	return &Reconciler{advanceThreshold: decimal.NewFromFloat(advancePayoutThreshold)}
}

// Reconcile recomputes c.Summary and c.Flags in place. It must run after
// any change to the distribution or insurance entries; it never runs
// against stale inputs because it reads only from c itself.
func (r *Reconciler) Reconcile(c *domain.Commission) error {
	earned := decimal.Zero
	withheld := decimal.Zero
	for _, line := range c.Distribution {
		earned = earned.Add(line.CommissionAmount)
		withheld = withheld.Add(line.TDSDeducted)
	}

	insurance := decimal.Zero
	for _, entry := range c.Insurance {
		// Only entries that survived the freelook period are payable.
		if entry.FreelookSurvived {
			insurance = insurance.Add(entry.CommissionAmount)
		}
	}

	c.Summary = domain.FinancialSummary{
		TotalCommissionEarned: earned,
		TotalTDSDeducted:      withheld,
		TotalNetPayout:        earned.Sub(withheld),
		InsurancePayable:      insurance,
		ReconciledAt:          time.Now().UTC(),
	}

	c.Flags = domain.Flags{
		IsAdvancePayoutCase:     c.LoanAmount.GreaterThan(r.advanceThreshold),
		ManagerApprovalRequired: c.LoanAmount.GreaterThan(r.advanceThreshold) && c.Status != domain.StatusPayoutInitiated && c.Status != domain.StatusCompleted,
		HasInsurance:            len(c.Insurance) > 0,
		IsActivationCase:        c.Originator.Role.IsDSA(),
	}
	c.PayoutDetails.AdvancePayout = c.Flags.IsAdvancePayoutCase

	return r.verify(c)
}

// verify checks the reconciliation invariants. Violations are fatal
// (domain.ErrReconciliationMismatch) and never auto-corrected.
func (r *Reconciler) verify(c *domain.Commission) error {
	if len(c.Distribution) > 0 && len(c.Distribution) != len(c.Hierarchy) {
		return fmt.Errorf("%w: %d distribution lines for %d hierarchy members",
			domain.ErrReconciliationMismatch, len(c.Distribution), len(c.Hierarchy))
	}

	for i, line := range c.Distribution {
		if i > 0 && line.Level <= c.Distribution[i-1].Level {
			return fmt.Errorf("%w: distribution levels out of order at index %d", domain.ErrReconciliationMismatch, i)
		}
		if !line.NetAmount.Equal(line.CommissionAmount.Sub(line.TDSDeducted)) {
			return fmt.Errorf("%w: line %s net %s != gross %s - tds %s",
				domain.ErrReconciliationMismatch, line.WorkerID,
				line.NetAmount.String(), line.CommissionAmount.String(), line.TDSDeducted.String())
		}
	}

	if !c.Summary.TotalNetPayout.Equal(c.Summary.TotalCommissionEarned.Sub(c.Summary.TotalTDSDeducted)) {
		return fmt.Errorf("%w: net payout %s != earned %s - tds %s",
			domain.ErrReconciliationMismatch,
			c.Summary.TotalNetPayout.String(),
			c.Summary.TotalCommissionEarned.String(),
			c.Summary.TotalTDSDeducted.String())
	}

	return nil
}

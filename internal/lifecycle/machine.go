// Package lifecycle drives a commission through its guarded state machine
// and exposes the engine's operations.
package lifecycle

import (
	"fmt"

	"github.com/loanpulse/commission-engine/internal/domain"
)

// transitions is the allowed state graph. rejected is terminal; completed
// is terminal.
var transitions = map[domain.Status][]domain.Status{
	domain.StatusPending:              {domain.StatusBankConfirmed, domain.StatusRejected},
	domain.StatusBankConfirmed:        {domain.StatusCommissionCalculated, domain.StatusRejected},
	domain.StatusCommissionCalculated: {domain.StatusPayoutInitiated, domain.StatusRejected},
	domain.StatusPayoutInitiated:      {domain.StatusCompleted},
	domain.StatusCompleted:            {},
	domain.StatusRejected:             {},
}

// CanTransition reports whether from → to follows the lifecycle graph.
func CanTransition(from, to domain.Status) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// checkTransition validates the graph edge and the data guards for the
// target state. It never mutates the commission.
func checkTransition(c *domain.Commission, to domain.Status) error {
	if !CanTransition(c.Status, to) {
		return fmt.Errorf("%w: %s -> %s", domain.ErrInvalidTransition, c.Status, to)
	}

	switch to {
	case domain.StatusBankConfirmed:
		if c.BankConfirmation == nil || !c.BankConfirmation.Confirmed {
			return fmt.Errorf("%w: bank confirmation is not set", domain.ErrInvalidTransition)
		}
	case domain.StatusCommissionCalculated:
		if len(c.Distribution) == 0 {
			return fmt.Errorf("%w: distribution is empty", domain.ErrInvalidTransition)
		}
	case domain.StatusCompleted:
		if c.PayoutDetails.ActualPayoutDate == nil || c.PayoutDetails.TransferReference == "" {
			return fmt.Errorf("%w: actual payout date and transfer reference are required", domain.ErrInvalidTransition)
		}
	}

	return nil
}

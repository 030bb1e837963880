package incentive

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/loanpulse/commission-engine/internal/domain"
)

// BonusEvaluator detects DSA-activation qualifying events and issues the
// one-time bonus to the worker who referred the DSA. Grants are
// exactly-once per (activated DSA, criterion): the repository insert is
// gated by a uniqueness constraint, so concurrent batch runs cannot
// double-grant.
type BonusEvaluator struct {
	repo          domain.Repository
	engine        *CriteriaEngine
	defaultAmount decimal.Decimal
}

// NewBonusEvaluator creates an evaluator with the default bonus amount used
// by criteria that carry none of their own.
func NewBonusEvaluator(repo domain.Repository, engine *CriteriaEngine, defaultBonusAmount float64) *BonusEvaluator {
	return &BonusEvaluator{
		repo:          repo,
		engine:        engine,
		defaultAmount: decimal.NewFromFloat(defaultBonusAmount),
	}
}

// EvaluateDSA checks a DSA's cumulative sourced volume per loan type
// against every criterion and grants the bonuses that newly qualify.
// Returns only the grants made by this call; already-granted pairs are
// skipped silently.
func (b *BonusEvaluator) EvaluateDSA(ctx context.Context, dsa domain.DSARef) ([]*domain.ActivationBonus, error) {
	if dsa.WorkerID == "" {
		return nil, fmt.Errorf("%w: dsa id is required", domain.ErrValidation)
	}
	if dsa.ReferrerID == "" {
		// Nobody to credit: a DSA without an activator cannot fire a bonus.
		return nil, nil
	}

	volumes, err := b.repo.DSAVolumeByLoanType(ctx, dsa.WorkerID)
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate dsa volume: %w", err)
	}

	var granted []*domain.ActivationBonus
	for loanType, volume := range volumes {
		vol, _ := volume.Float64()
		for _, criterion := range b.engine.Matches(loanType, vol) {
			amount := b.defaultAmount
			if criterion.BonusAmount > 0 {
				amount = decimal.NewFromFloat(criterion.BonusAmount)
			}

			bonus := &domain.ActivationBonus{
				ID:               uuid.New().String(),
				ActivatorID:      dsa.ReferrerID,
				DSAID:            dsa.WorkerID,
				CriterionID:      criterion.ID,
				LoanType:         loanType,
				QualifyingVolume: volume,
				Amount:           amount,
				GrantedAt:        time.Now().UTC(),
			}

			inserted, err := b.repo.InsertActivationBonus(ctx, bonus)
			if err != nil {
				return granted, fmt.Errorf("failed to grant activation bonus: %w", err)
			}
			if !inserted {
				continue
			}

			slog.Info("activation bonus granted",
				"dsa_id", dsa.WorkerID,
				"activator_id", dsa.ReferrerID,
				"criterion", criterion.ID,
				"volume", volume.String(),
			)
			granted = append(granted, bonus)
		}
	}

	return granted, nil
}

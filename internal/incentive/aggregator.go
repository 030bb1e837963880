package incentive

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/loanpulse/commission-engine/internal/domain"
	"github.com/loanpulse/commission-engine/internal/rates"
)

// Aggregator computes monthly employee incentive records. It runs per
// employee per calendar month, independent of individual loan
// distributions; rerunning for the same period replaces the prior record.
type Aggregator struct {
	repo     domain.Repository
	resolver *rates.Resolver
}

// NewAggregator creates a monthly incentive aggregator.
func NewAggregator(repo domain.Repository, resolver *rates.Resolver) *Aggregator {
	return &Aggregator{repo: repo, resolver: resolver}
}

// ComputeMonthly sums the employee's directly sourced volume for the
// period, resolves the applicable incentive band, and upserts the record
// keyed by (employee, month, year).
func (a *Aggregator) ComputeMonthly(ctx context.Context, employee domain.EmployeeRef, month time.Month, year int) (*domain.IncentiveRecord, error) {
	if employee.WorkerID == "" {
		return nil, fmt.Errorf("%w: employee id is required", domain.ErrValidation)
	}

	volume, err := a.repo.MonthlySourcedVolume(ctx, employee.WorkerID, month, year)
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate monthly volume: %w", err)
	}

	rate := a.resolver.EmployeeIncentiveRate(employee.Grade, volume)
	rec := &domain.IncentiveRecord{
		ID:         uuid.New().String(),
		EmployeeID: employee.WorkerID,
		Grade:      employee.Grade,
		Month:      month,
		Year:       year,
		Volume:     volume,
		Rate:       rate,
		Amount:     rates.ApplyPercent(volume, rate),
		ComputedAt: time.Now().UTC(),
	}

	if err := a.repo.UpsertIncentive(ctx, rec); err != nil {
		return nil, fmt.Errorf("failed to upsert incentive: %w", err)
	}

	return rec, nil
}

// Preview computes the record without persisting it. Used by read paths
// that want month-to-date numbers.
func (a *Aggregator) Preview(ctx context.Context, employee domain.EmployeeRef, month time.Month, year int) (*domain.IncentiveRecord, error) {
	volume, err := a.repo.MonthlySourcedVolume(ctx, employee.WorkerID, month, year)
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate monthly volume: %w", err)
	}
	rate := a.resolver.EmployeeIncentiveRate(employee.Grade, volume)
	return &domain.IncentiveRecord{
		EmployeeID: employee.WorkerID,
		Grade:      employee.Grade,
		Month:      month,
		Year:       year,
		Volume:     volume,
		Rate:       rate,
		Amount:     rates.ApplyPercent(volume, rate),
		ComputedAt: time.Now().UTC(),
	}, nil
}

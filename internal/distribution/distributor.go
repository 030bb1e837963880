// Package distribution computes per-participant commission line items and
// reconciles the derived financial summary. Both operations are pure
// functions over an immutable snapshot; persistence happens elsewhere.
package distribution

import (
	"fmt"
	"sort"

	"github.com/shopspring/decimal"

	"github.com/loanpulse/commission-engine/internal/domain"
	"github.com/loanpulse/commission-engine/internal/rates"
)

// Distributor allocates a loan's commission pool across its sourcing
// hierarchy.
type Distributor struct {
	resolver *rates.Resolver
	tds      *rates.TDSCalculator
}

// NewDistributor creates a distributor over the given resolver and
// withholding calculator.
func NewDistributor(resolver *rates.Resolver, tds *rates.TDSCalculator) *Distributor {
	return &Distributor{resolver: resolver, tds: tds}
}

// Distribute computes one line per hierarchy participant for the
// commission. levelRates maps hierarchy level (>= 1) to the override
// percentage of the bank payout pool.
//
// The originator (level 0) earns loanAmount × DSACommissionRate when they
// are a DSA or sub-DSA; employee originators get a zero-amount line here
// because their share flows through the monthly incentive track. Each
// override level earns totalBankPayout × levelRate.
//
// The result replaces any prior line set: rerunning with identical inputs
// yields an identical distribution, one line per (worker, loan).
func (d *Distributor) Distribute(c *domain.Commission, levelRates map[int]float64) ([]domain.DistributionLine, error) {
	if err := ValidateHierarchy(c.Originator, c.Hierarchy); err != nil {
		return nil, err
	}
	if err := rates.ValidateLevelRates(levelRates); err != nil {
		return nil, err
	}

	members := make([]domain.HierarchyMember, len(c.Hierarchy))
	copy(members, c.Hierarchy)
	sort.Slice(members, func(i, j int) bool { return members[i].Level < members[j].Level })

	lines := make([]domain.DistributionLine, 0, len(members))
	total := decimal.Zero

	for _, m := range members {
		var line domain.DistributionLine
		if m.Level == 0 {
			line = d.originatorLine(c)
		} else {
			rate := rates.LevelRate(levelRates, m.Level)
			gross := rates.ApplyPercent(c.TotalBankPayout, rate)
			line = d.buildLine(m.WorkerID, m.Role, m.Level, rate, gross)
		}
		total = total.Add(line.CommissionAmount)
		lines = append(lines, line)
	}

	// Configured rates must never allocate more than the pool.
	if total.GreaterThan(c.TotalBankPayout) {
		return nil, fmt.Errorf("%w: distribution %s exceeds bank payout pool %s",
			domain.ErrValidation, total.String(), c.TotalBankPayout.String())
	}

	return lines, nil
}

func (d *Distributor) originatorLine(c *domain.Commission) domain.DistributionLine {
	o := c.Originator
	if o.Role.IsDSA() {
		rate := d.resolver.DSACommissionRate(c.LoanType, o.Category)
		gross := rates.ApplyPercent(c.LoanAmount, rate)
		line := d.buildLine(o.WorkerID, o.Role, 0, rate, gross)
		if rate.IsZero() {
			line.Warning = fmt.Sprintf("no dsa commission rate for %s/%s", c.LoanType, o.Category)
		}
		return line
	}

	// Employee originators earn through the monthly incentive track, not
	// the per-loan pool.
	return d.buildLine(o.WorkerID, o.Role, 0, decimal.Zero, decimal.Zero)
}

func (d *Distributor) buildLine(workerID string, role domain.ParticipantRole, level int, rate, gross decimal.Decimal) domain.DistributionLine {
	tds := d.tds.Withhold(gross)
	return domain.DistributionLine{
		WorkerID:         workerID,
		Role:             role,
		Level:            level,
		RateApplied:      rate,
		CommissionAmount: gross,
		TDSDeducted:      tds,
		NetAmount:        gross.Sub(tds),
		PayoutStatus:     domain.PayoutPending,
	}
}

// ValidateHierarchy checks that a sourcing hierarchy is well formed:
// non-empty, contiguous levels starting at 0, the originator at level 0,
// and no worker appearing twice.
func ValidateHierarchy(originator domain.Originator, hierarchy []domain.HierarchyMember) error {
	if len(hierarchy) == 0 {
		return fmt.Errorf("%w: hierarchy is empty", domain.ErrValidation)
	}

	byLevel := make(map[int]domain.HierarchyMember, len(hierarchy))
	seen := make(map[string]bool, len(hierarchy))
	for _, m := range hierarchy {
		if m.WorkerID == "" {
			return fmt.Errorf("%w: hierarchy member missing worker id", domain.ErrValidation)
		}
		if _, dup := byLevel[m.Level]; dup {
			return fmt.Errorf("%w: duplicate hierarchy level %d", domain.ErrValidation, m.Level)
		}
		if seen[m.WorkerID] {
			return fmt.Errorf("%w: worker %s appears twice in hierarchy", domain.ErrValidation, m.WorkerID)
		}
		byLevel[m.Level] = m
		seen[m.WorkerID] = true
	}

	for level := 0; level < len(hierarchy); level++ {
		if _, ok := byLevel[level]; !ok {
			return fmt.Errorf("%w: hierarchy levels not contiguous, missing level %d", domain.ErrValidation, level)
		}
	}

	if byLevel[0].WorkerID != originator.WorkerID {
		return fmt.Errorf("%w: hierarchy level 0 must be the originator", domain.ErrValidation)
	}

	return nil
}

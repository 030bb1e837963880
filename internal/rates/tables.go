package rates

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/loanpulse/commission-engine/internal/domain"
)

// DefaultRateTables returns the compiled-in rate card. Deployments that
// need a versioned card load one from YAML instead (LoadRateTables).
func DefaultRateTables() *domain.RateTables {
	return &domain.RateTables{
		BankPayout: map[domain.LoanType]float64{
			domain.LoanTypeHome:           0.8,
			domain.LoanTypeLAP:            1.0,
			domain.LoanTypeBusiness:       2.0,
			domain.LoanTypePersonal:       2.0,
			domain.LoanTypeWorkingCapital: 1.5,
			domain.LoanTypeEducation:      1.2,
			domain.LoanTypeAuto:           1.0,
		},
		DSACommission: map[domain.LoanType]map[domain.DSACategory]float64{
			domain.LoanTypeHome:           {domain.CategoryA: 0.70, domain.CategoryB: 0.60, domain.CategoryC: 0.50},
			domain.LoanTypeLAP:            {domain.CategoryA: 0.90, domain.CategoryB: 0.80, domain.CategoryC: 0.70},
			domain.LoanTypeBusiness:       {domain.CategoryA: 1.80, domain.CategoryB: 1.60, domain.CategoryC: 1.40},
			domain.LoanTypePersonal:       {domain.CategoryA: 1.80, domain.CategoryB: 1.60, domain.CategoryC: 1.40},
			domain.LoanTypeWorkingCapital: {domain.CategoryA: 1.30, domain.CategoryB: 1.10, domain.CategoryC: 0.90},
			domain.LoanTypeEducation:      {domain.CategoryA: 1.00, domain.CategoryB: 0.85, domain.CategoryC: 0.70},
			domain.LoanTypeAuto:           {domain.CategoryA: 0.90, domain.CategoryB: 0.75, domain.CategoryC: 0.60},
		},
		IncentiveBands: map[string][]domain.IncentiveBand{
			// Highest threshold first; the first band the volume reaches wins.
			domain.BandGroupBDEBDM: {
				{Threshold: 50_000_000, Rate: 0.15},
				{Threshold: 20_000_000, Rate: 0.10},
				{Threshold: 10_000_000, Rate: 0.05},
			},
			domain.BandGroupSMASM: {
				{Threshold: 75_000_000, Rate: 0.12},
				{Threshold: 30_000_000, Rate: 0.08},
				{Threshold: 15_000_000, Rate: 0.04},
			},
		},
		LevelRates: map[int]float64{
			1: 0.10,
			2: 0.05,
			3: 0.03,
		},
		ActivationCriteria: []domain.ActivationCriterion{
			{
				ID:          "home-50l",
				Description: "home loan volume reaches 50 lakh",
				Expression:  `loan_type == "home_loan" && volume >= 5000000.0`,
			},
			{
				ID:          "lap-30l",
				Description: "LAP volume reaches 30 lakh",
				Expression:  `loan_type == "loan_against_property" && volume >= 3000000.0`,
			},
			{
				ID:          "personal-10l",
				Description: "personal loan volume reaches 10 lakh",
				Expression:  `loan_type == "personal_loan" && volume >= 1000000.0`,
			},
			{
				ID:          "business-10l",
				Description: "business loan volume reaches 10 lakh",
				Expression:  `loan_type == "business_loan" && volume >= 1000000.0`,
			},
		},
	}
}

// LoadRateTables reads a rate card from a YAML file and validates it.
func LoadRateTables(path string) (*domain.RateTables, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read rate tables: %w", err)
	}

	var tables domain.RateTables
	if err := yaml.Unmarshal(data, &tables); err != nil {
		return nil, fmt.Errorf("failed to parse rate tables: %w", err)
	}

	if err := ValidateRateTables(&tables); err != nil {
		return nil, err
	}

	return &tables, nil
}

// ValidateRateTables rejects rate cards that could never reconcile:
// negative rates, percentages above 100, or level overrides that alone
// exceed the payout pool.
func ValidateRateTables(t *domain.RateTables) error {
	for lt, rate := range t.BankPayout {
		if rate < 0 || rate > 100 {
			return fmt.Errorf("%w: bank payout rate for %s out of range: %v", domain.ErrValidation, lt, rate)
		}
	}

	for lt, byCat := range t.DSACommission {
		for cat, rate := range byCat {
			if rate < 0 || rate > 100 {
				return fmt.Errorf("%w: dsa commission rate for %s/%s out of range: %v", domain.ErrValidation, lt, cat, rate)
			}
		}
	}

	for group, bands := range t.IncentiveBands {
		for i, band := range bands {
			if band.Rate < 0 || band.Rate > 100 || band.Threshold < 0 {
				return fmt.Errorf("%w: incentive band %d for %s out of range", domain.ErrValidation, i, group)
			}
			if i > 0 && band.Threshold >= bands[i-1].Threshold {
				return fmt.Errorf("%w: incentive bands for %s must be ordered highest threshold first", domain.ErrValidation, group)
			}
		}
	}

	if err := ValidateLevelRates(t.LevelRates); err != nil {
		return err
	}

	for _, c := range t.ActivationCriteria {
		if c.ID == "" || c.Expression == "" {
			return fmt.Errorf("%w: activation criterion needs id and expression", domain.ErrValidation)
		}
		if c.BonusAmount < 0 {
			return fmt.Errorf("%w: activation criterion %s has negative bonus amount", domain.ErrValidation, c.ID)
		}
	}

	return nil
}

// ValidateLevelRates checks a level-rate table in isolation. The sum cap
// keeps override shares from ever exceeding the payout pool on their own;
// the distributor re-checks the full allocation per loan.
func ValidateLevelRates(levelRates map[int]float64) error {
	var sum float64
	for level, rate := range levelRates {
		if level < 1 {
			return fmt.Errorf("%w: level rates start at level 1, got %d", domain.ErrValidation, level)
		}
		if rate < 0 {
			return fmt.Errorf("%w: negative level rate at level %d", domain.ErrValidation, level)
		}
		sum += rate
	}
	if sum > 100 {
		return fmt.Errorf("%w: level rates sum to %.2f%%, exceeding the payout pool", domain.ErrValidation, sum)
	}
	return nil
}

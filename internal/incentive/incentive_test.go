package incentive

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/loanpulse/commission-engine/internal/domain"
	"github.com/loanpulse/commission-engine/internal/rates"
	"github.com/loanpulse/commission-engine/internal/repository"
)

func newRepo(t *testing.T) domain.Repository {
	t.Helper()
	repo, err := repository.New(domain.RepositoryConfig{
		Driver:     "sqlite",
		SQLitePath: filepath.Join(t.TempDir(), "incentive_test.db"),
	})
	if err != nil {
		t.Fatalf("failed to create repository: %v", err)
	}
	t.Cleanup(func() { repo.Close() })
	return repo
}

func seedCommission(t *testing.T, repo domain.Repository, originator domain.Originator, loanType domain.LoanType, amount int64, appDate time.Time, status domain.Status) {
	t.Helper()
	now := time.Now().UTC()
	c := &domain.Commission{
		ID:              uuid.New().String(),
		LoanAuditID:     uuid.New().String(),
		ClientName:      "Test Client",
		BankName:        "Test Bank",
		LoanType:        loanType,
		LoanAmount:      decimal.NewFromInt(amount),
		ApplicationDate: appDate,
		Originator:      originator,
		Hierarchy: []domain.HierarchyMember{
			{WorkerID: originator.WorkerID, Role: originator.Role, Level: 0},
		},
		Status:    status,
		Version:   1,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := repo.CreateCommission(context.Background(), c, nil); err != nil {
		t.Fatalf("failed to seed commission: %v", err)
	}
}

func TestCriteriaEngineMatches(t *testing.T) {
	engine, err := NewCriteriaEngine([]domain.ActivationCriterion{
		{ID: "home-50l", Expression: `loan_type == "home_loan" && volume >= 5000000.0`},
		{ID: "personal-10l", Expression: `loan_type == "personal_loan" && volume >= 1000000.0`},
	})
	if err != nil {
		t.Fatalf("NewCriteriaEngine: %v", err)
	}
	if engine.CriteriaCount() != 2 {
		t.Fatalf("CriteriaCount = %d, want 2", engine.CriteriaCount())
	}

	tests := []struct {
		name     string
		loanType domain.LoanType
		volume   float64
		want     []string
	}{
		{"home volume qualifies", domain.LoanTypeHome, 6_000_000, []string{"home-50l"}},
		{"home volume below threshold", domain.LoanTypeHome, 4_999_999, nil},
		{"loan type does not match", domain.LoanTypeAuto, 10_000_000, nil},
		{"personal qualifies", domain.LoanTypePersonal, 1_000_000, []string{"personal-10l"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			matched := engine.Matches(tt.loanType, tt.volume)
			if len(matched) != len(tt.want) {
				t.Fatalf("matched %d criteria, want %d", len(matched), len(tt.want))
			}
			for i, id := range tt.want {
				if matched[i].ID != id {
					t.Errorf("matched[%d] = %s, want %s", i, matched[i].ID, id)
				}
			}
		})
	}
}

func TestCriteriaEngineRejectsBadExpressions(t *testing.T) {
	tests := []struct {
		name       string
		expression string
	}{
		{"syntax error", `loan_type == `},
		{"unknown variable", `tenant == "x"`},
		{"non-bool result", `volume + 1.0`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewCriteriaEngine([]domain.ActivationCriterion{
				{ID: "bad", Expression: tt.expression},
			})
			if err == nil {
				t.Fatalf("expected error for %q", tt.expression)
			}
		})
	}
}

func TestComputeMonthly(t *testing.T) {
	repo := newRepo(t)
	ctx := context.Background()
	resolver := rates.NewResolver(rates.DefaultRateTables(), nil)
	agg := NewAggregator(repo, resolver)

	employee := domain.EmployeeRef{WorkerID: "emp-1", Grade: domain.GradeBDE}
	originator := domain.Originator{WorkerID: "emp-1", Role: domain.RoleEmployee, Grade: domain.GradeBDE}
	march := time.Date(2026, time.March, 5, 0, 0, 0, 0, time.UTC)

	seedCommission(t, repo, originator, domain.LoanTypeHome, 12_000_000, march, domain.StatusPending)
	seedCommission(t, repo, originator, domain.LoanTypeBusiness, 8_000_000, march.AddDate(0, 0, 10), domain.StatusBankConfirmed)
	// Rejected and out-of-month loans must not count.
	seedCommission(t, repo, originator, domain.LoanTypeHome, 5_000_000, march, domain.StatusRejected)
	seedCommission(t, repo, originator, domain.LoanTypeHome, 9_000_000, march.AddDate(0, 1, 0), domain.StatusPending)

	rec, err := agg.ComputeMonthly(ctx, employee, time.March, 2026)
	if err != nil {
		t.Fatalf("ComputeMonthly: %v", err)
	}
	if got := rec.Volume.String(); got != "20000000" {
		t.Errorf("volume = %s, want 20000000", got)
	}
	if !rec.Rate.Equal(decimal.NewFromFloat(0.10)) {
		t.Errorf("rate = %s, want 0.1", rec.Rate)
	}
	if got := rec.Amount.String(); got != "20000" {
		t.Errorf("amount = %s, want 20000", got)
	}

	stored, err := repo.GetIncentive(ctx, "emp-1", time.March, 2026)
	if err != nil {
		t.Fatalf("GetIncentive: %v", err)
	}
	if !stored.Amount.Equal(rec.Amount) {
		t.Errorf("stored amount = %s, want %s", stored.Amount, rec.Amount)
	}
}

func TestComputeMonthlyRerunReplaces(t *testing.T) {
	repo := newRepo(t)
	ctx := context.Background()
	agg := NewAggregator(repo, rates.NewResolver(rates.DefaultRateTables(), nil))

	employee := domain.EmployeeRef{WorkerID: "emp-1", Grade: domain.GradeBDE}
	originator := domain.Originator{WorkerID: "emp-1", Role: domain.RoleEmployee, Grade: domain.GradeBDE}
	march := time.Date(2026, time.March, 5, 0, 0, 0, 0, time.UTC)

	seedCommission(t, repo, originator, domain.LoanTypeHome, 12_000_000, march, domain.StatusPending)
	if _, err := agg.ComputeMonthly(ctx, employee, time.March, 2026); err != nil {
		t.Fatalf("first ComputeMonthly: %v", err)
	}

	// A late-arriving loan changes the volume; the rerun must replace the
	// period's record, not add a second one.
	seedCommission(t, repo, originator, domain.LoanTypeBusiness, 8_000_000, march, domain.StatusPending)
	rec, err := agg.ComputeMonthly(ctx, employee, time.March, 2026)
	if err != nil {
		t.Fatalf("second ComputeMonthly: %v", err)
	}
	if got := rec.Volume.String(); got != "20000000" {
		t.Errorf("volume = %s, want 20000000 after rerun", got)
	}

	records, err := repo.ListIncentives(ctx, "emp-1")
	if err != nil {
		t.Fatalf("ListIncentives: %v", err)
	}
	if len(records) != 1 {
		t.Fatalf("expected 1 record for the period, got %d", len(records))
	}
	if got := records[0].Volume.String(); got != "20000000" {
		t.Errorf("stored volume = %s, want 20000000", got)
	}
}

func TestComputeMonthlyRequiresEmployeeID(t *testing.T) {
	repo := newRepo(t)
	agg := NewAggregator(repo, rates.NewResolver(rates.DefaultRateTables(), nil))

	_, err := agg.ComputeMonthly(context.Background(), domain.EmployeeRef{Grade: domain.GradeBDE}, time.March, 2026)
	if !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("expected ErrValidation, got %v", err)
	}
}

func TestPreviewDoesNotPersist(t *testing.T) {
	repo := newRepo(t)
	ctx := context.Background()
	agg := NewAggregator(repo, rates.NewResolver(rates.DefaultRateTables(), nil))

	originator := domain.Originator{WorkerID: "emp-1", Role: domain.RoleEmployee, Grade: domain.GradeBDE}
	march := time.Date(2026, time.March, 5, 0, 0, 0, 0, time.UTC)
	seedCommission(t, repo, originator, domain.LoanTypeHome, 20_000_000, march, domain.StatusPending)

	rec, err := agg.Preview(ctx, domain.EmployeeRef{WorkerID: "emp-1", Grade: domain.GradeBDE}, time.March, 2026)
	if err != nil {
		t.Fatalf("Preview: %v", err)
	}
	if got := rec.Amount.String(); got != "20000" {
		t.Errorf("previewed amount = %s, want 20000", got)
	}

	if _, err := repo.GetIncentive(ctx, "emp-1", time.March, 2026); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound after preview, got %v", err)
	}
}

func newBonusEvaluator(t *testing.T, repo domain.Repository) *BonusEvaluator {
	t.Helper()
	engine, err := NewCriteriaEngine(rates.DefaultRateTables().ActivationCriteria)
	if err != nil {
		t.Fatalf("NewCriteriaEngine: %v", err)
	}
	return NewBonusEvaluator(repo, engine, 1000)
}

func TestEvaluateDSAGrantsOnce(t *testing.T) {
	repo := newRepo(t)
	ctx := context.Background()
	evaluator := newBonusEvaluator(t, repo)

	originator := domain.Originator{WorkerID: "dsa-1", Role: domain.RoleDSA, Category: domain.CategoryA}
	appDate := time.Date(2026, time.March, 5, 0, 0, 0, 0, time.UTC)
	seedCommission(t, repo, originator, domain.LoanTypeHome, 6_000_000, appDate, domain.StatusBankConfirmed)

	dsa := domain.DSARef{WorkerID: "dsa-1", Category: domain.CategoryA, ReferrerID: "emp-9"}
	granted, err := evaluator.EvaluateDSA(ctx, dsa)
	if err != nil {
		t.Fatalf("EvaluateDSA: %v", err)
	}
	if len(granted) != 1 {
		t.Fatalf("expected 1 grant, got %d", len(granted))
	}
	bonus := granted[0]
	if bonus.ActivatorID != "emp-9" {
		t.Errorf("activator = %s, want emp-9", bonus.ActivatorID)
	}
	if bonus.CriterionID != "home-50l" {
		t.Errorf("criterion = %s, want home-50l", bonus.CriterionID)
	}
	if got := bonus.QualifyingVolume.String(); got != "6000000" {
		t.Errorf("qualifying volume = %s, want 6000000", got)
	}
	if got := bonus.Amount.String(); got != "1000" {
		t.Errorf("amount = %s, want the 1000 default", got)
	}

	// The same pair must never fire twice, even as volume keeps growing.
	seedCommission(t, repo, originator, domain.LoanTypeHome, 3_000_000, appDate.AddDate(0, 1, 0), domain.StatusPending)
	again, err := evaluator.EvaluateDSA(ctx, dsa)
	if err != nil {
		t.Fatalf("second EvaluateDSA: %v", err)
	}
	if len(again) != 0 {
		t.Fatalf("expected no new grants on rerun, got %d", len(again))
	}

	all, err := repo.ListActivationBonuses(ctx, "dsa-1")
	if err != nil {
		t.Fatalf("ListActivationBonuses: %v", err)
	}
	if len(all) != 1 {
		t.Fatalf("expected 1 stored bonus, got %d", len(all))
	}
}

func TestEvaluateDSABonusAmountOverride(t *testing.T) {
	repo := newRepo(t)
	ctx := context.Background()
	engine, err := NewCriteriaEngine([]domain.ActivationCriterion{
		{ID: "home-50l", Expression: `loan_type == "home_loan" && volume >= 5000000.0`, BonusAmount: 2500},
	})
	if err != nil {
		t.Fatalf("NewCriteriaEngine: %v", err)
	}
	evaluator := NewBonusEvaluator(repo, engine, 1000)

	originator := domain.Originator{WorkerID: "dsa-1", Role: domain.RoleDSA, Category: domain.CategoryB}
	seedCommission(t, repo, originator, domain.LoanTypeHome, 6_000_000, time.Now().UTC(), domain.StatusPending)

	granted, err := evaluator.EvaluateDSA(ctx, domain.DSARef{WorkerID: "dsa-1", ReferrerID: "emp-9"})
	if err != nil {
		t.Fatalf("EvaluateDSA: %v", err)
	}
	if len(granted) != 1 {
		t.Fatalf("expected 1 grant, got %d", len(granted))
	}
	if got := granted[0].Amount.String(); got != "2500" {
		t.Errorf("amount = %s, want the criterion's 2500", got)
	}
}

func TestEvaluateDSAWithoutReferrer(t *testing.T) {
	repo := newRepo(t)
	ctx := context.Background()
	evaluator := newBonusEvaluator(t, repo)

	originator := domain.Originator{WorkerID: "dsa-2", Role: domain.RoleDSA, Category: domain.CategoryA}
	seedCommission(t, repo, originator, domain.LoanTypeHome, 6_000_000, time.Now().UTC(), domain.StatusPending)

	granted, err := evaluator.EvaluateDSA(ctx, domain.DSARef{WorkerID: "dsa-2"})
	if err != nil {
		t.Fatalf("EvaluateDSA: %v", err)
	}
	if granted != nil {
		t.Fatalf("expected no grants without a referrer, got %d", len(granted))
	}

	all, err := repo.ListActivationBonuses(ctx, "dsa-2")
	if err != nil {
		t.Fatalf("ListActivationBonuses: %v", err)
	}
	if len(all) != 0 {
		t.Fatalf("expected nothing persisted, got %d", len(all))
	}
}

func TestEvaluateDSARequiresID(t *testing.T) {
	repo := newRepo(t)
	evaluator := newBonusEvaluator(t, repo)

	_, err := evaluator.EvaluateDSA(context.Background(), domain.DSARef{ReferrerID: "emp-9"})
	if !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("expected ErrValidation, got %v", err)
	}
}

package worker

import (
	"context"
	"encoding/json"
	"path/filepath"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/shopspring/decimal"

	"github.com/loanpulse/commission-engine/internal/bus"
	"github.com/loanpulse/commission-engine/internal/cache"
	"github.com/loanpulse/commission-engine/internal/distribution"
	"github.com/loanpulse/commission-engine/internal/domain"
	"github.com/loanpulse/commission-engine/internal/incentive"
	"github.com/loanpulse/commission-engine/internal/lifecycle"
	"github.com/loanpulse/commission-engine/internal/metrics"
	"github.com/loanpulse/commission-engine/internal/payout"
	"github.com/loanpulse/commission-engine/internal/rates"
	"github.com/loanpulse/commission-engine/internal/repository"
)

type testStack struct {
	repo   domain.Repository
	bus    *bus.ChannelBus
	engine *lifecycle.Engine
	worker *Worker
}

func newTestStack(t *testing.T) *testStack {
	t.Helper()

	repo, err := repository.New(domain.RepositoryConfig{
		Driver:     "sqlite",
		SQLitePath: filepath.Join(t.TempDir(), "worker_test.db"),
	})
	if err != nil {
		t.Fatalf("failed to create repository: %v", err)
	}
	t.Cleanup(func() { repo.Close() })

	channelBus := bus.NewChannelBus(64)
	t.Cleanup(func() { channelBus.Close() })

	m := metrics.NewWith(prometheus.NewRegistry())

	tables := rates.DefaultRateTables()
	resolver := rates.NewResolver(tables, m.ObserveZeroRate)
	params := domain.DefaultEngineParams()
	tds := rates.NewTDSCalculator(params.TDSRatePercent)

	engine := lifecycle.NewEngine(
		repo,
		cache.NewLRUCache(100),
		channelBus,
		resolver,
		distribution.NewDistributor(resolver, tds),
		distribution.NewReconciler(params.AdvancePayoutThreshold),
		payout.NewScheduler(params.PayoutTATDays, params.AdvancePayoutThreshold),
		m,
		params,
	)

	criteriaEngine, err := incentive.NewCriteriaEngine(tables.ActivationCriteria)
	if err != nil {
		t.Fatalf("failed to build criteria engine: %v", err)
	}

	w := NewWorker(
		channelBus,
		repo,
		engine,
		incentive.NewAggregator(repo, resolver),
		incentive.NewBonusEvaluator(repo, criteriaEngine, params.ActivationBonusAmount),
		m,
	)
	t.Cleanup(w.Stop)

	return &testStack{repo: repo, bus: channelBus, engine: engine, worker: w}
}

func employeeSnapshot(loanAuditID, workerID string, amount int64) domain.LoanAuditSnapshot {
	return domain.LoanAuditSnapshot{
		LoanAuditID:     loanAuditID,
		ClientName:      "Acme Traders",
		BankName:        "HDFC",
		LoanType:        domain.LoanTypeHome,
		LoanAmount:      decimal.NewFromInt(amount),
		ApplicationDate: time.Date(2026, time.March, 10, 0, 0, 0, 0, time.UTC),
		Originator: domain.Originator{
			WorkerID: workerID,
			Name:     "Asha",
			Role:     domain.RoleEmployee,
			Grade:    domain.GradeBDE,
		},
		Hierarchy: []domain.HierarchyMember{
			{WorkerID: workerID, Role: domain.RoleEmployee, Level: 0},
			{WorkerID: "mgr-1", Role: domain.RoleEmployee, Level: 1},
		},
	}
}

func dsaSnapshot(loanAuditID, dsaID, referrerID string, loanType domain.LoanType, amount int64) domain.LoanAuditSnapshot {
	return domain.LoanAuditSnapshot{
		LoanAuditID:     loanAuditID,
		ClientName:      "Beta Builders",
		BankName:        "ICICI",
		LoanType:        loanType,
		LoanAmount:      decimal.NewFromInt(amount),
		ApplicationDate: time.Date(2026, time.March, 12, 0, 0, 0, 0, time.UTC),
		Originator: domain.Originator{
			WorkerID: dsaID,
			Name:     "Ravi",
			Role:     domain.RoleDSA,
			Category: domain.CategoryA,
		},
		Hierarchy: []domain.HierarchyMember{
			{WorkerID: dsaID, Role: domain.RoleDSA, Level: 0},
			{WorkerID: referrerID, Role: domain.RoleEmployee, Level: 1},
		},
	}
}

func TestWorkerBankConfirmationFlow(t *testing.T) {
	s := newTestStack(t)
	ctx := context.Background()

	c, err := s.engine.Create(ctx, employeeSnapshot("la-100", "emp-1", 5_000_000), "tester")
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	if err := s.worker.Start(Config{}); err != nil {
		t.Fatalf("worker Start failed: %v", err)
	}

	evt := domain.BankConfirmationEvent{
		CommissionID: c.ID,
		Confirmation: domain.BankConfirmation{
			Confirmed:        true,
			DisbursedAmount:  decimal.NewFromInt(5_000_000),
			DisbursementDate: time.Date(2026, time.March, 20, 0, 0, 0, 0, time.UTC),
			BankReference:    "UTR-9001",
		},
	}
	payload, _ := json.Marshal(evt)

	if err := s.bus.Publish(ctx, domain.TopicBankConfirmation, payload); err != nil {
		t.Fatalf("Publish failed: %v", err)
	}

	deadline := time.Now().Add(2 * time.Second)
	for {
		got, err := s.engine.Get(ctx, c.ID)
		if err != nil {
			t.Fatalf("Get failed: %v", err)
		}
		if got.Status == domain.StatusBankConfirmed {
			if got.BankConfirmation == nil || got.BankConfirmation.BankReference != "UTR-9001" {
				t.Fatalf("confirmation not recorded: %+v", got.BankConfirmation)
			}
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("commission never reached bank_confirmed, status = %s", got.Status)
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestWorkerMalformedConfirmationIsDropped(t *testing.T) {
	s := newTestStack(t)

	if err := s.worker.Start(Config{}); err != nil {
		t.Fatalf("worker Start failed: %v", err)
	}

	// A bad payload must not wedge the subscription.
	if err := s.bus.Publish(context.Background(), domain.TopicBankConfirmation, []byte("not json")); err != nil {
		t.Fatalf("Publish failed: %v", err)
	}
	time.Sleep(50 * time.Millisecond)
}

func TestRunMonthlyIncentives(t *testing.T) {
	s := newTestStack(t)
	ctx := context.Background()

	// Two loans for the same employee in March 2026.
	if _, err := s.engine.Create(ctx, employeeSnapshot("la-201", "emp-1", 12_000_000), "tester"); err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if _, err := s.engine.Create(ctx, employeeSnapshot("la-202", "emp-1", 8_000_000), "tester"); err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	s.worker.RunMonthlyIncentives(ctx, time.March, 2026, 2)

	rec, err := s.repo.GetIncentive(ctx, "emp-1", time.March, 2026)
	if err != nil {
		t.Fatalf("GetIncentive failed: %v", err)
	}
	if rec == nil {
		t.Fatal("expected incentive record")
	}

	// BDE at 20,000,000 sourced hits the 0.10% band.
	if !rec.Volume.Equal(decimal.NewFromInt(20_000_000)) {
		t.Errorf("volume = %s, want 20000000", rec.Volume)
	}
	if !rec.Amount.Equal(decimal.NewFromInt(20_000)) {
		t.Errorf("amount = %s, want 20000", rec.Amount)
	}

	// Re-running replaces rather than duplicates.
	s.worker.RunMonthlyIncentives(ctx, time.March, 2026, 2)

	records, err := s.repo.ListIncentives(ctx, "emp-1")
	if err != nil {
		t.Fatalf("ListIncentives failed: %v", err)
	}
	if len(records) != 1 {
		t.Errorf("got %d incentive records, want 1", len(records))
	}
}

func TestRunActivationBonuses(t *testing.T) {
	s := newTestStack(t)
	ctx := context.Background()

	// Referred DSA with 6,000,000 in home loans qualifies for the
	// home-loan activation criterion.
	if _, err := s.engine.Create(ctx, dsaSnapshot("la-301", "dsa-1", "emp-9", domain.LoanTypeHome, 6_000_000), "tester"); err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	s.worker.RunActivationBonuses(ctx)

	bonuses, err := s.repo.ListActivationBonuses(ctx, "dsa-1")
	if err != nil {
		t.Fatalf("ListActivationBonuses failed: %v", err)
	}
	if len(bonuses) != 1 {
		t.Fatalf("got %d bonuses, want 1", len(bonuses))
	}
	if bonuses[0].ActivatorID != "emp-9" {
		t.Errorf("activatorId = %q, want emp-9", bonuses[0].ActivatorID)
	}

	// The sweep is idempotent; a second run grants nothing new.
	s.worker.RunActivationBonuses(ctx)

	bonuses, err = s.repo.ListActivationBonuses(ctx, "dsa-1")
	if err != nil {
		t.Fatalf("ListActivationBonuses failed: %v", err)
	}
	if len(bonuses) != 1 {
		t.Errorf("got %d bonuses after rerun, want 1", len(bonuses))
	}
}

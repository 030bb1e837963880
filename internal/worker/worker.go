// Package worker provides background processing for the commission engine:
// the bank-confirmation consumer and the periodic incentive and bonus runs.
package worker

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/loanpulse/commission-engine/internal/domain"
	"github.com/loanpulse/commission-engine/internal/incentive"
	"github.com/loanpulse/commission-engine/internal/lifecycle"
	"github.com/loanpulse/commission-engine/internal/metrics"
)

// Worker consumes bank confirmations from the EventBus and runs the
// monthly incentive aggregation and DSA activation sweeps.
type Worker struct {
	bus        domain.EventBus
	repo       domain.Repository
	engine     *lifecycle.Engine
	aggregator *incentive.Aggregator
	evaluator  *incentive.BonusEvaluator
	metrics    *metrics.Metrics

	subscriptions []domain.Subscription
	wg            sync.WaitGroup
	ctx           context.Context
	cancel        context.CancelFunc
}

// Config holds worker configuration.
type Config struct {
	// Concurrency bounds the number of parallel incentive computations.
	Concurrency int

	// IncentiveInterval is how often the incentive sweep runs.
	// Zero disables the periodic sweep.
	IncentiveInterval time.Duration

	// BonusInterval is how often the activation sweep runs.
	// Zero disables the periodic sweep.
	BonusInterval time.Duration
}

// NewWorker creates a new background worker.
func NewWorker(
	bus domain.EventBus,
	repo domain.Repository,
	engine *lifecycle.Engine,
	aggregator *incentive.Aggregator,
	evaluator *incentive.BonusEvaluator,
	m *metrics.Metrics,
) *Worker {
	ctx, cancel := context.WithCancel(context.Background())
	return &Worker{
		bus:        bus,
		repo:       repo,
		engine:     engine,
		aggregator: aggregator,
		evaluator:  evaluator,
		metrics:    m,
		ctx:        ctx,
		cancel:     cancel,
	}
}

// Start subscribes to the bank confirmation feed and launches the
// periodic sweeps.
func (w *Worker) Start(cfg Config) error {
	sub, err := w.bus.Subscribe(w.ctx, domain.TopicBankConfirmation, w.handleBankConfirmation)
	if err != nil {
		return err
	}
	w.subscriptions = append(w.subscriptions, sub)

	if cfg.IncentiveInterval > 0 {
		w.wg.Add(1)
		go w.runPeriodic(cfg.IncentiveInterval, "incentive_sweep", func(ctx context.Context) {
			now := time.Now()
			w.RunMonthlyIncentives(ctx, now.Month(), now.Year(), cfg.Concurrency)
		})
	}

	if cfg.BonusInterval > 0 {
		w.wg.Add(1)
		go w.runPeriodic(cfg.BonusInterval, "activation_sweep", func(ctx context.Context) {
			w.RunActivationBonuses(ctx)
		})
	}

	slog.Info("worker started",
		"topic", domain.TopicBankConfirmation,
		"incentive_interval", cfg.IncentiveInterval,
		"bonus_interval", cfg.BonusInterval,
	)

	return nil
}

// Stop cancels all subscriptions and waits for in-flight work.
func (w *Worker) Stop() {
	w.cancel()
	for _, sub := range w.subscriptions {
		_ = sub.Unsubscribe()
	}
	w.wg.Wait()
	slog.Info("worker stopped")
}

// handleBankConfirmation applies an inbound disbursement confirmation to
// the referenced commission.
func (w *Worker) handleBankConfirmation(ctx context.Context, msg *domain.Message) error {
	var evt domain.BankConfirmationEvent
	if err := json.Unmarshal(msg.Payload, &evt); err != nil {
		slog.Error("invalid bank confirmation payload",
			"message_id", msg.ID,
			"error", err,
		)
		// Malformed payloads are dropped, not retried.
		return nil
	}

	actor := evt.Actor
	if actor == "" {
		actor = "bank-feed"
	}

	if _, err := w.engine.ConfirmBank(ctx, evt.CommissionID, evt.Confirmation, actor); err != nil {
		slog.Error("bank confirmation failed",
			"commission_id", evt.CommissionID,
			"bank_reference", evt.Confirmation.BankReference,
			"error", err,
		)
		return err
	}

	slog.Info("bank confirmation applied",
		"commission_id", evt.CommissionID,
		"bank_reference", evt.Confirmation.BankReference,
	)
	return nil
}

// RunMonthlyIncentives recomputes the monthly incentive for every employee
// who sourced business in the given month. Safe to re-run; each pass
// replaces the stored record for the period.
func (w *Worker) RunMonthlyIncentives(ctx context.Context, month time.Month, year int, concurrency int) {
	if concurrency <= 0 {
		concurrency = 4
	}

	employees, err := w.repo.ActiveEmployees(ctx, month, year)
	if err != nil {
		slog.Error("failed to list active employees",
			"month", int(month),
			"year", year,
			"error", err,
		)
		return
	}

	var wg sync.WaitGroup
	sem := make(chan struct{}, concurrency)

	for _, emp := range employees {
		emp := emp
		wg.Add(1)
		sem <- struct{}{}
		go func() {
			defer wg.Done()
			defer func() { <-sem }()

			rec, err := w.aggregator.ComputeMonthly(ctx, emp, month, year)
			if err != nil {
				slog.Error("incentive computation failed",
					"employee_id", emp.WorkerID,
					"month", int(month),
					"year", year,
					"error", err,
				)
				return
			}

			w.metrics.IncentivesComputed.Inc()
			w.publishJSON(ctx, domain.TopicIncentiveComputed, rec)
		}()
	}

	wg.Wait()

	slog.Info("incentive sweep completed",
		"month", int(month),
		"year", year,
		"employees", len(employees),
	)
}

// RunActivationBonuses evaluates activation criteria for every referred DSA
// and grants any newly qualified bonuses.
func (w *Worker) RunActivationBonuses(ctx context.Context) {
	dsas, err := w.repo.ActiveDSAs(ctx)
	if err != nil {
		slog.Error("failed to list active DSAs", "error", err)
		return
	}

	var granted int
	for _, dsa := range dsas {
		bonuses, err := w.evaluator.EvaluateDSA(ctx, dsa)
		if err != nil {
			slog.Error("activation evaluation failed",
				"dsa_id", dsa.WorkerID,
				"error", err,
			)
			continue
		}

		for _, bonus := range bonuses {
			granted++
			w.metrics.BonusesGrantedTotal.Inc()
			w.publishJSON(ctx, domain.TopicBonusGranted, bonus)
		}
	}

	slog.Info("activation sweep completed",
		"dsas", len(dsas),
		"granted", granted,
	)
}

func (w *Worker) runPeriodic(interval time.Duration, name string, fn func(context.Context)) {
	defer w.wg.Done()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-w.ctx.Done():
			return
		case <-ticker.C:
			slog.Debug("periodic run starting", "name", name)
			fn(w.ctx)
		}
	}
}

func (w *Worker) publishJSON(ctx context.Context, topic string, v any) {
	payload, err := json.Marshal(v)
	if err != nil {
		slog.Error("failed to marshal event", "topic", topic, "error", err)
		return
	}
	if err := w.bus.Publish(ctx, topic, payload); err != nil {
		slog.Warn("event publish failed", "topic", topic, "error", err)
	}
}

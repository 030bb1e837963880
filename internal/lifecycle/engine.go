package lifecycle

import (
	"context"
	"encoding/json"
	"fmt"
	"hash/fnv"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/loanpulse/commission-engine/internal/distribution"
	"github.com/loanpulse/commission-engine/internal/domain"
	"github.com/loanpulse/commission-engine/internal/metrics"
	"github.com/loanpulse/commission-engine/internal/payout"
	"github.com/loanpulse/commission-engine/internal/rates"
)

var tracer = otel.Tracer("commission-lifecycle")

const lockStripes = 64

const summaryCacheTTL = 5 * time.Minute

// Engine applies the guarded lifecycle operations to commission records.
// Each mutation serializes on a per-record striped lock in-process and on
// the repository's optimistic version check across processes, so at most
// one writer per commission id ever commits.
type Engine struct {
	repo        domain.Repository
	cache       domain.Cache
	bus         domain.EventBus
	resolver    *rates.Resolver
	distributor *distribution.Distributor
	reconciler  *distribution.Reconciler
	scheduler   *payout.Scheduler
	metrics     *metrics.Metrics
	params      domain.EngineParams

	locks [lockStripes]sync.Mutex
}

// NewEngine wires the engine. cache, bus and m may be nil; the engine then
// runs without read caching, event publishing or instrumentation.
func NewEngine(
	repo domain.Repository,
	cache domain.Cache,
	bus domain.EventBus,
	resolver *rates.Resolver,
	distributor *distribution.Distributor,
	reconciler *distribution.Reconciler,
	scheduler *payout.Scheduler,
	m *metrics.Metrics,
	params domain.EngineParams,
) *Engine {
	return &Engine{
		repo:        repo,
		cache:       cache,
		bus:         bus,
		resolver:    resolver,
		distributor: distributor,
		reconciler:  reconciler,
		scheduler:   scheduler,
		metrics:     m,
		params:      params,
	}
}

// Create builds a commission in state pending from a finalized loan audit.
// Loan facts and the hierarchy snapshot are immutable from here on.
func (e *Engine) Create(ctx context.Context, snapshot domain.LoanAuditSnapshot, actor string) (*domain.Commission, error) {
	ctx, span := tracer.Start(ctx, "engine.Create")
	defer span.End()

	if err := validateSnapshot(snapshot); err != nil {
		return nil, err
	}

	if existing, err := e.repo.GetCommissionByLoanAudit(ctx, snapshot.LoanAuditID); err == nil && existing != nil {
		return nil, fmt.Errorf("%w: commission %s already exists for loan audit %s",
			domain.ErrValidation, existing.ID, snapshot.LoanAuditID)
	}

	now := time.Now().UTC()
	rate := e.resolver.BankPayoutRate(snapshot.LoanType)
	c := &domain.Commission{
		ID:              uuid.New().String(),
		LoanAuditID:     snapshot.LoanAuditID,
		ClientName:      snapshot.ClientName,
		BankName:        snapshot.BankName,
		LoanType:        snapshot.LoanType,
		LoanAmount:      snapshot.LoanAmount,
		ApplicationDate: snapshot.ApplicationDate,
		BankPayoutRate:  rate,
		TotalBankPayout: rates.ApplyPercent(snapshot.LoanAmount, rate),
		Originator:      snapshot.Originator,
		Hierarchy:       snapshot.Hierarchy,
		Status:          domain.StatusPending,
		Version:         1,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	e.scheduler.Apply(c)
	if err := e.reconciler.Reconcile(c); err != nil {
		return nil, err
	}

	audit := e.newAuditEntry(c, "commission.created", actor, "", c.Status, map[string]string{
		"loanAuditId": snapshot.LoanAuditID,
		"loanType":    string(snapshot.LoanType),
	})
	if err := e.repo.CreateCommission(ctx, c, audit); err != nil {
		return nil, err
	}

	span.SetAttributes(attribute.String("commission.id", c.ID))
	if e.metrics != nil {
		e.metrics.CommissionsCreatedTotal.WithLabelValues(string(c.LoanType)).Inc()
	}
	e.publish(ctx, domain.TopicCommissionCreated, c, actor, "")

	return c, nil
}

// ConfirmBank records disbursement facts and advances pending →
// bank_confirmed. Confirmation is set once; a second call fails with
// ErrAlreadyConfirmed, a correction needs a new audit-logged action.
func (e *Engine) ConfirmBank(ctx context.Context, id string, conf domain.BankConfirmation, actor string) (*domain.Commission, error) {
	ctx, span := tracer.Start(ctx, "engine.ConfirmBank")
	defer span.End()

	unlock := e.lock(id)
	defer unlock()

	c, err := e.repo.GetCommission(ctx, id)
	if err != nil {
		return nil, err
	}

	if c.BankConfirmation != nil {
		return nil, fmt.Errorf("%w: commission %s", domain.ErrAlreadyConfirmed, id)
	}
	if !conf.Confirmed {
		return nil, fmt.Errorf("%w: bank confirmation event is not confirmed", domain.ErrValidation)
	}
	if conf.DisbursementDate.IsZero() {
		return nil, fmt.Errorf("%w: disbursement date is required", domain.ErrValidation)
	}

	conf.ConfirmedAt = time.Now().UTC()
	c.BankConfirmation = &conf

	if err := e.transition(c, domain.StatusBankConfirmed); err != nil {
		return nil, err
	}
	e.scheduler.Apply(c)
	if err := e.reconciler.Reconcile(c); err != nil {
		return nil, e.reconcileFailure(err)
	}

	audit := e.newAuditEntry(c, "commission.bank_confirmed", actor, domain.StatusPending, c.Status, map[string]string{
		"bankReference":    conf.BankReference,
		"disbursementDate": conf.DisbursementDate.Format(time.RFC3339),
	})
	if err := e.repo.UpdateCommission(ctx, c, audit); err != nil {
		return nil, err
	}

	e.publish(ctx, domain.TopicCommissionConfirmed, c, actor, "")
	return c, nil
}

// Calculate runs the hierarchy distributor and reconciler, advancing
// bank_confirmed → commission_calculated. Rerunning on an already
// calculated record replaces the prior line set; the operation is
// idempotent for identical inputs. levelRates overrides the configured
// override table when non-nil.
func (e *Engine) Calculate(ctx context.Context, id string, levelRates map[int]float64, actor string) (*domain.Commission, error) {
	ctx, span := tracer.Start(ctx, "engine.Calculate")
	defer span.End()
	start := time.Now()

	unlock := e.lock(id)
	defer unlock()

	c, err := e.repo.GetCommission(ctx, id)
	if err != nil {
		return nil, err
	}

	recompute := c.Status == domain.StatusCommissionCalculated
	if c.Status != domain.StatusBankConfirmed && !recompute {
		return nil, fmt.Errorf("%w: cannot calculate commission in state %s", domain.ErrInvalidTransition, c.Status)
	}

	if levelRates == nil {
		levelRates = e.resolver.Tables().LevelRates
	}

	lines, err := e.distributor.Distribute(c, levelRates)
	if err != nil {
		return nil, err
	}

	from := c.Status
	c.Distribution = lines
	if !recompute {
		if err := e.transition(c, domain.StatusCommissionCalculated); err != nil {
			return nil, err
		}
	}
	if err := e.reconciler.Reconcile(c); err != nil {
		return nil, e.reconcileFailure(err)
	}

	action := "commission.calculated"
	if recompute {
		action = "commission.recalculated"
	}
	audit := e.newAuditEntry(c, action, actor, from, c.Status, map[string]string{
		"lines":       fmt.Sprintf("%d", len(lines)),
		"totalEarned": c.Summary.TotalCommissionEarned.String(),
	})
	if err := e.repo.UpdateCommission(ctx, c, audit); err != nil {
		return nil, err
	}

	e.invalidateSummary(ctx, c.ID)
	if e.metrics != nil {
		e.metrics.CalculationDuration.Observe(time.Since(start).Seconds())
	}
	e.publish(ctx, domain.TopicCommissionCalculated, c, actor, "")

	return c, nil
}

// InitiatePayout advances commission_calculated → payout_initiated and
// marks every distribution line as processed.
func (e *Engine) InitiatePayout(ctx context.Context, id string, actor string) (*domain.Commission, error) {
	ctx, span := tracer.Start(ctx, "engine.InitiatePayout")
	defer span.End()

	unlock := e.lock(id)
	defer unlock()

	c, err := e.repo.GetCommission(ctx, id)
	if err != nil {
		return nil, err
	}

	from := c.Status
	if err := e.transition(c, domain.StatusPayoutInitiated); err != nil {
		return nil, err
	}
	for i := range c.Distribution {
		c.Distribution[i].PayoutStatus = domain.PayoutProcessed
	}
	if err := e.reconciler.Reconcile(c); err != nil {
		return nil, e.reconcileFailure(err)
	}

	audit := e.newAuditEntry(c, "payout.initiated", actor, from, c.Status, nil)
	if err := e.repo.UpdateCommission(ctx, c, audit); err != nil {
		return nil, err
	}

	e.invalidateSummary(ctx, c.ID)
	e.publish(ctx, domain.TopicPayoutInitiated, c, actor, "")
	return c, nil
}

// CompletePayout records the transfer and advances payout_initiated →
// completed. Both the transfer reference and the actual date are required.
func (e *Engine) CompletePayout(ctx context.Context, id, transferReference string, actualDate time.Time, actor string) (*domain.Commission, error) {
	ctx, span := tracer.Start(ctx, "engine.CompletePayout")
	defer span.End()

	unlock := e.lock(id)
	defer unlock()

	c, err := e.repo.GetCommission(ctx, id)
	if err != nil {
		return nil, err
	}

	if transferReference == "" || actualDate.IsZero() {
		return nil, fmt.Errorf("%w: transfer reference and actual payout date are required", domain.ErrValidation)
	}

	c.PayoutDetails.TransferReference = transferReference
	c.PayoutDetails.ActualPayoutDate = &actualDate

	from := c.Status
	if err := e.transition(c, domain.StatusCompleted); err != nil {
		return nil, err
	}
	for i := range c.Distribution {
		c.Distribution[i].PayoutStatus = domain.PayoutPaid
		c.Distribution[i].PaymentReference = transferReference
	}
	if err := e.reconciler.Reconcile(c); err != nil {
		return nil, e.reconcileFailure(err)
	}

	audit := e.newAuditEntry(c, "payout.completed", actor, from, c.Status, map[string]string{
		"transferReference": transferReference,
		"netPayout":         c.Summary.TotalNetPayout.String(),
	})
	if err := e.repo.UpdateCommission(ctx, c, audit); err != nil {
		return nil, err
	}

	e.invalidateSummary(ctx, c.ID)
	if e.metrics != nil {
		e.metrics.PayoutsCompletedTotal.Inc()
		net, _ := c.Summary.TotalNetPayout.Float64()
		e.metrics.PayoutNetAmountTotal.Add(net)
	}
	e.publish(ctx, domain.TopicPayoutCompleted, c, actor, "")
	return c, nil
}

// Reject moves a commission to the terminal rejected state. The record is
// retained for audit; nothing is deleted.
func (e *Engine) Reject(ctx context.Context, id, reason, actor string) (*domain.Commission, error) {
	ctx, span := tracer.Start(ctx, "engine.Reject")
	defer span.End()

	unlock := e.lock(id)
	defer unlock()

	c, err := e.repo.GetCommission(ctx, id)
	if err != nil {
		return nil, err
	}

	from := c.Status
	if err := e.transition(c, domain.StatusRejected); err != nil {
		return nil, err
	}

	audit := e.newAuditEntry(c, "commission.rejected", actor, from, c.Status, map[string]string{
		"reason": reason,
	})
	if err := e.repo.UpdateCommission(ctx, c, audit); err != nil {
		return nil, err
	}

	e.invalidateSummary(ctx, c.ID)
	e.publish(ctx, domain.TopicCommissionRejected, c, actor, reason)
	return c, nil
}

// AddInsurance appends a policy-linked commission entry. The entry does
// not count toward payable totals until its freelook period survives.
func (e *Engine) AddInsurance(ctx context.Context, id string, entry domain.InsuranceCommission, actor string) (*domain.Commission, error) {
	unlock := e.lock(id)
	defer unlock()

	c, err := e.repo.GetCommission(ctx, id)
	if err != nil {
		return nil, err
	}

	if c.Status == domain.StatusRejected || c.Status == domain.StatusCompleted {
		return nil, fmt.Errorf("%w: cannot add insurance in state %s", domain.ErrInvalidTransition, c.Status)
	}
	if entry.PolicyNumber == "" {
		return nil, fmt.Errorf("%w: policy number is required", domain.ErrValidation)
	}
	for _, existing := range c.Insurance {
		if existing.PolicyNumber == entry.PolicyNumber {
			return nil, fmt.Errorf("%w: policy %s already linked", domain.ErrValidation, entry.PolicyNumber)
		}
	}

	entry.FreelookSurvived = false
	entry.AddedAt = time.Now().UTC()
	c.Insurance = append(c.Insurance, entry)
	if err := e.reconciler.Reconcile(c); err != nil {
		return nil, e.reconcileFailure(err)
	}

	audit := e.newAuditEntry(c, "insurance.added", actor, c.Status, c.Status, map[string]string{
		"policyNumber": entry.PolicyNumber,
	})
	if err := e.repo.UpdateCommission(ctx, c, audit); err != nil {
		return nil, err
	}

	e.invalidateSummary(ctx, c.ID)
	return c, nil
}

// MarkFreelookSurvived flips an insurance entry to payable once its
// freelook window has passed without cancellation.
func (e *Engine) MarkFreelookSurvived(ctx context.Context, id, policyNumber, actor string) (*domain.Commission, error) {
	unlock := e.lock(id)
	defer unlock()

	c, err := e.repo.GetCommission(ctx, id)
	if err != nil {
		return nil, err
	}

	found := false
	for i := range c.Insurance {
		if c.Insurance[i].PolicyNumber == policyNumber {
			c.Insurance[i].FreelookSurvived = true
			found = true
			break
		}
	}
	if !found {
		return nil, fmt.Errorf("%w: policy %s not linked to commission %s", domain.ErrNotFound, policyNumber, id)
	}

	if err := e.reconciler.Reconcile(c); err != nil {
		return nil, e.reconcileFailure(err)
	}

	audit := e.newAuditEntry(c, "insurance.freelook_survived", actor, c.Status, c.Status, map[string]string{
		"policyNumber": policyNumber,
	})
	if err := e.repo.UpdateCommission(ctx, c, audit); err != nil {
		return nil, err
	}

	e.invalidateSummary(ctx, c.ID)
	return c, nil
}

// Get returns a commission by id.
func (e *Engine) Get(ctx context.Context, id string) (*domain.Commission, error) {
	return e.repo.GetCommission(ctx, id)
}

// List returns commissions filtered by status ("" for all), paginated.
func (e *Engine) List(ctx context.Context, status domain.Status, limit, offset int) ([]*domain.Commission, error) {
	return e.repo.ListCommissions(ctx, status, limit, offset)
}

// GetSummary returns the financial summary, cache-aside.
func (e *Engine) GetSummary(ctx context.Context, id string) (*domain.FinancialSummary, error) {
	key := domain.SummaryCacheKey(id)
	if e.cache != nil {
		if data, err := e.cache.Get(ctx, key); err == nil && data != nil {
			var summary domain.FinancialSummary
			if err := json.Unmarshal(data, &summary); err == nil {
				return &summary, nil
			}
		}
	}

	c, err := e.repo.GetCommission(ctx, id)
	if err != nil {
		return nil, err
	}

	if e.cache != nil {
		if data, err := json.Marshal(c.Summary); err == nil {
			_ = e.cache.Set(ctx, key, data, summaryCacheTTL)
		}
	}
	return &c.Summary, nil
}

// GetDistribution returns the distribution line items in level order.
func (e *Engine) GetDistribution(ctx context.Context, id string) ([]domain.DistributionLine, error) {
	c, err := e.repo.GetCommission(ctx, id)
	if err != nil {
		return nil, err
	}
	return c.Distribution, nil
}

// AuditLog returns the audit trail in insertion order, paginated.
func (e *Engine) AuditLog(ctx context.Context, id string, limit, offset int) ([]*domain.AuditEntry, error) {
	if _, err := e.repo.GetCommission(ctx, id); err != nil {
		return nil, err
	}
	return e.repo.ListAuditEntries(ctx, id, limit, offset)
}

// transition applies a guarded state change, counting the outcome.
func (e *Engine) transition(c *domain.Commission, to domain.Status) error {
	if err := checkTransition(c, to); err != nil {
		if e.metrics != nil {
			e.metrics.InvalidTransitionsTotal.Inc()
		}
		return err
	}
	if e.metrics != nil {
		e.metrics.TransitionsTotal.WithLabelValues(string(c.Status), string(to)).Inc()
	}
	c.Status = to
	return nil
}

func (e *Engine) newAuditEntry(c *domain.Commission, action, actor string, from, to domain.Status, details map[string]string) *domain.AuditEntry {
	if actor == "" {
		actor = "system"
	}
	return &domain.AuditEntry{
		ID:           uuid.New().String(),
		CommissionID: c.ID,
		Action:       action,
		Actor:        actor,
		FromStatus:   from,
		ToStatus:     to,
		Details:      details,
		Origin:       "commission-engine",
		CreatedAt:    time.Now().UTC(),
	}
}

// publish is fire-and-forget: notification failures never roll back a
// committed transition.
func (e *Engine) publish(ctx context.Context, topic string, c *domain.Commission, actor, detail string) {
	if e.bus == nil {
		return
	}
	payload, err := json.Marshal(domain.CommissionEvent{
		CommissionID: c.ID,
		LoanAuditID:  c.LoanAuditID,
		Status:       c.Status,
		Actor:        actor,
		Detail:       detail,
	})
	if err != nil {
		return
	}
	if err := e.bus.Publish(ctx, topic, payload); err != nil {
		slog.Warn("event publish failed",
			"topic", topic,
			"commission_id", c.ID,
			"error", err,
		)
	}
}

func (e *Engine) invalidateSummary(ctx context.Context, id string) {
	if e.cache != nil {
		_ = e.cache.Delete(ctx, domain.SummaryCacheKey(id))
	}
}

func (e *Engine) reconcileFailure(err error) error {
	if e.metrics != nil {
		e.metrics.ReconciliationFailures.Inc()
	}
	slog.Error("reconciliation invariant violated", "error", err)
	return err
}

func (e *Engine) lock(id string) func() {
	h := fnv.New32a()
	h.Write([]byte(id))
	mu := &e.locks[h.Sum32()%lockStripes]
	mu.Lock()
	return mu.Unlock
}

func validateSnapshot(s domain.LoanAuditSnapshot) error {
	switch {
	case s.LoanAuditID == "":
		return fmt.Errorf("%w: loan audit id is required", domain.ErrValidation)
	case s.ClientName == "":
		return fmt.Errorf("%w: client name is required", domain.ErrValidation)
	case s.BankName == "":
		return fmt.Errorf("%w: bank name is required", domain.ErrValidation)
	case s.LoanType == "":
		return fmt.Errorf("%w: loan type is required", domain.ErrValidation)
	case s.LoanAmount.LessThanOrEqual(decimal.Zero):
		return fmt.Errorf("%w: loan amount must be positive", domain.ErrValidation)
	case s.Originator.WorkerID == "":
		return fmt.Errorf("%w: originator is required", domain.ErrValidation)
	}

	if s.Originator.Role.IsDSA() && s.Originator.Category == "" {
		return fmt.Errorf("%w: dsa originator requires a category", domain.ErrValidation)
	}

	return distribution.ValidateHierarchy(s.Originator, s.Hierarchy)
}

package api

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"github.com/loanpulse/commission-engine/internal/domain"
	"github.com/loanpulse/commission-engine/internal/lifecycle"
)

// Handler holds dependencies for API handlers.
type Handler struct {
	engine   *lifecycle.Engine
	repo     domain.Repository
	cache    domain.Cache
	bus      domain.EventBus
	validate *validator.Validate
	version  string
}

// NewHandler creates a new API handler.
func NewHandler(engine *lifecycle.Engine, repo domain.Repository, cache domain.Cache, bus domain.EventBus, version string) *Handler {
	return &Handler{
		engine:   engine,
		repo:     repo,
		cache:    cache,
		bus:      bus,
		validate: validator.New(),
		version:  version,
	}
}

// CreateCommissionRequest is the request body for POST /commissions.
type CreateCommissionRequest struct {
	LoanAuditID     string                 `json:"loanAuditId" validate:"required"`
	ClientName      string                 `json:"clientName" validate:"required"`
	BankName        string                 `json:"bankName" validate:"required"`
	LoanType        string                 `json:"loanType" validate:"required"`
	LoanAmount      decimal.Decimal        `json:"loanAmount" validate:"required"`
	ApplicationDate time.Time              `json:"applicationDate" validate:"required"`
	Originator      OriginatorRequest      `json:"originator" validate:"required"`
	Hierarchy       []HierarchyLineRequest `json:"hierarchy" validate:"required,min=1,dive"`
}

// OriginatorRequest identifies the sourcing worker.
type OriginatorRequest struct {
	WorkerID string `json:"workerId" validate:"required"`
	Name     string `json:"name"`
	Role     string `json:"role" validate:"required,oneof=employee sub_employee dsa sub_dsa"`
	Grade    string `json:"grade" validate:"omitempty,oneof=BDE BDM SM ASM"`
	Category string `json:"category" validate:"omitempty,oneof=A B C"`
}

// HierarchyLineRequest is one member of the referral chain.
type HierarchyLineRequest struct {
	WorkerID string `json:"workerId" validate:"required"`
	Role     string `json:"role" validate:"required,oneof=employee sub_employee dsa sub_dsa admin"`
	Level    int    `json:"level" validate:"min=0"`
}

// ConfirmBankRequest is the request body for POST /commissions/{id}/confirm-bank.
type ConfirmBankRequest struct {
	DisbursedAmount  decimal.Decimal `json:"disbursedAmount" validate:"required"`
	DisbursementDate time.Time       `json:"disbursementDate" validate:"required"`
	BankReference    string          `json:"bankReference"`
}

// CalculateRequest optionally overrides the configured level rates.
type CalculateRequest struct {
	LevelRates map[int]float64 `json:"levelRates,omitempty"`
}

// CompletePayoutRequest is the request body for POST /commissions/{id}/complete-payout.
type CompletePayoutRequest struct {
	TransferReference string    `json:"transferReference" validate:"required"`
	ActualPayoutDate  time.Time `json:"actualPayoutDate" validate:"required"`
}

// RejectRequest is the request body for POST /commissions/{id}/reject.
type RejectRequest struct {
	Reason string `json:"reason" validate:"required"`
}

// AddInsuranceRequest is the request body for POST /commissions/{id}/insurance.
type AddInsuranceRequest struct {
	PolicyNumber     string          `json:"policyNumber" validate:"required"`
	Insurer          string          `json:"insurer"`
	CommissionAmount decimal.Decimal `json:"commissionAmount" validate:"required"`
}

// CreateCommission handles POST /commissions.
func (h *Handler) CreateCommission(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req CreateCommissionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "invalid JSON request body",
		})
		return
	}

	if err := h.validate.Struct(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": err.Error(),
		})
		return
	}

	snapshot := domain.LoanAuditSnapshot{
		LoanAuditID:     req.LoanAuditID,
		ClientName:      req.ClientName,
		BankName:        req.BankName,
		LoanType:        domain.LoanType(req.LoanType),
		LoanAmount:      req.LoanAmount,
		ApplicationDate: req.ApplicationDate,
		Originator: domain.Originator{
			WorkerID: req.Originator.WorkerID,
			Name:     req.Originator.Name,
			Role:     domain.ParticipantRole(req.Originator.Role),
			Grade:    domain.EmployeeGrade(req.Originator.Grade),
			Category: domain.DSACategory(req.Originator.Category),
		},
	}
	for _, m := range req.Hierarchy {
		snapshot.Hierarchy = append(snapshot.Hierarchy, domain.HierarchyMember{
			WorkerID: m.WorkerID,
			Role:     domain.ParticipantRole(m.Role),
			Level:    m.Level,
		})
	}

	c, err := h.engine.Create(ctx, snapshot, GetActor(ctx))
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, c)
}

// ListCommissions handles GET /commissions.
func (h *Handler) ListCommissions(w http.ResponseWriter, r *http.Request) {
	status := domain.Status(r.URL.Query().Get("status"))
	limit := queryInt(r, "limit", 50)
	offset := queryInt(r, "offset", 0)

	commissions, err := h.engine.List(r.Context(), status, limit, offset)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"commissions": commissions,
		"count":       len(commissions),
		"limit":       limit,
		"offset":      offset,
	})
}

// GetCommission handles GET /commissions/{id}.
func (h *Handler) GetCommission(w http.ResponseWriter, r *http.Request) {
	c, err := h.engine.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

// ConfirmBank handles POST /commissions/{id}/confirm-bank.
func (h *Handler) ConfirmBank(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req ConfirmBankRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "invalid JSON request body",
		})
		return
	}
	if err := h.validate.Struct(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": err.Error(),
		})
		return
	}

	conf := domain.BankConfirmation{
		Confirmed:        true,
		DisbursedAmount:  req.DisbursedAmount,
		DisbursementDate: req.DisbursementDate,
		BankReference:    req.BankReference,
		ConfirmedAt:      time.Now().UTC(),
	}

	c, err := h.engine.ConfirmBank(ctx, chi.URLParam(r, "id"), conf, GetActor(ctx))
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, c)
}

// Calculate handles POST /commissions/{id}/calculate.
func (h *Handler) Calculate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	// The body is optional; an empty body means configured level rates.
	var req CalculateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "invalid JSON request body",
		})
		return
	}

	c, err := h.engine.Calculate(ctx, chi.URLParam(r, "id"), req.LevelRates, GetActor(ctx))
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, c)
}

// InitiatePayout handles POST /commissions/{id}/initiate-payout.
func (h *Handler) InitiatePayout(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	c, err := h.engine.InitiatePayout(ctx, chi.URLParam(r, "id"), GetActor(ctx))
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, c)
}

// CompletePayout handles POST /commissions/{id}/complete-payout.
func (h *Handler) CompletePayout(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req CompletePayoutRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "invalid JSON request body",
		})
		return
	}
	if err := h.validate.Struct(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": err.Error(),
		})
		return
	}

	c, err := h.engine.CompletePayout(ctx, chi.URLParam(r, "id"), req.TransferReference, req.ActualPayoutDate, GetActor(ctx))
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, c)
}

// Reject handles POST /commissions/{id}/reject.
func (h *Handler) Reject(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req RejectRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "invalid JSON request body",
		})
		return
	}
	if err := h.validate.Struct(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": err.Error(),
		})
		return
	}

	c, err := h.engine.Reject(ctx, chi.URLParam(r, "id"), req.Reason, GetActor(ctx))
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, c)
}

// AddInsurance handles POST /commissions/{id}/insurance.
func (h *Handler) AddInsurance(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req AddInsuranceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "invalid JSON request body",
		})
		return
	}
	if err := h.validate.Struct(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": err.Error(),
		})
		return
	}

	entry := domain.InsuranceCommission{
		PolicyNumber:     req.PolicyNumber,
		Insurer:          req.Insurer,
		CommissionAmount: req.CommissionAmount,
		AddedAt:          time.Now().UTC(),
	}

	c, err := h.engine.AddInsurance(ctx, chi.URLParam(r, "id"), entry, GetActor(ctx))
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, c)
}

// MarkFreelookSurvived handles POST /commissions/{id}/insurance/{policyNumber}/freelook-survived.
func (h *Handler) MarkFreelookSurvived(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	c, err := h.engine.MarkFreelookSurvived(ctx, chi.URLParam(r, "id"), chi.URLParam(r, "policyNumber"), GetActor(ctx))
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, c)
}

// GetSummary handles GET /commissions/{id}/summary.
func (h *Handler) GetSummary(w http.ResponseWriter, r *http.Request) {
	summary, err := h.engine.GetSummary(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

// GetDistribution handles GET /commissions/{id}/distribution.
func (h *Handler) GetDistribution(w http.ResponseWriter, r *http.Request) {
	lines, err := h.engine.GetDistribution(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"distribution": lines,
		"count":        len(lines),
	})
}

// GetAuditLog handles GET /commissions/{id}/audit-log.
func (h *Handler) GetAuditLog(w http.ResponseWriter, r *http.Request) {
	limit := queryInt(r, "limit", 50)
	offset := queryInt(r, "offset", 0)

	entries, err := h.engine.AuditLog(r.Context(), chi.URLParam(r, "id"), limit, offset)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"entries": entries,
		"count":   len(entries),
		"limit":   limit,
		"offset":  offset,
	})
}

// ListIncentives handles GET /incentives/{employeeId}.
func (h *Handler) ListIncentives(w http.ResponseWriter, r *http.Request) {
	records, err := h.repo.ListIncentives(r.Context(), chi.URLParam(r, "employeeId"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"incentives": records,
		"count":      len(records),
	})
}

// ListActivationBonuses handles GET /activation-bonuses/{dsaId}.
func (h *Handler) ListActivationBonuses(w http.ResponseWriter, r *http.Request) {
	bonuses, err := h.repo.ListActivationBonuses(r.Context(), chi.URLParam(r, "dsaId"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"bonuses": bonuses,
		"count":   len(bonuses),
	})
}

// Health returns server health status.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	status := "healthy"

	if h.repo != nil {
		if err := h.repo.Ping(r.Context()); err != nil {
			status = "degraded"
		}
	}

	if h.cache != nil {
		if err := h.cache.Ping(r.Context()); err != nil {
			status = "degraded"
		}
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"status":  status,
		"version": h.version,
	})
}

// Ready returns whether the server is ready to accept traffic.
func (h *Handler) Ready(w http.ResponseWriter, r *http.Request) {
	if h.repo != nil {
		if err := h.repo.Ping(r.Context()); err != nil {
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{
				"ready": "false",
			})
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"ready": "true",
	})
}

// writeError maps domain errors to HTTP status codes.
func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError

	switch {
	case errors.Is(err, domain.ErrValidation):
		status = http.StatusBadRequest
	case errors.Is(err, domain.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, domain.ErrInvalidTransition),
		errors.Is(err, domain.ErrAlreadyConfirmed),
		errors.Is(err, domain.ErrConcurrentModification):
		status = http.StatusConflict
	}

	if status == http.StatusInternalServerError {
		slog.Error("request failed", "error", err)
	}

	writeJSON(w, status, map[string]string{
		"error": err.Error(),
	})
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Error("failed to encode response", "error", err)
	}
}

func queryInt(r *http.Request, name string, def int) int {
	v := r.URL.Query().Get(name)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return def
	}
	return n
}

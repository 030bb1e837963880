// Package api exposes the commission engine over HTTP.
package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/loanpulse/commission-engine/internal/domain"
	"github.com/loanpulse/commission-engine/internal/lifecycle"
)

// Server represents the HTTP API server.
type Server struct {
	router  *chi.Mux
	handler *Handler
	server  *http.Server
	config  domain.ServerConfig
}

// NewServer creates a new API server.
func NewServer(cfg domain.ServerConfig, engine *lifecycle.Engine, repo domain.Repository, cache domain.Cache, bus domain.EventBus, version string) *Server {
	handler := NewHandler(engine, repo, cache, bus, version)
	router := chi.NewRouter()

	// Global middleware stack
	router.Use(CORSMiddleware)         // CORS for browser clients
	router.Use(RecoverMiddleware)      // Recover from panics
	router.Use(TracingMiddleware)      // OpenTelemetry tracing
	router.Use(LoggingMiddleware)      // Request logging
	router.Use(middleware.RealIP)      // Extract real IP
	router.Use(middleware.Compress(5)) // Gzip compression

	// Operational endpoints
	router.Get("/health", handler.Health)
	router.Get("/ready", handler.Ready)
	router.Handle("/metrics", promhttp.Handler())

	// API routes
	router.Route("/", func(r chi.Router) {
		r.Use(ActorMiddleware)

		// Commission lifecycle
		r.Post("/commissions", handler.CreateCommission)
		r.Get("/commissions", handler.ListCommissions)
		r.Get("/commissions/{id}", handler.GetCommission)
		r.Post("/commissions/{id}/confirm-bank", handler.ConfirmBank)
		r.Post("/commissions/{id}/calculate", handler.Calculate)
		r.Post("/commissions/{id}/initiate-payout", handler.InitiatePayout)
		r.Post("/commissions/{id}/complete-payout", handler.CompletePayout)
		r.Post("/commissions/{id}/reject", handler.Reject)

		// Insurance riders
		r.Post("/commissions/{id}/insurance", handler.AddInsurance)
		r.Post("/commissions/{id}/insurance/{policyNumber}/freelook-survived", handler.MarkFreelookSurvived)

		// Derived views
		r.Get("/commissions/{id}/summary", handler.GetSummary)
		r.Get("/commissions/{id}/distribution", handler.GetDistribution)
		r.Get("/commissions/{id}/audit-log", handler.GetAuditLog)

		// Incentive track
		r.Get("/incentives/{employeeId}", handler.ListIncentives)
		r.Get("/activation-bonuses/{dsaId}", handler.ListActivationBonuses)
	})

	return &Server{
		router:  router,
		handler: handler,
		config:  cfg,
	}
}

// Start starts the HTTP server.
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)

	s.server = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  time.Duration(s.config.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(s.config.WriteTimeout) * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	return s.server.ListenAndServe()
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

// Router returns the Chi router for testing.
func (s *Server) Router() *chi.Mux {
	return s.router
}

// Handler returns the handler for testing.
func (s *Server) Handler() *Handler {
	return s.handler
}

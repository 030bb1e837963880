// Package metrics exposes Prometheus instrumentation for the engine.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the engine's Prometheus collectors.
type Metrics struct {
	CommissionsCreatedTotal *prometheus.CounterVec
	TransitionsTotal        *prometheus.CounterVec
	InvalidTransitionsTotal prometheus.Counter

	// Zero-rate lookups signal misconfigured rate cards. The lookup
	// degrades to zero instead of failing, so the counter is the only
	// durable trace.
	ZeroRateLookupsTotal *prometheus.CounterVec

	PayoutsCompletedTotal  prometheus.Counter
	PayoutNetAmountTotal   prometheus.Counter
	ReconciliationFailures prometheus.Counter
	IncentivesComputed     prometheus.Counter
	BonusesGrantedTotal    prometheus.Counter

	CalculationDuration prometheus.Histogram
}

// New registers and returns the engine metrics on the default registry.
func New() *Metrics {
	return NewWith(prometheus.DefaultRegisterer)
}

// NewWith registers the engine metrics on the given registerer.
func NewWith(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		CommissionsCreatedTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "commission_created_total",
				Help: "Commissions created, by loan type",
			},
			[]string{"loan_type"},
		),
		TransitionsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "commission_transitions_total",
				Help: "Successful lifecycle transitions",
			},
			[]string{"from", "to"},
		),
		InvalidTransitionsTotal: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "commission_invalid_transitions_total",
				Help: "Rejected lifecycle transitions",
			},
		),
		ZeroRateLookupsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "commission_zero_rate_lookups_total",
				Help: "Rate lookups that degraded to a zero rate",
			},
			[]string{"kind"},
		),
		PayoutsCompletedTotal: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "commission_payouts_completed_total",
				Help: "Payouts completed",
			},
		),
		PayoutNetAmountTotal: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "commission_payout_net_amount_total",
				Help: "Total net amount paid out",
			},
		),
		ReconciliationFailures: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "commission_reconciliation_failures_total",
				Help: "Reconciliation invariant violations (bugs)",
			},
		),
		IncentivesComputed: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "commission_incentives_computed_total",
				Help: "Monthly incentive records computed",
			},
		),
		BonusesGrantedTotal: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "commission_activation_bonuses_granted_total",
				Help: "DSA activation bonuses granted",
			},
		),
		CalculationDuration: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "commission_calculation_duration_seconds",
				Help:    "Time spent computing and reconciling a distribution",
				Buckets: prometheus.DefBuckets,
			},
		),
	}
}

// ObserveZeroRate adapts the metrics to the rates.ZeroRateObserver hook.
func (m *Metrics) ObserveZeroRate(kind, key string) {
	m.ZeroRateLookupsTotal.WithLabelValues(kind).Inc()
}

package metrics

import (
	"ExecGuard/internal/domain/models"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Recorder implements domain.repository.Metrics using Prometheus.
type Recorder struct {
	tierHits      *prometheus.CounterVec
	resolution    *prometheus.HistogramVec
	cacheAccess   *prometheus.CounterVec
	ordersCreated *prometheus.CounterVec
	ordersDropped *prometheus.CounterVec
	riskRejects   *prometheus.CounterVec
	engineState   *prometheus.GaugeVec
	errorsTotal   *prometheus.CounterVec
}

// New creates a recorder registered with the default Prometheus registry.
func New() *Recorder {
	return NewWithRegistry(prometheus.DefaultRegisterer)
}

// NewWithRegistry creates a recorder registered with reg.
func NewWithRegistry(reg prometheus.Registerer) *Recorder {
	f := promauto.With(reg)
	return &Recorder{
		tierHits: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "execguard_price_tier_hits_total",
				Help: "Reference prices resolved per tier",
			},
			[]string{"tier"},
		),
		resolution: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "execguard_price_resolution_seconds",
				Help:    "Duration of reference price resolution by final tier",
				Buckets: []float64{.001, .005, .01, .05, .1, .25, .5, 1, 2, 5},
			},
			[]string{"tier"},
		),
		cacheAccess: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "execguard_price_cache_requests_total",
				Help: "Price cache lookups by result",
			},
			[]string{"result"},
		),
		ordersCreated: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "execguard_orders_generated_total",
				Help: "Limit order specs generated by adjustment strategy",
			},
			[]string{"strategy"},
		),
		ordersDropped: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "execguard_orders_rejected_total",
				Help: "Order generation requests rejected by reason",
			},
			[]string{"reason"},
		),
		riskRejects: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "execguard_risk_rejections_total",
				Help: "Pre-trade check failures by check",
			},
			[]string{"check"},
		),
		engineState: f.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "execguard_engine_active",
				Help: "1 when the engine kill switch is ACTIVE, 0 otherwise",
			},
			[]string{"engine", "state"},
		),
		errorsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "execguard_errors_total",
				Help: "Total number of errors encountered",
			},
			[]string{"type"},
		),
	}
}

func (r *Recorder) RecordTierHit(tier models.PriceTier) {
	r.tierHits.WithLabelValues(string(tier)).Inc()
}

func (r *Recorder) RecordResolution(tier models.PriceTier, seconds float64) {
	r.resolution.WithLabelValues(string(tier)).Observe(seconds)
}

func (r *Recorder) RecordCacheAccess(hit bool) {
	result := "miss"
	if hit {
		result = "hit"
	}
	r.cacheAccess.WithLabelValues(result).Inc()
}

func (r *Recorder) RecordOrderGenerated(strategy models.AdjustmentStrategy) {
	r.ordersCreated.WithLabelValues(string(strategy)).Inc()
}

func (r *Recorder) RecordOrderRejected(reason string) {
	r.ordersDropped.WithLabelValues(reason).Inc()
}

func (r *Recorder) RecordRiskRejection(check string) {
	r.riskRejects.WithLabelValues(check).Inc()
}

// RecordEngineState keeps exactly one state label set to 1 per engine.
func (r *Recorder) RecordEngineState(engine string, state models.KillSwitchState) {
	for _, s := range []models.KillSwitchState{models.KillSwitchActive, models.KillSwitchDisabled, models.KillSwitchAutoHalt} {
		v := 0.0
		if s == state {
			v = 1
		}
		r.engineState.WithLabelValues(engine, string(s)).Set(v)
	}
}

// RecordError records an error occurrence.
func (r *Recorder) RecordError(kind string) {
	r.errorsTotal.WithLabelValues(kind).Inc()
}

// Nop discards every observation.
type Nop struct{}

func (Nop) RecordTierHit(models.PriceTier)                   {}
func (Nop) RecordResolution(models.PriceTier, float64)       {}
func (Nop) RecordCacheAccess(bool)                           {}
func (Nop) RecordOrderGenerated(models.AdjustmentStrategy)   {}
func (Nop) RecordOrderRejected(string)                       {}
func (Nop) RecordRiskRejection(string)                       {}
func (Nop) RecordEngineState(string, models.KillSwitchState) {}
func (Nop) RecordError(string)                               {}

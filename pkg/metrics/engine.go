package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Outcome labels shared by the engine counters.
const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
	OutcomeTimeout = "timeout"
)

// EngineMetrics tracks the matching engine: accept race outcomes, oracle
// calls, proposal runs and expiry sweeps.
type EngineMetrics struct {
	acceptOutcomes  *prometheus.CounterVec
	oracleRequests  *prometheus.CounterVec
	oracleDuration  *prometheus.HistogramVec
	proposals       *prometheus.CounterVec
	dispatchDropped prometheus.Counter
	itemsExpired    prometheus.Counter
}

// NewEngineMetrics registers the engine metrics on reg. A nil registerer
// yields a no-op recorder.
func NewEngineMetrics(reg prometheus.Registerer) *EngineMetrics {
	if reg == nil {
		return &EngineMetrics{}
	}
	m := &EngineMetrics{
		acceptOutcomes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "surplus_match_accept_total",
			Help: "Match accept attempts by outcome.",
		}, []string{"outcome"}),
		oracleRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "surplus_oracle_requests_total",
			Help: "Scoring oracle requests by endpoint and outcome.",
		}, []string{"endpoint", "outcome"}),
		oracleDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "surplus_oracle_request_duration_seconds",
			Help:    "Scoring oracle request latency.",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 15},
		}, []string{"endpoint"}),
		proposals: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "surplus_proposal_runs_total",
			Help: "proposeMatches runs by result.",
		}, []string{"result"}),
		dispatchDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "surplus_proposal_dispatch_dropped_total",
			Help: "proposeMatches tasks dropped because the queue was full.",
		}),
		itemsExpired: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "surplus_food_items_expired_total",
			Help: "Food items moved to expired by the sweep.",
		}),
	}
	reg.MustRegister(m.acceptOutcomes, m.oracleRequests, m.oracleDuration, m.proposals, m.dispatchDropped, m.itemsExpired)
	return m
}

// IncAccept records one accept attempt; outcome is an error code or "accepted".
func (m *EngineMetrics) IncAccept(outcome string) {
	if m == nil || m.acceptOutcomes == nil {
		return
	}
	m.acceptOutcomes.WithLabelValues(normalizeLabel(outcome)).Inc()
}

// ObserveOracle records a single oracle call.
func (m *EngineMetrics) ObserveOracle(endpoint, outcome string, duration time.Duration) {
	if m == nil || m.oracleRequests == nil {
		return
	}
	endpoint = normalizeLabel(endpoint)
	m.oracleRequests.WithLabelValues(endpoint, normalizeLabel(outcome)).Inc()
	m.oracleDuration.WithLabelValues(endpoint).Observe(duration.Seconds())
}

// IncProposalRun records how a proposeMatches run ended.
func (m *EngineMetrics) IncProposalRun(result string) {
	if m == nil || m.proposals == nil {
		return
	}
	m.proposals.WithLabelValues(normalizeLabel(result)).Inc()
}

func (m *EngineMetrics) IncDispatchDropped() {
	if m == nil || m.dispatchDropped == nil {
		return
	}
	m.dispatchDropped.Inc()
}

func (m *EngineMetrics) AddExpired(n int) {
	if m == nil || m.itemsExpired == nil || n <= 0 {
		return
	}
	m.itemsExpired.Add(float64(n))
}

package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"
)

func TestEngineMetricsRecords(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewEngineMetrics(reg)

	m.IncAccept("accepted")
	m.IncAccept("ALREADY_RESOLVED")
	m.IncAccept("ALREADY_RESOLVED")
	m.ObserveOracle("match", OutcomeTimeout, 15*time.Second)
	m.IncProposalRun("created")
	m.IncDispatchDropped()
	m.AddExpired(3)
	m.AddExpired(0)

	accepts := sample(t, reg, "surplus_match_accept_total", "outcome", "ALREADY_RESOLVED")
	require.Equal(t, 2.0, accepts.GetCounter().GetValue())

	timeouts := sample(t, reg, "surplus_oracle_requests_total", "outcome", OutcomeTimeout)
	require.Equal(t, 1.0, timeouts.GetCounter().GetValue())

	latency := sample(t, reg, "surplus_oracle_request_duration_seconds", "endpoint", "match")
	require.Equal(t, 15.0, latency.GetHistogram().GetSampleSum())

	expired := sample(t, reg, "surplus_food_items_expired_total")
	require.Equal(t, 3.0, expired.GetCounter().GetValue())
}

func TestEngineMetricsNilSafe(t *testing.T) {
	var m *EngineMetrics
	m.IncAccept("accepted")
	m.ObserveOracle("match", OutcomeSuccess, time.Second)
	m.AddExpired(1)

	noop := NewEngineMetrics(nil)
	noop.IncProposalRun("created")
	noop.IncDispatchDropped()
}

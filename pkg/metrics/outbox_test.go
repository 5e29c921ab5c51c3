package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"
)

func TestOutboxMetricsCountsByResult(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewOutboxMetrics(reg)

	m.IncEvent("match-accepted", OutboxPublished)
	m.IncEvent("match-accepted", OutboxPublished)
	m.IncEvent("food-posted", OutboxDeadLettered)
	m.ObserveBatch(250 * time.Millisecond)

	published := sample(t, reg, "surplus_outbox_events_total", "event_type", "match-accepted", "result", OutboxPublished)
	require.Equal(t, 2.0, published.GetCounter().GetValue())

	dead := sample(t, reg, "surplus_outbox_events_total", "event_type", "food-posted")
	require.Equal(t, OutboxDeadLettered, dead.GetLabel()[1].GetValue())
	require.Equal(t, 1.0, dead.GetCounter().GetValue())

	batch := sample(t, reg, "surplus_outbox_batch_duration_seconds")
	require.EqualValues(t, 1, batch.GetHistogram().GetSampleCount())
}

func TestOutboxMetricsNilSafe(t *testing.T) {
	var m *OutboxMetrics
	m.IncEvent("food-posted", OutboxRetry)
	m.ObserveBatch(time.Second)

	NewOutboxMetrics(nil).IncEvent("", OutboxRetry)
}

package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

func TestCronJobMetricsCountsByResult(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewCronJobMetrics(reg)
	fixed := time.Date(2026, 5, 1, 8, 0, 0, 0, time.UTC)
	m.now = func() time.Time { return fixed }

	m.ObserveDuration("food-expiry", 250*time.Millisecond)
	m.IncSuccess("food-expiry")
	m.IncSuccess("food-expiry")
	m.IncFailure("food-expiry")

	require.Equal(t, 2.0, testutil.ToFloat64(m.runs.WithLabelValues("food-expiry", cronResultSuccess)))
	require.Equal(t, 1.0, testutil.ToFloat64(m.runs.WithLabelValues("food-expiry", cronResultFailure)))
	require.Equal(t, float64(fixed.Unix()), testutil.ToFloat64(m.lastSuccess.WithLabelValues("food-expiry")))

	duration := sample(t, reg, "surplus_cron_job_duration_seconds", "job", "food-expiry")
	require.InDelta(t, 0.25, duration.GetHistogram().GetSampleSum(), 1e-9)
}

func TestCronJobMetricsFailureLeavesLastSuccessUnset(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewCronJobMetrics(reg)
	m.IncFailure("")

	require.Equal(t, 1.0, testutil.ToFloat64(m.runs.WithLabelValues("unknown", cronResultFailure)))
	require.Equal(t, 0, testutil.CollectAndCount(m.lastSuccess))
}

func TestCronJobMetricsWithoutRegistererIsNoop(t *testing.T) {
	m := NewCronJobMetrics(nil)
	require.NotPanics(t, func() {
		m.ObserveDuration("x", time.Second)
		m.IncSuccess("x")
		m.IncFailure("x")
	})
	var missing *CronJobMetrics
	require.NotPanics(t, func() { missing.IncSuccess("x") })
}

package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/require"
)

// sample gathers reg and returns the series of family name whose labels
// include every key/value pair in kv.
func sample(t *testing.T, reg prometheus.Gatherer, name string, kv ...string) *dto.Metric {
	t.Helper()
	require.Zero(t, len(kv)%2, "labels come in key/value pairs")

	families, err := reg.Gather()
	require.NoError(t, err)
	for _, family := range families {
		if family.GetName() != name {
			continue
		}
		for _, m := range family.GetMetric() {
			if hasLabels(m, kv) {
				return m
			}
		}
		require.Failf(t, "series not found", "%s has no series with labels %v", name, kv)
	}
	require.Failf(t, "family not found", "%s was not gathered", name)
	return nil
}

func hasLabels(m *dto.Metric, kv []string) bool {
	have := make(map[string]string, len(m.GetLabel()))
	for _, pair := range m.GetLabel() {
		have[pair.GetName()] = pair.GetValue()
	}
	for i := 0; i < len(kv); i += 2 {
		if have[kv[i]] != kv[i+1] {
			return false
		}
	}
	return true
}

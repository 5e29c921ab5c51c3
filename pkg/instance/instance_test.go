package instance

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestGetIDPrefersDyno(t *testing.T) {
	t.Setenv("DYNO", "web.1")
	t.Setenv("WORKER_ID", "worker-7")

	require.Equal(t, "web.1", GetID("api"))
}

func TestGetIDFallsBackToWorkerID(t *testing.T) {
	t.Setenv("DYNO", "")
	t.Setenv("WORKER_ID", "worker-7")

	require.Equal(t, "worker-7", GetID("cron-worker"))
}

func TestGetIDNeverEmpty(t *testing.T) {
	t.Setenv("DYNO", "")
	t.Setenv("WORKER_ID", "")

	require.NotEmpty(t, GetID("notification-worker"))
}

package cron

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type stubJob struct {
	name string
}

func (s *stubJob) Name() string              { return s.name }
func (s *stubJob) Run(context.Context) error { return nil }

func TestRegistryKeepsRegistrationOrder(t *testing.T) {
	expiry := &stubJob{name: "food-expiry"}
	retention := &stubJob{name: "outbox-retention"}
	registry := NewRegistry(expiry)
	require.NoError(t, registry.Register(retention))
	require.NoError(t, registry.Register(nil))

	jobs := registry.Jobs()
	require.Equal(t, []Job{expiry, retention}, jobs)

	jobs[0] = nil
	require.NotNil(t, registry.Jobs()[0], "callers get a copy")
}

func TestRegistryRejectsDuplicateNames(t *testing.T) {
	registry := NewRegistry(&stubJob{name: "food-expiry"})
	require.Error(t, registry.Register(&stubJob{name: "food-expiry"}))
	require.Error(t, registry.Register(&stubJob{}))
	require.Panics(t, func() {
		NewRegistry(&stubJob{name: "a"}, &stubJob{name: "a"})
	})
}

func TestRegistryDueHonorsPeriod(t *testing.T) {
	expiry := &stubJob{name: "food-expiry"}
	retention := &stubJob{name: "outbox-retention"}
	registry := NewRegistry(expiry)
	require.NoError(t, registry.Every(retention, time.Hour))

	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	require.Equal(t, []Job{expiry, retention}, registry.Due(now))

	registry.MarkRun("food-expiry", now)
	registry.MarkRun("outbox-retention", now)

	later := now.Add(10 * time.Minute)
	require.Equal(t, []Job{expiry}, registry.Due(later))
	require.Equal(t, []Job{expiry, retention}, registry.Due(now.Add(time.Hour)))
}

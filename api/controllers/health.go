package controllers

import (
	"context"
	"net/http"
	"time"

	"github.com/angelmondragon/surplus-engine/api/responses"
	"github.com/angelmondragon/surplus-engine/pkg/config"
	pkgerrors "github.com/angelmondragon/surplus-engine/pkg/errors"
	"github.com/angelmondragon/surplus-engine/pkg/logger"
)

const readinessTimeout = 3 * time.Second

// Pinger is satisfied by the db and redis clients.
type Pinger interface {
	Ping(ctx context.Context) error
}

// OracleProber is satisfied by the oracle client.
type OracleProber interface {
	Health(ctx context.Context) error
}

// ReadinessDeps lists the components checked by HealthReady. Oracle is
// reported but never fails readiness.
type ReadinessDeps struct {
	DB     Pinger
	Redis  Pinger
	Oracle OracleProber
}

func HealthLive(cfg *config.Config) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Surplus-Env", cfg.App.Env)
		responses.WriteSuccess(w, map[string]string{"status": "live"})
	}
}

func HealthReady(cfg *config.Config, deps ReadinessDeps, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Surplus-Env", cfg.App.Env)

		ctx, cancel := context.WithTimeout(r.Context(), readinessTimeout)
		defer cancel()

		components := map[string]string{}
		var failed []string
		for name, pinger := range map[string]Pinger{"db": deps.DB, "redis": deps.Redis} {
			if pinger == nil {
				continue
			}
			if err := pinger.Ping(ctx); err != nil {
				components[name] = "down"
				failed = append(failed, name)
				if logg != nil {
					logg.Error(logg.WithField(ctx, "component", name), "health.ready.failed", err)
				}
				continue
			}
			components[name] = "up"
		}

		if deps.Oracle != nil {
			if err := deps.Oracle.Health(ctx); err != nil {
				components["oracle"] = "degraded"
				if logg != nil {
					logg.Warn(logg.WithField(ctx, "error", err.Error()), "health.ready.oracle_degraded")
				}
			} else {
				components["oracle"] = "up"
			}
		}

		if len(failed) > 0 {
			responses.WriteError(r.Context(), nil, w, pkgerrors.New(pkgerrors.CodeDependency, "dependencies unavailable").
				WithDetails(map[string]any{"components": components}))
			return
		}
		responses.WriteSuccess(w, map[string]any{"status": "ready", "components": components})
	}
}

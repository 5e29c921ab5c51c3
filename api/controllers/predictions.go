package controllers

import (
	"net/http"

	"github.com/angelmondragon/surplus-engine/api/validators"
	"github.com/angelmondragon/surplus-engine/internal/predictions"
	pkgAuth "github.com/angelmondragon/surplus-engine/pkg/auth"
	"github.com/angelmondragon/surplus-engine/pkg/logger"
)

// PredictSurplus answers with the oracle forecast. When the oracle is down the
// fallback estimate is returned with an ORACLE_UNAVAILABLE warning.
func PredictSurplus(svc predictions.Service, logg *logger.Logger) http.HandlerFunc {
	return serveActor("predictions", svc != nil, logg, func(r *http.Request, actor pkgAuth.Actor) (any, error) {
		forecast, err := svc.SurplusForecast(r.Context(), actor)
		if err != nil {
			return nil, err
		}
		return withWarning(forecast, forecast.Warning), nil
	})
}

// TriggerMatching runs one proposal round for a food item the caller owns.
func TriggerMatching(svc predictions.Service, logg *logger.Logger) http.HandlerFunc {
	return serveActor("predictions", svc != nil, logg, func(r *http.Request, actor pkgAuth.Actor) (any, error) {
		id, err := validators.ParseUUIDParam(r, "foodId")
		if err != nil {
			return nil, err
		}
		run, err := svc.TriggerMatching(r.Context(), actor, id)
		if err != nil {
			return nil, err
		}
		return withWarning(run, run.Warning), nil
	})
}

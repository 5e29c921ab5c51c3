package controllers

import (
	"net/http"

	"github.com/angelmondragon/surplus-engine/api/middleware"
	"github.com/angelmondragon/surplus-engine/api/responses"
	"github.com/angelmondragon/surplus-engine/api/validators"
	pkgAuth "github.com/angelmondragon/surplus-engine/pkg/auth"
	pkgerrors "github.com/angelmondragon/surplus-engine/pkg/errors"
	"github.com/angelmondragon/surplus-engine/pkg/logger"
	"github.com/angelmondragon/surplus-engine/pkg/pagination"
)

func requireActor(w http.ResponseWriter, r *http.Request, logg *logger.Logger) (pkgAuth.Actor, bool) {
	actor, ok := middleware.ActorFromContext(r.Context())
	if !ok {
		responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "identity required"))
		return pkgAuth.Actor{}, false
	}
	return actor, true
}

func unavailable(w http.ResponseWriter, r *http.Request, logg *logger.Logger, name string) {
	responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, name+" service unavailable"))
}

func pageFromQuery(r *http.Request) (pagination.Page, error) {
	page, err := validators.ParseQueryInt(r, "page", 1, 1, 100000)
	if err != nil {
		return pagination.Page{}, err
	}
	limit, err := validators.ParseQueryInt(r, "limit", pagination.DefaultLimit, 1, pagination.MaxLimit)
	if err != nil {
		return pagination.Page{}, err
	}
	return pagination.Page{Page: page, Limit: limit}, nil
}

// actorFunc is a handler body for an authenticated caller. It returns the
// payload for a 200 response, or an error to render.
type actorFunc func(r *http.Request, actor pkgAuth.Actor) (any, error)

// warned wraps a payload that is still a success but carries a warning code
// for the client.
type warned struct {
	data    any
	warning string
}

func withWarning(data any, warning string) any {
	if warning == "" {
		return data
	}
	return warned{data: data, warning: warning}
}

// serveActor adapts fn to an http.HandlerFunc. A nil backing service answers
// 500 instead of panicking.
func serveActor(name string, available bool, logg *logger.Logger, fn actorFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !available {
			unavailable(w, r, logg, name)
			return
		}
		actor, ok := requireActor(w, r, logg)
		if !ok {
			return
		}
		payload, err := fn(r, actor)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if p, ok := payload.(warned); ok {
			responses.WriteSuccessWithWarnings(w, p.data, p.warning)
			return
		}
		responses.WriteSuccess(w, payload)
	}
}

package validators

import (
	"cmp"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	pkgerrors "github.com/angelmondragon/surplus-engine/pkg/errors"
)

var queryDateLayouts = []string{time.RFC3339, time.DateOnly}

func queryValue(r *http.Request, key string) string {
	return strings.TrimSpace(r.URL.Query().Get(key))
}

func badQuery(key, msg string, details map[string]any) error {
	if details == nil {
		details = map[string]any{}
	}
	details["field"] = key
	return pkgerrors.New(pkgerrors.CodeValidation, msg).WithDetails(details)
}

// boundedQuery parses key with parse and checks it against [lo, hi]. ok is
// false when the parameter is absent.
func boundedQuery[T cmp.Ordered](r *http.Request, key string, lo, hi T, parse func(string) (T, error)) (value T, ok bool, err error) {
	raw := queryValue(r, key)
	if raw == "" {
		return value, false, nil
	}
	value, err = parse(raw)
	if err != nil {
		return value, false, badQuery(key, "query parameter must be numeric", nil)
	}
	if value < lo || value > hi {
		return value, false, badQuery(key, "query parameter out of range", map[string]any{"min": lo, "max": hi})
	}
	return value, true, nil
}

// ParseQueryInt returns def when the parameter is absent.
func ParseQueryInt(r *http.Request, key string, def, lo, hi int) (int, error) {
	v, ok, err := boundedQuery(r, key, lo, hi, strconv.Atoi)
	if err != nil || !ok {
		return def, err
	}
	return v, nil
}

// ParseQueryFloat returns nil when the parameter is absent.
func ParseQueryFloat(r *http.Request, key string, lo, hi float64) (*float64, error) {
	v, ok, err := boundedQuery(r, key, lo, hi, func(s string) (float64, error) {
		return strconv.ParseFloat(s, 64)
	})
	if err != nil || !ok {
		return nil, err
	}
	return &v, nil
}

func ParseQueryBool(r *http.Request, key string) (bool, error) {
	raw := queryValue(r, key)
	if raw == "" {
		return false, nil
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return false, badQuery(key, "query parameter must be a boolean", nil)
	}
	return v, nil
}

// ParseQueryTime accepts RFC3339 timestamps or plain dates and returns UTC.
func ParseQueryTime(r *http.Request, key string) (*time.Time, error) {
	raw := queryValue(r, key)
	if raw == "" {
		return nil, nil
	}
	for _, layout := range queryDateLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			t = t.UTC()
			return &t, nil
		}
	}
	return nil, badQuery(key, "query parameter must be a date", nil)
}

// ParseQueryList accepts both repeated keys and comma separated values.
func ParseQueryList(r *http.Request, key string) []string {
	var out []string
	for _, raw := range r.URL.Query()[key] {
		for part := range strings.SplitSeq(raw, ",") {
			if v := strings.TrimSpace(part); v != "" {
				out = append(out, v)
			}
		}
	}
	return out
}

func ParseUUIDParam(r *http.Request, name string) (uuid.UUID, error) {
	raw := strings.TrimSpace(chi.URLParam(r, name))
	if raw == "" {
		return uuid.Nil, pkgerrors.New(pkgerrors.CodeValidation, name+" is required")
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid "+name)
	}
	return id, nil
}

package middleware

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/surplus-engine/pkg/enums"
	pkgerrors "github.com/angelmondragon/surplus-engine/pkg/errors"
)

type fakeStore struct {
	data map[string]string
	ttls map[string]time.Duration
}

func newFakeStore() *fakeStore {
	return &fakeStore{data: map[string]string{}, ttls: map[string]time.Duration{}}
}

func (f *fakeStore) Get(_ context.Context, key string) (string, error) {
	if v, ok := f.data[key]; ok {
		return v, nil
	}
	return "", redis.Nil
}

func (f *fakeStore) SetNX(_ context.Context, key string, value any, ttl time.Duration) (bool, error) {
	if _, ok := f.data[key]; ok {
		return false, nil
	}
	f.data[key] = fmt.Sprint(value)
	f.ttls[key] = ttl
	return true, nil
}

func (f *fakeStore) IdempotencyKey(scope, id string) string {
	return "fake:" + scope + ":" + id
}

func (f *fakeStore) Del(_ context.Context, keys ...string) error {
	for _, key := range keys {
		delete(f.data, key)
		delete(f.ttls, key)
	}
	return nil
}

func newRequest(method, url, userID, body, key string) *http.Request {
	req := httptest.NewRequest(method, url, strings.NewReader(body))
	if key != "" {
		req.Header.Set(idempotencyHeader, key)
	}
	return req.WithContext(WithActor(req.Context(), actorNamed(userID, enums.UserRoleRecipient)))
}

func errorCode(t *testing.T, resp *httptest.ResponseRecorder) string {
	t.Helper()
	var payload struct {
		Error struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &payload))
	return payload.Error.Code
}

func TestIdempotencyTTL(t *testing.T) {
	tests := []struct {
		name   string
		method string
		path   string
		want   time.Duration
		ok     bool
	}{
		{"create food", http.MethodPost, "/api/v1/food", replayTTL, true},
		{"bulk delete", http.MethodPost, "/api/v1/food/bulk-delete", replayTTL, true},
		{"cancel food", http.MethodPost, "/api/v1/food/6f1c/cancel", replayTTL, true},
		{"request match", http.MethodPost, "/api/v1/matches/request", replayTTL, true},
		{"accept match", http.MethodPost, "/api/v1/matches/6f1c/accept", settlementTTL, true},
		{"complete match", http.MethodPost, "/api/v1/matches/6f1c/complete", settlementTTL, true},
		{"read all", http.MethodPost, "/api/v1/notifications/read-all", replayTTL, true},
		{"nested segment is not a wildcard", http.MethodPost, "/api/v1/food/a/b/cancel", 0, false},
		{"update food", http.MethodPut, "/api/v1/food/6f1c", 0, false},
		{"list food", http.MethodGet, "/api/v1/food", 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ttl, ok := idempotencyTTL(tt.method, tt.path)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, ttl)
		})
	}
}

func TestIdempotencyRequiresHeader(t *testing.T) {
	called := false
	handler := Idempotency(newFakeStore(), nil)(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		called = true
		w.WriteHeader(http.StatusCreated)
	}))

	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, newRequest(http.MethodPost, "/api/v1/food", "user-1", `{"foo":"bar"}`, ""))

	assert.Equal(t, http.StatusBadRequest, resp.Code)
	assert.False(t, called)
}

func TestIdempotencyReplaysStoredResponse(t *testing.T) {
	store := newFakeStore()
	calls := 0
	handler := Idempotency(store, nil)(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls++
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusAccepted)
		_, _ = w.Write([]byte(`{"ok":true}`))
	}))

	first := httptest.NewRecorder()
	handler.ServeHTTP(first, newRequest(http.MethodPost, "/api/v1/matches/m1/accept", "user-1", `{"foo":"bar"}`, "abc"))
	require.Equal(t, http.StatusAccepted, first.Code)

	for _, ttl := range store.ttls {
		assert.Equal(t, settlementTTL, ttl)
	}

	replayed := httptest.NewRecorder()
	handler.ServeHTTP(replayed, newRequest(http.MethodPost, "/api/v1/matches/m1/accept", "user-1", `{"foo":"bar"}`, "abc"))
	assert.Equal(t, http.StatusAccepted, replayed.Code)
	assert.Equal(t, "application/json", replayed.Header().Get("Content-Type"))
	assert.Equal(t, "true", replayed.Header().Get("Idempotent-Replayed"))
	assert.JSONEq(t, `{"ok":true}`, replayed.Body.String())
	assert.Equal(t, 1, calls)
}

func TestIdempotencyRejectsChangedBody(t *testing.T) {
	handler := Idempotency(newFakeStore(), nil)(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	handler.ServeHTTP(httptest.NewRecorder(), newRequest(http.MethodPost, "/api/v1/food", "user-1", `{"foo":"bar"}`, "xyz"))

	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, newRequest(http.MethodPost, "/api/v1/food", "user-1", `{"foo":"diff"}`, "xyz"))
	assert.Equal(t, http.StatusConflict, resp.Code)
	assert.Equal(t, string(pkgerrors.CodeIdempotency), errorCode(t, resp))
}

func TestIdempotencyRejectsConcurrentDuplicate(t *testing.T) {
	store := newFakeStore()
	var inner *httptest.ResponseRecorder
	var handler http.Handler
	handler = Idempotency(store, nil)(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if inner == nil {
			inner = httptest.NewRecorder()
			handler.ServeHTTP(inner, newRequest(http.MethodPost, "/api/v1/food", "user-1", `{}`, "dup"))
		}
		w.WriteHeader(http.StatusCreated)
	}))

	outer := httptest.NewRecorder()
	handler.ServeHTTP(outer, newRequest(http.MethodPost, "/api/v1/food", "user-1", `{}`, "dup"))

	assert.Equal(t, http.StatusCreated, outer.Code)
	require.NotNil(t, inner)
	assert.Equal(t, http.StatusConflict, inner.Code)
	assert.Equal(t, string(pkgerrors.CodeConflict), errorCode(t, inner))
}

func TestIdempotencyDoesNotStoreServerErrors(t *testing.T) {
	store := newFakeStore()
	calls := 0
	handler := Idempotency(store, nil)(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls++
		w.WriteHeader(http.StatusServiceUnavailable)
	}))

	for range 2 {
		resp := httptest.NewRecorder()
		handler.ServeHTTP(resp, newRequest(http.MethodPost, "/api/v1/food", "user-1", `{}`, "retry-me"))
		assert.Equal(t, http.StatusServiceUnavailable, resp.Code)
	}
	assert.Equal(t, 2, calls)
	assert.Empty(t, store.data)
}

func TestIdempotencyKeysAreScopedPerUser(t *testing.T) {
	calls := 0
	handler := Idempotency(newFakeStore(), nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		_, _ = io.Copy(io.Discard, r.Body)
		w.WriteHeader(http.StatusCreated)
	}))

	for _, user := range []string{"user-1", "user-2"} {
		resp := httptest.NewRecorder()
		handler.ServeHTTP(resp, newRequest(http.MethodPost, "/api/v1/matches/request", user, `{"foodItemId":"x"}`, "same"))
		assert.Equal(t, http.StatusCreated, resp.Code)
	}
	assert.Equal(t, 2, calls)
}

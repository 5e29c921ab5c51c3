package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/surplus-engine/pkg/auth"
	"github.com/angelmondragon/surplus-engine/pkg/config"
	"github.com/angelmondragon/surplus-engine/pkg/enums"
)

func testJWT() config.JWTConfig {
	return config.JWTConfig{Secret: "secret", Issuer: "issuer", ExpirationMinutes: 60}
}

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

// actorNamed derives a stable actor from a readable test name.
func actorNamed(name string, role enums.UserRole) auth.Actor {
	return auth.Actor{UserID: uuid.NewSHA1(uuid.NameSpaceOID, []byte(name)), Role: role}
}

func mintTestToken(t *testing.T, cfg config.JWTConfig, issued time.Time, actor auth.Actor) string {
	t.Helper()
	token, err := auth.MintAccessToken(cfg, issued, actor)
	require.NoError(t, err)
	return token
}

func TestAuthRejects(t *testing.T) {
	cfg := testJWT()
	expired := mintTestToken(t, cfg, time.Now().Add(-2*time.Hour), actorNamed("late", enums.UserRoleRecipient))

	for name, header := range map[string]string{
		"missing":      "",
		"empty bearer": "Bearer   ",
		"garbage":      "Bearer invalid",
		"expired":      "Bearer " + expired,
	} {
		t.Run(name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if header != "" {
				req.Header.Set("Authorization", header)
			}
			resp := httptest.NewRecorder()
			Auth(cfg, nil)(okHandler()).ServeHTTP(resp, req)
			assert.Equal(t, http.StatusUnauthorized, resp.Code)
		})
	}
}

func TestAuthMisconfiguredRejectsEverything(t *testing.T) {
	token := mintTestToken(t, testJWT(), time.Now(), actorNamed("biz", enums.UserRoleBusiness))
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	resp := httptest.NewRecorder()

	Auth(config.JWTConfig{}, nil)(okHandler()).ServeHTTP(resp, req)
	assert.Equal(t, http.StatusInternalServerError, resp.Code)
}

func TestAuthAttachesActor(t *testing.T) {
	cfg := testJWT()
	want := actorNamed("bakery", enums.UserRoleBusiness)

	for _, header := range []string{
		"Bearer " + mintTestToken(t, cfg, time.Now(), want),
		"bearer " + mintTestToken(t, cfg, time.Now(), want),
		mintTestToken(t, cfg, time.Now(), want),
	} {
		var got auth.Actor
		var ok bool
		handler := Auth(cfg, nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			got, ok = ActorFromContext(r.Context())
			w.WriteHeader(http.StatusOK)
		}))

		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("Authorization", header)
		resp := httptest.NewRecorder()
		handler.ServeHTTP(resp, req)

		require.Equal(t, http.StatusOK, resp.Code)
		require.True(t, ok)
		assert.Equal(t, want, got)
	}
}

func TestRequireRole(t *testing.T) {
	handler := RequireRole(nil, enums.UserRoleBusiness, enums.UserRoleAdmin)(okHandler())

	cases := map[enums.UserRole]int{
		enums.UserRoleBusiness:  http.StatusOK,
		enums.UserRoleAdmin:     http.StatusOK,
		enums.UserRoleRecipient: http.StatusForbidden,
		"":                      http.StatusForbidden,
	}
	for role, want := range cases {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req = req.WithContext(WithActor(req.Context(), actorNamed("someone", role)))
		resp := httptest.NewRecorder()
		handler.ServeHTTP(resp, req)
		assert.Equal(t, want, resp.Code, "role %q", role)
	}
}

func TestActorFromContextAnonymous(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	_, ok := ActorFromContext(req.Context())
	assert.False(t, ok)
	assert.Empty(t, UserIDFromContext(req.Context()))
}

package auth

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/surplus-engine/pkg/config"
	"github.com/angelmondragon/surplus-engine/pkg/enums"
)

func testJWTConfig() config.JWTConfig {
	return config.JWTConfig{
		Secret:            "secret",
		Issuer:            "surplus-engine",
		ExpirationMinutes: 30,
	}
}

func TestMintAndVerify(t *testing.T) {
	cfg := testJWTConfig()
	now := time.Now().UTC()
	actor := Actor{UserID: uuid.New(), Role: enums.UserRoleRecipient}

	token, err := MintAccessToken(cfg, now, actor)
	require.NoError(t, err)

	v, err := NewVerifier(cfg)
	require.NoError(t, err)
	claims, err := v.Verify(token)
	require.NoError(t, err)
	require.Equal(t, actor, claims.Actor())
	require.Equal(t, cfg.Issuer, claims.Issuer)
	require.Equal(t, actor.UserID.String(), claims.Subject)
	require.NotEmpty(t, claims.ID)
	require.WithinDuration(t, now.Add(30*time.Minute), claims.ExpiresAt.Time, time.Second)
}

func TestVerifyRejects(t *testing.T) {
	cfg := testJWTConfig()
	actor := Actor{UserID: uuid.New(), Role: enums.UserRoleDriver}
	valid, err := MintAccessToken(cfg, time.Now(), actor)
	require.NoError(t, err)
	expired, err := MintAccessToken(cfg, time.Now().Add(-time.Hour), actor)
	require.NoError(t, err)

	sign := func(claims jwt.Claims, method jwt.SigningMethod, key any) string {
		s, err := jwt.NewWithClaims(method, claims).SignedString(key)
		require.NoError(t, err)
		return s
	}
	future := jwt.NewNumericDate(time.Now().Add(time.Minute))

	cases := map[string]struct {
		cfg    config.JWTConfig
		token  string
		errIs  error
		reason string
	}{
		"tampered":      {cfg: cfg, token: valid + "x"},
		"other secret":  {cfg: config.JWTConfig{Secret: "different", Issuer: cfg.Issuer}, token: valid, errIs: jwt.ErrTokenSignatureInvalid},
		"other issuer":  {cfg: config.JWTConfig{Secret: cfg.Secret, Issuer: "someone-else"}, token: valid, errIs: jwt.ErrTokenInvalidIssuer},
		"expired":       {cfg: cfg, token: expired, errIs: jwt.ErrTokenExpired},
		"no expiry":     {cfg: cfg, token: sign(AccessTokenClaims{UserID: uuid.New(), Role: enums.UserRoleAdmin, RegisteredClaims: jwt.RegisteredClaims{Issuer: cfg.Issuer}}, jwt.SigningMethodHS256, []byte(cfg.Secret)), errIs: jwt.ErrTokenRequiredClaimMissing},
		"unknown role":  {cfg: cfg, token: sign(AccessTokenClaims{UserID: uuid.New(), Role: "vendor", RegisteredClaims: jwt.RegisteredClaims{Issuer: cfg.Issuer, ExpiresAt: future}}, jwt.SigningMethodHS256, []byte(cfg.Secret)), reason: "unknown role"},
		"wrong method":  {cfg: cfg, token: sign(AccessTokenClaims{UserID: uuid.New(), Role: enums.UserRoleAdmin, RegisteredClaims: jwt.RegisteredClaims{Issuer: cfg.Issuer, ExpiresAt: future}}, jwt.SigningMethodHS384, []byte(cfg.Secret)), errIs: jwt.ErrTokenSignatureInvalid},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := ParseAccessToken(tc.cfg, tc.token)
			require.Error(t, err)
			if tc.errIs != nil {
				require.ErrorIs(t, err, tc.errIs)
			}
			if tc.reason != "" {
				require.ErrorContains(t, err, tc.reason)
			}
		})
	}
}

func TestMintAccessTokenValidatesInput(t *testing.T) {
	cfg := testJWTConfig()
	_, err := MintAccessToken(cfg, time.Now(), Actor{UserID: uuid.New()})
	require.Error(t, err)

	_, err = MintAccessToken(cfg, time.Now(), Actor{Role: enums.UserRoleDriver})
	require.Error(t, err)

	bad := cfg
	bad.Secret = ""
	_, err = MintAccessToken(bad, time.Now(), Actor{UserID: uuid.New(), Role: enums.UserRoleDriver})
	require.Error(t, err)
}

func TestNewVerifierRequiresSecretAndIssuer(t *testing.T) {
	_, err := NewVerifier(config.JWTConfig{Issuer: "x"})
	require.Error(t, err)
	_, err = NewVerifier(config.JWTConfig{Secret: "x"})
	require.Error(t, err)
}

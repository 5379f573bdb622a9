package biz

import (
	"context"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/looplj/auditflow/internal/authz"
)

func TestGenerateSecretKey(t *testing.T) {
	secretKey, err := GenerateSecretKey()
	require.NoError(t, err)
	assert.Len(t, secretKey, 64) // 32 bytes * 2 (hex encoding)

	secretKey2, err := GenerateSecretKey()
	require.NoError(t, err)
	assert.NotEqual(t, secretKey, secretKey2)
}

func TestNewAuthService(t *testing.T) {
	_, err := NewAuthService(AuthServiceParams{})
	require.Error(t, err)

	svc, err := NewAuthService(AuthServiceParams{Config: AuthConfig{SecretKey: "secret"}})
	require.NoError(t, err)
	assert.Equal(t, 24*time.Hour, svc.ttl)
}

func TestAuthService_JWT(t *testing.T) {
	svc, err := NewAuthService(AuthServiceParams{Config: AuthConfig{SecretKey: "secret", Issuer: "auditflow", TokenTTL: time.Hour}})
	require.NoError(t, err)

	ctx := context.Background()

	t.Run("round trip", func(t *testing.T) {
		token, err := svc.GenerateJWTToken(auditorID, authz.RoleAuditor)
		require.NoError(t, err)

		p, err := svc.AuthenticateJWTToken(ctx, token)
		require.NoError(t, err)
		assert.Equal(t, authz.Principal{UserID: auditorID, Role: authz.RoleAuditor}, p)
	})

	t.Run("invalid input", func(t *testing.T) {
		_, err := svc.GenerateJWTToken("", authz.RoleCFO)
		require.Error(t, err)

		_, err = svc.GenerateJWTToken(cfoID, authz.Role("OWNER"))
		require.Error(t, err)
	})

	t.Run("expired", func(t *testing.T) {
		token, err := svc.GenerateJWTToken(cfoID, authz.RoleCFO)
		require.NoError(t, err)

		svc.now = func() time.Time { return time.Now().Add(2 * time.Hour) }
		t.Cleanup(func() { svc.now = time.Now })

		_, err = svc.AuthenticateJWTToken(ctx, token)
		require.ErrorIs(t, err, ErrInvalidJWT)
	})

	t.Run("wrong secret", func(t *testing.T) {
		other, err := NewAuthService(AuthServiceParams{Config: AuthConfig{SecretKey: "other", Issuer: "auditflow"}})
		require.NoError(t, err)

		token, err := other.GenerateJWTToken(cfoID, authz.RoleCFO)
		require.NoError(t, err)

		_, err = svc.AuthenticateJWTToken(ctx, token)
		require.ErrorIs(t, err, ErrInvalidJWT)
	})

	t.Run("wrong issuer", func(t *testing.T) {
		other, err := NewAuthService(AuthServiceParams{Config: AuthConfig{SecretKey: "secret", Issuer: "someone-else"}})
		require.NoError(t, err)

		token, err := other.GenerateJWTToken(cfoID, authz.RoleCFO)
		require.NoError(t, err)

		_, err = svc.AuthenticateJWTToken(ctx, token)
		require.ErrorIs(t, err, ErrInvalidJWT)
	})

	t.Run("unknown role", func(t *testing.T) {
		token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
			"sub":  cfoID,
			"role": "OWNER",
			"iss":  "auditflow",
			"exp":  time.Now().Add(time.Hour).Unix(),
		})
		signed, err := token.SignedString([]byte("secret"))
		require.NoError(t, err)

		_, err = svc.AuthenticateJWTToken(ctx, signed)
		require.ErrorIs(t, err, ErrInvalidJWT)
	})

	t.Run("none algorithm", func(t *testing.T) {
		token := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.MapClaims{
			"sub":  cfoID,
			"role": "CFO",
			"iss":  "auditflow",
			"exp":  time.Now().Add(time.Hour).Unix(),
		})
		signed, err := token.SignedString(jwt.UnsafeAllowNoneSignatureType)
		require.NoError(t, err)

		_, err = svc.AuthenticateJWTToken(ctx, signed)
		require.ErrorIs(t, err, ErrInvalidJWT)
	})
}

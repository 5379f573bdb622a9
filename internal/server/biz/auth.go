package biz

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/fx"

	"github.com/looplj/auditflow/internal/authz"
	"github.com/looplj/auditflow/internal/log"
)

var ErrInvalidJWT = errors.New("invalid jwt token")

type AuthConfig struct {
	// SecretKey signs and verifies HS256 tokens.
	SecretKey string        `conf:"secret_key" yaml:"secret_key" json:"secret_key"`
	Issuer    string        `conf:"issuer" yaml:"issuer" json:"issuer"`
	TokenTTL  time.Duration `conf:"token_ttl" yaml:"token_ttl" json:"token_ttl"`
}

type AuthServiceParams struct {
	fx.In

	Config AuthConfig
}

// AuthService turns bearer tokens into principals. Identity is owned by the
// organization's identity provider, the token only carries the user id and role.
type AuthService struct {
	secret []byte
	issuer string
	ttl    time.Duration
	now    func() time.Time
}

func NewAuthService(params AuthServiceParams) (*AuthService, error) {
	if params.Config.SecretKey == "" {
		return nil, errors.New("auth.secret_key is required")
	}

	ttl := params.Config.TokenTTL
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}

	return &AuthService{
		secret: []byte(params.Config.SecretKey),
		issuer: params.Config.Issuer,
		ttl:    ttl,
		now:    time.Now,
	}, nil
}

// GenerateSecretKey generates a random secret key for JWT.
func GenerateSecretKey() (string, error) {
	bytes := make([]byte, 32) // 256 bits

	_, err := rand.Read(bytes)
	if err != nil {
		return "", fmt.Errorf("failed to generate random bytes: %w", err)
	}

	return hex.EncodeToString(bytes), nil
}

type claims struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}

// GenerateJWTToken signs a token for userID acting as role.
func (s *AuthService) GenerateJWTToken(userID string, role authz.Role) (string, error) {
	if userID == "" {
		return "", errors.New("user id is required")
	}

	if !role.Valid() {
		return "", fmt.Errorf("unknown role %q", role)
	}

	now := s.now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims{
		Role: role.String(),
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			Issuer:    s.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
		},
	})

	tokenString, err := token.SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("failed to generate token: %w", err)
	}

	return tokenString, nil
}

// AuthenticateJWTToken validates a token and returns its principal.
func (s *AuthService) AuthenticateJWTToken(ctx context.Context, tokenString string) (authz.Principal, error) {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(s.now),
		jwt.WithExpirationRequired(),
	}
	if s.issuer != "" {
		opts = append(opts, jwt.WithIssuer(s.issuer))
	}

	var c claims

	token, err := jwt.ParseWithClaims(tokenString, &c, func(token *jwt.Token) (any, error) {
		return s.secret, nil
	}, opts...)
	if err != nil {
		return authz.Principal{}, fmt.Errorf("%w: failed to parse jwt token: %w", ErrInvalidJWT, err)
	}

	if !token.Valid || c.Subject == "" {
		return authz.Principal{}, fmt.Errorf("%w: invalid token claims", ErrInvalidJWT)
	}

	role, err := authz.ParseRole(c.Role)
	if err != nil {
		return authz.Principal{}, fmt.Errorf("%w: %w", ErrInvalidJWT, err)
	}

	log.Debug(ctx, "principal authenticated", log.String("user_id", c.Subject), log.String("role", role.String()))

	return authz.Principal{UserID: c.Subject, Role: role}, nil
}

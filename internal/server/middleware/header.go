package middleware

import (
	"net/http"
	"strings"

	"github.com/looplj/auditflow/internal/pkg/xerrors"
)

// ExtractBearerTokenFromHeader extracts the token of an "Authorization: Bearer <token>" header value.
func ExtractBearerTokenFromHeader(authHeader string) (string, error) {
	if authHeader == "" {
		return "", xerrors.Unauthenticated("Authorization header is required")
	}

	if !strings.HasPrefix(authHeader, "Bearer ") {
		return "", xerrors.Unauthenticated("Authorization header must start with 'Bearer '")
	}

	token := strings.TrimSpace(strings.TrimPrefix(authHeader, "Bearer "))
	if token == "" {
		return "", xerrors.Unauthenticated("token is required")
	}

	return token, nil
}

// ExtractBearerToken reads the bearer token of r.
func ExtractBearerToken(r *http.Request) (string, error) {
	return ExtractBearerTokenFromHeader(r.Header.Get("Authorization"))
}

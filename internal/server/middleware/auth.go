package middleware

import (
	"errors"
	"fmt"

	"github.com/gin-gonic/gin"

	"github.com/looplj/auditflow/internal/authz"
	"github.com/looplj/auditflow/internal/contexts"
	"github.com/looplj/auditflow/internal/server/biz"
	"github.com/looplj/auditflow/internal/pkg/xerrors"
)

// WithJWTAuth resolves the bearer token into the request principal.
// Requests without a valid token never reach the handlers.
func WithJWTAuth(auth *biz.AuthService) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, err := ExtractBearerToken(c.Request)
		if err != nil {
			AbortWithError(c, err)
			return
		}

		principal, err := auth.AuthenticateJWTToken(c.Request.Context(), token)
		if err != nil {
			if errors.Is(err, biz.ErrInvalidJWT) {
				AbortWithError(c, xerrors.Unauthenticated("invalid token"))
			} else {
				AbortWithError(c, fmt.Errorf("failed to validate token: %w", err))
			}

			return
		}

		ctx, err := authz.WithPrincipal(c.Request.Context(), principal)
		if err != nil {
			AbortWithError(c, err)
			return
		}

		ctx = contexts.WithClientIP(ctx, c.ClientIP())
		c.Request = c.Request.WithContext(ctx)

		c.Next()
	}
}

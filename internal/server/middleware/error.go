package middleware

import (
	"github.com/gin-gonic/gin"

	"github.com/looplj/auditflow/internal/objects"
	"github.com/looplj/auditflow/internal/pkg/xerrors"
)

// AbortWithError aborts the request with a JSON error response and adds the error to gin context for access logging.
func AbortWithError(c *gin.Context, err error) {
	_ = c.Error(err)
	c.AbortWithStatusJSON(xerrors.HTTPStatus(err), objects.NewErrorResponse(err))
}

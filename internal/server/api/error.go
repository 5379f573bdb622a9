package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/looplj/auditflow/internal/log"
	"github.com/looplj/auditflow/internal/objects"
	"github.com/looplj/auditflow/internal/pkg/xerrors"
)

var errInvalidRequest = xerrors.Validation("invalid request format")

// JSONError returns a JSON error response and adds the error to gin context for access logging.
// The status follows the error code, errors without a code are internal.
func JSONError(c *gin.Context, err error) {
	_ = c.Error(err)

	status := xerrors.HTTPStatus(err)
	if status == http.StatusInternalServerError {
		log.Error(c.Request.Context(), "request failed", log.Cause(err))
	}

	c.JSON(status, objects.NewErrorResponse(err))
}

// bindJSON binds the body into req and writes a validation error on failure.
func bindJSON(c *gin.Context, req any) bool {
	if err := c.ShouldBindJSON(req); err != nil {
		JSONError(c, xerrors.Wrap(xerrors.CodeValidation, err, "%s", errInvalidRequest.Message))
		return false
	}

	return true
}

// bindOptionalJSON is bindJSON for endpoints whose body may be omitted.
func bindOptionalJSON(c *gin.Context, req any) bool {
	if c.Request.ContentLength == 0 {
		return true
	}

	return bindJSON(c, req)
}

func bindQuery(c *gin.Context, req any) bool {
	if err := c.ShouldBindQuery(req); err != nil {
		JSONError(c, xerrors.Wrap(xerrors.CodeValidation, err, "invalid query"))
		return false
	}

	return true
}

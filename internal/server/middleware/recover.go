package middleware

import (
	"fmt"
	"io"
	"runtime/debug"

	"github.com/gin-gonic/gin"

	"github.com/looplj/auditflow/internal/log"
)

// Recovery turns a handler panic into a 500 response and logs the stack.
func Recovery() gin.HandlerFunc {
	return gin.CustomRecoveryWithWriter(io.Discard, func(c *gin.Context, recovered any) {
		log.Error(c.Request.Context(), "panic recovered",
			log.Any("panic", recovered),
			log.String("stack", string(debug.Stack())),
		)

		AbortWithError(c, fmt.Errorf("panic: %v", recovered))
	})
}

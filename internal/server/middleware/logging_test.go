package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"

	"github.com/looplj/auditflow/internal/tracing"
)

func TestWithLoggingTracing(t *testing.T) {
	gin.SetMode(gin.TestMode)

	tests := []struct {
		name      string
		config    tracing.Config
		header    string
		value     string
		assertion func(t *testing.T, traceID string)
	}{
		{
			name:   "generated trace id",
			config: tracing.Config{TraceHeader: "AF-Trace-Id"},
			assertion: func(t *testing.T, traceID string) {
				assert.Contains(t, traceID, "af-")
			},
		},
		{
			name:   "existing header",
			config: tracing.Config{TraceHeader: "AF-Trace-Id"},
			header: "Af-Trace-Id",
			value:  "af-existing-trace-id",
			assertion: func(t *testing.T, traceID string) {
				assert.Equal(t, "af-existing-trace-id", traceID)
			},
		},
		{
			name:   "custom header",
			config: tracing.Config{TraceHeader: "X-Custom-Trace-Id"},
			header: "X-Custom-Trace-Id",
			value:  "af-custom-trace-id",
			assertion: func(t *testing.T, traceID string) {
				assert.Equal(t, "af-custom-trace-id", traceID)
			},
		},
		{
			name:   "empty config",
			config: tracing.Config{},
			assertion: func(t *testing.T, traceID string) {
				assert.Contains(t, traceID, "af-")
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/observations/:id", nil)
			if tt.header != "" {
				req.Header.Set(tt.header, tt.value)
			}

			w := httptest.NewRecorder()

			var (
				traceID   string
				operation string
			)

			engine := gin.New()
			engine.Use(WithLoggingTracing(tt.config))
			engine.GET("/observations/:id", func(c *gin.Context) {
				traceID, _ = tracing.GetTraceID(c.Request.Context())
				operation, _ = tracing.GetOperationName(c.Request.Context())
				c.Status(http.StatusOK)
			})

			engine.ServeHTTP(w, req)

			assert.Equal(t, http.StatusOK, w.Code)
			assert.NotEmpty(t, w.Header().Get("AF-Request-Id"))
			assert.Equal(t, "GET /observations/:id", operation)
			tt.assertion(t, traceID)
		})
	}
}

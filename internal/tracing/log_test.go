package tracing

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/looplj/auditflow/internal/authz"
)

func TestTraceFieldsHooks(t *testing.T) {
	t.Run("with trace ID", func(t *testing.T) {
		ctx := WithTraceID(context.Background(), "af-test-trace-id")
		fields := TraceFieldsHooks(ctx, "test message")
		require.Len(t, fields, 1)
		assert.Equal(t, "trace_id", fields[0].Key)
		assert.Equal(t, "af-test-trace-id", fields[0].String)
	})

	t.Run("with operation name", func(t *testing.T) {
		ctx := WithOperationName(context.Background(), "POST /audits")
		fields := TraceFieldsHooks(ctx, "test message")
		require.Len(t, fields, 1)
		assert.Equal(t, "operation_name", fields[0].Key)
	})

	t.Run("with principal", func(t *testing.T) {
		ctx, err := authz.WithPrincipal(context.Background(), authz.Principal{UserID: "u-1", Role: authz.RoleAuditor})
		require.NoError(t, err)

		fields := TraceFieldsHooks(ctx, "test message")
		require.Len(t, fields, 2)
		assert.Equal(t, "u-1", fields[0].String)
		assert.Equal(t, "AUDITOR", fields[1].String)
	})

	t.Run("empty context", func(t *testing.T) {
		fields := TraceFieldsHooks(context.Background(), "test message")
		assert.Empty(t, fields)
	})

	t.Run("nil context", func(t *testing.T) {
		//nolint:staticcheck // hooks must tolerate nil.
		fields := TraceFieldsHooks(nil, "test message")
		assert.Empty(t, fields)
	})
}

func TestGenerateIDs(t *testing.T) {
	assert.Regexp(t, `^af-[0-9a-f-]{36}$`, GenerateTraceID())
	assert.Regexp(t, `^req-[0-9a-f-]{36}$`, GenerateRequestID())
	assert.NotEqual(t, GenerateTraceID(), GenerateTraceID())
}

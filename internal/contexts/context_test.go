package contexts

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestContainerValues(t *testing.T) {
	ctx := context.Background()

	_, ok := GetTraceID(ctx)
	require.False(t, ok)

	ctx = WithTraceID(ctx, "at-trace")
	ctx = WithRequestID(ctx, "req-1")
	ctx = WithOperationName(ctx, "POST /observations/:id/submit")
	ctx = WithClientIP(ctx, "10.0.0.1")

	traceID, ok := GetTraceID(ctx)
	require.True(t, ok)
	assert.Equal(t, "at-trace", traceID)

	requestID, ok := GetRequestID(ctx)
	require.True(t, ok)
	assert.Equal(t, "req-1", requestID)

	op, ok := GetOperationName(ctx)
	require.True(t, ok)
	assert.Equal(t, "POST /observations/:id/submit", op)

	ip, ok := GetClientIP(ctx)
	require.True(t, ok)
	assert.Equal(t, "10.0.0.1", ip)
}

func TestContainerIsSharedAcrossDerivedContexts(t *testing.T) {
	ctx := WithTraceID(context.Background(), "at-1")
	child, cancel := context.WithCancel(ctx)
	defer cancel()

	WithRequestID(child, "req-late")

	requestID, ok := GetRequestID(ctx)
	require.True(t, ok)
	assert.Equal(t, "req-late", requestID)
}

func TestGetFromNilContext(t *testing.T) {
	//nolint:staticcheck // nil context is tolerated by getters.
	_, ok := GetTraceID(nil)
	assert.False(t, ok)
}

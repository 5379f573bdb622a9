package authz

import (
	"context"
	"fmt"
	"time"

	"github.com/looplj/auditflow/internal/log"
	"github.com/looplj/auditflow/internal/pkg/xerrors"
)

// bypassKey is an unexported key type to prevent external forgery.
type bypassKey struct{}

// BypassInfo stores bypass metadata.
type BypassInfo struct {
	Reason    string
	Timestamp time.Time
	Principal Principal
}

// WithLockBypass records a lock bypass and marks the returned context with it.
// It does not switch off any check, the code that writes past a lock runs under it.
// Only CFO-equivalent principals may call it.
// reason must be a stable audit identifier (e.g., "change-request-apply").
func WithLockBypass(ctx context.Context, reason string) (context.Context, error) {
	p, err := RequirePrincipal(ctx)
	if err != nil {
		return nil, err
	}

	if !IsCFO(p.Role) {
		return nil, xerrors.Forbidden("authz: lock bypass requires CFO, got %s", p.String())
	}

	info := BypassInfo{
		Reason:    reason,
		Timestamp: time.Now(),
		Principal: p,
	}

	recordBypassAudit(ctx, info)

	return context.WithValue(ctx, bypassKey{}, info), nil
}

// RunWithLockBypass executes fn with lock bypass, limiting bypass scope to the closure.
//
// Example usage:
//
//	obs, err := authz.RunWithLockBypass(ctx, "change-request-apply", func(ctx context.Context) (*objects.Observation, error) {
//	    return svc.applyPatch(ctx, obs, patch)
//	})
func RunWithLockBypass[T any](ctx context.Context, reason string, fn func(ctx context.Context) (T, error)) (T, error) {
	bypassCtx, err := WithLockBypass(ctx, reason)
	if err != nil {
		var zero T
		return zero, err
	}

	return fn(bypassCtx)
}

// GetBypassInfo retrieves current bypass information.
func GetBypassInfo(ctx context.Context) (BypassInfo, bool) {
	info, ok := ctx.Value(bypassKey{}).(BypassInfo)
	return info, ok
}

// IsLockBypassed checks if current context is in bypass state.
func IsLockBypassed(ctx context.Context) bool {
	_, ok := ctx.Value(bypassKey{}).(BypassInfo)
	return ok
}

// BypassRecord represents a bypass audit record.
type BypassRecord struct {
	Timestamp   time.Time
	Principal   string
	Reason      string
	Description string
}

var auditLogger func(ctx context.Context, record BypassRecord)

// SetAuditLogger sets the bypass audit sink.
// If not set, the global logger is used.
func SetAuditLogger(fn func(ctx context.Context, record BypassRecord)) {
	auditLogger = fn
}

func recordBypassAudit(ctx context.Context, info BypassInfo) {
	record := BypassRecord{
		Timestamp:   info.Timestamp,
		Principal:   info.Principal.String(),
		Reason:      info.Reason,
		Description: fmt.Sprintf("lock bypass triggered: reason=%s, principal=%s", info.Reason, info.Principal.String()),
	}

	if auditLogger != nil {
		auditLogger(ctx, record)
		return
	}

	log.Info(ctx, "authz: lock bypass",
		log.String("principal", record.Principal),
		log.String("reason", record.Reason),
	)
}

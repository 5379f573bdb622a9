package xcontext

import (
	"context"
	"time"
)

// DetachWithTimeout keeps the values of ctx but not its cancellation, the returned
// context ends after timeout. Use it for work that must outlive the request, such as
// side effects that run after a commit.
func DetachWithTimeout(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.WithoutCancel(ctx), timeout)
}

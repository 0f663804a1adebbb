package logging

import (
	"context"
	"time"
)

// DetachContext returns a context that survives cancellation of parent
// while keeping its values.
func DetachContext(parent context.Context) context.Context {
	return context.WithoutCancel(parent)
}

// DetachContextWithTimeout detaches from parent and applies its own deadline.
// Used for best-effort writes (memory, capture log) that must not be cut off
// when the request that produced them ends.
//
//	writeCtx, cancel := logging.DetachContextWithTimeout(ctx, 5*time.Second)
//	defer cancel()
//	capture.Log(writeCtx, record)
func DetachContextWithTimeout(parent context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.WithoutCancel(parent), timeout)
}

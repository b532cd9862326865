package ctxutil

import (
	"context"
	"time"
)

type key string

func (k key) String() string {
	return string(k)
}

var cancelkey = key("cancel")

// CancelContext provides a cancelable context whose cancel function
// can be called by holders of the context using Cancel.
func CancelContext(ctx context.Context) context.Context {
	return withCancel(context.WithCancel(ctx))
}

// TimeoutContext is a CancelContext additionally cancelled after the
// given duration.
func TimeoutContext(ctx context.Context, duration time.Duration) context.Context {
	return withCancel(context.WithTimeout(ctx, duration))
}

func withCancel(ctx context.Context, cancel context.CancelFunc) context.Context {
	return context.WithValue(ctx, cancelkey, cancel)
}

// Cancel cancels a context created by CancelContext or TimeoutContext.
// It is a no-op for other contexts.
func Cancel(ctx context.Context) {
	if c, ok := ctx.Value(cancelkey).(context.CancelFunc); ok {
		c()
	}
}

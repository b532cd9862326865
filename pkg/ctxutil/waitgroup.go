package ctxutil

import (
	"context"
	"sync"
	"time"
)

var waitgroupkey = key("waitgroup")

type waitGroup struct {
	sync.WaitGroup
	name string
}

// WaitGroupContext provides a cancelable context carrying a wait group
// for the goroutines bound to the lifetime of the context.
func WaitGroupContext(ctx context.Context, name string) context.Context {
	return context.WithValue(CancelContext(ctx), waitgroupkey, &waitGroup{name: name})
}

func get(ctx context.Context) *waitGroup {
	wg, _ := ctx.Value(waitgroupkey).(*waitGroup)
	return wg
}

// WaitGroupGet provides the wait group of a context created by WaitGroupContext.
func WaitGroupGet(ctx context.Context) *sync.WaitGroup {
	if wg := get(ctx); wg != nil {
		return &wg.WaitGroup
	}
	return nil
}

// WaitGroupName provides the name of the wait group of a context.
func WaitGroupName(ctx context.Context) string {
	if wg := get(ctx); wg != nil {
		return wg.name
	}
	return ""
}

// WaitGroupRun runs a function in a goroutine registered at the wait
// group of the context.
func WaitGroupRun(ctx context.Context, f func()) {
	wg := get(ctx)
	wg.Add(1)
	go func() {
		defer wg.Done()
		f()
	}()
}

// WaitGroupRunUntilCancelled runs a function in a registered goroutine
// and cancels the context once the function returns.
func WaitGroupRunUntilCancelled(ctx context.Context, f func()) {
	WaitGroupRun(ctx, func() {
		defer Cancel(ctx)
		f()
	})
}

// WaitGroupWait waits for all registered goroutines. A positive
// timeout limits the waiting, it reports whether all goroutines
// finished.
func WaitGroupWait(ctx context.Context, timeout time.Duration) bool {
	wg := get(ctx)
	if wg == nil {
		return true
	}
	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()
	if timeout <= 0 {
		<-done
		return true
	}
	select {
	case <-done:
		return true
	case <-time.After(timeout):
		return false
	}
}

package store

import (
	"context"
	"errors"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
)

// DefaultCallTimeout bounds a shared remote call independently of its callers.
const DefaultCallTimeout = 30 * time.Second

// errAbandoned is the cancellation cause of a shared call whose callers all
// gave up before it finished.
var errAbandoned = errors.New("all callers abandoned the call")

// coalescer runs at most one call per key. The call runs on a context that is
// detached from every individual caller and is cancelled only when the last
// waiting caller leaves. Each caller still returns as soon as its own context
// is done.
type coalescer struct {
	group   singleflight.Group
	timeout time.Duration

	mu    sync.Mutex
	calls map[string]*sharedCall
}

type sharedCall struct {
	ctx     context.Context
	cancel  context.CancelCauseFunc
	stop    context.CancelFunc
	waiters int
}

func newCoalescer(timeout time.Duration) *coalescer {
	return &coalescer{timeout: timeout, calls: make(map[string]*sharedCall)}
}

// do returns shared=true when the result came from a call started by
// another caller.
func (c *coalescer) do(ctx context.Context, key string, fn func(context.Context) (interface{}, error)) (v interface{}, err error, shared bool) {
	call := c.join(ctx, key)
	defer c.leave(key, call)

	ch := c.group.DoChan(key, func() (interface{}, error) {
		return fn(call.ctx)
	})
	select {
	case res := <-ch:
		return res.Val, res.Err, res.Shared
	case <-ctx.Done():
		return nil, ctx.Err(), false
	}
}

func (c *coalescer) join(ctx context.Context, key string) *sharedCall {
	c.mu.Lock()
	defer c.mu.Unlock()

	if call, ok := c.calls[key]; ok {
		call.waiters++
		return call
	}

	// values such as trace spans survive, cancellation does not
	base, cancel := context.WithCancelCause(context.WithoutCancel(ctx))
	call := &sharedCall{cancel: cancel, waiters: 1}
	if c.timeout > 0 {
		call.ctx, call.stop = context.WithTimeout(base, c.timeout)
	} else {
		call.ctx, call.stop = base, func() {}
	}
	c.calls[key] = call
	return call
}

func (c *coalescer) leave(key string, call *sharedCall) {
	c.mu.Lock()
	defer c.mu.Unlock()

	call.waiters--
	if call.waiters > 0 {
		return
	}
	call.cancel(errAbandoned)
	call.stop()
	delete(c.calls, key)
	// a caller arriving after this point starts a fresh call
	c.group.Forget(key)
}

// abandoned reports whether ctx belongs to a call that lost all its callers.
func abandoned(ctx context.Context) bool {
	return errors.Is(context.Cause(ctx), errAbandoned)
}

package chain

import (
	"context"
)

// Deferred is a value that becomes available later. The engine awaits a
// deferred before inspecting what it resolved to; a deferred may resolve to
// another deferred.
type Deferred interface {
	Await(ctx context.Context) (any, error)
}

// Async runs fn on its own goroutine and returns its pending result.
func Async(ctx context.Context, fn func(ctx context.Context) (any, error)) Deferred {
	f := &future{done: make(chan struct{})}
	go func() {
		defer close(f.done)
		f.val, f.err = fn(ctx)
	}()
	return f
}

// Resolved returns a deferred that is already fulfilled with v.
func Resolved(v any) Deferred {
	f := &future{done: make(chan struct{}), val: v}
	close(f.done)
	return f
}

// Rejected returns a deferred that is already failed with err.
func Rejected(err error) Deferred {
	f := &future{done: make(chan struct{}), err: err}
	close(f.done)
	return f
}

type future struct {
	done chan struct{}
	val  any
	err  error
}

func (f *future) Await(ctx context.Context) (any, error) {
	select {
	case <-f.done:
		return f.val, f.err
	default:
	}
	select {
	case <-f.done:
		return f.val, f.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Resolve awaits v until it is no longer a deferred.
func Resolve(ctx context.Context, v any) (any, error) {
	for {
		d, ok := v.(Deferred)
		if !ok {
			return v, nil
		}
		var err error
		if v, err = d.Await(ctx); err != nil {
			return nil, err
		}
	}
}

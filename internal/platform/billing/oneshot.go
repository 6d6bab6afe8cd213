package billing

import (
	"context"
	"sync"
)

// oneshot bridges a push-style platform callback into an awaitable result.
// It resolves at most once; later resolutions report false so the caller can
// log the anomaly and drop the value. Resolution is a broadcast: every
// awaiter, past or future, observes the same stored value.
type oneshot[T any] struct {
	once sync.Once
	done chan struct{}
	val  T
}

func newOneshot[T any]() *oneshot[T] {
	return &oneshot[T]{done: make(chan struct{})}
}

func (o *oneshot[T]) resolve(v T) bool {
	fired := false
	o.once.Do(func() {
		o.val = v
		close(o.done)
		fired = true
	})
	return fired
}

func (o *oneshot[T]) await(ctx context.Context) (T, error) {
	select {
	case <-o.done:
		return o.val, nil
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}

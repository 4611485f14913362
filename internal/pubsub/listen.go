package pubsub

import "context"

// Listen subscribes to sub and invokes fn for every event until ctx is
// cancelled or the subscription channel is closed. It blocks, so callers
// usually run it in its own goroutine.
func Listen[T any](ctx context.Context, sub Subscriber[T], fn func(Event[T])) {
	ch := sub.Subscribe(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-ch:
			if !ok {
				return
			}
			fn(ev)
		}
	}
}

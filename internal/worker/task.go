package worker

import (
	"context"
	"sync"
	"time"
)

// Task is a handle on a periodic job. It runs until its callback asks to stop,
// its context is cancelled, or Stop is called.
type Task struct {
	cancel   context.CancelFunc
	done     chan struct{}
	stopOnce sync.Once
}

// Every runs fn once per interval, first after one interval has passed.
// Returning false from fn ends the task.
func Every(ctx context.Context, interval time.Duration, fn func(ctx context.Context) bool) *Task {
	return start(ctx, interval, false, fn)
}

// EveryNow is Every with an immediate first run
func EveryNow(ctx context.Context, interval time.Duration, fn func(ctx context.Context) bool) *Task {
	return start(ctx, interval, true, fn)
}

func start(ctx context.Context, interval time.Duration, immediate bool, fn func(ctx context.Context) bool) *Task {
	ctx, cancel := context.WithCancel(ctx)
	t := &Task{cancel: cancel, done: make(chan struct{})}

	go func() {
		defer close(t.done)
		defer cancel()

		if immediate && !fn(ctx) {
			return
		}

		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				// A tick may race with cancellation; cancellation wins.
				if ctx.Err() != nil {
					return
				}
				if !fn(ctx) {
					return
				}
			}
		}
	}()

	return t
}

// Stop cancels the task and waits for its goroutine to exit.
// It must not be called from inside the task's own callback.
func (t *Task) Stop() {
	t.stopOnce.Do(t.cancel)
	<-t.done
}

// Done is closed once the task has exited
func (t *Task) Done() <-chan struct{} {
	return t.done
}

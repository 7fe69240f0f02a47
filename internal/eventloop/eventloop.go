// Package eventloop runs posted closures one at a time on a single goroutine.
// State owned by the loop needs no locking as long as it is only touched from
// closures the loop runs.
package eventloop

import (
	"context"
	"errors"
	"sync"
)

var ErrStopped = errors.New("eventloop: stopped")

type Loop struct {
	mu      sync.Mutex
	queue   []func()
	stopped bool

	wake chan struct{}
	done chan struct{}
}

func New() *Loop {
	return &Loop{
		wake: make(chan struct{}, 1),
		done: make(chan struct{}),
	}
}

// Post queues fn. It never blocks; the queue is unbounded. It reports false
// once the loop has stopped.
func (l *Loop) Post(fn func()) bool {
	l.mu.Lock()
	if l.stopped {
		l.mu.Unlock()
		return false
	}
	l.queue = append(l.queue, fn)
	l.mu.Unlock()

	select {
	case l.wake <- struct{}{}:
	default:
	}
	return true
}

// Do runs fn on the loop and waits for it to finish. Calling Do from inside
// a loop closure deadlocks; call fn directly there.
func (l *Loop) Do(ctx context.Context, fn func()) error {
	finished := make(chan struct{})
	if !l.Post(func() {
		defer close(finished)
		fn()
	}) {
		return ErrStopped
	}
	select {
	case <-finished:
		return nil
	case <-l.done:
		// The loop may have run fn just before stopping.
		select {
		case <-finished:
			return nil
		default:
			return ErrStopped
		}
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Run executes queued closures in order until ctx is cancelled or Stop is called.
func (l *Loop) Run(ctx context.Context) error {
	defer close(l.done)
	defer l.markStopped()

	for {
		l.mu.Lock()
		batch := l.queue
		l.queue = nil
		stopped := l.stopped
		l.mu.Unlock()

		for _, fn := range batch {
			fn()
		}
		if stopped && len(batch) == 0 {
			return nil
		}
		if len(batch) > 0 {
			continue
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-l.wake:
		}
	}
}

// Stop makes Run return once every closure posted before Stop has run.
func (l *Loop) Stop() {
	l.markStopped()
	select {
	case l.wake <- struct{}{}:
	default:
	}
}

// Done is closed when Run has returned.
func (l *Loop) Done() <-chan struct{} { return l.done }

func (l *Loop) markStopped() {
	l.mu.Lock()
	l.stopped = true
	l.mu.Unlock()
}

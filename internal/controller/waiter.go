package controller

import (
	"context"
	"sync"

	"tasklist-cli/internal/model"
)

// Waiter keeps the latest State a controller published and lets other
// goroutines block until it satisfies a condition.
type Waiter struct {
	mu      sync.Mutex
	last    model.State
	has     bool
	changed chan struct{}
}

func NewWaiter() *Waiter {
	return &Waiter{changed: make(chan struct{})}
}

// Listener is passed as Config.Listener.
func (w *Waiter) Listener(s model.State) {
	w.mu.Lock()
	w.last = s
	w.has = true
	close(w.changed)
	w.changed = make(chan struct{})
	w.mu.Unlock()
}

// Last returns the most recent state and whether one has arrived.
func (w *Waiter) Last() (model.State, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.last.Clone(), w.has
}

// Wait blocks until a published state satisfies pred and returns it.
func (w *Waiter) Wait(ctx context.Context, pred func(model.State) bool) (model.State, error) {
	for {
		w.mu.Lock()
		if w.has && pred(w.last) {
			s := w.last.Clone()
			w.mu.Unlock()
			return s, nil
		}
		ch := w.changed
		w.mu.Unlock()

		select {
		case <-ch:
		case <-ctx.Done():
			return model.State{}, ctx.Err()
		}
	}
}

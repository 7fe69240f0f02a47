// Package remotetest is a behavioural test suite every remote.Store backend runs.
package remotetest

import (
	"context"
	"slices"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tasklist-cli/internal/remote"
)

// Harness opens stores for the suite. OpenPeer, when set, must return a second
// independent handle onto the same backing data (another process, another
// client); the suite then checks that writes through one reach the other.
type Harness struct {
	Open     func(t *testing.T) remote.Store
	OpenPeer func(t *testing.T) remote.Store

	// Timeout bounds each wait; backends that poll may need more than the default.
	Timeout time.Duration
}

// Watcher records every value a subscription delivers.
type Watcher struct {
	ch      chan []string
	timeout time.Duration
}

func NewWatcher(timeout time.Duration) *Watcher {
	if timeout <= 0 {
		timeout = 3 * time.Second
	}
	return &Watcher{ch: make(chan []string, 64), timeout: timeout}
}

func (w *Watcher) Listener() remote.Listener {
	return func(items []string) {
		select {
		case w.ch <- items:
		default:
		}
	}
}

// WaitFor reads deliveries until one equals want.
func (w *Watcher) WaitFor(t *testing.T, want []string) {
	t.Helper()
	deadline := time.After(w.timeout)
	var last []string
	for {
		select {
		case got := <-w.ch:
			require.NotNil(t, got, "deliveries must never be nil")
			if slices.Equal(got, want) {
				return
			}
			last = got
		case <-deadline:
			t.Fatalf("timed out waiting for %q; last delivery %q", want, last)
		}
	}
}

// Quiet asserts that nothing equal to unwanted arrives for d.
func (w *Watcher) Quiet(t *testing.T, d time.Duration, unwanted []string) {
	t.Helper()
	deadline := time.After(d)
	for {
		select {
		case got := <-w.ch:
			if slices.Equal(got, unwanted) {
				t.Fatalf("unexpected delivery %q", got)
			}
		case <-deadline:
			return
		}
	}
}

func Run(t *testing.T, h Harness) {
	ctx := context.Background()

	t.Run("MissingValueDeliversEmpty", func(t *testing.T) {
		s := h.Open(t)
		w := NewWatcher(h.Timeout)
		sub, err := s.Subscribe(ctx, "projects", w.Listener())
		require.NoError(t, err)
		defer sub.Close()
		assert.Equal(t, "projects", sub.Path())
		w.WaitFor(t, []string{})
	})

	t.Run("DeliversCurrentThenEveryChange", func(t *testing.T) {
		s := h.Open(t)
		require.NoError(t, s.Set(ctx, "projects", []string{"Home", "Work"}))

		w := NewWatcher(h.Timeout)
		sub, err := s.Subscribe(ctx, "projects", w.Listener())
		require.NoError(t, err)
		defer sub.Close()
		w.WaitFor(t, []string{"Home", "Work"})

		require.NoError(t, s.Set(ctx, "projects", []string{"Home", "Work", "Errands"}))
		w.WaitFor(t, []string{"Home", "Work", "Errands"})

		require.NoError(t, s.Set(ctx, "projects", []string{}))
		w.WaitFor(t, []string{})
	})

	t.Run("PathsAreIndependent", func(t *testing.T) {
		s := h.Open(t)
		home := NewWatcher(h.Timeout)
		work := NewWatcher(h.Timeout)
		subHome, err := s.Subscribe(ctx, "tasks/Home", home.Listener())
		require.NoError(t, err)
		defer subHome.Close()
		subWork, err := s.Subscribe(ctx, "tasks/Work", work.Listener())
		require.NoError(t, err)
		defer subWork.Close()
		home.WaitFor(t, []string{})
		work.WaitFor(t, []string{})

		require.NoError(t, s.Set(ctx, "tasks/Home", []string{"Buy milk"}))
		home.WaitFor(t, []string{"Buy milk"})
		work.Quiet(t, 100*time.Millisecond, []string{"Buy milk"})
	})

	t.Run("NamesWithSlashesDoNotNest", func(t *testing.T) {
		s := h.Open(t)
		require.NoError(t, s.Set(ctx, "tasks/a/b", []string{"nested"}))
		require.NoError(t, s.Set(ctx, "tasks/a", []string{"flat"}))

		w := NewWatcher(h.Timeout)
		sub, err := s.Subscribe(ctx, "tasks/a/b", w.Listener())
		require.NoError(t, err)
		defer sub.Close()
		w.WaitFor(t, []string{"nested"})
	})

	t.Run("PreservesOrderDuplicatesAndEmptyStrings", func(t *testing.T) {
		s := h.Open(t)
		v := []string{"b", "", "a", "b", "ünïcode"}
		require.NoError(t, s.Set(ctx, "projects", v))
		w := NewWatcher(h.Timeout)
		sub, err := s.Subscribe(ctx, "projects", w.Listener())
		require.NoError(t, err)
		defer sub.Close()
		w.WaitFor(t, v)
	})

	t.Run("ClosedSubscriptionStopsDelivering", func(t *testing.T) {
		s := h.Open(t)
		w := NewWatcher(h.Timeout)
		sub, err := s.Subscribe(ctx, "tasks/Home", w.Listener())
		require.NoError(t, err)
		w.WaitFor(t, []string{})
		require.NoError(t, sub.Close())

		require.NoError(t, s.Set(ctx, "tasks/Home", []string{"after close"}))
		w.Quiet(t, 200*time.Millisecond, []string{"after close"})
	})

	t.Run("InvalidPathRejected", func(t *testing.T) {
		s := h.Open(t)
		err := s.Set(ctx, "", []string{"x"})
		assert.ErrorIs(t, err, remote.ErrInvalidPath)
		_, err = s.Subscribe(ctx, "", func([]string) {})
		assert.ErrorIs(t, err, remote.ErrInvalidPath)
	})

	if h.OpenPeer == nil {
		return
	}

	t.Run("PeerSeesWrites", func(t *testing.T) {
		a := h.Open(t)
		b := h.OpenPeer(t)

		w := NewWatcher(h.Timeout)
		sub, err := b.Subscribe(ctx, "projects", w.Listener())
		require.NoError(t, err)
		defer sub.Close()
		w.WaitFor(t, []string{})

		require.NoError(t, a.Set(ctx, "projects", []string{"Home"}))
		w.WaitFor(t, []string{"Home"})

		require.NoError(t, a.Set(ctx, "projects", []string{"Home", "Work"}))
		w.WaitFor(t, []string{"Home", "Work"})
	})
}

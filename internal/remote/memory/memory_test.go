package memory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tasklist-cli/internal/remote"
	"tasklist-cli/internal/remote/remotetest"
)

func TestStore_Contract(t *testing.T) {
	remotetest.Run(t, remotetest.Harness{
		Open: func(t *testing.T) remote.Store {
			s := New(nil)
			t.Cleanup(func() { _ = s.Close() })
			return s
		},
	})
}

func TestStore_GetReturnsCopy(t *testing.T) {
	s := New(nil)
	defer s.Close()

	require.NoError(t, s.Set(context.Background(), "projects", []string{"Home"}))
	got := s.Get("projects")
	got[0] = "mutated"
	assert.Equal(t, []string{"Home"}, s.Get("projects"))
	assert.Equal(t, []string{}, s.Get("tasks/Home"))
}

func TestStore_UnsubscribeByPath(t *testing.T) {
	s := New(nil)
	defer s.Close()
	ctx := context.Background()

	w := remotetest.NewWatcher(0)
	_, err := s.Subscribe(ctx, "tasks/Home", w.Listener())
	require.NoError(t, err)
	w.WaitFor(t, []string{})

	s.Unsubscribe("tasks/Home")
	s.Unsubscribe("tasks/Nobody")
	require.NoError(t, s.Set(ctx, "tasks/Home", []string{"x"}))
	w.Quiet(t, 100*time.Millisecond, []string{"x"})
}

func TestStore_ClosedRejectsCalls(t *testing.T) {
	s := New(nil)
	require.NoError(t, s.Close())
	ctx := context.Background()

	assert.ErrorIs(t, s.Set(ctx, "projects", nil), remote.ErrClosed)
	_, err := s.Subscribe(ctx, "projects", func([]string) {})
	assert.ErrorIs(t, err, remote.ErrClosed)
}

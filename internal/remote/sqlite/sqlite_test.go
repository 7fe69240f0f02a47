package sqlite

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tasklist-cli/internal/remote"
	"tasklist-cli/internal/remote/remotetest"
)

func openAt(t *testing.T, path string, opts Options) *Store {
	t.Helper()
	opts.Path = path
	s, err := Open(context.Background(), opts)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestStore_Contract(t *testing.T) {
	var shared string
	remotetest.Run(t, remotetest.Harness{
		Open: func(t *testing.T) remote.Store {
			shared = filepath.Join(t.TempDir(), "lists.db")
			return openAt(t, shared, Options{PollInterval: 20 * time.Millisecond})
		},
		OpenPeer: func(t *testing.T) remote.Store {
			return openAt(t, shared, Options{PollInterval: 20 * time.Millisecond})
		},
	})
}

func TestStore_ValuesSurviveReopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "lists.db")

	s, err := Open(ctx, Options{Path: path, PollInterval: -1})
	require.NoError(t, err)
	require.NoError(t, s.Set(ctx, "tasks/Home", []string{"Buy milk", "Walk dog"}))
	require.NoError(t, s.Close())

	s2 := openAt(t, path, Options{PollInterval: -1})
	got, err := s2.Get(ctx, "tasks/Home")
	require.NoError(t, err)
	assert.Equal(t, []string{"Buy milk", "Walk dog"}, got)
}

func TestStore_PollPicksUpOtherWriterOnTick(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "lists.db")
	clock := clockwork.NewFakeClock()

	reader := openAt(t, path, Options{PollInterval: time.Second, Clock: clock})
	writer := openAt(t, path, Options{PollInterval: -1})

	w := remotetest.NewWatcher(2 * time.Second)
	sub, err := reader.Subscribe(ctx, "projects", w.Listener())
	require.NoError(t, err)
	defer sub.Close()
	w.WaitFor(t, []string{})

	require.NoError(t, writer.Set(ctx, "projects", []string{"Home"}))
	w.Quiet(t, 50*time.Millisecond, []string{"Home"})

	waitCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	require.NoError(t, clock.BlockUntilContext(waitCtx, 1))
	clock.Advance(time.Second)
	w.WaitFor(t, []string{"Home"})
}

func TestStore_OwnWritesAreNotRepublishedByPoll(t *testing.T) {
	ctx := context.Background()
	s := openAt(t, filepath.Join(t.TempDir(), "lists.db"), Options{PollInterval: -1})

	n := 0
	done := make(chan struct{}, 8)
	sub, err := s.Subscribe(ctx, "projects", func([]string) {
		n++
		done <- struct{}{}
	})
	require.NoError(t, err)
	defer sub.Close()
	<-done

	require.NoError(t, s.Set(ctx, "projects", []string{"Home"}))
	<-done
	require.NoError(t, s.poll(ctx))

	select {
	case <-done:
		t.Fatalf("poll republished a value this store wrote")
	case <-time.After(50 * time.Millisecond):
	}
	assert.Equal(t, 2, n)
}

func TestStore_ClosedRejectsCalls(t *testing.T) {
	ctx := context.Background()
	s, err := Open(ctx, Options{Path: filepath.Join(t.TempDir(), "lists.db"), PollInterval: -1})
	require.NoError(t, err)
	require.NoError(t, s.Close())
	require.NoError(t, s.Close())

	assert.ErrorIs(t, s.Set(ctx, "projects", nil), remote.ErrClosed)
	_, err = s.Subscribe(ctx, "projects", func([]string) {})
	assert.ErrorIs(t, err, remote.ErrClosed)
}

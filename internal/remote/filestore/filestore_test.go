package filestore

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tasklist-cli/internal/remote"
	"tasklist-cli/internal/remote/remotetest"
)

func openDir(t *testing.T, dir string) *Store {
	t.Helper()
	s, err := Open(dir, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestStore_Contract(t *testing.T) {
	var shared string
	remotetest.Run(t, remotetest.Harness{
		Open: func(t *testing.T) remote.Store {
			shared = t.TempDir()
			return openDir(t, shared)
		},
		OpenPeer: func(t *testing.T) remote.Store {
			return openDir(t, shared)
		},
	})
}

func TestFileName_EscapesSlashes(t *testing.T) {
	assert.Equal(t, "projects.json", FileName("projects"))
	assert.Equal(t, "tasks%2FHome.json", FileName("tasks/Home"))
	assert.Equal(t, "tasks%2Fa%2Fb.json", FileName("tasks/a/b"))

	p, ok := PathFromFileName(FileName("tasks/a/b"))
	require.True(t, ok)
	assert.Equal(t, "tasks/a/b", p)

	_, ok = PathFromFileName(".tmp-123")
	assert.False(t, ok)
	_, ok = PathFromFileName("notes.txt")
	assert.False(t, ok)
}

func TestStore_ForeignWriteIsPublished(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	s := openDir(t, dir)

	w := remotetest.NewWatcher(3 * time.Second)
	sub, err := s.Subscribe(ctx, "tasks/Home", w.Listener())
	require.NoError(t, err)
	defer sub.Close()
	w.WaitFor(t, []string{})

	require.NoError(t, os.WriteFile(filepath.Join(dir, FileName("tasks/Home")), []byte(`["Buy milk"]`), 0o644))
	w.WaitFor(t, []string{"Buy milk"})

	require.NoError(t, os.Remove(filepath.Join(dir, FileName("tasks/Home"))))
	w.WaitFor(t, []string{})
}

func (s *Store) watching(path string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.seen[path]
	return ok
}

func TestStore_ClosedPathIsForgotten(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	s := openDir(t, dir)

	w := remotetest.NewWatcher(3 * time.Second)
	sub, err := s.Subscribe(ctx, "tasks/Home", w.Listener())
	require.NoError(t, err)
	w.WaitFor(t, []string{})
	require.True(t, s.watching("tasks/Home"))
	require.NoError(t, sub.Close())

	require.NoError(t, os.WriteFile(filepath.Join(dir, FileName("tasks/Home")), []byte(`["Buy milk"]`), 0o644))
	require.Eventually(t, func() bool { return !s.watching("tasks/Home") }, 3*time.Second, 10*time.Millisecond)
	w.Quiet(t, 50*time.Millisecond, []string{"Buy milk"})

	// Writes to unwatched paths are not tracked at all.
	require.NoError(t, s.Set(ctx, "tasks/Work", []string{"Plan"}))
	assert.False(t, s.watching("tasks/Work"))

	_, err = s.Subscribe(ctx, "projects", func([]string) {})
	require.NoError(t, err)
	s.Unsubscribe("projects")
	assert.False(t, s.watching("projects"))
}

func TestStore_CorruptFileFailsSubscribe(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "projects.json"), []byte("{not json"), 0o644))
	s := openDir(t, dir)

	_, err := s.Subscribe(context.Background(), "projects", func([]string) {})
	assert.Error(t, err)
}

func TestStore_NoTempFilesLeftBehind(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	s := openDir(t, dir)
	require.NoError(t, s.Set(ctx, "projects", []string{"Home"}))
	require.NoError(t, s.Set(ctx, "tasks/Home", []string{"a", "b"}))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	var names []string
	for _, e := range entries {
		names = append(names, e.Name())
	}
	assert.ElementsMatch(t, []string{"projects.json", "tasks%2FHome.json"}, names)
}

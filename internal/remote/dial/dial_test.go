package dial

import (
	"context"
	"net/url"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tasklist-cli/internal/remote/filestore"
	"tasklist-cli/internal/remote/memory"
	"tasklist-cli/internal/remote/sqlite"
)

func TestOpen_Memory(t *testing.T) {
	s, err := Open(context.Background(), "memory:", Options{})
	require.NoError(t, err)
	defer s.Close()
	_, ok := s.(*memory.Store)
	assert.True(t, ok, "got %T", s)
}

func TestOpen_SQLiteAbsolute(t *testing.T) {
	p := filepath.Join(t.TempDir(), "lists.db")
	s, err := Open(context.Background(), "sqlite://"+filepath.ToSlash(p), Options{PollInterval: -1})
	require.NoError(t, err)
	defer s.Close()
	_, ok := s.(*sqlite.Store)
	assert.True(t, ok, "got %T", s)
	assert.FileExists(t, p)
}

func TestOpen_FileDir(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "lists")
	s, err := Open(context.Background(), "file://"+filepath.ToSlash(dir), Options{})
	require.NoError(t, err)
	defer s.Close()
	_, ok := s.(*filestore.Store)
	assert.True(t, ok, "got %T", s)
	assert.DirExists(t, dir)
}

func TestOpen_Rejects(t *testing.T) {
	for _, raw := range []string{"", "nope://x", "sqlite://remotehost/db", "file:", "::"} {
		_, err := Open(context.Background(), raw, Options{})
		assert.Error(t, err, raw)
	}
}

func TestLocalPath_Forms(t *testing.T) {
	cases := map[string]string{
		"sqlite:///var/lib/x.db":     "/var/lib/x.db",
		"sqlite:rel/x.db":            "rel/x.db",
		"file://localhost/tmp/lists": "/tmp/lists",
	}
	for raw, want := range cases {
		u, err := url.Parse(raw)
		require.NoError(t, err)
		got, err := localPath(u)
		require.NoError(t, err, raw)
		assert.Equal(t, filepath.FromSlash(want), got, raw)
	}
}

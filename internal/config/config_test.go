package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// unsetEnv clears name for the duration of the test and restores it afterwards.
func unsetEnv(t *testing.T, names ...string) {
	t.Helper()
	for _, name := range names {
		t.Setenv(name, "")
		require.NoError(t, os.Unsetenv(name))
	}
}

var allVars = []string{
	"TASKLIST_STORE", "TASKLIST_ADDR", "TASKLIST_FORMAT", "TASKLIST_SELECTION",
	"TASKLIST_REDIS_PREFIX", "TASKLIST_POLL_INTERVAL",
	"TASKLIST_LOG_LEVEL", "TASKLIST_LOG_FORMAT", "TASKLIST_LOG_FILE",
}

func TestLoad_Defaults(t *testing.T) {
	unsetEnv(t, allVars...)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "", cfg.Store)
	assert.Equal(t, ":7777", cfg.Addr)
	assert.Equal(t, "json", cfg.Format)
	assert.Equal(t, "reselect", cfg.Selection)
	assert.Equal(t, "tasklist:", cfg.RedisPrefix)
	assert.Equal(t, 500*time.Millisecond, cfg.PollInterval)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, "text", cfg.LogFormat)
}

func TestLoad_FromEnvironment(t *testing.T) {
	unsetEnv(t, allVars...)
	t.Setenv("TASKLIST_STORE", "redis://localhost:6379/0")
	t.Setenv("TASKLIST_FORMAT", "edn")
	t.Setenv("TASKLIST_POLL_INTERVAL", "2s")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "redis://localhost:6379/0", cfg.Store)
	assert.Equal(t, "edn", cfg.Format)
	assert.Equal(t, 2*time.Second, cfg.PollInterval)
}

func TestLoad_DotenvFile(t *testing.T) {
	unsetEnv(t, allVars...)
	t.Setenv("TASKLIST_ADDR", ":9000")

	path := filepath.Join(t.TempDir(), "test.env")
	content := strings.Join([]string{
		"TASKLIST_STORE=memory:",
		"TASKLIST_ADDR=:1234",
		"TASKLIST_SELECTION=keep",
	}, "\n")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "memory:", cfg.Store)
	assert.Equal(t, ":9000", cfg.Addr, "environment wins over dotenv")
	assert.Equal(t, "keep", cfg.Selection)
}

func TestLoad_MissingDotenvFileIsAnError(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.env"))
	require.Error(t, err)
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		key     string
		value   string
		wantErr string
	}{
		{"bad format", "TASKLIST_FORMAT", "yaml", "TASKLIST_FORMAT"},
		{"bad selection", "TASKLIST_SELECTION", "random", "TASKLIST_SELECTION"},
		{"zero poll", "TASKLIST_POLL_INTERVAL", "0s", "TASKLIST_POLL_INTERVAL"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			unsetEnv(t, allVars...)
			t.Setenv(tt.key, tt.value)

			_, err := Load()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestStoreURL_DefaultsToSQLiteUnderHome(t *testing.T) {
	home := t.TempDir()
	t.Setenv("TASKLIST_HOME", home)

	cfg := &Config{}
	u, err := cfg.StoreURL()
	require.NoError(t, err)
	assert.Equal(t, "sqlite://"+filepath.ToSlash(filepath.Join(home, "lists.db")), u)

	cfg.Store = "memory:"
	u, err = cfg.StoreURL()
	require.NoError(t, err)
	assert.Equal(t, "memory:", u)
}

// Package dial opens a remote.Store from a URL.
package dial

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"path/filepath"
	"strings"
	"time"

	"tasklist-cli/internal/remote"
	"tasklist-cli/internal/remote/filestore"
	"tasklist-cli/internal/remote/memory"
	"tasklist-cli/internal/remote/redis"
	"tasklist-cli/internal/remote/sqlite"
	"tasklist-cli/internal/remote/wsclient"
)

type Options struct {
	Logger *slog.Logger
	// RedisPrefix namespaces keys and channels for redis:// stores.
	RedisPrefix string
	// PollInterval is how often sqlite:// stores look for other processes' writes.
	PollInterval time.Duration
}

// Open understands:
//
//	memory:
//	sqlite:///abs/path.db   sqlite:relative.db
//	file:///abs/dir         file:relative/dir
//	redis://host:6379/0     rediss://...
//	ws://host:7777/ws       wss://...
func Open(ctx context.Context, rawURL string, opts Options) (remote.Store, error) {
	rawURL = strings.TrimSpace(rawURL)
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("invalid store url %q: %w", rawURL, err)
	}

	switch u.Scheme {
	case "memory", "mem":
		return memory.New(opts.Logger), nil
	case "sqlite":
		p, err := localPath(u)
		if err != nil {
			return nil, err
		}
		return sqlite.Open(ctx, sqlite.Options{Path: p, PollInterval: opts.PollInterval, Logger: opts.Logger})
	case "file":
		p, err := localPath(u)
		if err != nil {
			return nil, err
		}
		return filestore.Open(p, opts.Logger)
	case "redis", "rediss":
		return redis.Open(ctx, redis.Options{URL: rawURL, Prefix: opts.RedisPrefix, Logger: opts.Logger})
	case "ws", "wss":
		return wsclient.Dial(ctx, rawURL, wsclient.Options{Logger: opts.Logger})
	case "":
		return nil, fmt.Errorf("store url %q has no scheme (try memory:, sqlite:, file:, redis:// or ws://)", rawURL)
	default:
		return nil, fmt.Errorf("unsupported store scheme %q", u.Scheme)
	}
}

// localPath accepts both "scheme:///abs" and "scheme:rel" forms.
func localPath(u *url.URL) (string, error) {
	p := u.Path
	if u.Opaque != "" {
		p = u.Opaque
	}
	if u.Host != "" && u.Host != "localhost" {
		return "", fmt.Errorf("%s url must not name a remote host (%q)", u.Scheme, u.Host)
	}
	if strings.TrimSpace(p) == "" {
		return "", fmt.Errorf("%s url is missing a path", u.Scheme)
	}
	return filepath.FromSlash(p), nil
}

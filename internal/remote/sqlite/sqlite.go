// Package sqlite is a durable remote.Store on a local SQLite file.
//
// Writers in this process notify subscribers directly. Writes from other
// processes sharing the file are picked up by polling PRAGMA data_version on a
// dedicated connection, so several viewers on one machine stay in sync.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	_ "modernc.org/sqlite"

	"tasklist-cli/internal/model"
	"tasklist-cli/internal/remote"
)

const DefaultPollInterval = 500 * time.Millisecond

type Options struct {
	Path string
	// PollInterval controls how often other processes' writes are detected.
	// Negative disables polling.
	PollInterval time.Duration
	Clock        clockwork.Clock
	Logger       *slog.Logger
}

type Store struct {
	db       *sql.DB
	pollConn *sql.Conn
	hub      *remote.Hub
	clock    clockwork.Clock
	logger   *slog.Logger

	mu          sync.Mutex
	seen        map[string]int64
	dataVersion int64
	closed      bool

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func Open(ctx context.Context, opts Options) (*Store, error) {
	if opts.Path == "" {
		return nil, errors.New("sqlite: missing path")
	}
	if opts.Clock == nil {
		opts.Clock = clockwork.NewRealClock()
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.PollInterval == 0 {
		opts.PollInterval = DefaultPollInterval
	}
	if err := os.MkdirAll(filepath.Dir(opts.Path), 0o755); err != nil {
		return nil, fmt.Errorf("sqlite: create dir: %w", err)
	}

	// modernc.org/sqlite driver name is "sqlite".
	db, err := sql.Open("sqlite", dsn(opts.Path))
	if err != nil {
		return nil, err
	}
	if err := migrate(ctx, db); err != nil {
		_ = db.Close()
		return nil, err
	}
	pollConn, err := db.Conn(ctx)
	if err != nil {
		_ = db.Close()
		return nil, err
	}

	s := &Store{
		db:       db,
		pollConn: pollConn,
		hub:      remote.NewHub(opts.Logger),
		clock:    opts.Clock,
		logger:   opts.Logger.With("store", "sqlite", "path", opts.Path),
		seen:     make(map[string]int64),
	}
	if s.dataVersion, err = s.readDataVersion(ctx); err != nil {
		_ = s.closeDB()
		return nil, err
	}

	pollCtx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	if opts.PollInterval > 0 {
		s.wg.Add(1)
		go s.pollLoop(pollCtx, opts.PollInterval)
	}
	return s, nil
}

// Pragmas go in the DSN so every pooled connection gets them.
// WAL enables one writer + many readers; busy_timeout avoids "database is locked" flakiness.
func dsn(path string) string {
	q := url.Values{}
	for _, p := range []string{
		"journal_mode(WAL)",
		"synchronous(NORMAL)",
		"busy_timeout(5000)",
	} {
		q.Add("_pragma", p)
	}
	return "file:" + path + "?" + q.Encode()
}

func migrate(ctx context.Context, db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS meta (
			k TEXT PRIMARY KEY,
			v TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS lists (
			path TEXT PRIMARY KEY,
			items_json TEXT NOT NULL,
			version INTEGER NOT NULL,
			updated_at_unixms INTEGER NOT NULL
		);`,
		`INSERT OR IGNORE INTO meta(k, v) VALUES('schema_version', '1');`,
	}
	for _, stmt := range stmts {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("sqlite: migrate: %w", err)
		}
	}
	return nil
}

func (s *Store) Subscribe(ctx context.Context, path string, fn remote.Listener) (remote.Subscription, error) {
	if err := remote.ValidatePath(path); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, remote.ErrClosed
	}
	items, version, err := s.load(ctx, path)
	if err != nil {
		return nil, err
	}
	sub, err := s.hub.Add(path, fn)
	if err != nil {
		return nil, err
	}
	s.seen[path] = version
	sub.Deliver(items)
	return sub, nil
}

func (s *Store) Set(ctx context.Context, path string, items []string) error {
	if err := remote.ValidatePath(path); err != nil {
		return err
	}
	items = model.CloneList(items)
	raw, err := json.Marshal(items)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return remote.ErrClosed
	}
	var version int64
	err = s.db.QueryRowContext(ctx, `INSERT INTO lists(path, items_json, version, updated_at_unixms)
		VALUES(?, ?, 1, ?)
		ON CONFLICT(path) DO UPDATE SET
			items_json = excluded.items_json,
			version = lists.version + 1,
			updated_at_unixms = excluded.updated_at_unixms
		RETURNING version`,
		path, string(raw), s.clock.Now().UTC().UnixMilli(),
	).Scan(&version)
	if err != nil {
		return fmt.Errorf("sqlite: set %s: %w", path, err)
	}
	s.seen[path] = version
	s.hub.Publish(path, items)
	return nil
}

// Get reads the stored value without subscribing.
func (s *Store) Get(ctx context.Context, path string) ([]string, error) {
	items, _, err := s.load(ctx, path)
	return items, err
}

// Unsubscribe drops every subscription on path.
func (s *Store) Unsubscribe(path string) {
	s.hub.Unsubscribe(path)
}

func (s *Store) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.mu.Unlock()

	s.cancel()
	s.wg.Wait()
	s.hub.Close()
	return s.closeDB()
}

func (s *Store) closeDB() error {
	_ = s.pollConn.Close()
	return s.db.Close()
}

func (s *Store) load(ctx context.Context, path string) ([]string, int64, error) {
	var raw string
	var version int64
	err := s.db.QueryRowContext(ctx, `SELECT items_json, version FROM lists WHERE path = ?`, path).Scan(&raw, &version)
	if errors.Is(err, sql.ErrNoRows) {
		return []string{}, 0, nil
	}
	if err != nil {
		return nil, 0, fmt.Errorf("sqlite: load %s: %w", path, err)
	}
	var items []string
	if err := json.Unmarshal([]byte(raw), &items); err != nil {
		return nil, 0, fmt.Errorf("sqlite: decode %s: %w", path, err)
	}
	return model.CloneList(items), version, nil
}

func (s *Store) readDataVersion(ctx context.Context) (int64, error) {
	var v int64
	if err := s.pollConn.QueryRowContext(ctx, `PRAGMA data_version`).Scan(&v); err != nil {
		return 0, fmt.Errorf("sqlite: data_version: %w", err)
	}
	return v, nil
}

func (s *Store) pollLoop(ctx context.Context, interval time.Duration) {
	defer s.wg.Done()
	ticker := s.clock.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.Chan():
			if err := s.poll(ctx); err != nil && ctx.Err() == nil {
				s.logger.Warn("poll failed", "error", err)
			}
		}
	}
}

// poll republishes every subscribed path whose row version moved since the last
// publish. data_version only changes when another connection committed.
func (s *Store) poll(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	v, err := s.readDataVersion(ctx)
	if err != nil {
		return err
	}
	if v == s.dataVersion {
		return nil
	}
	s.dataVersion = v

	for _, path := range s.hub.Paths() {
		items, version, err := s.load(ctx, path)
		if err != nil {
			return err
		}
		if version == s.seen[path] {
			continue
		}
		s.seen[path] = version
		s.logger.Debug("external change", "list", path, "version", version)
		s.hub.Publish(path, items)
	}
	return nil
}

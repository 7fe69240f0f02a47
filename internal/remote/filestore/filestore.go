// Package filestore keeps each list as a JSON file in a directory and watches
// the directory with fsnotify, so any process writing there (or a synced
// folder) reaches every subscriber.
package filestore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"

	"tasklist-cli/internal/model"
	"tasklist-cli/internal/remote"
)

const fileExt = ".json"

type Store struct {
	dir     string
	hub     *remote.Hub
	watcher *fsnotify.Watcher
	logger  *slog.Logger

	mu sync.Mutex
	// seen holds the last content published per watched path.
	seen   map[string]string
	closed bool

	done chan struct{}
	wg   sync.WaitGroup
}

func Open(dir string, logger *slog.Logger) (*Store, error) {
	if strings.TrimSpace(dir) == "" {
		return nil, errors.New("filestore: missing directory")
	}
	if logger == nil {
		logger = slog.Default()
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("filestore: create dir: %w", err)
	}
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create fsnotify watcher: %w", err)
	}
	if err := w.Add(dir); err != nil {
		_ = w.Close()
		return nil, fmt.Errorf("failed to watch %s: %w", dir, err)
	}

	s := &Store{
		dir:     dir,
		hub:     remote.NewHub(logger),
		watcher: w,
		logger:  logger.With("store", "file", "dir", dir),
		seen:    make(map[string]string),
		done:    make(chan struct{}),
	}
	s.wg.Add(1)
	go s.processEvents()
	return s, nil
}

// FileName maps a list path to its file name. Slashes are escaped so every
// path is a single flat file.
func FileName(path string) string {
	return url.PathEscape(path) + fileExt
}

// PathFromFileName reverses FileName. ok is false for files the store did not write.
func PathFromFileName(name string) (string, bool) {
	if strings.HasPrefix(name, ".") || !strings.HasSuffix(name, fileExt) {
		return "", false
	}
	p, err := url.PathUnescape(strings.TrimSuffix(name, fileExt))
	if err != nil || remote.ValidatePath(p) != nil {
		return "", false
	}
	return p, true
}

func (s *Store) Subscribe(_ context.Context, path string, fn remote.Listener) (remote.Subscription, error) {
	if err := remote.ValidatePath(path); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, remote.ErrClosed
	}
	items, raw, err := s.read(path)
	if err != nil {
		return nil, err
	}
	sub, err := s.hub.Add(path, fn)
	if err != nil {
		return nil, err
	}
	s.seen[path] = raw
	sub.Deliver(items)
	return sub, nil
}

func (s *Store) Set(_ context.Context, path string, items []string) error {
	if err := remote.ValidatePath(path); err != nil {
		return err
	}
	items = model.CloneList(items)
	b, err := json.Marshal(items)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return remote.ErrClosed
	}
	if err := s.writeAtomic(FileName(path), b); err != nil {
		return fmt.Errorf("filestore: set %s: %w", path, err)
	}
	if s.hub.Subscribed(path) {
		s.seen[path] = string(b)
	}
	s.hub.Publish(path, items)
	return nil
}

// Get reads the stored value without subscribing.
func (s *Store) Get(_ context.Context, path string) ([]string, error) {
	items, _, err := s.read(path)
	return items, err
}

// Unsubscribe drops every subscription on path.
func (s *Store) Unsubscribe(path string) {
	s.hub.Unsubscribe(path)
	s.mu.Lock()
	delete(s.seen, path)
	s.mu.Unlock()
}

func (s *Store) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.mu.Unlock()

	close(s.done)
	err := s.watcher.Close()
	s.wg.Wait()
	s.hub.Close()
	return err
}

// writeAtomic writes via temp file + rename so watchers never read a torn file.
func (s *Store) writeAtomic(name string, b []byte) error {
	tmp, err := os.CreateTemp(s.dir, ".tmp-*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(b); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return err
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return err
	}
	if err := os.Rename(tmpName, filepath.Join(s.dir, name)); err != nil {
		_ = os.Remove(tmpName)
		return err
	}
	return nil
}

// read returns the decoded list and its canonical JSON. A missing file is an empty list.
func (s *Store) read(path string) ([]string, string, error) {
	b, err := os.ReadFile(filepath.Join(s.dir, FileName(path)))
	if errors.Is(err, os.ErrNotExist) {
		return []string{}, "[]", nil
	}
	if err != nil {
		return nil, "", fmt.Errorf("filestore: read %s: %w", path, err)
	}
	var items []string
	if err := json.Unmarshal(b, &items); err != nil {
		return nil, "", fmt.Errorf("filestore: decode %s: %w", path, err)
	}
	items = model.CloneList(items)
	canon, _ := json.Marshal(items)
	return items, string(canon), nil
}

func (s *Store) processEvents() {
	defer s.wg.Done()
	for {
		select {
		case <-s.done:
			return
		case ev, ok := <-s.watcher.Events:
			if !ok {
				return
			}
			if !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Remove) && !ev.Has(fsnotify.Rename) {
				continue
			}
			path, ok := PathFromFileName(filepath.Base(ev.Name))
			if !ok {
				continue
			}
			s.refresh(path)
		case err, ok := <-s.watcher.Errors:
			if !ok {
				return
			}
			s.logger.Warn("watch error", "error", err)
		}
	}
}

// refresh republishes path if its file no longer matches what subscribers last saw.
func (s *Store) refresh(path string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	prev, watched := s.seen[path]
	if !watched {
		return
	}
	if !s.hub.Subscribed(path) {
		// Last subscription closed since the file was read.
		delete(s.seen, path)
		return
	}
	items, raw, err := s.read(path)
	if err != nil {
		// Partially written by a foreign writer; the next event will carry the final content.
		s.logger.Debug("skipping unreadable list file", "list", path, "error", err)
		return
	}
	if raw == prev {
		return
	}
	s.seen[path] = raw
	s.logger.Debug("external change", "list", path)
	s.hub.Publish(path, items)
}

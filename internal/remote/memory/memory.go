// Package memory is an in-process remote.Store. It backs tests and the
// `memory:` store URL.
package memory

import (
	"context"
	"log/slog"
	"sync"

	"tasklist-cli/internal/model"
	"tasklist-cli/internal/remote"
)

type Store struct {
	hub *remote.Hub

	mu     sync.Mutex
	values map[string][]string
	closed bool
}

func New(logger *slog.Logger) *Store {
	return &Store{
		hub:    remote.NewHub(logger),
		values: make(map[string][]string),
	}
}

func (s *Store) Subscribe(ctx context.Context, path string, fn remote.Listener) (remote.Subscription, error) {
	if err := remote.ValidatePath(path); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, remote.ErrClosed
	}
	sub, err := s.hub.Add(path, fn)
	if err != nil {
		return nil, err
	}
	sub.Deliver(s.values[path])
	return sub, nil
}

func (s *Store) Set(ctx context.Context, path string, items []string) error {
	if err := remote.ValidatePath(path); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return remote.ErrClosed
	}
	v := model.CloneList(items)
	s.values[path] = v
	s.hub.Publish(path, v)
	return nil
}

// Get returns the stored value without subscribing.
func (s *Store) Get(path string) []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return model.CloneList(s.values[path])
}

// Unsubscribe drops every subscription on path.
func (s *Store) Unsubscribe(path string) {
	s.hub.Unsubscribe(path)
}

func (s *Store) Close() error {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	s.hub.Close()
	return nil
}

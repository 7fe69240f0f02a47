// Package remote defines the path-addressed store the controller syncs through.
//
// A path maps to an ordered sequence of strings. Writers overwrite the whole
// sequence with Set; readers Subscribe and receive the current value right away
// and again after every change. A missing value is delivered as an empty list.
// There is no transactional guarantee between different paths.
//
// Backends live in subpackages (memory, sqlite, filestore, redis, wsclient) and
// are chosen by URL through the dial package.
package remote

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrClosed is returned by operations on a closed store or subscription.
	ErrClosed = errors.New("remote: closed")
	// ErrInvalidPath is returned for paths the store cannot address.
	ErrInvalidPath = errors.New("remote: invalid path")
)

// Listener receives the full value at a path. It is never passed nil.
type Listener func(items []string)

// Subscription is the handle returned by Subscribe.
type Subscription interface {
	Path() string
	// Close stops further deliveries. A delivery already dispatched may still
	// complete; callers needing a hard cut-off keep their own generation check.
	Close() error
}

// Store is the remote sync adapter contract.
type Store interface {
	Subscribe(ctx context.Context, path string, fn Listener) (Subscription, error)
	// Set overwrites the entire value at path.
	Set(ctx context.Context, path string, items []string) error
	Close() error
}

// ValidatePath rejects paths no backend can represent.
func ValidatePath(path string) error {
	if path == "" {
		return fmt.Errorf("%w: empty", ErrInvalidPath)
	}
	if strings.HasPrefix(path, "/") {
		return fmt.Errorf("%w: %q has a leading slash", ErrInvalidPath, path)
	}
	if strings.ContainsRune(path, 0) {
		return fmt.Errorf("%w: %q contains NUL", ErrInvalidPath, path)
	}
	return nil
}

package controller

import (
	"errors"
	"fmt"
)

// ErrNoProjectSelected is returned by task operations before any project is viewed.
var ErrNoProjectSelected = errors.New("no project selected")

// WriteError reports a failed Set. It is not fatal: local state has already
// moved on and the next push from the store decides what is shown.
type WriteError struct {
	Path string
	Err  error
}

func (e *WriteError) Error() string { return fmt.Sprintf("write %s: %v", e.Path, e.Err) }
func (e *WriteError) Unwrap() error { return e.Err }

// SubscribeError reports a subscription that could not be set up.
type SubscribeError struct {
	Path string
	Err  error
}

func (e *SubscribeError) Error() string { return fmt.Sprintf("subscribe %s: %v", e.Path, e.Err) }
func (e *SubscribeError) Unwrap() error { return e.Err }

// Package orderedlist computes index-addressed mutations of ordered sequences.
//
// Nothing here holds list state. Callers pass the current sequence on every
// call and receive a fresh slice back; the input is never modified. Out-of-range
// indices are a no-op, never an error.
package orderedlist

import "slices"

// MoveUp swaps the element at i with the one before it.
func MoveUp[T any](items []T, i int) ([]T, bool) {
	if i <= 0 || i >= len(items) {
		return items, false
	}
	return swap(items, i, i-1), true
}

// MoveDown swaps the element at i with the one after it.
func MoveDown[T any](items []T, i int) ([]T, bool) {
	if i < 0 || i >= len(items)-1 {
		return items, false
	}
	return swap(items, i, i+1), true
}

// Delete removes exactly the element at i.
func Delete[T any](items []T, i int) ([]T, bool) {
	if i < 0 || i >= len(items) {
		return items, false
	}
	out := make([]T, 0, len(items)-1)
	out = append(out, items[:i]...)
	out = append(out, items[i+1:]...)
	return out, true
}

// Append returns a new sequence with v added at the end.
func Append[T any](items []T, v T) []T {
	out := make([]T, 0, len(items)+1)
	out = append(out, items...)
	return append(out, v)
}

// Move removes the element at from and reinserts it at to, where to is an index
// in the sequence after removal and is clamped into range.
func Move[T any](items []T, from, to int) ([]T, bool) {
	if from < 0 || from >= len(items) {
		return items, false
	}
	if to < 0 {
		to = 0
	}
	if to > len(items)-1 {
		to = len(items) - 1
	}
	if to == from {
		return items, false
	}
	moved := items[from]
	rest, _ := Delete(items, from)
	out := make([]T, 0, len(items))
	out = append(out, rest[:to]...)
	out = append(out, moved)
	out = append(out, rest[to:]...)
	return out, true
}

func swap[T any](items []T, a, b int) []T {
	out := slices.Clone(items)
	out[a], out[b] = out[b], out[a]
	return out
}

// Manager binds the list operations to a single change callback. The callback
// fires once per successful mutation with the full new sequence.
type Manager[T any] struct {
	onChange func([]T)
}

func NewManager[T any](onChange func([]T)) *Manager[T] {
	return &Manager[T]{onChange: onChange}
}

func (m *Manager[T]) MoveUp(items []T, i int) bool {
	return m.emit(MoveUp(items, i))
}

func (m *Manager[T]) MoveDown(items []T, i int) bool {
	return m.emit(MoveDown(items, i))
}

func (m *Manager[T]) Delete(items []T, i int) bool {
	return m.emit(Delete(items, i))
}

func (m *Manager[T]) Move(items []T, from, to int) bool {
	return m.emit(Move(items, from, to))
}

func (m *Manager[T]) Append(items []T, v T) bool {
	return m.emit(Append(items, v), true)
}

func (m *Manager[T]) emit(next []T, changed bool) bool {
	if !changed {
		return false
	}
	if m.onChange != nil {
		m.onChange(next)
	}
	return true
}

package cli

import "fmt"

type notFoundError struct {
	kind string
	id   string
}

func (e notFoundError) Error() string {
	return fmt.Sprintf("%s not found: %s", e.kind, e.id)
}

func errNotFound(kind, id string) error {
	return notFoundError{kind: kind, id: id}
}

type badIndexError struct {
	arg string
}

func (e badIndexError) Error() string {
	return fmt.Sprintf("invalid index %q: expected a non-negative integer", e.arg)
}

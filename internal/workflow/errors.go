package workflow

import (
	"fmt"

	"github.com/tccjustin/axon/internal/resolver"
)

// NotFoundError means a resource could not be located within its search
// bounds. It matches resolver.ErrNotFound.
type NotFoundError struct {
	Key    string
	Root   string
	Target string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s: %q not found under %s", e.Key, e.Target, e.Root)
}

func (e *NotFoundError) Unwrap() error {
	return resolver.ErrNotFound
}

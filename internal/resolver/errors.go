package resolver

import (
	"errors"
	"fmt"
	"time"
)

var (
	// ErrNotFound means no match exists within the searched bounds.
	ErrNotFound = errors.New("target not found")
	// ErrInvalidRequest means the search arguments were rejected.
	ErrInvalidRequest = errors.New("invalid search request")
)

// SearchError is returned only when the search root itself cannot be read.
type SearchError struct {
	Path  string
	Cause error
}

func (e *SearchError) Error() string {
	return fmt.Sprintf("cannot read search root %s: %v", e.Path, e.Cause)
}

func (e *SearchError) Unwrap() error {
	return e.Cause
}

// StaleError reports an artefact older than the allowed age.
type StaleError struct {
	Path   string
	Age    time.Duration
	MaxAge time.Duration
}

func (e *StaleError) Error() string {
	return fmt.Sprintf("%s is stale: modified %s ago (limit %s)", e.Path, e.Age.Round(time.Second), e.MaxAge)
}

package fs

import (
	"errors"
	"fmt"
)

// ErrNotUTF8 is matched by errors from ReadFile on binary content.
var ErrNotUTF8 = errors.New("content is not valid UTF-8")

// WriteError reports which stage of an atomic WriteFile failed. Temp is the
// scratch file next to Path; it never survives a failed write.
type WriteError struct {
	Path  string
	Temp  string
	Stage string
	Cause error
}

func (e *WriteError) Error() string {
	if e.Temp == "" {
		return fmt.Sprintf("write %s: %s: %v", e.Path, e.Stage, e.Cause)
	}
	return fmt.Sprintf("write %s (via %s): %s: %v", e.Path, e.Temp, e.Stage, e.Cause)
}

func (e *WriteError) Unwrap() error { return e.Cause }

type EncodingError struct {
	Path string
}

func (e *EncodingError) Error() string {
	return fmt.Sprintf("file %s is not valid UTF-8", e.Path)
}

func (e *EncodingError) Is(target error) bool { return target == ErrNotUTF8 }

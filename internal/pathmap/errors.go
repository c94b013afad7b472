package pathmap

import (
	"errors"
	"fmt"
)

var (
	ErrUnknownConvention = errors.New("unknown path convention")
	ErrUnknownExtraction = errors.New("unknown extraction strategy")
	ErrUnsupportedFormat = errors.New("unsupported rule file format")
)

// RuleError reports a rule that could not be compiled.
type RuleError struct {
	Rule  string
	Field string
	Cause error
}

func (e *RuleError) Error() string {
	return fmt.Sprintf("translation rule %q: invalid %s: %v", e.Rule, e.Field, e.Cause)
}
func (e *RuleError) Unwrap() error { return e.Cause }

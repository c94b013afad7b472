package executor

import (
	"fmt"
)

// CommandError represents generic command execution failures (start, execution).
type CommandError struct {
	Cmd   string
	Cause error
	Stage string // "start", "execution"
}

func (e *CommandError) Error() string {
	return fmt.Sprintf("command %s failed at %s: %v", e.Cmd, e.Stage, e.Cause)
}
func (e *CommandError) Unwrap() error { return e.Cause }

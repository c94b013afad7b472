package launcher

import (
	"fmt"
	"strings"
	"time"
)

// Target selects how completion of a launched process is observed.
type Target int

const (
	// InProcessMonitored processes report completion through their exit code.
	InProcessMonitored Target = iota
	// OutOfBandDetached processes are released after start and report
	// completion only through a sentinel file.
	OutOfBandDetached
)

func (t Target) String() string {
	switch t {
	case InProcessMonitored:
		return "monitored"
	case OutOfBandDetached:
		return "detached"
	default:
		return fmt.Sprintf("Target(%d)", int(t))
	}
}

// Command is an executable path plus arguments.
type Command struct {
	Path string
	Args []string
}

func (c Command) Argv() []string {
	return append([]string{c.Path}, c.Args...)
}

func (c Command) String() string {
	return posixLine(c.Argv())
}

// Request describes one launch.
type Request struct {
	Command Command
	Dir     string
	Target  Target
	// Hidden keeps the command text out of visible job logs by running it
	// from a staged script.
	Hidden bool
	Env    []string
}

// Outcome is the terminal result of a launch.
type Outcome int

const (
	OutcomeSucceeded Outcome = iota
	OutcomeFailed
	OutcomeCompleted
	OutcomeTimedOut
	OutcomeCancelled
)

func (o Outcome) String() string {
	switch o {
	case OutcomeSucceeded:
		return "succeeded"
	case OutcomeFailed:
		return "failed"
	case OutcomeCompleted:
		return "completed"
	case OutcomeTimedOut:
		return "timed_out"
	case OutcomeCancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

// Result is what a handle reports once done. ExitCode is -1 for detached
// launches, whose exit status is never observed.
type Result struct {
	Outcome   Outcome
	ExitCode  int
	Stdout    string
	Stderr    string
	Truncated bool
	Duration  time.Duration
}

// Success reports whether the outcome counts as a successful run.
func (r Result) Success() bool {
	return r.Outcome == OutcomeSucceeded || r.Outcome == OutcomeCompleted
}

func posixLine(argv []string) string {
	quoted := make([]string, len(argv))
	for i, a := range argv {
		quoted[i] = posixQuote(a)
	}
	return strings.Join(quoted, " ")
}

func posixQuote(s string) string {
	if s == "" {
		return "''"
	}
	if !strings.ContainsAny(s, " \t\n'\"\\$`;&|<>()*?[]#~!{}") {
		return s
	}
	return "'" + strings.ReplaceAll(s, "'", `'"'"'`) + "'"
}

func windowsLine(argv []string) string {
	quoted := make([]string, len(argv))
	for i, a := range argv {
		quoted[i] = windowsQuote(a)
	}
	return strings.Join(quoted, " ")
}

func windowsQuote(s string) string {
	if s == "" {
		return `""`
	}
	if !strings.ContainsAny(s, " \t&|<>^\"") {
		return s
	}
	return `"` + strings.ReplaceAll(s, `"`, `""`) + `"`
}

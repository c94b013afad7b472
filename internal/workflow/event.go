package workflow

import (
	"time"

	"github.com/tccjustin/axon/internal/launcher"
	"github.com/tccjustin/axon/internal/pathmap"
)

// Event is the interface for all workflow events.
// UI handles events via type switch.
type Event interface {
	isEvent()
}

// CacheHitEvent is emitted when a cached path passed re-validation.
type CacheHitEvent struct {
	Key  string
	Path string
}

func (CacheHitEvent) isEvent() {}

// ResolvedEvent is emitted when a path was found by searching.
type ResolvedEvent struct {
	Key  string
	Path string
}

func (ResolvedEvent) isEvent() {}

// TranslatedEvent is emitted when a path is rewritten for the executor.
type TranslatedEvent struct {
	From pathmap.Convention
	To   pathmap.Convention
	In   string
	Out  string
	Rule string
}

func (TranslatedEvent) isEvent() {}

// LaunchedEvent is emitted once the process has been started.
type LaunchedEvent struct {
	TaskID       string
	Target       launcher.Target
	SentinelPath string
}

func (LaunchedEvent) isEvent() {}

// WaitingEvent is emitted when the workflow starts waiting for completion.
type WaitingEvent struct {
	TaskID string
	Target launcher.Target
}

func (WaitingEvent) isEvent() {}

// FinishedEvent is emitted when the launch reached a terminal outcome.
type FinishedEvent struct {
	TaskID   string
	Outcome  launcher.Outcome
	ExitCode int
	Duration time.Duration
}

func (FinishedEvent) isEvent() {}

package launcher

import (
	"context"
	"sync/atomic"
	"time"
)

// Handle tracks one launch. Each handle owns its waiter goroutine, so any
// number of launches can be outstanding at once.
type Handle struct {
	ID     string
	Target Target
	// SentinelPath is the file polled locally; ExecutorSentinelPath is the
	// same file as the detached process sees it. Both are empty for
	// monitored launches.
	SentinelPath         string
	ExecutorSentinelPath string

	started   time.Time
	cancel    func()
	cancelled atomic.Bool
	done      chan struct{}
	result    Result
}

func newHandle(id string, target Target) *Handle {
	return &Handle{
		ID:      id,
		Target:  target,
		started: time.Now(),
		done:    make(chan struct{}),
	}
}

func (h *Handle) finish(r Result) {
	r.Duration = time.Since(h.started)
	h.result = r
	close(h.done)
}

// Done is closed once the result is available.
func (h *Handle) Done() <-chan struct{} { return h.done }

// Wait blocks until the launch reaches a terminal outcome or ctx ends.
// Ending ctx stops waiting but does not cancel the launch.
func (h *Handle) Wait(ctx context.Context) (Result, error) {
	select {
	case <-h.done:
		return h.result, nil
	case <-ctx.Done():
		return Result{}, ctx.Err()
	}
}

// Cancel stops tracking the launch. Monitored jobs are killed; detached
// processes keep running and only the local monitor stops.
func (h *Handle) Cancel() {
	if h.cancel != nil {
		h.cancel()
	}
}

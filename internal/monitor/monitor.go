// Package monitor observes completion of out-of-band processes through a
// sentinel file. Each Monitor owns exactly one channel and is the only
// component that deletes its sentinel.
package monitor

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/tccjustin/axon/internal/service/fs"
)

// State is the monitor lifecycle. Every state except StateWaiting is terminal.
type State int

const (
	StateWaiting State = iota
	StateCompleted
	StateTimedOut
	StateCancelled
)

func (s State) String() string {
	switch s {
	case StateWaiting:
		return "waiting"
	case StateCompleted:
		return "completed"
	case StateTimedOut:
		return "timed_out"
	case StateCancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

// FileSystem is what the monitor needs to poll and clean up a sentinel.
type FileSystem interface {
	ReadFile(path string) (string, error)
	Remove(path string) error
}

type Option func(*Monitor)

func WithLogger(l *zap.Logger) Option {
	return func(m *Monitor) {
		if l != nil {
			m.logger = l
		}
	}
}

// WithWatch enables an fsnotify wake-up on the sentinel's directory.
// Polling remains the source of truth.
func WithWatch(enabled bool) Option {
	return func(m *Monitor) { m.watch = enabled }
}

type Monitor struct {
	fs     FileSystem
	ch     Channel
	logger *zap.Logger
	watch  bool

	mu    sync.Mutex
	state State

	runOnce    sync.Once
	cancelOnce sync.Once
	cancelled  chan struct{}
	done       chan struct{}
}

func New(fsys FileSystem, ch Channel, opts ...Option) *Monitor {
	m := &Monitor{
		fs:        fsys,
		ch:        ch,
		logger:    zap.NewNop(),
		state:     StateWaiting,
		cancelled: make(chan struct{}),
		done:      make(chan struct{}),
	}
	for _, opt := range opts {
		opt(m)
	}
	m.logger = m.logger.With(zap.String("component", "monitor"), zap.String("sentinel", ch.Path))
	return m
}

// Channel returns the monitored channel.
func (m *Monitor) Channel() Channel { return m.ch }

// Prepare removes a leftover sentinel so a stale marker cannot complete a
// new launch. Call it before the process starts.
func (m *Monitor) Prepare() error {
	if err := m.fs.Remove(m.ch.Path); err != nil && !fs.IsNotExist(err) {
		return err
	}
	return nil
}

// Cancel requests the Cancelled transition. It is safe to call at any time;
// it has no effect once a terminal state was reached.
func (m *Monitor) Cancel() {
	m.cancelOnce.Do(func() { close(m.cancelled) })
}

func (m *Monitor) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Done is closed once a terminal state is reached.
func (m *Monitor) Done() <-chan struct{} { return m.done }

// Run polls until a terminal state and returns it. Only the first call
// polls; later calls return the same terminal state.
func (m *Monitor) Run(ctx context.Context) State {
	m.runOnce.Do(func() {
		final := m.loop(ctx)
		m.cleanup()

		m.mu.Lock()
		m.state = final
		m.mu.Unlock()
		close(m.done)

		m.logger.Info("completion monitor finished", zap.Stringer("state", final))
	})
	return m.State()
}

func (m *Monitor) loop(ctx context.Context) State {
	deadline := m.ch.Deadline()
	timer := time.NewTimer(time.Until(deadline))
	defer timer.Stop()
	ticker := time.NewTicker(m.ch.PollInterval)
	defer ticker.Stop()

	var wake <-chan struct{}
	if m.watch {
		w, err := newWatcher(m.ch.Path)
		if err != nil {
			m.logger.Debug("sentinel watch unavailable, polling only", zap.Error(err))
		} else {
			defer w.Close()
			wake = w.wake
		}
	}

	for {
		if m.stopRequested(ctx) {
			return StateCancelled
		}
		if m.complete() {
			return StateCompleted
		}
		if !time.Now().Before(deadline) {
			return StateTimedOut
		}

		select {
		case <-ctx.Done():
			return StateCancelled
		case <-m.cancelled:
			return StateCancelled
		case <-timer.C:
			if m.complete() {
				return StateCompleted
			}
			return StateTimedOut
		case <-ticker.C:
		case <-wake:
		}
	}
}

func (m *Monitor) stopRequested(ctx context.Context) bool {
	select {
	case <-ctx.Done():
		return true
	case <-m.cancelled:
		return true
	default:
		return false
	}
}

// complete treats any read error as "not yet".
func (m *Monitor) complete() bool {
	content, err := m.fs.ReadFile(m.ch.Path)
	if err != nil {
		if !fs.IsNotExist(err) {
			m.logger.Debug("sentinel read failed, will retry", zap.Error(err))
		}
		return false
	}
	if !m.ch.Matches(content) {
		m.logger.Debug("sentinel present with unexpected content")
		return false
	}
	return true
}

func (m *Monitor) cleanup() {
	if err := m.fs.Remove(m.ch.Path); err != nil && !fs.IsNotExist(err) {
		m.logger.Warn("failed to delete sentinel", zap.Error(err))
	}
}

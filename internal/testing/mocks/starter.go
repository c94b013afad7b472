package mocks

import (
	"context"
	"sync"
)

// DetachedCall records one StartDetached invocation.
type DetachedCall struct {
	Command []string
	Dir     string
	Env     []string
}

// MockDetachedStarter implements the out-of-band start surface. OnStart runs
// synchronously inside StartDetached and can simulate the released process.
type MockDetachedStarter struct {
	mu      sync.Mutex
	calls   []DetachedCall
	Err     error
	OnStart func(call DetachedCall)
}

func (m *MockDetachedStarter) StartDetached(ctx context.Context, command []string, dir string, env []string) error {
	call := DetachedCall{
		Command: append([]string(nil), command...),
		Dir:     dir,
		Env:     append([]string(nil), env...),
	}

	m.mu.Lock()
	m.calls = append(m.calls, call)
	m.mu.Unlock()

	if m.Err != nil {
		return m.Err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if m.OnStart != nil {
		m.OnStart(call)
	}
	return nil
}

// Calls returns a copy of the recorded invocations.
func (m *MockDetachedStarter) Calls() []DetachedCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]DetachedCall(nil), m.calls...)
}

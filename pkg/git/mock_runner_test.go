package git

import (
	"context"
	"sync"
)

// MockCommandRunner records invocations and delegates to OutputFunc.
type MockCommandRunner struct {
	OutputFunc func(dir string, name string, args ...string) ([]byte, error)

	mu    sync.Mutex
	Calls [][]string
}

func (m *MockCommandRunner) Output(ctx context.Context, dir string, name string, args ...string) ([]byte, error) {
	m.mu.Lock()
	m.Calls = append(m.Calls, append([]string{name}, args...))
	m.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if m.OutputFunc != nil {
		return m.OutputFunc(dir, name, args...)
	}
	return []byte{}, nil
}

// exitError satisfies the ExitCode method the runner inspects.
type exitError struct {
	code int
}

func (e *exitError) Error() string { return "exit status" }
func (e *exitError) ExitCode() int { return e.code }

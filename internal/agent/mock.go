package agent

import "context"

// MockExecutor implements [Executor] without spawning processes.
//
// Each Invoke replays the canned Events through the handler and returns a
// result built from ExitCode and Output. Requests are recorded in order.
type MockExecutor struct {
	// Events are replayed through the handler on every Invoke.
	Events []Event

	// ExitCode and Output form the returned result.
	ExitCode int
	Output   string

	// Err, when set, is returned instead of a result.
	Err error

	// Requests records every invocation in order.
	Requests []Request
}

// Invoke records the request and replays the canned behavior.
func (m *MockExecutor) Invoke(ctx context.Context, req Request, handler EventHandler) (*InvokeResult, error) {
	m.Requests = append(m.Requests, req)
	if m.Err != nil {
		return nil, m.Err
	}
	for _, e := range m.Events {
		if handler != nil {
			handler(e)
		}
	}
	return &InvokeResult{ExitCode: m.ExitCode, Output: m.Output}, nil
}

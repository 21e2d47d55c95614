// Package capability defines the agent contract and the capability registry.
// Agents are interchangeable implementations selected by the registry; the
// core never knows their domain logic, only this contract.
package capability

import (
	"context"
	"fmt"
)

// Result is the structured outcome of a successful agent invocation.
type Result struct {
	// Summary is a short confirmation suitable for speech or display.
	Summary string `json:"summary,omitempty"`
	// Data carries agent-specific structured output.
	Data map[string]any `json:"data,omitempty"`
}

// Agent is the only contract an implementation must satisfy to be registered.
// Invoke must honor ctx cancellation cooperatively; the supervisor does not
// assume forceful termination succeeds. Cancel is a best-effort signal for
// implementations with out-of-band work.
type Agent interface {
	Invoke(ctx context.Context, params map[string]any) (*Result, error)
	Cancel()
}

// AgentError wraps an agent-reported failure, carrying the agent-specific
// detail opaquely.
type AgentError struct {
	// AgentID is the agent that reported the failure.
	AgentID string
	// Err is the underlying failure detail.
	Err error
}

// Error implements the error interface.
func (e *AgentError) Error() string {
	return fmt.Sprintf("agent %s: %v", e.AgentID, e.Err)
}

// Unwrap returns the underlying error.
func (e *AgentError) Unwrap() error {
	return e.Err
}

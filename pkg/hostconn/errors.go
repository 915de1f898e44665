package hostconn

import "fmt"

// UnauthorizedError indicates the remote agent rejected our credentials.
type UnauthorizedError struct {
	Status int
	Detail string
}

func (e *UnauthorizedError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("agent rejected credentials (status %d): %s", e.Status, e.Detail)
	}
	return fmt.Sprintf("agent rejected credentials (status %d)", e.Status)
}

// AgentStateError is a structured error response from the remote agent that
// embeds the agent's own view of the host state.
type AgentStateError struct {
	State   string
	Message string
}

func (e *AgentStateError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("agent reported state %s: %s", e.State, e.Message)
	}
	return fmt.Sprintf("agent reported state %s", e.State)
}

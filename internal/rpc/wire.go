// Package rpc implements the task envelope exchanged with remote agents.
package rpc

import (
	"encoding/json"
	"fmt"
)

// Response statuses. An agent may send any number of progress messages but
// must finish with exactly one terminal (completed or error) message.
const (
	StatusCompleted = "completed"
	StatusError     = "error"
	StatusProgress  = "progress"
)

// ArtifactRef carries one upstream task's result into a dependent task's
// request.
type ArtifactRef struct {
	TaskID  string          `json:"taskId"`
	Payload json.RawMessage `json:"payload"`
}

// Request is the wire envelope sent to an agent.
type Request struct {
	TaskID      string        `json:"taskId"`
	Description string        `json:"description"`
	Inputs      []ArtifactRef `json:"inputs,omitempty"`
	TimeoutMs   int64         `json:"timeoutMs"`
}

// Response is one message from an agent: a progress update or the terminal
// result.
type Response struct {
	TaskID    string             `json:"taskId"`
	Status    string             `json:"status"`
	Result    json.RawMessage    `json:"result,omitempty"`
	Metrics   map[string]float64 `json:"metrics,omitempty"`
	ErrorKind string             `json:"errorKind,omitempty"`
	Message   string             `json:"message,omitempty"`
}

// Terminal reports whether this message ends the exchange.
func (r *Response) Terminal() bool {
	return r.Status == StatusCompleted || r.Status == StatusError
}

// TransportError is a connection- or timeout-level failure. Retryable: the
// same request may be reissued safely.
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("rpc transport: %s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// AgentError is a logical failure reported by the agent itself. Assumed
// deterministic, never retried.
type AgentError struct {
	Kind    string
	Message string
}

func (e *AgentError) Error() string {
	return fmt.Sprintf("agent error (%s): %s", e.Kind, e.Message)
}

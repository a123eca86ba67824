package rpc

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/akalogirou/weft/internal/natsbus"
)

// Client serializes task requests onto a leased connection and collects the
// agent's streamed reply. Retry policy lives with the caller; a single Call
// is one attempt.
type Client struct {
	callTimeout time.Duration
}

func NewClient(callTimeout time.Duration) *Client {
	return &Client{callTimeout: callTimeout}
}

// Call performs one request/response exchange. It returns the terminal
// response on success, *AgentError when the agent reports a logical
// failure, and *TransportError (retryable) on timeouts, garbled messages,
// or connection failures.
func (c *Client) Call(ctx context.Context, conn natsbus.Conn, req Request) (*Response, error) {
	if c.callTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.callTimeout)
		defer cancel()
		req.TimeoutMs = c.callTimeout.Milliseconds()
	}

	payload, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	var terminal *Response
	var decodeErr error
	err = conn.Exchange(ctx, natsbus.SubjectTaskRPC, payload, func(data []byte) bool {
		var resp Response
		if err := json.Unmarshal(data, &resp); err != nil {
			decodeErr = err
			return true
		}
		if !resp.Terminal() {
			slog.Debug("task progress", "task", req.TaskID, "status", resp.Status)
			return false
		}
		terminal = &resp
		return true
	})
	if err != nil {
		return nil, &TransportError{Op: "exchange", Err: err}
	}
	if decodeErr != nil {
		return nil, &TransportError{Op: "decode response", Err: decodeErr}
	}

	if terminal.Status == StatusError {
		return nil, &AgentError{Kind: terminal.ErrorKind, Message: terminal.Message}
	}
	return terminal, nil
}

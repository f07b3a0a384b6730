package bridge

import (
	"encoding/json"
	"fmt"
)

const ProtocolVersion = "v1"

// Request is the JSON envelope written to a plugin's stdin, one per line.
// Message is the normalized message being dispatched, already encoded.
type Request struct {
	Version string          `json:"version"`
	ID      string          `json:"id"`
	Plugin  string          `json:"plugin"`
	Message json.RawMessage `json:"message"`
}

// Response is the JSON envelope read back from the plugin's stdout.
type Response struct {
	Version string          `json:"version"`
	ID      string          `json:"id"`
	OK      bool            `json:"ok"`
	Data    json.RawMessage `json:"data,omitempty"`
	Error   *ResponseError  `json:"error,omitempty"`
}

// ResponseError is a structured fault reported by a plugin.
type ResponseError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (e *ResponseError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Error codes.
const (
	ErrInvalidRequest = "INVALID_REQUEST"
	ErrInternal       = "INTERNAL"
)

// Directives are side effects a plugin asks the host to perform after a
// successful invocation, carried in the response's data field. Unknown
// fields are ignored so plugins can ship data of their own alongside.
type Directives struct {
	DeleteAfter *DeleteAfter `json:"delete_after,omitempty"`
}

// DeleteAfter schedules a message deletion on the host's timer.
type DeleteAfter struct {
	DelaySeconds int   `json:"delay_seconds"`
	ChatID       int64 `json:"chat_id"`
	MessageID    int64 `json:"message_id"`
}

// ValidateResponse checks a response for protocol correctness.
func ValidateResponse(resp *Response) error {
	if resp.Version != ProtocolVersion {
		return fmt.Errorf("unsupported protocol version %q", resp.Version)
	}
	if resp.ID == "" {
		return fmt.Errorf("response id is required")
	}
	if !resp.OK && resp.Error == nil {
		return fmt.Errorf("error response must include error object")
	}
	return nil
}

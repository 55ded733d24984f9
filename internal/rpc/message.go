package rpc

import (
	"encoding/json"
	"errors"
	"fmt"
)

// ErrClosed is returned for calls on, or pending in, a closed connection.
var ErrClosed = errors.New("rpc: connection closed")

// Error codes follow JSON-RPC 2.0.
const (
	CodeParseError     = -32700
	CodeMethodNotFound = -32601
	CodeInvalidParams  = -32602
	CodeInternalError  = -32603
)

// Message is the envelope for requests, responses and notifications.
// Requests carry ID, Method and Params; responses carry ID and either
// Result or Error; notifications carry Method and Params only.
type Message struct {
	ID     string          `json:"id,omitempty"`
	Method string          `json:"method,omitempty"`
	Params json.RawMessage `json:"params,omitempty"`
	Result json.RawMessage `json:"result,omitempty"`
	Error  *ErrorObject    `json:"error,omitempty"`
}

type ErrorObject struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// RemoteError is a call that reached the server and failed there.
type RemoteError struct {
	Method  string
	Code    int
	Message string
}

func (e *RemoteError) Error() string {
	return fmt.Sprintf("rpc %s: %s (code %d)", e.Method, e.Message, e.Code)
}

func (m *Message) isNotification() bool {
	return m.ID == "" && m.Method != ""
}

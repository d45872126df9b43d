package ipc

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/1broseidon/dispswitch/internal/display"
	"github.com/1broseidon/dispswitch/internal/engine"
)

// CommandType represents different IPC command types
type CommandType string

const (
	CommandGetStatus CommandType = "GET_STATUS"
	CommandGetState  CommandType = "GET_STATE"
	CommandList      CommandType = "LIST"
	CommandShow      CommandType = "SHOW"
	CommandApply     CommandType = "APPLY"
	CommandCycle     CommandType = "CYCLE"
	CommandSave      CommandType = "SAVE"
	CommandRename    CommandType = "RENAME"
	CommandRemove    CommandType = "REMOVE"
	CommandReorder   CommandType = "REORDER"
	CommandMove      CommandType = "MOVE"
	CommandRefresh   CommandType = "REFRESH"
	CommandReload    CommandType = "RELOAD"
)

const (
	StatusOK    = "OK"
	StatusError = "ERROR"
)

// Request represents an IPC request from client to server
type Request struct {
	Command CommandType     `json:"command"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// Response represents an IPC response from server to client
type Response struct {
	Status string          `json:"status"` // "OK" or "ERROR"
	Data   json.RawMessage `json:"data,omitempty"`
	Error  string          `json:"error,omitempty"`
}

// StatusData represents the data returned by GET_STATUS
type StatusData struct {
	Backend        string    `json:"backend"`
	HasState       bool      `json:"has_state"`
	Serial         uint32    `json:"serial"`
	StateHash      string    `json:"state_hash,omitempty"`
	LastError      string    `json:"last_error,omitempty"`
	LastUpdated    time.Time `json:"last_updated,omitempty"`
	Configurations int       `json:"configurations"`
	Applicable     int       `json:"applicable"`
	Active         string    `json:"active,omitempty"`
	AutoApply      bool      `json:"auto_apply"`
	UptimeSeconds  int64     `json:"uptime_seconds"`
	DaemonRunning  bool      `json:"daemon_running"`
}

// StateData is the cached live state as returned by GET_STATE and REFRESH.
type StateData struct {
	State  *display.DisplayState `json:"state"`
	Hash   string                `json:"hash"`
	Active string                `json:"active,omitempty"`
}

// ListData is returned by LIST.
type ListData struct {
	Entries []engine.Entry `json:"entries"`
}

type ListPayload struct {
	All bool `json:"all,omitempty"`
}

type NamePayload struct {
	Name string `json:"name"`
}

// ApplyPayload names a saved configuration. An empty Method uses the
// daemon's default_method.
type ApplyPayload struct {
	Name   string `json:"name"`
	Method string `json:"method,omitempty"`
}

type CyclePayload struct {
	Method string `json:"method,omitempty"`
}

type RenamePayload struct {
	OldName string `json:"old_name"`
	NewName string `json:"new_name"`
}

type ReorderPayload struct {
	Names []string `json:"names"`
}

type MovePayload struct {
	Name  string `json:"name"`
	Index int    `json:"index"`
}

// FormatHash renders a state or configuration hash the way every command
// prints it.
func FormatHash(h uint64) string {
	return fmt.Sprintf("%016x", h)
}

// NewOKResponse creates a successful response with optional data
func NewOKResponse(data interface{}) (*Response, error) {
	var dataBytes json.RawMessage
	if data != nil {
		bytes, err := json.Marshal(data)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal response data: %w", err)
		}
		dataBytes = bytes
	}

	return &Response{
		Status: StatusOK,
		Data:   dataBytes,
	}, nil
}

// NewErrorResponse creates an error response with a message
func NewErrorResponse(errMsg string) *Response {
	return &Response{
		Status: StatusError,
		Error:  errMsg,
	}
}

// ParseRequest parses a request from JSON bytes
func ParseRequest(data []byte) (*Request, error) {
	var req Request
	if err := json.Unmarshal(data, &req); err != nil {
		return nil, fmt.Errorf("failed to parse request: %w", err)
	}
	return &req, nil
}

// Marshal converts a response to JSON bytes
func (r *Response) Marshal() ([]byte, error) {
	return json.Marshal(r)
}

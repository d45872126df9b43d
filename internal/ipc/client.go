package ipc

import (
	"bufio"
	"encoding/json"
	"fmt"
	"net"
	"time"

	"github.com/1broseidon/dispswitch/internal/display"
	"github.com/1broseidon/dispswitch/internal/engine"
	"github.com/1broseidon/dispswitch/internal/runtimepath"
)

// Client handles IPC communication with the daemon
type Client struct {
	socketPath string
	timeout    time.Duration
}

// NewClient creates a client for the default socket path.
func NewClient() *Client {
	socketPath, err := runtimepath.SocketPath()
	if err != nil {
		// Keep constructor non-failing; sendRequest surfaces connection errors.
		socketPath = ""
	}
	return NewClientWithSocket(socketPath)
}

// NewClientWithSocket creates a client for an explicit socket path.
func NewClientWithSocket(socketPath string) *Client {
	return &Client{
		socketPath: socketPath,
		timeout:    10 * time.Second,
	}
}

// sendRequest sends a request and waits for a response
func (c *Client) sendRequest(req *Request) (*Response, error) {
	conn, err := net.DialTimeout("unix", c.socketPath, c.timeout)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to daemon: %w (is the daemon running?)", err)
	}
	defer conn.Close()

	conn.SetDeadline(time.Now().Add(c.timeout))

	reqData, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	reqData = append(reqData, '\n')
	if _, err := conn.Write(reqData); err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}

	reader := bufio.NewReader(conn)
	respData, err := reader.ReadBytes('\n')
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	var resp Response
	if err := json.Unmarshal(respData, &resp); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}

	if resp.Status == StatusError {
		return nil, fmt.Errorf("daemon error: %s", resp.Error)
	}

	return &resp, nil
}

func (c *Client) call(cmd CommandType, payload any, out any) error {
	req := &Request{Command: cmd}
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("failed to marshal %s payload: %w", cmd, err)
		}
		req.Payload = raw
	}

	resp, err := c.sendRequest(req)
	if err != nil {
		return err
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(resp.Data, out); err != nil {
		return fmt.Errorf("failed to parse %s data: %w", cmd, err)
	}
	return nil
}

// GetStatus retrieves daemon status
func (c *Client) GetStatus() (*StatusData, error) {
	var status StatusData
	if err := c.call(CommandGetStatus, nil, &status); err != nil {
		return nil, err
	}
	return &status, nil
}

// GetState retrieves the daemon's cached display state.
func (c *Client) GetState() (*StateData, error) {
	var data StateData
	if err := c.call(CommandGetState, nil, &data); err != nil {
		return nil, err
	}
	return &data, nil
}

// Refresh asks the daemon to fetch the live state now.
func (c *Client) Refresh() (*StateData, error) {
	var data StateData
	if err := c.call(CommandRefresh, nil, &data); err != nil {
		return nil, err
	}
	return &data, nil
}

// List returns saved configurations; only applicable ones unless all is set.
func (c *Client) List(all bool) ([]engine.Entry, error) {
	var data ListData
	if err := c.call(CommandList, ListPayload{All: all}, &data); err != nil {
		return nil, err
	}
	return data.Entries, nil
}

func (c *Client) Show(name string) (*engine.Entry, error) {
	var entry engine.Entry
	if err := c.call(CommandShow, NamePayload{Name: name}, &entry); err != nil {
		return nil, err
	}
	return &entry, nil
}

// Apply applies a saved configuration by name.
func (c *Client) Apply(name, method string) (*engine.ApplyResult, error) {
	var res engine.ApplyResult
	if err := c.call(CommandApply, ApplyPayload{Name: name, Method: method}, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

// Cycle applies the next applicable configuration.
func (c *Client) Cycle(method string) (*engine.ApplyResult, error) {
	var res engine.ApplyResult
	if err := c.call(CommandCycle, CyclePayload{Method: method}, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

// Save stores the current arrangement under name.
func (c *Client) Save(name string) (*display.SavedConfiguration, error) {
	var cfg display.SavedConfiguration
	if err := c.call(CommandSave, NamePayload{Name: name}, &cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Client) Rename(oldName, newName string) error {
	return c.call(CommandRename, RenamePayload{OldName: oldName, NewName: newName}, nil)
}

func (c *Client) Remove(name string) error {
	return c.call(CommandRemove, NamePayload{Name: name}, nil)
}

func (c *Client) Reorder(names []string) error {
	return c.call(CommandReorder, ReorderPayload{Names: names}, nil)
}

func (c *Client) Move(name string, index int) error {
	return c.call(CommandMove, MovePayload{Name: name, Index: index}, nil)
}

// Reload sends a RELOAD command to the daemon
func (c *Client) Reload() error {
	return c.call(CommandReload, nil, nil)
}

// Ping checks if the daemon is responding
func (c *Client) Ping() error {
	_, err := c.GetStatus()
	return err
}

package ipc

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/1broseidon/dispswitch/internal/display"
	"github.com/1broseidon/dispswitch/internal/engine"
	"github.com/1broseidon/dispswitch/internal/logging"
	"github.com/1broseidon/dispswitch/internal/metrics"
)

// Handler executes daemon commands on behalf of IPC clients. Method
// arguments are "temporary", "persistent" or empty for the default.
type Handler interface {
	Status(ctx context.Context) StatusData
	State(ctx context.Context) (StateData, error)
	List(ctx context.Context, all bool) ([]engine.Entry, error)
	Show(ctx context.Context, name string) (engine.Entry, error)
	Apply(ctx context.Context, name, method string) (engine.ApplyResult, error)
	Cycle(ctx context.Context, method string) (engine.ApplyResult, error)
	Save(ctx context.Context, name string) (display.SavedConfiguration, error)
	Rename(ctx context.Context, oldName, newName string) error
	Remove(ctx context.Context, name string) error
	Reorder(ctx context.Context, names []string) error
	Move(ctx context.Context, name string, index int) error
	Refresh(ctx context.Context) (StateData, error)
	Reload(ctx context.Context) error
}

// Server handles IPC requests from clients
type Server struct {
	socketPath   string
	listener     net.Listener
	handler      Handler
	logger       *slog.Logger
	timeout      time.Duration
	wg           sync.WaitGroup
	shuttingDown bool
	shutdownMu   sync.Mutex
}

// NewServer creates a server listening on socketPath once started.
func NewServer(socketPath string, handler Handler, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		socketPath: socketPath,
		handler:    handler,
		logger:     logger.With("component", "ipc"),
		timeout:    30 * time.Second,
	}
}

// SocketPath returns the listening socket path.
func (s *Server) SocketPath() string { return s.socketPath }

// Start begins listening for IPC connections
func (s *Server) Start() error {
	// Remove existing socket if present
	if err := os.Remove(s.socketPath); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to remove stale IPC socket: %w", err)
	}

	listener, err := net.Listen("unix", s.socketPath)
	if err != nil {
		return fmt.Errorf("failed to create IPC socket: %w", err)
	}
	s.listener = listener

	// Set socket permissions
	if err := os.Chmod(s.socketPath, 0600); err != nil {
		listener.Close()
		return fmt.Errorf("failed to set socket permissions: %w", err)
	}

	s.logger.Info("IPC server listening", "socket", s.socketPath)

	s.wg.Add(1)
	go s.acceptLoop()

	return nil
}

// acceptLoop accepts incoming connections
func (s *Server) acceptLoop() {
	defer s.wg.Done()
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			s.shutdownMu.Lock()
			if s.shuttingDown {
				s.shutdownMu.Unlock()
				return
			}
			s.shutdownMu.Unlock()
			s.logger.Warn("IPC accept error", "error", err)
			time.Sleep(50 * time.Millisecond)
			continue
		}

		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.handleConnection(conn)
		}()
	}
}

// handleConnection handles a single IPC connection
func (s *Server) handleConnection(conn net.Conn) {
	defer conn.Close()
	_ = conn.SetDeadline(time.Now().Add(s.timeout))

	reader := bufio.NewReader(conn)

	// Read the request (expect JSON on a single line)
	data, err := reader.ReadBytes('\n')
	if err != nil && err != io.EOF {
		s.logger.Warn("IPC read error", "error", err)
		return
	}

	req, err := ParseRequest(data)
	if err != nil {
		metrics.IPCRequestsTotal.WithLabelValues("INVALID", StatusError).Inc()
		s.write(conn, NewErrorResponse(fmt.Sprintf("Invalid request: %v", err)))
		return
	}

	ctx, cancel := context.WithTimeout(logging.WithID(context.Background(), logging.NewID()), s.timeout)
	defer cancel()

	start := time.Now()
	resp := s.handleCommand(ctx, req)
	metrics.IPCRequestsTotal.WithLabelValues(string(req.Command), resp.Status).Inc()
	if resp.Status == StatusError {
		s.logger.WarnContext(ctx, "IPC request failed", "command", req.Command, "error", resp.Error, "duration", time.Since(start))
	} else {
		s.logger.DebugContext(ctx, "IPC request", "command", req.Command, "duration", time.Since(start))
	}

	s.write(conn, resp)
}

func (s *Server) write(conn net.Conn, resp *Response) {
	respData, err := resp.Marshal()
	if err != nil {
		s.logger.Error("failed to marshal response", "error", err)
		return
	}
	respData = append(respData, '\n')
	if _, err := conn.Write(respData); err != nil {
		s.logger.Warn("failed to send response", "error", err)
	}
}

// handleCommand processes an IPC command and returns a response
func (s *Server) handleCommand(ctx context.Context, req *Request) *Response {
	switch req.Command {
	case CommandGetStatus:
		return ok(s.handler.Status(ctx))
	case CommandGetState:
		return result(s.handler.State(ctx))
	case CommandRefresh:
		return result(s.handler.Refresh(ctx))
	case CommandReload:
		return done(s.handler.Reload(ctx))
	case CommandList:
		var p ListPayload
		if err := decodePayload(req.Payload, &p); err != nil {
			return NewErrorResponse(err.Error())
		}
		entries, err := s.handler.List(ctx, p.All)
		if err != nil {
			return NewErrorResponse(err.Error())
		}
		return ok(ListData{Entries: entries})
	case CommandShow:
		var p NamePayload
		if err := decodeNamed(req.Payload, &p, func() string { return p.Name }); err != nil {
			return NewErrorResponse(err.Error())
		}
		return result(s.handler.Show(ctx, p.Name))
	case CommandApply:
		var p ApplyPayload
		if err := decodeNamed(req.Payload, &p, func() string { return p.Name }); err != nil {
			return NewErrorResponse(err.Error())
		}
		return result(s.handler.Apply(ctx, p.Name, p.Method))
	case CommandCycle:
		var p CyclePayload
		if err := decodePayload(req.Payload, &p); err != nil {
			return NewErrorResponse(err.Error())
		}
		return result(s.handler.Cycle(ctx, p.Method))
	case CommandSave:
		var p NamePayload
		if err := decodeNamed(req.Payload, &p, func() string { return p.Name }); err != nil {
			return NewErrorResponse(err.Error())
		}
		return result(s.handler.Save(ctx, p.Name))
	case CommandRename:
		var p RenamePayload
		if err := decodeNamed(req.Payload, &p, func() string { return p.OldName }); err != nil {
			return NewErrorResponse(err.Error())
		}
		return done(s.handler.Rename(ctx, p.OldName, p.NewName))
	case CommandRemove:
		var p NamePayload
		if err := decodeNamed(req.Payload, &p, func() string { return p.Name }); err != nil {
			return NewErrorResponse(err.Error())
		}
		return done(s.handler.Remove(ctx, p.Name))
	case CommandReorder:
		var p ReorderPayload
		if err := decodePayload(req.Payload, &p); err != nil {
			return NewErrorResponse(err.Error())
		}
		return done(s.handler.Reorder(ctx, p.Names))
	case CommandMove:
		var p MovePayload
		if err := decodeNamed(req.Payload, &p, func() string { return p.Name }); err != nil {
			return NewErrorResponse(err.Error())
		}
		return done(s.handler.Move(ctx, p.Name, p.Index))
	default:
		return NewErrorResponse(fmt.Sprintf("Unknown command: %s", req.Command))
	}
}

func decodePayload(payload json.RawMessage, out any) error {
	if len(payload) == 0 {
		return nil
	}
	if err := json.Unmarshal(payload, out); err != nil {
		return fmt.Errorf("invalid payload: %w", err)
	}
	return nil
}

func decodeNamed(payload json.RawMessage, out any, name func() string) error {
	if err := decodePayload(payload, out); err != nil {
		return err
	}
	if strings.TrimSpace(name()) == "" {
		return fmt.Errorf("name is required")
	}
	return nil
}

func ok(data any) *Response {
	resp, err := NewOKResponse(data)
	if err != nil {
		return NewErrorResponse(err.Error())
	}
	return resp
}

func result[T any](data T, err error) *Response {
	if err != nil {
		return NewErrorResponse(err.Error())
	}
	return ok(data)
}

func done(err error) *Response {
	if err != nil {
		return NewErrorResponse(err.Error())
	}
	return ok(nil)
}

// Stop closes the listener, waits for in-flight requests and removes the
// socket.
func (s *Server) Stop() {
	s.shutdownMu.Lock()
	if s.shuttingDown {
		s.shutdownMu.Unlock()
		return
	}
	s.shuttingDown = true
	s.shutdownMu.Unlock()

	if s.listener != nil {
		s.listener.Close()
	}
	s.wg.Wait()
	os.Remove(s.socketPath)
}

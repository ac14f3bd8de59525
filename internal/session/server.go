// Package session implements the persistent, scope-gated tool protocol served
// over WebSocket. Each connection authenticates once, lists the tools its
// scopes allow and calls them; authorization is re-derived on every call.
package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"runtime/debug"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"automation/internal/agent"
	"automation/internal/auth"
	"automation/internal/automation"
	"automation/internal/tools"
	"automation/internal/workflow"
	"automation/pkg/logger"
	"automation/pkg/problems"
)

const (
	ServerName    = "Automation MCP Server"
	ServerVersion = "1.0.0"
	apiName       = "automation-api"

	// inboundQueue bounds frames read ahead of the handler per connection.
	inboundQueue = 32
)

// Backend executes tool calls. *automation.Service satisfies it.
type Backend interface {
	ListWorkflows(ctx context.Context) ([]workflow.Workflow, error)
	WorkflowAnalytics(ctx context.Context) (workflow.Analytics, error)
	GenerateAI(ctx context.Context, prompt string) (automation.Completion, error)
	Ask(ctx context.Context, prompt string, scopes []string, format agent.Format) (*agent.Result, error)
}

type Options struct {
	// PingInterval must be shorter than PongWait.
	PingInterval time.Duration
	PongWait     time.Duration
	WriteWait    time.Duration
	// MaxMessageBytes caps a single inbound frame.
	MaxMessageBytes int64
}

func DefaultOptions() Options {
	return Options{
		PingInterval:    30 * time.Second,
		PongWait:        60 * time.Second,
		WriteWait:       10 * time.Second,
		MaxMessageBytes: 1 << 20,
	}
}

type Server struct {
	auth     auth.Authenticator
	backend  Backend
	registry *Registry
	opts     Options
	upgrader websocket.Upgrader
	log      logger.Sugared

	// calls run on base so a client disconnect never cancels an in-flight call.
	base   context.Context
	cancel context.CancelFunc
	srv    *http.Server
}

func NewServer(a auth.Authenticator, backend Backend, opts Options, log logger.Sugared) *Server {
	def := DefaultOptions()
	if opts.PingInterval <= 0 {
		opts.PingInterval = def.PingInterval
	}
	if opts.PongWait <= opts.PingInterval {
		opts.PongWait = 2 * opts.PingInterval
	}
	if opts.WriteWait <= 0 {
		opts.WriteWait = def.WriteWait
	}
	if opts.MaxMessageBytes <= 0 {
		opts.MaxMessageBytes = def.MaxMessageBytes
	}
	base, cancel := context.WithCancel(context.Background())
	s := &Server{
		auth:     a,
		backend:  backend,
		registry: NewRegistry(),
		opts:     opts,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			// Clients are services and CLIs, not browsers.
			CheckOrigin: func(*http.Request) bool { return true },
		},
		log:    logger.Named(log, "session"),
		base:   base,
		cancel: cancel,
	}
	s.srv = &http.Server{Handler: s, ReadHeaderTimeout: 10 * time.Second}
	return s
}

// Registry exposes connection state, mainly for tests and health output.
func (s *Server) Registry() *Registry { return s.registry }

// ListenAndServe accepts connections on addr until Shutdown.
func (s *Server) ListenAndServe(addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("session listen: %w", err)
	}
	return s.Serve(ln)
}

func (s *Server) Serve(ln net.Listener) error {
	s.log.Infow("session server listening", "addr", "ws://"+ln.Addr().String())
	if err := s.srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown stops accepting connections, closes the open ones and cancels
// any call still in flight.
func (s *Server) Shutdown(ctx context.Context) error {
	err := s.srv.Shutdown(ctx)
	s.registry.closeAll(websocket.CloseGoingAway, "server shutting down")
	s.cancel()
	return err
}

// ServeHTTP upgrades any request to a session.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ws, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Debugw("upgrade failed", "remote", r.RemoteAddr, "err", err)
		return
	}
	c := &conn{id: uuid.NewString(), ws: ws, wait: s.opts.WriteWait}
	s.registry.add(c)
	activeConnections.Inc()
	log := s.log.With("conn", c.id)
	log.Infow("client connected", "remote", r.RemoteAddr)

	defer func() {
		activeConnections.Dec()
		log.Infow("client disconnected")
	}()

	_ = c.send(eventResponse(EventReady, map[string]string{"server": ServerName, "version": ServerVersion}))
	_ = c.send(eventResponse(EventAuthenticationRequired, nil))

	frames := make(chan []byte, inboundQueue)
	gone := make(chan struct{})
	go s.keepAlive(c, gone)
	go s.readLoop(c, frames, gone, log)
	s.handleLoop(c, frames, gone, log)
}

func (s *Server) keepAlive(c *conn, gone <-chan struct{}) {
	t := time.NewTicker(s.opts.PingInterval)
	defer t.Stop()
	for {
		select {
		case <-gone:
			return
		case <-t.C:
			if err := c.ping(); err != nil {
				return
			}
		}
	}
}

// readLoop queues inbound frames for handleLoop and keeps reading while a
// call is in flight, so a disconnect drops the session and its identity at
// once. A full queue stops reading until the handler catches up.
func (s *Server) readLoop(c *conn, frames chan<- []byte, gone chan<- struct{}, log logger.Sugared) {
	defer func() {
		s.registry.remove(c.id)
		c.close(websocket.CloseNormalClosure, "")
		close(gone)
	}()
	c.ws.SetReadLimit(s.opts.MaxMessageBytes)
	_ = c.ws.SetReadDeadline(time.Now().Add(s.opts.PongWait))
	c.ws.SetPongHandler(func(string) error {
		return c.ws.SetReadDeadline(time.Now().Add(s.opts.PongWait))
	})
	for {
		_, raw, err := c.ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseNoStatusReceived) {
				log.Warnw("read failed", "err", err)
			}
			return
		}
		_ = c.ws.SetReadDeadline(time.Now().Add(s.opts.PongWait))
		frames <- raw
	}
}

// handleLoop answers frames one at a time, in arrival order. Calls already
// running when the client goes away finish; their replies are dropped.
func (s *Server) handleLoop(c *conn, frames <-chan []byte, gone <-chan struct{}, log logger.Sugared) {
	for {
		select {
		case <-gone:
			return
		case raw := <-frames:
			resp := s.Handle(s.base, c.id, raw)
			if err := c.send(resp); err != nil {
				log.Debugw("send failed", "err", err)
			}
		}
	}
}

// Handle decodes one raw message for connection connID and returns its
// response. It never panics and never returns a transport error.
func (s *Server) Handle(ctx context.Context, connID string, raw []byte) Response {
	var req Request
	if err := json.Unmarshal(raw, &req); err != nil {
		messagesTotal.WithLabelValues("invalid").Inc()
		s.log.Warnw("invalid payload", "conn", connID)
		return errorResponse(peekID(raw), problems.Invalid("Invalid JSON payload"))
	}
	messagesTotal.WithLabelValues(knownType(req.Type)).Inc()
	return s.dispatch(ctx, connID, req)
}

func (s *Server) dispatch(ctx context.Context, connID string, req Request) (resp Response) {
	defer func() {
		if rec := recover(); rec != nil {
			s.log.Errorw("panic handling message", "conn", connID, "type", req.Type, "err", rec, "stack", string(debug.Stack()))
			resp = errorResponse(req.ID, &problems.Error{Kind: problems.Internal, Message: fmt.Sprint(rec)})
		}
	}()

	switch req.Type {
	case TypeInitialize:
		return resultResponse(req.ID, map[string]any{
			"server":       map[string]string{"name": apiName, "version": ServerVersion},
			"capabilities": map[string]bool{"tools": true},
		})
	case TypeAuthenticate:
		return s.authenticate(connID, req)
	case TypeListTools:
		id, ok := s.registry.Identity(connID)
		if !ok {
			return errorResponse(req.ID, problems.AuthRequired())
		}
		return resultResponse(req.ID, map[string]any{"tools": tools.Catalog(id)})
	case TypeCallTool:
		return s.callTool(ctx, connID, req)
	case TypePing:
		return resultResponse(req.ID, map[string]bool{"pong": true})
	default:
		return errorResponse(req.ID, problems.ProtocolErr("Unknown message type: %s", req.Type))
	}
}

func (s *Server) authenticate(connID string, req Request) Response {
	id, ok := s.auth.Validate(req.Token)
	if !ok {
		s.log.Infow("authentication failed", "conn", connID)
		return errorResponse(req.ID, problems.Unauthenticated("Invalid authentication token"))
	}
	if !s.registry.Attach(connID, id) {
		return errorResponse(req.ID, problems.ProtocolErr("connection closed"))
	}
	s.log.Infow("authenticated", "conn", connID, "user", id.UserID, "scopes", len(id.Scopes))
	return resultResponse(req.ID, map[string]any{"userId": id.UserID, "scopes": id.Scopes})
}

func (s *Server) callTool(ctx context.Context, connID string, req Request) Response {
	// Scopes come from the live session, never from a previously listed catalog.
	id, ok := s.registry.Identity(connID)
	if !ok {
		return errorResponse(req.ID, problems.AuthRequired())
	}
	name := tools.Name(req.Tool)
	if _, known := tools.RequiredScopes(name); !known {
		return errorResponse(req.ID, problems.ProtocolErr("Unknown tool: %s", req.Tool))
	}
	if missing := tools.MissingScope(id, name); missing != "" {
		return errorResponse(req.ID, problems.Forbidden(missing))
	}

	start := time.Now()
	result, err := s.execute(ctx, id, name, req.Params)
	code := "ok"
	if err != nil {
		code = problems.KindOf(err).Code()
		s.log.Warnw("tool call failed", "conn", connID, "tool", name, "code", code, "err", err)
	}
	toolCalls.WithLabelValues(string(name), code).Observe(time.Since(start).Seconds())
	if err != nil {
		return errorResponse(req.ID, err)
	}
	return resultResponse(req.ID, result)
}

func (s *Server) execute(ctx context.Context, id auth.Identity, name tools.Name, params map[string]any) (any, error) {
	switch name {
	case tools.ListWorkflows:
		wfs, err := s.backend.ListWorkflows(ctx)
		if err != nil {
			return nil, err
		}
		return map[string]any{"workflows": wfs}, nil
	case tools.WorkflowAnalytics:
		return s.backend.WorkflowAnalytics(ctx)
	case tools.GenerateAI:
		prompt, ok := promptParam(params)
		if !ok {
			return nil, problems.Invalid("generate_ai requires a non-empty string prompt")
		}
		return s.backend.GenerateAI(ctx, prompt)
	case tools.AgentAsk:
		prompt, ok := promptParam(params)
		if !ok {
			return nil, problems.Invalid("agent_ask requires a non-empty prompt")
		}
		return s.backend.Ask(ctx, prompt, id.Scopes, agent.ParseFormat(params["outputFormat"]))
	default:
		return nil, problems.ProtocolErr("Unknown tool: %s", name)
	}
}

func promptParam(params map[string]any) (string, bool) {
	p, ok := params["prompt"].(string)
	if !ok || strings.TrimSpace(p) == "" {
		return "", false
	}
	return p, true
}

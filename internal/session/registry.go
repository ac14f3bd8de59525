package session

import (
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"automation/internal/auth"
)

// conn is one live connection. Writes are serialized by writeMu; once closed
// every send is a silent no-op.
type conn struct {
	id      string
	ws      *websocket.Conn
	writeMu sync.Mutex
	closed  bool
	wait    time.Duration
}

func (c *conn) send(v any) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if c.closed {
		return nil
	}
	_ = c.ws.SetWriteDeadline(time.Now().Add(c.wait))
	return c.ws.WriteJSON(v)
}

func (c *conn) ping() error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if c.closed {
		return nil
	}
	return c.ws.WriteControl(websocket.PingMessage, nil, time.Now().Add(c.wait))
}

// close is idempotent.
func (c *conn) close(code int, reason string) {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	_ = c.ws.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(code, reason), time.Now().Add(time.Second))
	_ = c.ws.Close()
}

type entry struct {
	conn     *conn
	identity *auth.Identity
}

// Registry maps connection ids to their session state. Insert on connect,
// attach on authenticate, remove on disconnect; reads happen per message.
type Registry struct {
	mu      sync.Mutex
	entries map[string]*entry
}

func NewRegistry() *Registry {
	return &Registry{entries: map[string]*entry{}}
}

func (r *Registry) add(c *conn) {
	r.mu.Lock()
	r.entries[c.id] = &entry{conn: c}
	r.mu.Unlock()
}

func (r *Registry) remove(id string) {
	r.mu.Lock()
	delete(r.entries, id)
	r.mu.Unlock()
}

// Attach stores a copy of identity. It reports false if the connection is gone.
func (r *Registry) Attach(id string, identity auth.Identity) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.entries[id]
	if !ok {
		return false
	}
	cp := identity.Clone()
	e.identity = &cp
	return true
}

// Identity returns a copy of the attached identity.
func (r *Registry) Identity(id string) (auth.Identity, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.entries[id]
	if !ok || e.identity == nil {
		return auth.Identity{}, false
	}
	return e.identity.Clone(), true
}

func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}

// closeAll closes every registered connection. Their read loops then exit and
// remove themselves.
func (r *Registry) closeAll(code int, reason string) {
	r.mu.Lock()
	conns := make([]*conn, 0, len(r.entries))
	for _, e := range r.entries {
		conns = append(conns, e.conn)
	}
	r.mu.Unlock()
	for _, c := range conns {
		c.close(code, reason)
	}
}

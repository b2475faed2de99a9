package hub

import "roomhub/internal/protocol"

// ConnState is the lifecycle state of one connection. Registration is
// instantaneous, so the first observable state is AwaitingAuth.
type ConnState int

const (
	StateAwaitingAuth ConnState = iota
	StateAuthenticated
	StateClosed
)

func (s ConnState) String() string {
	switch s {
	case StateAwaitingAuth:
		return "awaiting_auth"
	case StateAuthenticated:
		return "authenticated"
	case StateClosed:
		return "closed"
	}
	return "unknown"
}

// Sender is the transport half of a connection, owned by the hosting
// websocket handler. Both methods must be safe for use from the hub.
type Sender interface {
	Send(v any) error
	Close(reason protocol.CloseReason, message string)
}

type connection struct {
	id     string
	sender Sender
	state  ConnState

	// Routing metadata attached by the transport (query param), may be empty.
	routedRoom string

	// Set on successful admission only.
	userID string
}

// registry tracks the live connection set. It never touches external I/O;
// all methods run under the hub mutex.
type registry struct {
	conns map[string]*connection
}

func newRegistry() *registry {
	return &registry{conns: make(map[string]*connection)}
}

func (r *registry) register(c *connection) {
	r.conns[c.id] = c
}

// unregister removes the record and returns it, or nil when the id is
// unknown. Calling it twice for the same id is a no-op.
func (r *registry) unregister(id string) *connection {
	c := r.conns[id]
	delete(r.conns, id)
	return c
}

func (r *registry) get(id string) *connection {
	return r.conns[id]
}

func (r *registry) markAuthenticated(id, userID string) bool {
	c := r.conns[id]
	if c == nil {
		return false
	}
	c.state = StateAuthenticated
	c.userID = userID
	return true
}

// forEachExcept visits every connection whose id is not in exclude.
func (r *registry) forEachExcept(exclude map[string]struct{}, fn func(*connection)) {
	for id, c := range r.conns {
		if _, skip := exclude[id]; skip {
			continue
		}
		fn(c)
	}
}

func (r *registry) len() int { return len(r.conns) }

// Package presence tracks which users currently hold live connections.
// The registry is the single source of truth for online/offline status and
// for looking up the connections a live event should be delivered to.
package presence

import (
	"sync"

	"go.uber.org/zap"
)

type Status string

const (
	StatusOnline  Status = "online"
	StatusOffline Status = "offline"
)

// Conn is the minimal contract the registry needs from a live connection.
// The websocket gateway client satisfies it.
type Conn interface {
	Send(event string, payload any)
	Close()
}

type entry struct {
	conns  map[Conn]struct{}
	status Status
}

// Registry maps a user id to the set of connections the user currently holds.
// An entry is created on first registration and kept (flipped to offline)
// forever after, so Status can distinguish "was never here" only by returning
// offline for both.
type Registry struct {
	mu        sync.Mutex
	users     map[int64]*entry
	owners    map[Conn]int64
	onOnline  []func(userID int64)
	onOffline []func(userID int64)
	logger    *zap.Logger
}

func NewRegistry(logger *zap.Logger) *Registry {
	return &Registry{
		users:  make(map[int64]*entry),
		owners: make(map[Conn]int64),
		logger: logger,
	}
}

// OnOnline registers a hook fired after a user transitions from zero to one
// connections. Hooks must be registered before the registry is in use.
func (r *Registry) OnOnline(fn func(userID int64)) {
	r.onOnline = append(r.onOnline, fn)
}

// OnOffline registers a hook fired after a user loses their last connection.
func (r *Registry) OnOffline(fn func(userID int64)) {
	r.onOffline = append(r.onOffline, fn)
}

// Register adds the connection to the user's set. Registering a connection
// that already belongs to a user is a no-op: a handle may belong to at most
// one user at a time.
func (r *Registry) Register(userID int64, c Conn) {
	r.mu.Lock()

	if _, owned := r.owners[c]; owned {
		r.mu.Unlock()
		r.logger.Warn("connection registered twice", zap.Int64("user_id", userID))
		return
	}

	e, ok := r.users[userID]
	if !ok {
		e = &entry{conns: make(map[Conn]struct{}), status: StatusOffline}
		r.users[userID] = e
	}
	e.conns[c] = struct{}{}
	r.owners[c] = userID

	becameOnline := e.status == StatusOffline
	if becameOnline {
		e.status = StatusOnline
	}
	r.mu.Unlock()

	if becameOnline {
		for _, fn := range r.onOnline {
			fn(userID)
		}
	}
}

// Unregister removes the connection. Unknown connections are ignored so that
// disconnect races stay idempotent.
func (r *Registry) Unregister(c Conn) {
	r.mu.Lock()

	userID, ok := r.owners[c]
	if !ok {
		r.mu.Unlock()
		return
	}
	delete(r.owners, c)

	e := r.users[userID]
	delete(e.conns, c)

	becameOffline := len(e.conns) == 0 && e.status == StatusOnline
	if becameOffline {
		e.status = StatusOffline
	}
	r.mu.Unlock()

	if becameOffline {
		for _, fn := range r.onOffline {
			fn(userID)
		}
	}
}

// Lookup returns a snapshot of the user's live connections. An empty result
// means the user is not deliverable live.
func (r *Registry) Lookup(userID int64) []Conn {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.users[userID]
	if !ok {
		return nil
	}
	conns := make([]Conn, 0, len(e.conns))
	for c := range e.conns {
		conns = append(conns, c)
	}
	return conns
}

func (r *Registry) Status(userID int64) Status {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.users[userID]
	if !ok {
		return StatusOffline
	}
	return e.status
}

func (r *Registry) IsOnline(userID int64) bool {
	return r.Status(userID) == StatusOnline
}

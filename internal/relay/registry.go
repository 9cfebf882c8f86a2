package relay

import (
	"sort"
	"sync"

	"github.com/RichatorDEV/webrtc-server/internal/protocol"
)

// Conn is a live connection as seen by the registry. The registry only holds
// references; the transport layer owns the underlying socket.
type Conn interface {
	// ID is a stable, unique handle for logging.
	ID() string

	// Deliver enqueues msg for the connection without blocking. It returns an
	// error when the message could not be queued.
	Deliver(msg *protocol.Message) error
}

// Registry maps identities to live connections. It is the only authority on
// presence; at most one connection is held per identity.
type Registry struct {
	mu         sync.RWMutex
	byIdentity map[string]Conn
	byConn     map[Conn]string
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{
		byIdentity: make(map[string]Conn),
		byConn:     make(map[Conn]string),
	}
}

// Register binds identity to c, replacing any previous holder of identity.
// The replaced connection, if any, is returned; it is not notified.
func (r *Registry) Register(identity string, c Conn) (displaced Conn) {
	r.mu.Lock()
	defer r.mu.Unlock()

	// A connection is registered under one identity at most.
	if old, ok := r.byConn[c]; ok && old != identity {
		delete(r.byIdentity, old)
	}

	if prev, ok := r.byIdentity[identity]; ok && prev != c {
		delete(r.byConn, prev)
		displaced = prev
	}

	r.byIdentity[identity] = c
	r.byConn[c] = identity
	return displaced
}

// Unregister removes the entry held by c, found by connection rather than by
// identity. It reports the identity that was removed, if any.
func (r *Registry) Unregister(c Conn) (string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	identity, ok := r.byConn[c]
	if !ok {
		return "", false
	}
	delete(r.byConn, c)
	if r.byIdentity[identity] == c {
		delete(r.byIdentity, identity)
	}
	return identity, true
}

// Lookup returns the connection currently bound to identity.
func (r *Registry) Lookup(identity string) (Conn, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	c, ok := r.byIdentity[identity]
	return c, ok
}

// Identities returns a snapshot of all bound identities, sorted.
func (r *Registry) Identities() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return r.identitiesLocked()
}

// Len returns the number of registered identities.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byIdentity)
}

// snapshot returns the identities and their connections taken under a single
// lock, so that fan-out can happen after the lock is released.
func (r *Registry) snapshot() ([]string, []Conn) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	conns := make([]Conn, 0, len(r.byIdentity))
	for _, c := range r.byIdentity {
		conns = append(conns, c)
	}
	return r.identitiesLocked(), conns
}

func (r *Registry) identitiesLocked() []string {
	ids := make([]string, 0, len(r.byIdentity))
	for id := range r.byIdentity {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

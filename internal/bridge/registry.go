package bridge

import (
	"log/slog"
	"sync"
)

// ClientConn is the connection surface the bridge pushes to. The production
// implementation wraps a WebSocket; tests substitute fakes.
type ClientConn interface {
	// ID returns a stable identifier for log correlation.
	ID() string
	// Send marshals v and writes it to the client. It fails once the
	// transport has closed.
	Send(v any) error
	// Open reports whether the transport is still usable.
	Open() bool
	// Close terminates the transport with the given reason.
	Close(reason string)
	// Manage records a session as owned by this connection.
	Manage(sessionName string)
	// Managed returns the sessions this connection owns.
	Managed() []string
}

// Registry maps session names to the connection being served updates for
// them. Presence in the registry is the single arbiter of whether a session
// is still being served: a poller whose session is absent must stop without
// pushing anything further.
type Registry struct {
	mu       sync.RWMutex
	sessions map[string]ClientConn
}

// NewRegistry creates an empty session registry.
func NewRegistry() *Registry {
	return &Registry{
		sessions: make(map[string]ClientConn),
	}
}

// Register records conn as the owner of sessionName.
func (r *Registry) Register(sessionName string, conn ClientConn) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sessions[sessionName] = conn
	slog.Info("Session registered", "session", sessionName, "conn", conn.ID())
}

// Lookup returns the connection serving sessionName, if any.
func (r *Registry) Lookup(sessionName string) (ClientConn, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	conn, ok := r.sessions[sessionName]
	return conn, ok
}

// Contains reports whether sessionName is still being served.
func (r *Registry) Contains(sessionName string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.sessions[sessionName]
	return ok
}

// Remove deregisters sessionName and reports whether it was present.
// Removing an absent session is a no-op.
func (r *Registry) Remove(sessionName string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.sessions[sessionName]; !ok {
		return false
	}
	delete(r.sessions, sessionName)
	return true
}

// Len returns the number of sessions currently being served.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

package gateway

import "sync"

// ConnectionRegistry tracks every live connection plus the per-user broadcast
// groups used for targeted notifications. A user holding several tabs has one
// entry per connection.
type ConnectionRegistry struct {
	mu    sync.RWMutex
	conns map[string]*Connection            // connection id -> connection
	users map[string]map[string]*Connection // user id -> connection id -> connection
}

// NewConnectionRegistry creates an empty registry.
func NewConnectionRegistry() *ConnectionRegistry {
	return &ConnectionRegistry{
		conns: make(map[string]*Connection),
		users: make(map[string]map[string]*Connection),
	}
}

// Add registers a connection in the global set and its user's group.
func (r *ConnectionRegistry) Add(conn *Connection) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.conns[conn.ID] = conn
	if r.users[conn.UserID] == nil {
		r.users[conn.UserID] = make(map[string]*Connection)
	}
	r.users[conn.UserID][conn.ID] = conn
}

// Remove drops a connection from both indexes, deleting the user group when
// it empties. Returns false if the connection was already gone.
func (r *ConnectionRegistry) Remove(conn *Connection) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.conns[conn.ID]; !ok {
		return false
	}
	delete(r.conns, conn.ID)

	if group, ok := r.users[conn.UserID]; ok {
		delete(group, conn.ID)
		if len(group) == 0 {
			delete(r.users, conn.UserID)
		}
	}
	return true
}

// Count returns the number of live connections.
func (r *ConnectionRegistry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.conns)
}

// All returns a snapshot of every live connection.
func (r *ConnectionRegistry) All() []*Connection {
	r.mu.RLock()
	defer r.mu.RUnlock()

	conns := make([]*Connection, 0, len(r.conns))
	for _, c := range r.conns {
		conns = append(conns, c)
	}
	return conns
}

// ForUser returns a snapshot of one user's connection group.
func (r *ConnectionRegistry) ForUser(userID string) []*Connection {
	r.mu.RLock()
	defer r.mu.RUnlock()

	group := r.users[userID]
	conns := make([]*Connection, 0, len(group))
	for _, c := range group {
		conns = append(conns, c)
	}
	return conns
}

package core

import "sync"

// identity is the user attached to a connection after identify.
type identity struct {
	userID int64
	name   string
}

// Registry is the bidirectional mapping between transport connections and
// user identities. A user may hold multiple simultaneous connections.
type Registry struct {
	mu         sync.RWMutex
	byID       map[string]*Client
	identities map[string]identity          // connID -> identity
	byUser     map[int64]map[string]*Client // userID -> connID -> client
}

// NewRegistry constructs an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		byID:       make(map[string]*Client),
		identities: make(map[string]identity),
		byUser:     make(map[int64]map[string]*Client),
	}
}

// Register adds a connection with no identity attached yet.
func (r *Registry) Register(c *Client) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.byID[c.ID] = c
}

// Identify attaches a user identity to a registered connection.
// Re-identifying moves the connection between user indexes.
func (r *Registry) Identify(c *Client, userID int64, name string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.byID[c.ID]; !ok {
		return
	}

	if prev, ok := r.identities[c.ID]; ok && prev.userID != userID {
		r.removeUserIndexLocked(prev.userID, c.ID)
	}

	r.identities[c.ID] = identity{userID: userID, name: name}
	conns, ok := r.byUser[userID]
	if !ok {
		conns = make(map[string]*Client)
		r.byUser[userID] = conns
	}
	conns[c.ID] = c
}

// UserOf returns the identity attached to a connection, if any.
func (r *Registry) UserOf(c *Client) (int64, string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	id, ok := r.identities[c.ID]
	return id.userID, id.name, ok
}

// ConnectionsOf returns all live connections of a user.
func (r *Registry) ConnectionsOf(userID int64) []*Client {
	r.mu.RLock()
	defer r.mu.RUnlock()

	conns, ok := r.byUser[userID]
	if !ok {
		return nil
	}
	out := make([]*Client, 0, len(conns))
	for _, c := range conns {
		out = append(out, c)
	}
	return out
}

// IsOnline reports whether the user has at least one live connection.
func (r *Registry) IsOnline(userID int64) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byUser[userID]) > 0
}

// Unregister removes a connection. It reports the identity the connection
// carried and whether this was the user's last connection.
func (r *Registry) Unregister(c *Client) (userID int64, lastConnection bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.byID, c.ID)

	id, ok := r.identities[c.ID]
	if !ok {
		return 0, false
	}
	delete(r.identities, c.ID)
	r.removeUserIndexLocked(id.userID, c.ID)
	return id.userID, len(r.byUser[id.userID]) == 0
}

// ConnectionCount returns the number of live connections.
func (r *Registry) ConnectionCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byID)
}

func (r *Registry) removeUserIndexLocked(userID int64, connID string) {
	conns, ok := r.byUser[userID]
	if !ok {
		return
	}
	delete(conns, connID)
	if len(conns) == 0 {
		delete(r.byUser, userID)
	}
}

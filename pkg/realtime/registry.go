package realtime

import (
	"sort"
	"sync"
)

// Registry maps user ids to their live connections. A user may hold several
// connections at once; the user is online while at least one is registered.
type Registry struct {
	mu    sync.RWMutex
	users map[string]map[string]Conn // user id -> conn id -> conn
	conns int
}

func NewRegistry() *Registry {
	return &Registry{users: make(map[string]map[string]Conn)}
}

// Register adds c. It returns false if c is already registered.
func (r *Registry) Register(c Conn) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	set, ok := r.users[c.UserID()]
	if !ok {
		set = make(map[string]Conn)
		r.users[c.UserID()] = set
	}
	if _, dup := set[c.ID()]; dup {
		return false
	}
	set[c.ID()] = c
	r.conns++
	return true
}

// Unregister removes exactly c. Unregistering a connection that is not
// registered, for example one whose removal already ran, is a no-op and
// returns false. Other connections of the same user are never touched.
func (r *Registry) Unregister(c Conn) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	set, ok := r.users[c.UserID()]
	if !ok {
		return false
	}
	cur, ok := set[c.ID()]
	if !ok || cur != c {
		return false
	}
	delete(set, c.ID())
	r.conns--
	if len(set) == 0 {
		delete(r.users, c.UserID())
	}
	return true
}

// Has reports whether c itself is registered.
func (r *Registry) Has(c Conn) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	cur, ok := r.users[c.UserID()][c.ID()]
	return ok && cur == c
}

// Lookup returns the live connections of userID, oldest first, or nil.
func (r *Registry) Lookup(userID string) []Conn {
	r.mu.RLock()
	defer r.mu.RUnlock()

	set := r.users[userID]
	if len(set) == 0 {
		return nil
	}
	out := make([]Conn, 0, len(set))
	for _, c := range set {
		out = append(out, c)
	}
	sortConns(out)
	return out
}

func (r *Registry) IsOnline(userID string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.users[userID]) > 0
}

// OnlineUserIDs returns a sorted snapshot of the users with a live connection.
func (r *Registry) OnlineUserIDs() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ids := make([]string, 0, len(r.users))
	for id := range r.users {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Conns returns every registered connection.
func (r *Registry) Conns() []Conn {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Conn, 0, r.conns)
	for _, set := range r.users {
		for _, c := range set {
			out = append(out, c)
		}
	}
	sortConns(out)
	return out
}

// Len returns the number of registered connections.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.conns
}

func sortConns(conns []Conn) {
	sort.Slice(conns, func(i, j int) bool {
		a, b := conns[i].ConnectedAt(), conns[j].ConnectedAt()
		if !a.Equal(b) {
			return a.Before(b)
		}
		return conns[i].ID() < conns[j].ID()
	})
}

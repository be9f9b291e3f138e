package realtime

import (
	"sync"

	"github.com/mahaj/chatter-box/pkg/model"
)

// PresenceChange describes one successful registry mutation.
type PresenceChange struct {
	UserID string
	// Online reports whether UserID still has at least one connection.
	Online bool
	// Transition is set when UserID went from offline to online or back.
	Transition bool
	Snapshot   []string
	Conns      int
}

// PresenceBroadcaster announces the full online set to every connection after
// each registry change.
//
// The mutation, the snapshot and the enqueue to every connection happen under
// one lock, so all connections observe snapshots in mutation order and a
// newly registered user is always part of the first announcement it sees.
type PresenceBroadcaster struct {
	mu       sync.Mutex
	registry *Registry
	pusher
	// onChange runs under the presence lock and must not block.
	onChange func(PresenceChange)
}

func NewPresenceBroadcaster(registry *Registry, p pusher, onChange func(PresenceChange)) *PresenceBroadcaster {
	return &PresenceBroadcaster{registry: registry, pusher: p, onChange: onChange}
}

// Connect registers c and announces the new snapshot. It returns false, and
// announces nothing, if c was already registered.
func (b *PresenceBroadcaster) Connect(c Conn) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	if !b.registry.Register(c) {
		return false
	}
	b.announce(c.UserID(), len(b.registry.Lookup(c.UserID())) == 1)
	return true
}

// Disconnect unregisters exactly c and announces the new snapshot. A stale
// or unknown connection is ignored without an announcement.
func (b *PresenceBroadcaster) Disconnect(c Conn) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	if !b.registry.Unregister(c) {
		return false
	}
	b.announce(c.UserID(), !b.registry.IsOnline(c.UserID()))
	return true
}

func (b *PresenceBroadcaster) announce(userID string, transition bool) {
	snapshot := b.registry.OnlineUserIDs()
	conns := b.registry.Conns()

	b.pushAll(conns, model.Event{Type: model.EventOnlineUsers, Data: snapshot})
	b.metrics.PresenceBroadcast()

	if b.onChange != nil {
		b.onChange(PresenceChange{
			UserID:     userID,
			Online:     b.registry.IsOnline(userID),
			Transition: transition,
			Snapshot:   snapshot,
			Conns:      len(conns),
		})
	}
}

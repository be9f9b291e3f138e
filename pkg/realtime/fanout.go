package realtime

import (
	"sync"

	"github.com/mahaj/chatter-box/pkg/model"
)

// Router resolves which live connections receive a persisted message.
//
// Direct messages go to every connection of the receiver. Room messages go to
// connections that subscribed to the room and whose owner is a room member.
// The sender's own connections never receive their message back.
type Router struct {
	registry *Registry
	pusher

	mu   sync.RWMutex
	subs map[string]map[string]Conn // room id -> conn id -> conn
}

func NewRouter(registry *Registry, p pusher) *Router {
	return &Router{
		registry: registry,
		pusher:   p,
		subs:     make(map[string]map[string]Conn),
	}
}

// Subscribe opts c into roomID fanout. It returns false if c is not
// registered or already subscribed.
func (r *Router) Subscribe(c Conn, roomID string) bool {
	if !r.registry.Has(c) {
		return false
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	set, ok := r.subs[roomID]
	if !ok {
		set = make(map[string]Conn)
		r.subs[roomID] = set
	}
	if _, dup := set[c.ID()]; dup {
		return false
	}
	set[c.ID()] = c
	return true
}

func (r *Router) Unsubscribe(c Conn, roomID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.removeLocked(c, roomID)
}

// UnsubscribeAll drops every subscription held by c.
func (r *Router) UnsubscribeAll(c Conn) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for roomID := range r.subs {
		r.removeLocked(c, roomID)
	}
}

func (r *Router) removeLocked(c Conn, roomID string) bool {
	set, ok := r.subs[roomID]
	if !ok {
		return false
	}
	if _, ok := set[c.ID()]; !ok {
		return false
	}
	delete(set, c.ID())
	if len(set) == 0 {
		delete(r.subs, roomID)
	}
	return true
}

// DropRoom removes all subscriptions to roomID and returns the connections
// that were subscribed.
func (r *Router) DropRoom(roomID string) []Conn {
	r.mu.Lock()
	set := r.subs[roomID]
	delete(r.subs, roomID)
	r.mu.Unlock()

	out := make([]Conn, 0, len(set))
	for _, c := range set {
		out = append(out, c)
	}
	sortConns(out)
	return out
}

// Subscribers returns the connections subscribed to roomID.
func (r *Router) Subscribers(roomID string) []Conn {
	r.mu.RLock()
	defer r.mu.RUnlock()

	set := r.subs[roomID]
	out := make([]Conn, 0, len(set))
	for _, c := range set {
		out = append(out, c)
	}
	sortConns(out)
	return out
}

// DeliverDirect pushes msg to the receiver's connections and returns how many
// accepted it. An offline receiver is not an error.
func (r *Router) DeliverDirect(msg *model.Message) int {
	if msg == nil || !msg.IsDirect() || msg.ReceiverID == msg.SenderID {
		return 0
	}
	ev := model.Event{Type: model.EventNewMessage, Data: msg}
	return r.pushAll(r.registry.Lookup(msg.ReceiverID), ev)
}

// DeliverRoom pushes msg to every subscribed connection of a member of room,
// except those of the sender, and returns how many accepted it.
func (r *Router) DeliverRoom(room *model.Room, msg *model.Message) int {
	if room == nil || msg == nil {
		return 0
	}
	members := make(map[string]struct{}, len(room.Members))
	for _, id := range room.Members {
		members[id] = struct{}{}
	}

	var targets []Conn
	for _, c := range r.Subscribers(room.ID) {
		if c.UserID() == msg.SenderID {
			continue
		}
		if _, ok := members[c.UserID()]; !ok {
			continue
		}
		targets = append(targets, c)
	}
	return r.pushAll(targets, model.Event{Type: model.EventNewRoomMessage, Data: msg})
}

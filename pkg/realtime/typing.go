package realtime

import "github.com/mahaj/chatter-box/pkg/model"

// TypingRelay forwards ephemeral typing signals between two users.
type TypingRelay struct {
	registry *Registry
	pusher
}

func NewTypingRelay(registry *Registry, p pusher) *TypingRelay {
	return &TypingRelay{registry: registry, pusher: p}
}

// RelayTyping pushes {fromUserId, isTyping} to every connection of to. The
// signal is dropped when to is offline.
func (t *TypingRelay) RelayTyping(from, to string, isTyping bool) int {
	if from == "" || to == "" || from == to {
		return 0
	}
	ev := model.Event{
		Type: model.EventTyping,
		Data: model.TypingState{FromUserID: from, IsTyping: isTyping},
	}
	return t.pushAll(t.registry.Lookup(to), ev)
}

package realtime

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/mahaj/chatter-box/pkg/model"
)

func TestRelayTyping(t *testing.T) {
	reg := NewRegistry()
	relay := NewTypingRelay(reg, pusher{log: zap.NewNop()})
	target := newFakeConn("b")
	reg.Register(target)

	assert.Equal(t, 1, relay.RelayTyping("a", "b", true))
	assert.Equal(t, 1, relay.RelayTyping("a", "b", false))

	got := target.received(model.EventTyping)
	require.Len(t, got, 2)
	assert.Equal(t, model.TypingState{FromUserID: "a", IsTyping: true}, got[0].Data)
	assert.Equal(t, model.TypingState{FromUserID: "a", IsTyping: false}, got[1].Data)
}

func TestRelayTyping_Offline(t *testing.T) {
	reg := NewRegistry()
	relay := NewTypingRelay(reg, pusher{log: zap.NewNop()})
	bystander := newFakeConn("c")
	reg.Register(bystander)

	assert.Equal(t, 0, relay.RelayTyping("a", "b", true))
	assert.Empty(t, bystander.received(model.EventTyping))
}

func TestRelayTyping_Repeated(t *testing.T) {
	reg := NewRegistry()
	relay := NewTypingRelay(reg, pusher{log: zap.NewNop()})
	target := newFakeConn("b")
	reg.Register(target)

	relay.RelayTyping("a", "b", true)
	relay.RelayTyping("a", "b", true)

	got := target.received(model.EventTyping)
	require.Len(t, got, 2)
	assert.Equal(t, got[0], got[1])
}

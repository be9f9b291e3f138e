package realtime

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/mahaj/chatter-box/pkg/metrics"
	"github.com/mahaj/chatter-box/pkg/model"
)

const (
	mirrorQueueSize = 1024
	mirrorTimeout   = 2 * time.Second
)

// PresenceMirror copies the online set to an external store.
type PresenceMirror interface {
	SetOnline(ctx context.Context, userID string) error
	SetOffline(ctx context.Context, userID string) error
	Reset(ctx context.Context) error
}

// Hub owns the registry, the presence broadcaster, the fanout router and the
// typing relay for the lifetime of one server process.
type Hub struct {
	registry *Registry
	presence *PresenceBroadcaster
	router   *Router
	typing   *TypingRelay

	log     *zap.Logger
	metrics *metrics.Metrics

	mirror  PresenceMirror
	mirrorQ chan PresenceChange
}

type Option func(*Hub)

func WithLogger(l *zap.Logger) Option {
	return func(h *Hub) { h.log = l }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(h *Hub) { h.metrics = m }
}

// WithMirror mirrors online/offline transitions to m, in order, from Run.
func WithMirror(m PresenceMirror) Option {
	return func(h *Hub) { h.mirror = m }
}

func NewHub(opts ...Option) *Hub {
	h := &Hub{
		registry: NewRegistry(),
		log:      zap.NewNop(),
		mirrorQ:  make(chan PresenceChange, mirrorQueueSize),
	}
	for _, opt := range opts {
		opt(h)
	}

	p := pusher{log: h.log, metrics: h.metrics}
	h.presence = NewPresenceBroadcaster(h.registry, p, h.onPresence)
	h.router = NewRouter(h.registry, p)
	h.typing = NewTypingRelay(h.registry, p)
	return h
}

// Run mirrors presence transitions until ctx is cancelled, then closes every
// live connection.
func (h *Hub) Run(ctx context.Context) error {
	defer h.closeAll()

	if h.mirror != nil {
		if err := h.withTimeout(ctx, h.mirror.Reset); err != nil {
			h.log.Warn("presence_mirror_reset_failed", zap.Error(err))
		}
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case ch := <-h.mirrorQ:
			h.applyMirror(ctx, ch)
		}
	}
}

func (h *Hub) onPresence(ch PresenceChange) {
	h.metrics.SetConnections(ch.Conns, len(ch.Snapshot))
	if h.mirror == nil || !ch.Transition {
		return
	}
	select {
	case h.mirrorQ <- ch:
	default:
		h.log.Warn("presence_mirror_queue_full", zap.String("user_id", ch.UserID))
	}
}

func (h *Hub) applyMirror(ctx context.Context, ch PresenceChange) {
	op := func(ctx context.Context) error { return h.mirror.SetOffline(ctx, ch.UserID) }
	if ch.Online {
		op = func(ctx context.Context) error { return h.mirror.SetOnline(ctx, ch.UserID) }
	}
	if err := h.withTimeout(ctx, op); err != nil {
		h.log.Warn("presence_mirror_failed",
			zap.String("user_id", ch.UserID),
			zap.Bool("online", ch.Online),
			zap.Error(err),
		)
	}
}

func (h *Hub) withTimeout(ctx context.Context, fn func(context.Context) error) error {
	ctx, cancel := context.WithTimeout(ctx, mirrorTimeout)
	defer cancel()
	return fn(ctx)
}

func (h *Hub) closeAll() {
	conns := h.registry.Conns()
	for _, c := range conns {
		_ = c.Close()
	}
	h.log.Info("hub_stopped", zap.Int("closed", len(conns)))
}

// Connect registers c and announces presence.
func (h *Hub) Connect(c Conn) bool {
	if !h.presence.Connect(c) {
		return false
	}
	h.log.Info("client_registered",
		zap.String("user_id", c.UserID()),
		zap.String("conn_id", c.ID()),
	)
	return true
}

// Disconnect drops the subscriptions of c and unregisters it. Stale
// disconnects leave the registry untouched.
func (h *Hub) Disconnect(c Conn) bool {
	h.router.UnsubscribeAll(c)
	if !h.presence.Disconnect(c) {
		return false
	}
	h.log.Info("client_unregistered",
		zap.String("user_id", c.UserID()),
		zap.String("conn_id", c.ID()),
		zap.Duration("connected_for", time.Since(c.ConnectedAt())),
	)
	return true
}

func (h *Hub) JoinRoom(c Conn, roomID string) bool {
	return h.router.Subscribe(c, roomID)
}

func (h *Hub) LeaveRoom(c Conn, roomID string) bool {
	return h.router.Unsubscribe(c, roomID)
}

func (h *Hub) DeliverDirect(msg *model.Message) int {
	return h.router.DeliverDirect(msg)
}

func (h *Hub) DeliverRoom(room *model.Room, msg *model.Message) int {
	return h.router.DeliverRoom(room, msg)
}

func (h *Hub) RelayTyping(from, to string, isTyping bool) int {
	return h.typing.RelayTyping(from, to, isTyping)
}

func (h *Hub) OnlineUserIDs() []string {
	return h.registry.OnlineUserIDs()
}

// DropRoom removes every live subscription to roomID and tells the affected
// connections with a leftRoom event.
func (h *Hub) DropRoom(roomID string) int {
	conns := h.router.DropRoom(roomID)
	ev := model.Event{Type: model.EventLeftRoom, Data: model.RoomRequest{RoomID: roomID}}
	return h.router.pushAll(conns, ev)
}

// SendToUser pushes ev to every connection of userID.
func (h *Hub) SendToUser(userID string, ev model.Event) int {
	return h.router.pushAll(h.registry.Lookup(userID), ev)
}

// Broadcast pushes ev to every live connection.
func (h *Hub) Broadcast(ev model.Event) int {
	return h.router.pushAll(h.registry.Conns(), ev)
}

// Send pushes ev to a single connection.
func (h *Hub) Send(c Conn, ev model.Event) bool {
	return h.router.push(c, ev)
}

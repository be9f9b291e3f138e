// Package realtime maps authenticated users to live connections and pushes
// presence snapshots, new messages and typing signals to them.
package realtime

import (
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/mahaj/chatter-box/pkg/metrics"
	"github.com/mahaj/chatter-box/pkg/model"
)

var (
	ErrSendBufferFull = errors.New("send buffer full")
	ErrConnClosed     = errors.New("connection closed")
)

// Conn is one live push connection owned by a single user.
//
// Push must not block: it either enqueues the event or fails with
// ErrSendBufferFull or ErrConnClosed.
type Conn interface {
	ID() string
	UserID() string
	ConnectedAt() time.Time
	Push(ev model.Event) error
	Close() error
}

// pusher delivers events to connections and accounts for failures. A failed
// push is logged and dropped, never retried.
type pusher struct {
	log     *zap.Logger
	metrics *metrics.Metrics
}

func (p pusher) push(c Conn, ev model.Event) bool {
	if err := c.Push(ev); err != nil {
		reason := "error"
		switch {
		case errors.Is(err, ErrSendBufferFull):
			reason = "buffer_full"
		case errors.Is(err, ErrConnClosed):
			reason = "closed"
		}
		p.metrics.Dropped(string(ev.Type), reason)
		lvl := zap.WarnLevel
		if reason == "closed" {
			lvl = zap.DebugLevel
		}
		p.log.Log(lvl, "push_dropped",
			zap.String("event", string(ev.Type)),
			zap.String("user_id", c.UserID()),
			zap.String("conn_id", c.ID()),
			zap.Error(err),
		)
		return false
	}
	p.metrics.Pushed(string(ev.Type))
	return true
}

// pushAll returns the number of connections that accepted ev.
func (p pusher) pushAll(conns []Conn, ev model.Event) int {
	n := 0
	for _, c := range conns {
		if p.push(c, ev) {
			n++
		}
	}
	return n
}

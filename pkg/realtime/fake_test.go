package realtime

import (
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/mahaj/chatter-box/pkg/model"
)

var connSeq atomic.Int64

// fakeConn records every pushed event.
type fakeConn struct {
	id     string
	user   string
	at     time.Time
	mu     sync.Mutex
	events []model.Event
	closed bool
	err    error
}

func newFakeConn(user string) *fakeConn {
	n := connSeq.Add(1)
	return &fakeConn{
		id:   "conn-" + strconv.FormatInt(n, 10),
		user: user,
		at:   time.Unix(0, n),
	}
}

func (f *fakeConn) ID() string             { return f.id }
func (f *fakeConn) UserID() string         { return f.user }
func (f *fakeConn) ConnectedAt() time.Time { return f.at }

func (f *fakeConn) Push(ev model.Event) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return ErrConnClosed
	}
	if f.err != nil {
		return f.err
	}
	f.events = append(f.events, ev)
	return nil
}

func (f *fakeConn) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

func (f *fakeConn) isClosed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}

// received returns the pushed events of type t.
func (f *fakeConn) received(t model.EventType) []model.Event {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []model.Event
	for _, ev := range f.events {
		if ev.Type == t {
			out = append(out, ev)
		}
	}
	return out
}

// lastPresence returns the latest presence snapshot seen, or nil.
func (f *fakeConn) lastPresence() []string {
	evs := f.received(model.EventOnlineUsers)
	if len(evs) == 0 {
		return nil
	}
	return evs[len(evs)-1].Data.([]string)
}

func (f *fakeConn) reset() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = nil
}

package main

import (
	"sort"
	"sync"
	"time"
)

// typingTracker holds the peer typing state per conversation. A peer is
// typing from a typing event until a stopTyping event, a message from that
// peer, or timeout of inactivity.
type typingTracker struct {
	mu      sync.Mutex
	timeout time.Duration
	now     func() time.Time
	since   map[string]time.Time
}

func newTypingTracker(timeout time.Duration) *typingTracker {
	return &typingTracker{
		timeout: timeout,
		now:     time.Now,
		since:   make(map[string]time.Time),
	}
}

// apply records a typing or stopTyping event from peer.
func (t *typingTracker) apply(peer string, isTyping bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if isTyping {
		t.since[peer] = t.now()
		return
	}
	delete(t.since, peer)
}

// message ends peer's typing state.
func (t *typingTracker) message(peer string) {
	t.apply(peer, false)
}

func (t *typingTracker) isTyping(peer string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.activeLocked(peer)
}

func (t *typingTracker) activeLocked(peer string) bool {
	at, ok := t.since[peer]
	if !ok {
		return false
	}
	if t.timeout > 0 && t.now().Sub(at) >= t.timeout {
		delete(t.since, peer)
		return false
	}
	return true
}

// active lists the peers currently typing, sorted.
func (t *typingTracker) active() []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	var out []string
	for peer := range t.since {
		if t.activeLocked(peer) {
			out = append(out, peer)
		}
	}
	sort.Strings(out)
	return out
}

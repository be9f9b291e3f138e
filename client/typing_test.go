package main

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestTypingTracker(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	tr := newTypingTracker(5 * time.Second)
	tr.now = func() time.Time { return now }

	assert.False(t, tr.isTyping("bob"))

	tr.apply("bob", true)
	tr.apply("bob", true)
	assert.True(t, tr.isTyping("bob"))

	tr.apply("bob", false)
	assert.False(t, tr.isTyping("bob"), "stopTyping ends typing")

	tr.apply("bob", true)
	tr.message("bob")
	assert.False(t, tr.isTyping("bob"), "a message ends typing")

	tr.apply("bob", true)
	tr.apply("carol", true)
	assert.Equal(t, []string{"bob", "carol"}, tr.active())

	now = now.Add(3 * time.Second)
	tr.apply("carol", true)
	now = now.Add(2 * time.Second)
	assert.False(t, tr.isTyping("bob"), "inactivity timeout")
	assert.Equal(t, []string{"carol"}, tr.active())
}

func TestTypingTracker_NoTimeout(t *testing.T) {
	now := time.Unix(0, 0)
	tr := newTypingTracker(0)
	tr.now = func() time.Time { return now }

	tr.apply("bob", true)
	now = now.Add(time.Hour)
	assert.True(t, tr.isTyping("bob"))
}

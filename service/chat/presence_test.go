package chat

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLocalPresenceBindLookup(t *testing.T) {
	p := NewLocalPresence()

	p.Bind("user-1", "conn-1")
	connID, ok := p.Lookup("user-1")
	assert.True(t, ok)
	assert.Equal(t, "conn-1", connID)

	_, ok = p.Lookup("user-2")
	assert.False(t, ok)
}

func TestLocalPresenceReconnectWins(t *testing.T) {
	p := NewLocalPresence()

	p.Bind("user-1", "conn-old")
	p.Bind("user-1", "conn-new")

	connID, ok := p.Lookup("user-1")
	assert.True(t, ok)
	assert.Equal(t, "conn-new", connID)
}

func TestLocalPresenceStaleUnbindIgnored(t *testing.T) {
	p := NewLocalPresence()

	// Reconnect happens before the old connection's teardown runs.
	p.Bind("user-1", "conn-old")
	p.Bind("user-1", "conn-new")
	p.Unbind("user-1", "conn-old")

	connID, ok := p.Lookup("user-1")
	assert.True(t, ok, "a stale teardown must not evict the fresh binding")
	assert.Equal(t, "conn-new", connID)

	p.Unbind("user-1", "conn-new")
	_, ok = p.Lookup("user-1")
	assert.False(t, ok)
}

func TestLocalPresenceUnconditionalUnbind(t *testing.T) {
	p := NewLocalPresence()

	p.Bind("user-1", "conn-1")
	p.Unbind("user-1", "")

	_, ok := p.Lookup("user-1")
	assert.False(t, ok)
}

func TestLocalPresenceIgnoresEmptyKeys(t *testing.T) {
	p := NewLocalPresence()

	p.Bind("", "conn-1")
	_, ok := p.Lookup("")
	assert.False(t, ok)
}

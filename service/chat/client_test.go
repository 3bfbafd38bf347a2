package chat

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEnqueueAfterCloseIsDropped(t *testing.T) {
	c := testClient("c1")
	c.Enqueue([]byte("before"))
	require.Len(t, c.Send, 1)

	c.Close()

	assert.NotPanics(t, func() {
		c.Enqueue([]byte("after"))
	})
	assert.Len(t, c.Send, 1, "a closed client must drop, not queue")
}

func TestCloseIsIdempotent(t *testing.T) {
	c := testClient("c1")
	assert.NotPanics(t, func() {
		c.Close()
		c.Close()
	})
}

func TestLateFanoutAfterTeardown(t *testing.T) {
	s := NewServer(ServerConf{}, nil, nil, nil, NewLocalPresence())
	c := testClient("conn-1")
	s.registry.AddClient(c)
	s.registry.Join("room-1", c)

	// A fan-out goroutine snapshots membership, then the connection tears
	// down before delivery runs.
	snapshot := s.registry.MembersOf("room-1")
	require.Len(t, snapshot, 1)
	s.teardown(c)

	assert.NotPanics(t, func() {
		for _, m := range snapshot {
			m.Enqueue([]byte("late frame"))
		}
	})
	assert.Len(t, c.Send, 0)
}

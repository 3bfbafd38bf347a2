package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRoomIDSymmetric(t *testing.T) {
	pairs := [][2]string{
		{"alice", "bob"},
		{"64f1a2b3c4d5e6f7a8b9c0d1", "64f1a2b3c4d5e6f7a8b9c0d2"},
		{"z-user", "a-user"},
		{"same", "same"},
	}
	for _, p := range pairs {
		assert.Equal(t, RoomID(p[0], p[1]), RoomID(p[1], p[0]), "room id must not depend on argument order")
	}
}

func TestRoomIDSortedJoin(t *testing.T) {
	assert.Equal(t, "alice-bob", RoomID("bob", "alice"))
	assert.Equal(t, "alice-bob", RoomID("alice", "bob"))
}

func TestConversationCounterpart(t *testing.T) {
	conv := &Conversation{Participants: []string{"user-a", "user-b"}}

	assert.Equal(t, "user-b", conv.Counterpart("user-a", "nick-a"))
	assert.Equal(t, "user-a", conv.Counterpart("user-b", ""))
	// Matching by nickname form also excludes the caller.
	conv = &Conversation{Participants: []string{"nick-a", "user-b"}}
	assert.Equal(t, "user-b", conv.Counterpart("user-a", "nick-a"))
}

func TestConversationUnreadFor(t *testing.T) {
	conv := &Conversation{
		UnreadCounts: []UnreadCount{
			{User: "user-a", Count: 3},
			{User: "user-b", Count: 0},
		},
	}
	assert.Equal(t, int64(3), conv.UnreadFor("user-a", ""))
	assert.Equal(t, int64(3), conv.UnreadFor("other", "user-a"))
	assert.Equal(t, int64(0), conv.UnreadFor("user-b", ""))
	assert.Equal(t, int64(0), conv.UnreadFor("missing", ""))
}

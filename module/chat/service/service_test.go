package service

import (
	"context"
	"sort"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"PrivChat/module/chat/crypto"
	chatmodel "PrivChat/module/chat/model"
	usermodel "PrivChat/module/user/model"
	"PrivChat/tools/errs"
)

// ===== in-memory fakes =====

type memUsers struct {
	users []*usermodel.User
}

func (m *memUsers) Resolve(_ context.Context, id string) (*usermodel.User, error) {
	for _, u := range m.users {
		if u.CanonicalID() == id || (u.Nickname != "" && u.Nickname == id) || u.Email == id {
			return u, nil
		}
	}
	return nil, errs.ErrUserNotFound.WrapMsg("no strategy matched", "id", id)
}

func (m *memUsers) ListOthers(_ context.Context, selfID, selfNickname string) ([]*usermodel.User, error) {
	var out []*usermodel.User
	for _, u := range m.users {
		if u.CanonicalID() == selfID || (u.Nickname != "" && u.Nickname == selfNickname) {
			continue
		}
		out = append(out, u)
	}
	return out, nil
}

type memStore struct {
	convs map[string]*chatmodel.Conversation
	msgs  []*chatmodel.Message
}

func newMemStore() *memStore {
	return &memStore{convs: make(map[string]*chatmodel.Conversation)}
}

func (m *memStore) GetConversation(_ context.Context, roomID string) (*chatmodel.Conversation, error) {
	return m.convs[roomID], nil
}

func (m *memStore) CreateConversation(_ context.Context, a, b usermodel.Profile, roomID string) (*chatmodel.Conversation, error) {
	now := time.Now()
	conv := &chatmodel.Conversation{
		RoomID:           roomID,
		Participants:     []string{a.ID, b.ID},
		ParticipantsInfo: []usermodel.Profile{a, b},
		UnreadCounts: []chatmodel.UnreadCount{
			{User: a.ID, Count: 0},
			{User: b.ID, Count: 0},
		},
		CreatedAt: now,
		UpdatedAt: now,
	}
	m.convs[roomID] = conv
	return conv, nil
}

func (m *memStore) ListConversations(_ context.Context, userID, nickname string) ([]*chatmodel.Conversation, error) {
	var out []*chatmodel.Conversation
	for _, conv := range m.convs {
		for _, p := range conv.Participants {
			if p == userID || (nickname != "" && p == nickname) {
				out = append(out, conv)
				break
			}
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UpdatedAt.After(out[j].UpdatedAt) })
	return out, nil
}

func (m *memStore) ApplyMessage(ctx context.Context, roomID string, sender, recipient usermodel.Profile, last chatmodel.LastMessage) error {
	conv := m.convs[roomID]
	if conv == nil {
		var err error
		conv, err = m.CreateConversation(ctx, sender, recipient, roomID)
		if err != nil {
			return err
		}
	}
	lm := last
	conv.LastMessage = &lm
	conv.UpdatedAt = last.CreatedAt
	for i := range conv.UnreadCounts {
		if conv.UnreadCounts[i].User == recipient.ID {
			conv.UnreadCounts[i].Count++
		}
	}
	return nil
}

func (m *memStore) ResetUnread(_ context.Context, roomID, userID string) error {
	conv := m.convs[roomID]
	if conv == nil {
		return nil
	}
	for i := range conv.UnreadCounts {
		if conv.UnreadCounts[i].User == userID {
			conv.UnreadCounts[i].Count = 0
		}
	}
	return nil
}

func (m *memStore) InsertMessage(_ context.Context, msg *chatmodel.Message) (string, error) {
	msg.ID = primitive.NewObjectID()
	m.msgs = append(m.msgs, msg)
	return msg.StoreID(), nil
}

func (m *memStore) History(_ context.Context, roomID string) ([]*chatmodel.Message, error) {
	var out []*chatmodel.Message
	for _, msg := range m.msgs {
		if msg.RoomID == roomID {
			out = append(out, msg)
		}
	}
	return out, nil
}

func (m *memStore) MarkRoomRead(_ context.Context, roomID, receiver string) (int64, error) {
	var flipped int64
	for _, msg := range m.msgs {
		if msg.RoomID == roomID && msg.Receiver == receiver && !msg.IsRead {
			msg.IsRead = true
			flipped++
		}
	}
	return flipped, nil
}

func (m *memStore) ReadMessageIDs(_ context.Context, roomID, receiver string) ([]string, error) {
	var out []string
	for _, msg := range m.msgs {
		if msg.RoomID == roomID && msg.Receiver == receiver && msg.IsRead {
			out = append(out, msg.StoreID())
		}
	}
	return out, nil
}

func (m *memStore) MarkRead(_ context.Context, ids []string, receiver string) (int64, error) {
	wanted := make(map[string]bool, len(ids))
	for _, id := range ids {
		wanted[id] = true
	}
	var flipped int64
	for _, msg := range m.msgs {
		if wanted[msg.StoreID()] && msg.Receiver == receiver && !msg.IsRead {
			msg.IsRead = true
			flipped++
		}
	}
	return flipped, nil
}

// ===== fixture =====

type world struct {
	svc   *Service
	store *memStore
	userA *usermodel.User
	userB *usermodel.User
	selfA Identity
	selfB Identity
}

func newWorld(t *testing.T) *world {
	t.Helper()
	userA := &usermodel.User{ID: primitive.NewObjectID(), Nickname: "alice", Email: "alice@example.com"}
	userB := &usermodel.User{ID: primitive.NewObjectID(), Nickname: "bob", Email: "bob@example.com"}

	store := newMemStore()
	svc := New(
		&memUsers{users: []*usermodel.User{userA, userB}},
		store, store,
		crypto.NewCipher("test-secret"),
		30,
	)
	return &world{
		svc:   svc,
		store: store,
		userA: userA,
		userB: userB,
		selfA: Identity{UserID: userA.CanonicalID(), Nickname: "alice", Email: userA.Email},
		selfB: Identity{UserID: userB.CanonicalID(), Nickname: "bob", Email: userB.Email},
	}
}

// ===== tests =====

func TestJoinEmptyRoomCreatesConversation(t *testing.T) {
	w := newWorld(t)
	ctx := context.Background()

	room, err := w.svc.Room(ctx, w.selfA, "bob")
	require.NoError(t, err)

	assert.Equal(t, chatmodel.RoomID(w.selfA.UserID, w.selfB.UserID), room.RoomID)
	assert.Equal(t, w.selfB.UserID, room.Recipient.ID)

	hist, err := w.svc.History(ctx, w.selfA, room.RoomID)
	require.NoError(t, err)
	assert.Empty(t, hist.Messages)
	assert.Empty(t, hist.ReadMessageIDs)

	conv := w.store.convs[room.RoomID]
	require.NotNil(t, conv)
	assert.Equal(t, int64(0), conv.UnreadFor(w.selfA.UserID, "alice"))
	assert.Equal(t, int64(0), conv.UnreadFor(w.selfB.UserID, "bob"))
}

func TestJoinIsSymmetricAcrossParticipants(t *testing.T) {
	w := newWorld(t)
	ctx := context.Background()

	roomA, err := w.svc.Room(ctx, w.selfA, "bob")
	require.NoError(t, err)
	roomB, err := w.svc.Room(ctx, w.selfB, "alice")
	require.NoError(t, err)

	assert.Equal(t, roomA.RoomID, roomB.RoomID)
	assert.Len(t, w.store.convs, 1, "both perspectives must land on the same conversation")
}

func TestHistoryCoversMessagesSentAfterRoomResolution(t *testing.T) {
	w := newWorld(t)
	ctx := context.Background()

	room, err := w.svc.Room(ctx, w.selfB, "alice")
	require.NoError(t, err)

	// Counterpart sends between room resolution and the replay. The caller
	// joins the broadcast group in that window, so the replay must still
	// contain the message.
	_, err = w.svc.Send(ctx, w.selfA, "bob", "slipped in", "")
	require.NoError(t, err)

	hist, err := w.svc.History(ctx, w.selfB, room.RoomID)
	require.NoError(t, err)
	require.Len(t, hist.Messages, 1)
	assert.Equal(t, "slipped in", hist.Messages[0].Content)
	assert.Len(t, hist.ReadMessageIDs, 1)
}

func TestSendStoresCiphertextOnly(t *testing.T) {
	w := newWorld(t)
	ctx := context.Background()

	res, err := w.svc.Send(ctx, w.selfA, "bob", "secret greeting", "")
	require.NoError(t, err)

	require.Len(t, w.store.msgs, 1)
	stored := w.store.msgs[0]

	assert.NotEqual(t, "secret greeting", stored.Content, "plaintext must never reach the store")
	assert.Contains(t, stored.Content, ":")
	assert.Equal(t, crypto.AlgorithmAES256, stored.EncryptionAlgorithm)
	assert.False(t, stored.IsRead)

	// Fan-out object carries the original plaintext.
	assert.Equal(t, "secret greeting", res.Message.Content)

	// The stored form round-trips with the literal (sender, receiver) pair.
	plain, err := crypto.NewCipher("test-secret").Decrypt(stored.Content, stored.Sender, stored.Receiver)
	require.NoError(t, err)
	assert.Equal(t, "secret greeting", plain)

	// Conversation snapshot stays in ciphertext form.
	conv := w.store.convs[res.RoomID]
	require.NotNil(t, conv)
	require.NotNil(t, conv.LastMessage)
	assert.Equal(t, stored.Content, conv.LastMessage.Content)
}

func TestUnreadAccumulationAndMarkReadIdempotence(t *testing.T) {
	w := newWorld(t)
	ctx := context.Background()

	var roomID string
	var ids []string
	for i := 0; i < 3; i++ {
		res, err := w.svc.Send(ctx, w.selfA, "bob", "message", "")
		require.NoError(t, err)
		roomID = res.RoomID
		ids = append(ids, res.Message.ID)
	}

	conv := w.store.convs[roomID]
	require.NotNil(t, conv)
	assert.Equal(t, int64(3), conv.UnreadFor(w.selfB.UserID, "bob"))
	assert.Equal(t, int64(0), conv.UnreadFor(w.selfA.UserID, "alice"))

	// First mark_read flips everything and resets the counter.
	changed, err := w.svc.MarkRead(ctx, w.selfB, roomID, ids)
	require.NoError(t, err)
	assert.True(t, changed)
	assert.Equal(t, int64(0), conv.UnreadFor(w.selfB.UserID, "bob"))

	// Second call with the same set is a no-op: no re-broadcast owed.
	changed, err = w.svc.MarkRead(ctx, w.selfB, roomID, ids)
	require.NoError(t, err)
	assert.False(t, changed)
}

func TestMarkReadIgnoresMessagesAddressedToOthers(t *testing.T) {
	w := newWorld(t)
	ctx := context.Background()

	res, err := w.svc.Send(ctx, w.selfA, "bob", "for bob only", "")
	require.NoError(t, err)

	// The sender cannot mark their own outbound message as read.
	changed, err := w.svc.MarkRead(ctx, w.selfA, res.RoomID, []string{res.Message.ID})
	require.NoError(t, err)
	assert.False(t, changed)
	assert.False(t, w.store.msgs[0].IsRead)
}

func TestJoinMarksPendingMessagesRead(t *testing.T) {
	w := newWorld(t)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		_, err := w.svc.Send(ctx, w.selfA, "bob", "unread", "")
		require.NoError(t, err)
	}

	room, err := w.svc.Room(ctx, w.selfB, "alice")
	require.NoError(t, err)
	hist, err := w.svc.History(ctx, w.selfB, room.RoomID)
	require.NoError(t, err)

	assert.Len(t, hist.ReadMessageIDs, 2)
	for _, msg := range w.store.msgs {
		assert.True(t, msg.IsRead)
	}
	conv := w.store.convs[room.RoomID]
	assert.Equal(t, int64(0), conv.UnreadFor(w.selfB.UserID, "bob"))

	// Rejoining finds nothing unread: no receipt owed the second time.
	hist, err = w.svc.History(ctx, w.selfB, room.RoomID)
	require.NoError(t, err)
	assert.Empty(t, hist.ReadMessageIDs)
}

func TestHistoryDecryptsWithStoredOrderAndDegradesPerMessage(t *testing.T) {
	w := newWorld(t)
	ctx := context.Background()

	_, err := w.svc.Send(ctx, w.selfA, "bob", "first message", "")
	require.NoError(t, err)
	_, err = w.svc.Send(ctx, w.selfB, "alice", "reply message", "")
	require.NoError(t, err)
	_, err = w.svc.Send(ctx, w.selfA, "bob", "damaged later", "")
	require.NoError(t, err)

	// Simulate at-rest corruption of the third message.
	w.store.msgs[2].Content = "garbage-without-separator"

	room, err := w.svc.Room(ctx, w.selfB, "alice")
	require.NoError(t, err)
	hist, err := w.svc.History(ctx, w.selfB, room.RoomID)
	require.NoError(t, err)
	require.Len(t, hist.Messages, 3)

	assert.Equal(t, "first message", hist.Messages[0].Content)
	assert.Equal(t, "reply message", hist.Messages[1].Content, "messages sent by either role must decrypt")
	assert.Equal(t, UndeliverableSentinel, hist.Messages[2].Content, "one damaged message must not abort history")
}

func TestSendToUnknownRecipient(t *testing.T) {
	w := newWorld(t)

	_, err := w.svc.Send(context.Background(), w.selfA, "nobody", "hello", "")
	require.Error(t, err)
	assert.True(t, errs.ErrUserNotFound.Is(err))

	assert.Empty(t, w.store.msgs, "nothing persists when resolution fails")
}

func TestConversationsPreviewTruncation(t *testing.T) {
	w := newWorld(t)
	ctx := context.Background()

	long := strings.Repeat("가", 45)
	_, err := w.svc.Send(ctx, w.selfA, "bob", long, "")
	require.NoError(t, err)

	convs, err := w.svc.Conversations(ctx, w.selfB)
	require.NoError(t, err)
	require.Len(t, convs, 1)

	require.NotNil(t, convs[0].LastMessage)
	assert.Equal(t, strings.Repeat("가", 30)+"...", convs[0].LastMessage.Content)
	assert.Equal(t, int64(1), convs[0].UnreadCount)
	assert.Equal(t, w.selfA.UserID, convs[0].Participant.ID)
}

func TestConversationsShortPreviewNotTruncated(t *testing.T) {
	w := newWorld(t)
	ctx := context.Background()

	_, err := w.svc.Send(ctx, w.selfA, "bob", "short", "")
	require.NoError(t, err)

	convs, err := w.svc.Conversations(ctx, w.selfB)
	require.NoError(t, err)
	require.Len(t, convs, 1)
	assert.Equal(t, "short", convs[0].LastMessage.Content)
}

func TestConversationsDamagedPreviewLeftEncrypted(t *testing.T) {
	w := newWorld(t)
	ctx := context.Background()

	res, err := w.svc.Send(ctx, w.selfA, "bob", "will be damaged", "")
	require.NoError(t, err)

	conv := w.store.convs[res.RoomID]
	conv.LastMessage.Content = "0011223344556677:notdecryptable"

	convs, err := w.svc.Conversations(ctx, w.selfB)
	require.NoError(t, err)
	require.Len(t, convs, 1)
	assert.Equal(t, "0011223344556677:notdecryptable", convs[0].LastMessage.Content,
		"a failed preview decrypt must leave the stored snapshot untouched")
}

func TestConversationsSortedByUpdateTimeDescending(t *testing.T) {
	w := newWorld(t)
	ctx := context.Background()

	userC := &usermodel.User{ID: primitive.NewObjectID(), Nickname: "carol", Email: "carol@example.com"}
	w.svc.users.(*memUsers).users = append(w.svc.users.(*memUsers).users, userC)

	first, err := w.svc.Send(ctx, w.selfA, "bob", "older", "")
	require.NoError(t, err)
	w.store.convs[first.RoomID].UpdatedAt = time.Now().Add(-time.Hour)

	second, err := w.svc.Send(ctx, w.selfA, "carol", "newer", "")
	require.NoError(t, err)

	convs, err := w.svc.Conversations(ctx, w.selfA)
	require.NoError(t, err)
	require.Len(t, convs, 2)
	assert.Equal(t, second.RoomID, convs[0].ID)
	assert.Equal(t, first.RoomID, convs[1].ID)
}

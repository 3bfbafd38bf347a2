package service

import (
	"context"
	"time"

	"PrivChat/logger"
	"PrivChat/module/chat/crypto"
	chatmodel "PrivChat/module/chat/model"
	usermodel "PrivChat/module/user/model"
	"PrivChat/tools/errs"
)

// UndeliverableSentinel replaces the content of a historical message whose
// ciphertext can no longer be decrypted. One damaged message never aborts
// loading the rest of a room's history.
const UndeliverableSentinel = "DECRYPTION_ERROR"

// Identity is the authenticated binding carried by a connection.
type Identity struct {
	UserID   string
	Nickname string
	Email    string
}

func (id Identity) Profile() usermodel.Profile {
	return usermodel.Profile{ID: id.UserID, Email: id.Email, Nickname: id.Nickname}
}

// UserStore is the directory surface the pipeline needs.
type UserStore interface {
	Resolve(ctx context.Context, id string) (*usermodel.User, error)
	ListOthers(ctx context.Context, selfID, selfNickname string) ([]*usermodel.User, error)
}

// ConversationStore persists the durable room records.
type ConversationStore interface {
	GetConversation(ctx context.Context, roomID string) (*chatmodel.Conversation, error)
	CreateConversation(ctx context.Context, a, b usermodel.Profile, roomID string) (*chatmodel.Conversation, error)
	ListConversations(ctx context.Context, userID, nickname string) ([]*chatmodel.Conversation, error)
	ApplyMessage(ctx context.Context, roomID string, sender, recipient usermodel.Profile, last chatmodel.LastMessage) error
	ResetUnread(ctx context.Context, roomID, userID string) error
}

// MessageStore persists individual messages.
type MessageStore interface {
	InsertMessage(ctx context.Context, msg *chatmodel.Message) (string, error)
	History(ctx context.Context, roomID string) ([]*chatmodel.Message, error)
	MarkRoomRead(ctx context.Context, roomID, receiver string) (int64, error)
	ReadMessageIDs(ctx context.Context, roomID, receiver string) ([]string, error)
	MarkRead(ctx context.Context, ids []string, receiver string) (int64, error)
}

// Service is the message pipeline: room resolution, encryption at rest,
// history replay, read receipts, unread counters, and the inbox view.
type Service struct {
	users        UserStore
	convs        ConversationStore
	msgs         MessageStore
	cipher       *crypto.Cipher
	previewLimit int
}

func New(users UserStore, convs ConversationStore, msgs MessageStore, cipher *crypto.Cipher, previewLimit int) *Service {
	if previewLimit <= 0 {
		previewLimit = 30
	}
	return &Service{
		users:        users,
		convs:        convs,
		msgs:         msgs,
		cipher:       cipher,
		previewLimit: previewLimit,
	}
}

// ResolveUser exposes the directory to connection-level handlers.
func (s *Service) ResolveUser(ctx context.Context, loose string) (*usermodel.User, error) {
	return s.users.Resolve(ctx, loose)
}

// Users lists everyone except the caller, shaped for the wire.
func (s *Service) Users(ctx context.Context, self Identity) ([]usermodel.Profile, error) {
	users, err := s.users.ListOthers(ctx, self.UserID, self.Nickname)
	if err != nil {
		return nil, err
	}
	out := make([]usermodel.Profile, 0, len(users))
	for _, u := range users {
		out = append(out, u.Profile())
	}
	return out, nil
}

// ===== join =====

// RoomRef identifies a resolved two-party room.
type RoomRef struct {
	RoomID      string
	Recipient   usermodel.Profile
	RecipientID string
}

// Room resolves the counterpart, derives the symmetric room id, and lazily
// creates the conversation record. It loads no history on purpose: the
// caller switches the connection into the room's broadcast group first, then
// replays via History, so a message arriving in between is covered by the
// replay instead of falling through the gap.
func (s *Service) Room(ctx context.Context, self Identity, recipientLoose string) (*RoomRef, error) {
	recipient, err := s.users.Resolve(ctx, recipientLoose)
	if err != nil {
		return nil, err
	}
	recipientID := recipient.CanonicalID()
	roomID := chatmodel.RoomID(self.UserID, recipientID)

	conv, err := s.convs.GetConversation(ctx, roomID)
	if err != nil {
		return nil, err
	}
	if conv == nil {
		if _, err := s.convs.CreateConversation(ctx, self.Profile(), recipient.Profile(), roomID); err != nil {
			return nil, err
		}
	}
	return &RoomRef{
		RoomID:      roomID,
		Recipient:   recipient.Profile(),
		RecipientID: recipientID,
	}, nil
}

// HistoryResult carries the replayed room plus the ids that flipped to read
// (empty when the join found nothing unread, in which case no receipt is
// owed).
type HistoryResult struct {
	Messages       []chatmodel.MessageView
	ReadMessageIDs []string
}

// History replays the room's messages in order and marks the ones addressed
// to the caller as read.
func (s *Service) History(ctx context.Context, self Identity, roomID string) (*HistoryResult, error) {
	history, err := s.msgs.History(ctx, roomID)
	if err != nil {
		return nil, err
	}
	views := make([]chatmodel.MessageView, 0, len(history))
	for _, m := range history {
		views = append(views, s.decryptForDelivery(m))
	}
	res := &HistoryResult{Messages: views}

	flipped, err := s.msgs.MarkRoomRead(ctx, roomID, self.UserID)
	if err != nil {
		return nil, err
	}
	if flipped > 0 {
		ids, err := s.msgs.ReadMessageIDs(ctx, roomID, self.UserID)
		if err != nil {
			return nil, err
		}
		res.ReadMessageIDs = ids
		if err := s.convs.ResetUnread(ctx, roomID, self.UserID); err != nil {
			return nil, err
		}
	}
	return res, nil
}

// decryptForDelivery replays the literal (sender, receiver) pair recorded on
// the message. Passing "who is asking" instead would derive the wrong key
// half the time.
func (s *Service) decryptForDelivery(m *chatmodel.Message) chatmodel.MessageView {
	if m.EncryptionAlgorithm != crypto.AlgorithmAES256 {
		return m.View(m.Content)
	}
	plain, err := s.cipher.Decrypt(m.Content, m.Sender, m.Receiver)
	if err != nil {
		logger.Errorf("[pipeline] failed to decrypt message id=%s room=%s: %v", m.StoreID(), m.RoomID, err)
		return m.View(UndeliverableSentinel)
	}
	return m.View(plain)
}

// ===== send =====

// SendResult is what the gateway fans out after a successful send. Message
// carries the original plaintext, reconstructed from the input rather than
// re-decrypted.
type SendResult struct {
	RoomID          string
	RecipientID     string
	RecipientHandle string
	Message         chatmodel.MessageView
	Preview         string
}

// Send encrypts, persists, and updates the conversation. Persistence failure
// aborts before any fan-out state exists: no message counts as sent unless it
// is stored.
func (s *Service) Send(ctx context.Context, self Identity, recipientLoose, content, algorithm string) (*SendResult, error) {
	if content == "" {
		return nil, errs.New("empty message content")
	}
	if algorithm == "" {
		algorithm = crypto.AlgorithmAES256
	}

	recipient, err := s.users.Resolve(ctx, recipientLoose)
	if err != nil {
		return nil, err
	}
	recipientID := recipient.CanonicalID()
	roomID := chatmodel.RoomID(self.UserID, recipientID)

	ciphertext, err := s.cipher.Encrypt(content, self.UserID, recipientID)
	if err != nil {
		return nil, err
	}

	msg := &chatmodel.Message{
		RoomID:              roomID,
		Sender:              self.UserID,
		SenderNickname:      self.Nickname,
		SenderEmail:         self.Email,
		Receiver:            recipientID,
		ReceiverNickname:    recipient.DisplayName(),
		Content:             ciphertext,
		EncryptionAlgorithm: algorithm,
		IsRead:              false,
		CreatedAt:           time.Now(),
	}
	if _, err := s.msgs.InsertMessage(ctx, msg); err != nil {
		return nil, err
	}

	last := chatmodel.LastMessage{
		Content:             ciphertext,
		Sender:              self.UserID,
		EncryptionAlgorithm: algorithm,
		CreatedAt:           msg.CreatedAt,
	}
	if err := s.convs.ApplyMessage(ctx, roomID, self.Profile(), recipient.Profile(), last); err != nil {
		return nil, err
	}

	return &SendResult{
		RoomID:          roomID,
		RecipientID:     recipientID,
		RecipientHandle: recipient.DisplayName(),
		Message:         msg.View(content),
		Preview:         s.truncate(content),
	}, nil
}

// ===== read receipts =====

// MarkRead flips the given ids where the caller is the receiver and the flag
// is still unset. Returns whether anything actually changed; re-marking an
// already-read set is a no-op and must not re-broadcast.
func (s *Service) MarkRead(ctx context.Context, self Identity, roomID string, ids []string) (bool, error) {
	if roomID == "" || len(ids) == 0 {
		return false, nil
	}
	flipped, err := s.msgs.MarkRead(ctx, ids, self.UserID)
	if err != nil {
		return false, err
	}
	if flipped == 0 {
		return false, nil
	}
	if err := s.convs.ResetUnread(ctx, roomID, self.UserID); err != nil {
		return false, err
	}
	return true, nil
}

// ===== inbox =====

// ConversationView is one materialized inbox row.
type ConversationView struct {
	ID          string                 `json:"id"`
	Participant usermodel.Profile      `json:"participant"`
	LastMessage *chatmodel.LastMessage `json:"lastMessage"`
	UnreadCount int64                  `json:"unreadCount"`
	UpdatedAt   time.Time              `json:"updatedAt"`
}

// Conversations builds the inbox: counterpart profile (live lookup, snapshot
// fallback), decrypted 30-unit preview (decrypt failure leaves the stored
// ciphertext untouched), and the caller's unread counter. Rows come back
// sorted by update time, newest first.
func (s *Service) Conversations(ctx context.Context, self Identity) ([]ConversationView, error) {
	convs, err := s.convs.ListConversations(ctx, self.UserID, self.Nickname)
	if err != nil {
		return nil, err
	}

	out := make([]ConversationView, 0, len(convs))
	for _, conv := range convs {
		counterpart := conv.Counterpart(self.UserID, self.Nickname)

		profile := usermodel.Profile{ID: counterpart, Email: "Unknown", Nickname: counterpart}
		if u, err := s.users.Resolve(ctx, counterpart); err == nil {
			profile = u.Profile()
		} else if snap := conv.SnapshotFor(counterpart); snap != nil {
			profile = *snap
		}

		view := ConversationView{
			ID:          conv.RoomID,
			Participant: profile,
			LastMessage: conv.LastMessage,
			UnreadCount: conv.UnreadFor(self.UserID, self.Nickname),
			UpdatedAt:   conv.UpdatedAt,
		}
		if lm := conv.LastMessage; lm != nil && lm.Content != "" && lm.EncryptionAlgorithm == crypto.AlgorithmAES256 {
			sender, receiver := counterpart, self.UserID
			if lm.Sender == self.UserID {
				sender, receiver = self.UserID, counterpart
			}
			if plain, err := s.cipher.Decrypt(lm.Content, sender, receiver); err == nil {
				preview := *lm
				preview.Content = s.truncate(plain)
				view.LastMessage = &preview
			}
		}
		out = append(out, view)
	}
	return out, nil
}

// truncate caps preview content at the configured rune count.
func (s *Service) truncate(content string) string {
	runes := []rune(content)
	if len(runes) <= s.previewLimit {
		return content
	}
	return string(runes[:s.previewLimit]) + "..."
}

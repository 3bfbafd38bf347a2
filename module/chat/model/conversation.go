package model

import (
	"time"

	usermodel "PrivChat/module/user/model"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

const ConversationTableName = "conversations"

// UnreadCount is one element of the per-participant counter array. Counter
// mutation always goes through arrayFilters updates keyed on User, so two
// near-simultaneous sends cannot lose an increment.
type UnreadCount struct {
	User  string `bson:"user" json:"user"`
	Count int64  `bson:"count" json:"count"`
}

// LastMessage is the at-rest snapshot of the newest message. Content stays
// in ciphertext form; the aggregator decrypts a preview on the fly.
type LastMessage struct {
	Content             string    `bson:"content" json:"content"`
	Sender              string    `bson:"sender" json:"sender"`
	EncryptionAlgorithm string    `bson:"encryptionAlgorithm" json:"encryptionAlgorithm"`
	CreatedAt           time.Time `bson:"createdAt" json:"createdAt"`
}

// Conversation is the durable record of one two-party room. Exactly one
// document exists per unordered participant pair; it is created lazily on
// first join and never deleted.
type Conversation struct {
	ID               primitive.ObjectID  `bson:"_id,omitempty" json:"-"`
	RoomID           string              `bson:"roomId" json:"roomId"`
	Participants     []string            `bson:"participants" json:"participants"`
	ParticipantsInfo []usermodel.Profile `bson:"participantsInfo" json:"participantsInfo"`
	UnreadCounts     []UnreadCount       `bson:"unreadCounts" json:"unreadCounts"`
	LastMessage      *LastMessage        `bson:"lastMessage" json:"lastMessage"`
	CreatedAt        time.Time           `bson:"createdAt" json:"createdAt"`
	UpdatedAt        time.Time           `bson:"updatedAt" json:"updatedAt"`
}

func (*Conversation) GetTableName() string { return ConversationTableName }

// Counterpart returns the participant entry that is not the given user,
// matching by either canonical ID or nickname.
func (c *Conversation) Counterpart(userID, nickname string) string {
	for _, p := range c.Participants {
		if p != userID && p != nickname {
			return p
		}
	}
	return ""
}

// UnreadFor picks the caller's counter out of the per-participant array.
func (c *Conversation) UnreadFor(userID, nickname string) int64 {
	for _, uc := range c.UnreadCounts {
		if uc.User == userID || uc.User == nickname {
			return uc.Count
		}
	}
	return 0
}

// SnapshotFor returns the stored profile snapshot for the given participant,
// used as a fallback when the live directory lookup fails.
func (c *Conversation) SnapshotFor(participantID string) *usermodel.Profile {
	for i := range c.ParticipantsInfo {
		if c.ParticipantsInfo[i].ID == participantID || c.ParticipantsInfo[i].Nickname == participantID {
			return &c.ParticipantsInfo[i]
		}
	}
	return nil
}

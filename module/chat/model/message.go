package model

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

const MessageTableName = "messages"

// Message is the at-rest form of one direct message. Content is always the
// ciphertext produced by the pipeline; plaintext never reaches the store.
// The only mutation ever applied is flipping IsRead.
type Message struct {
	ID                  primitive.ObjectID `bson:"_id,omitempty" json:"-"`
	RoomID              string             `bson:"roomId" json:"roomId"`
	Sender              string             `bson:"sender" json:"sender"`
	SenderNickname      string             `bson:"senderNickname" json:"senderNickname"`
	SenderEmail         string             `bson:"senderEmail" json:"senderEmail"`
	Receiver            string             `bson:"receiver" json:"receiver"`
	ReceiverNickname    string             `bson:"receiverNickname" json:"receiverNickname"`
	Content             string             `bson:"content" json:"content"`
	EncryptionAlgorithm string             `bson:"encryptionAlgorithm" json:"encryptionAlgorithm"`
	IsRead              bool               `bson:"isRead" json:"isRead"`
	CreatedAt           time.Time          `bson:"createdAt" json:"createdAt"`
}

func (*Message) GetTableName() string { return MessageTableName }

// StoreID is the assigned sequence identifier in string form.
func (m *Message) StoreID() string { return m.ID.Hex() }

// MessageView is the delivery form: same shape as Message but with the
// content replaced by plaintext (or a decrypt sentinel for damaged history).
type MessageView struct {
	ID                  string    `json:"id"`
	RoomID              string    `json:"roomId"`
	Sender              string    `json:"sender"`
	SenderNickname      string    `json:"senderNickname"`
	SenderEmail         string    `json:"senderEmail"`
	Receiver            string    `json:"receiver"`
	ReceiverNickname    string    `json:"receiverNickname"`
	Content             string    `json:"content"`
	EncryptionAlgorithm string    `json:"encryptionAlgorithm"`
	IsRead              bool      `json:"isRead"`
	CreatedAt           time.Time `json:"createdAt"`
}

// View converts the stored message, substituting the given content.
func (m *Message) View(content string) MessageView {
	return MessageView{
		ID:                  m.StoreID(),
		RoomID:              m.RoomID,
		Sender:              m.Sender,
		SenderNickname:      m.SenderNickname,
		SenderEmail:         m.SenderEmail,
		Receiver:            m.Receiver,
		ReceiverNickname:    m.ReceiverNickname,
		Content:             content,
		EncryptionAlgorithm: m.EncryptionAlgorithm,
		IsRead:              m.IsRead,
		CreatedAt:           m.CreatedAt,
	}
}

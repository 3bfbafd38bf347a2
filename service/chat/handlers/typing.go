package handlers

import (
	"context"
	"time"

	"PrivChat/logger"
	chatmodel "PrivChat/module/chat/model"
	"PrivChat/service/chat"
	"PrivChat/tools/decode"
)

type typingPayload struct {
	RecipientID string `json:"recipientId"`
	IsTyping    bool   `json:"isTyping"`
}

// TypingHandler relays the ephemeral typing signal to the addressed
// participant's live connection only. Nothing is persisted and an offline
// recipient just means the signal is dropped.
type TypingHandler struct{}

func NewTypingHandler() chat.Handler   { return &TypingHandler{} }
func (h *TypingHandler) Event() string { return chat.EventTyping }

func (h *TypingHandler) Handle(ctx *chat.Ctx, f *chat.Frame, c *chat.Client) error {
	id, _ := c.Identity()

	m, err := f.MapData()
	if err != nil {
		return nil
	}
	payload, err := decode.Map[typingPayload](m)
	if err != nil || payload.RecipientID == "" {
		return nil
	}

	rctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	recipient, err := ctx.S.Core().ResolveUser(rctx, payload.RecipientID)
	if err != nil {
		return nil
	}

	roomID := chatmodel.RoomID(id.UserID, recipient.CanonicalID())
	target := ctx.S.PushToUser(chat.BuildFrame(chat.EventUserTyping, map[string]any{
		"userId":   id.UserID,
		"isTyping": payload.IsTyping,
	}), recipient.CanonicalID(), recipient.DisplayName())
	if target != nil {
		logger.Debugf("[typing] relayed room=%s from=%s typing=%v", roomID, id.UserID, payload.IsTyping)
	}
	return nil
}

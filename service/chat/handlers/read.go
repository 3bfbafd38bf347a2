package handlers

import (
	"context"
	"time"

	"PrivChat/logger"
	"PrivChat/service/chat"
	"PrivChat/tools/decode"
)

type markReadPayload struct {
	RoomID     string   `json:"roomId"`
	MessageIDs []string `json:"messageIds"`
}

// ReadHandler processes mark_read. The flip is idempotent: a repeated call
// with the same id set changes nothing and must not re-broadcast a stale
// receipt.
type ReadHandler struct{}

func NewReadHandler() chat.Handler   { return &ReadHandler{} }
func (h *ReadHandler) Event() string { return chat.EventMarkRead }

func (h *ReadHandler) Handle(ctx *chat.Ctx, f *chat.Frame, c *chat.Client) error {
	id, _ := c.Identity()

	m, err := f.MapData()
	if err != nil {
		return nil
	}
	payload, err := decode.Map[markReadPayload](m)
	if err != nil || payload.RoomID == "" || len(payload.MessageIDs) == 0 {
		return nil
	}

	rctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	changed, err := ctx.S.Core().MarkRead(rctx, id, payload.RoomID, payload.MessageIDs)
	if err != nil {
		logger.Errorf("[read] mark read failed user=%s room=%s: %v", id.UserID, payload.RoomID, err)
		return nil
	}
	if !changed {
		return nil
	}

	// Receipt goes to the rest of the room, never back to the reader.
	ctx.S.BroadcastRoomExcept(payload.RoomID, c, chat.BuildFrame(chat.EventMessagesRead, map[string]any{
		"roomId":     payload.RoomID,
		"messageIds": payload.MessageIDs,
		"reader":     id.UserID,
	}))
	return nil
}

package handlers

import (
	"context"
	"time"

	"PrivChat/logger"
	"PrivChat/service/chat"
	"PrivChat/tools/errs"
)

// JoinHandler processes join_room: resolve the counterpart, derive the room,
// switch the connection into the broadcast group, then replay history and
// settle read state for the joiner.
type JoinHandler struct{}

func NewJoinHandler() chat.Handler   { return &JoinHandler{} }
func (h *JoinHandler) Event() string { return chat.EventJoinRoom }

func (h *JoinHandler) Handle(ctx *chat.Ctx, f *chat.Frame, c *chat.Client) error {
	id, _ := c.Identity()

	recipientID, err := f.StringData("recipientId")
	if err != nil {
		c.Enqueue(chat.ErrorFrame("missing recipient"))
		return nil
	}

	rctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	room, err := ctx.S.Core().Room(rctx, id, recipientID)
	if err != nil {
		if errs.ErrUserNotFound.Is(err) {
			c.Enqueue(chat.ErrorFrame("user does not exist"))
		} else {
			logger.Errorf("[join] failed user=%s recipient=%s: %v", id.UserID, recipientID, err)
			c.Enqueue(chat.ErrorFrame("failed to join room"))
		}
		return nil
	}

	// Membership before replay: everything fanned out from this point on
	// reaches the connection, and the history load below covers everything
	// earlier. A message landing in between appears in both, never in
	// neither.
	ctx.S.Registry().Join(room.RoomID, c)
	logger.Infof("[join] user=%s joined room=%s", id.UserID, room.RoomID)

	hist, err := ctx.S.Core().History(rctx, id, room.RoomID)
	if err != nil {
		logger.Errorf("[join] history load failed user=%s room=%s: %v", id.UserID, room.RoomID, err)
		c.Enqueue(chat.ErrorFrame("failed to join room"))
		return nil
	}

	c.Enqueue(chat.BuildFrame(chat.EventChatHistory, map[string]any{
		"roomId":        room.RoomID,
		"messages":      hist.Messages,
		"recipientInfo": room.Recipient,
	}))

	// Joining flipped unread messages to read; let the counterpart's live
	// connection know which ones.
	if len(hist.ReadMessageIDs) > 0 {
		ctx.S.PushToUser(chat.BuildFrame(chat.EventMessagesRead, map[string]any{
			"roomId":     room.RoomID,
			"messageIds": hist.ReadMessageIDs,
			"reader":     id.UserID,
		}), room.RecipientID, room.Recipient.Nickname)
	}
	return nil
}

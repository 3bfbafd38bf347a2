package handlers

import (
	"context"
	"time"

	"PrivChat/logger"
	"PrivChat/service/chat"
	"PrivChat/tools/decode"
	"PrivChat/tools/errs"
)

type sendPayload struct {
	RecipientID         string `json:"recipientId"`
	Content             string `json:"content"`
	EncryptionAlgorithm string `json:"encryptionAlgorithm"`
}

// SendHandler runs the send path: encrypt, persist, conversation update,
// room fan-out, and the off-room preview notification.
type SendHandler struct{}

func NewSendHandler() chat.Handler   { return &SendHandler{} }
func (h *SendHandler) Event() string { return chat.EventSendMessage }

func (h *SendHandler) Handle(ctx *chat.Ctx, f *chat.Frame, c *chat.Client) error {
	id, _ := c.Identity()

	m, err := f.MapData()
	if err != nil {
		c.Enqueue(chat.ErrorFrame("malformed send_message payload"))
		return nil
	}
	payload, err := decode.Map[sendPayload](m)
	if err != nil || payload.RecipientID == "" || payload.Content == "" {
		c.Enqueue(chat.ErrorFrame("message is missing required fields"))
		return nil
	}

	rctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	res, err := ctx.S.Core().Send(rctx, id, payload.RecipientID, payload.Content, payload.EncryptionAlgorithm)
	if err != nil {
		switch {
		case errs.ErrUserNotFound.Is(err):
			c.Enqueue(chat.ErrorFrame("user does not exist"))
		case errs.ErrEncryption.Is(err):
			logger.Errorf("[send] encryption failed user=%s: %v", id.UserID, err)
			c.Enqueue(chat.ErrorFrame("message encryption failed"))
		default:
			logger.Errorf("[send] failed user=%s recipient=%s: %v", id.UserID, payload.RecipientID, err)
			c.Enqueue(chat.ErrorFrame("failed to send message"))
		}
		return nil
	}

	// The room gets the plaintext-bearing object, rebuilt from the original
	// input rather than decrypted back out of the store.
	ctx.S.BroadcastRoom(res.RoomID, chat.BuildFrame(chat.EventNewMessage, res.Message))

	// A recipient who is online but looking elsewhere gets a truncated
	// preview pushed straight to their presence-mapped connection.
	target := ctx.S.LookupClient(res.RecipientID, res.RecipientHandle)
	if target != nil && !ctx.S.Registry().InRoom(res.RoomID, target.ConnID) {
		target.Enqueue(chat.BuildFrame(chat.EventMessageNotification, map[string]any{
			"roomId": res.RoomID,
			"message": map[string]any{
				"id":                  res.Message.ID,
				"sender":              res.Message.Sender,
				"senderEmail":         res.Message.SenderEmail,
				"senderNickname":      res.Message.SenderNickname,
				"content":             res.Preview,
				"encryptionAlgorithm": res.Message.EncryptionAlgorithm,
				"createdAt":           res.Message.CreatedAt,
			},
		}))
	}
	return nil
}

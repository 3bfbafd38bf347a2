package handlers

import (
	"context"
	"time"

	"PrivChat/logger"
	chatsvc "PrivChat/module/chat/service"
	"PrivChat/service/chat"
)

// AuthHandler drives the Unauthenticated→Authenticated transition. A failed
// attempt reports auth_error and leaves the socket open for a retry; it never
// force-closes.
type AuthHandler struct{}

func NewAuthHandler() chat.Handler   { return &AuthHandler{} }
func (h *AuthHandler) Event() string { return chat.EventAuthenticate }

func (h *AuthHandler) Handle(ctx *chat.Ctx, f *chat.Frame, c *chat.Client) error {
	token, err := f.StringData("token")
	if err != nil {
		c.Enqueue(chat.AuthErrorFrame("missing token"))
		return nil
	}

	claims, err := ctx.S.Verifier().Verify(token)
	if err != nil {
		logger.Infof("[auth] token rejected conn=%s: %v", c.ConnID, err)
		c.Enqueue(chat.AuthErrorFrame("authentication failed"))
		return nil
	}

	rctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	user, err := ctx.S.Core().ResolveUser(rctx, claims.UserID)
	if err != nil {
		logger.Infof("[auth] user not found conn=%s id=%s: %v", c.ConnID, claims.UserID, err)
		c.Enqueue(chat.AuthErrorFrame("unknown user"))
		return nil
	}

	id := chatsvc.Identity{
		UserID:   user.CanonicalID(),
		Nickname: user.DisplayName(),
		Email:    firstNonEmpty(user.Email, claims.Email),
	}
	c.SetIdentity(id)

	// Both identifier forms go into presence so direct pushes find the
	// connection no matter which space the sender holds.
	ctx.S.Presence().Bind(id.UserID, c.ConnID)
	if id.Nickname != id.UserID {
		ctx.S.Presence().Bind(id.Nickname, c.ConnID)
	}

	if err := ctx.S.Users().SetOnline(rctx, user); err != nil {
		logger.Errorf("[auth] set online failed user=%s: %v", id.UserID, err)
	}

	logger.Infof("[auth] user authenticated user=%s email=%s conn=%s", id.UserID, id.Email, c.ConnID)
	c.Enqueue(chat.BuildFrame(chat.EventAuthSuccess, map[string]string{"userId": id.UserID}))

	ctx.S.BroadcastOthers(c, chat.BuildFrame(chat.EventUserStatus, map[string]string{
		"userId": id.UserID,
		"status": "online",
	}))

	// Fresh sessions get their inbox pushed immediately.
	convs, err := ctx.S.Core().Conversations(rctx, id)
	if err != nil {
		logger.Errorf("[auth] conversations load failed user=%s: %v", id.UserID, err)
		c.Enqueue(chat.ErrorFrame("failed to load conversations"))
		return nil
	}
	c.Enqueue(chat.BuildFrame(chat.EventConversationsList, convs))
	return nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

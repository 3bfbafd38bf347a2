package handlers

import (
	"context"
	"time"

	"PrivChat/logger"
	"PrivChat/service/chat"
)

// UsersHandler answers get_users with the directory minus the caller.
type UsersHandler struct{}

func NewUsersHandler() chat.Handler   { return &UsersHandler{} }
func (h *UsersHandler) Event() string { return chat.EventGetUsers }

func (h *UsersHandler) Handle(ctx *chat.Ctx, _ *chat.Frame, c *chat.Client) error {
	id, _ := c.Identity()

	rctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	users, err := ctx.S.Core().Users(rctx, id)
	if err != nil {
		logger.Errorf("[users] list failed user=%s: %v", id.UserID, err)
		c.Enqueue(chat.ErrorFrame("failed to load users"))
		return nil
	}
	c.Enqueue(chat.BuildFrame(chat.EventUsersList, users))
	return nil
}

// ConversationsHandler answers get_conversations with the materialized inbox.
type ConversationsHandler struct{}

func NewConversationsHandler() chat.Handler   { return &ConversationsHandler{} }
func (h *ConversationsHandler) Event() string { return chat.EventGetConversations }

func (h *ConversationsHandler) Handle(ctx *chat.Ctx, _ *chat.Frame, c *chat.Client) error {
	id, _ := c.Identity()

	rctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	convs, err := ctx.S.Core().Conversations(rctx, id)
	if err != nil {
		logger.Errorf("[conversations] list failed user=%s: %v", id.UserID, err)
		c.Enqueue(chat.ErrorFrame("failed to load conversations"))
		return nil
	}
	c.Enqueue(chat.BuildFrame(chat.EventConversationsList, convs))
	return nil
}

package chat

import (
	"PrivChat/logger"
)

// Handler processes one inbound event for one connection.
type Handler interface {
	Event() string
	Handle(ctx *Ctx, f *Frame, c *Client) error
}

// Ctx gives handlers access to the server's collaborators.
type Ctx struct {
	S *Server
}

type Dispatcher struct {
	handlers map[string]Handler
}

func NewDispatcher() *Dispatcher {
	return &Dispatcher{handlers: make(map[string]Handler)}
}

func (d *Dispatcher) Register(h Handler) { d.handlers[h.Event()] = h }

func (d *Dispatcher) GetHandler(event string) Handler {
	h, ok := d.handlers[event]
	if !ok {
		logger.Infof("no handler for event=%s", event)
		return nil
	}
	return h
}

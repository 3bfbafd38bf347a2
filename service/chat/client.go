package chat

import (
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"PrivChat/logger"
	chatsvc "PrivChat/module/chat/service"
)

const (
	writeWait = 10 * time.Second
	pingEvery = 30 * time.Second
	pongWait  = 60 * time.Second
)

// Client is one live connection. Identity is empty until the authenticate
// event succeeds; handlers for a connection run one at a time on its read
// loop, but other connections' fan-out goroutines read the identity, so it
// sits behind a lock.
type Client struct {
	ConnID string
	WS     *websocket.Conn
	Send   chan []byte // consumed by a single writer goroutine

	done chan struct{} // closed by Close; stops the writer pump

	mu       sync.RWMutex
	identity chatsvc.Identity
	authed   bool
	closed   bool
}

func NewClient(connID string, ws *websocket.Conn, sendQueueSize int) *Client {
	return &Client{
		ConnID: connID,
		WS:     ws,
		Send:   make(chan []byte, sendQueueSize),
		done:   make(chan struct{}),
	}
}

// SetIdentity transitions the connection to Authenticated.
func (c *Client) SetIdentity(id chatsvc.Identity) {
	c.mu.Lock()
	c.identity = id
	c.authed = true
	c.mu.Unlock()
}

func (c *Client) Identity() (chatsvc.Identity, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.identity, c.authed
}

// Close marks the connection finished and stops the writer pump. Send is
// never closed: fan-out goroutines may hold a stale reference to this client
// for a moment after teardown, and their Enqueue must degrade to a no-op
// rather than hit a closed channel.
func (c *Client) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	c.mu.Unlock()
	close(c.done)
}

// Enqueue hands a payload to the writer queue without blocking the caller.
// A slow client just loses the frame; a closed client drops it outright.
func (c *Client) Enqueue(payload []byte) {
	if payload == nil {
		return
	}
	c.mu.RLock()
	closed := c.closed
	c.mu.RUnlock()
	if closed {
		return
	}
	select {
	case c.Send <- payload:
	default:
		logger.Warnf("[client] send queue full, dropping frame conn=%s", c.ConnID)
	}
}

// WritePump serializes all writes to the socket. It exits on Close or a
// failed write, then closes the socket to unblock the read loop.
func (c *Client) WritePump() {
	ticker := time.NewTicker(pingEvery)
	defer func() {
		ticker.Stop()
		_ = c.WS.Close()
	}()

	for {
		select {
		case <-c.done:
			_ = c.WS.SetWriteDeadline(time.Now().Add(writeWait))
			_ = c.WS.WriteMessage(websocket.CloseMessage, []byte{})
			return
		case payload := <-c.Send:
			_ = c.WS.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.WS.WriteMessage(websocket.TextMessage, payload); err != nil {
				logger.Infof("[client] write err conn=%s: %v", c.ConnID, err)
				return
			}
		case <-ticker.C:
			_ = c.WS.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.WS.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

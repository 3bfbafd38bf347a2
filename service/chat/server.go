package chat

import (
	"context"
	"time"

	"PrivChat/logger"
	chatsvc "PrivChat/module/chat/service"
	usermodel "PrivChat/module/user/model"
	"PrivChat/tools/security"
)

// DirectoryWriter is the slice of the user directory the session manager
// mutates: online/offline flags with lastActive stamps.
type DirectoryWriter interface {
	SetOnline(ctx context.Context, u *usermodel.User) error
	SetOffline(ctx context.Context, loose string) error
}

type ServerConf struct {
	SendQueueSize int
	FanoutWorkers int
	FanoutQueue   int
}

func (c *ServerConf) norm() {
	if c.SendQueueSize <= 0 {
		c.SendQueueSize = 256
	}
	if c.FanoutWorkers <= 0 {
		c.FanoutWorkers = 4
	}
	if c.FanoutQueue <= 0 {
		c.FanoutQueue = 1024
	}
}

// Server owns the gateway's shared state: the connection/room registry, the
// presence registry, the dispatcher, and the fan-out pool. All of it is
// injected at construction and torn down with the process.
type Server struct {
	conf     ServerConf
	core     *chatsvc.Service
	verifier *security.Verifier
	users    DirectoryWriter
	presence Presence
	registry *Registry
	disp     *Dispatcher
	fanout   *Fanout
}

func NewServer(conf ServerConf, core *chatsvc.Service, verifier *security.Verifier, users DirectoryWriter, presence Presence) *Server {
	conf.norm()
	return &Server{
		conf:     conf,
		core:     core,
		verifier: verifier,
		users:    users,
		presence: presence,
		registry: NewRegistry(),
		disp:     NewDispatcher(),
		fanout:   NewFanout(conf.FanoutWorkers, conf.FanoutQueue),
	}
}

func (s *Server) Core() *chatsvc.Service       { return s.core }
func (s *Server) Verifier() *security.Verifier { return s.verifier }
func (s *Server) Users() DirectoryWriter       { return s.users }
func (s *Server) Presence() Presence           { return s.presence }
func (s *Server) Registry() *Registry          { return s.registry }
func (s *Server) Disp() *Dispatcher            { return s.disp }

// BroadcastOthers pushes a frame to every live connection except the given
// one (presence transitions).
func (s *Server) BroadcastOthers(except *Client, payload []byte) {
	exceptID := ""
	if except != nil {
		exceptID = except.ConnID
	}
	s.fanout.Broadcast(s.registry.ListOthers(exceptID), payload)
}

// BroadcastRoom pushes a frame to every connection joined to the room.
func (s *Server) BroadcastRoom(roomID string, payload []byte) {
	s.fanout.Broadcast(s.registry.MembersOf(roomID), payload)
}

// BroadcastRoomExcept is BroadcastRoom minus the acting connection, used for
// read receipts which must not echo back to the reader.
func (s *Server) BroadcastRoomExcept(roomID string, except *Client, payload []byte) {
	members := s.registry.MembersOf(roomID)
	out := members[:0]
	for _, c := range members {
		if except != nil && c.ConnID == except.ConnID {
			continue
		}
		out = append(out, c)
	}
	s.fanout.Broadcast(out, payload)
}

// PushToUser delivers directly to the presence-mapped connection for the
// first key that resolves. Returns the target client, or nil when the user
// has no live binding (callers silently drop in that case).
func (s *Server) PushToUser(payload []byte, keys ...string) *Client {
	for _, key := range keys {
		if key == "" {
			continue
		}
		connID, ok := s.presence.Lookup(key)
		if !ok {
			continue
		}
		c := s.registry.GetByConnID(connID)
		if c == nil {
			continue
		}
		c.Enqueue(payload)
		return c
	}
	return nil
}

// LookupClient finds the live connection for any of the identity keys
// without sending anything.
func (s *Server) LookupClient(keys ...string) *Client {
	for _, key := range keys {
		if key == "" {
			continue
		}
		if connID, ok := s.presence.Lookup(key); ok {
			if c := s.registry.GetByConnID(connID); c != nil {
				return c
			}
		}
	}
	return nil
}

// teardown runs the Authenticated→Closed transition. It always executes on
// read-loop exit, even when store calls were in flight; a late store failure
// is logged, never retried.
func (s *Server) teardown(c *Client) {
	s.registry.RemoveClient(c)

	id, authed := c.Identity()
	if authed {
		s.presence.Unbind(id.UserID, c.ConnID)
		if id.Nickname != "" && id.Nickname != id.UserID {
			s.presence.Unbind(id.Nickname, c.ConnID)
		}

		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		if err := s.users.SetOffline(ctx, id.UserID); err != nil {
			logger.Errorf("[server] set offline failed user=%s: %v", id.UserID, err)
		}
		cancel()

		s.BroadcastOthers(c, BuildFrame(EventUserStatus, map[string]string{
			"userId": id.UserID,
			"status": "offline",
		}))
		logger.Infof("[server] user disconnected user=%s conn=%s", id.UserID, c.ConnID)
	}

	c.Close()
}

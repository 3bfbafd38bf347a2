package chat

import (
	"net"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"PrivChat/logger"
	"PrivChat/tools/safe"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// HandleWS upgrades the connection and runs its read loop. Events for one
// connection are handled strictly one at a time right here; store calls
// block only this loop, while other connections proceed on their own
// goroutines.
func (s *Server) HandleWS(c *gin.Context) {
	ws, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		logger.Infof("[ws] upgrade error: %v", err)
		return
	}

	client := NewClient(uuid.NewString(), ws, s.conf.SendQueueSize)
	s.registry.AddClient(client)
	safe.Go(client.WritePump)

	// Pair the writer's pings with a read deadline so a dead peer fails the
	// read loop within pongWait instead of lingering forever.
	_ = ws.SetReadDeadline(time.Now().Add(pongWait))
	ws.SetPongHandler(func(string) error {
		return ws.SetReadDeadline(time.Now().Add(pongWait))
	})

	logger.Infof("[ws] client connected conn=%s remote=%s", client.ConnID, ws.RemoteAddr())

	// Teardown must run however the loop exits; it is the
	// Authenticated→Closed transition.
	defer s.teardown(client)

	for {
		mt, data, rerr := ws.ReadMessage()
		if rerr != nil {
			if websocket.IsCloseError(rerr,
				websocket.CloseNormalClosure,
				websocket.CloseGoingAway,
				websocket.CloseNoStatusReceived,
			) {
				logger.Infof("[ws] peer closed conn=%s err=%v", client.ConnID, rerr)
			} else if ne, ok := rerr.(net.Error); ok && ne.Timeout() {
				logger.Infof("[ws] read timeout conn=%s err=%v", client.ConnID, rerr)
			} else {
				logger.Infof("[ws] read err conn=%s err=%v", client.ConnID, rerr)
			}
			return
		}
		if mt != websocket.TextMessage && mt != websocket.BinaryMessage {
			continue
		}

		frame, perr := ParseFrame(data)
		if perr != nil {
			sample := data
			if len(sample) > 256 {
				sample = sample[:256]
			}
			logger.Infof("[ws] parse frame err conn=%s err=%v sample=%q", client.ConnID, perr, sample)
			continue
		}

		handler := s.disp.GetHandler(frame.Event)
		if handler == nil {
			client.Enqueue(ErrorFrame("unknown event"))
			continue
		}

		// Everything except authenticate requires a bound identity.
		if frame.Event != EventAuthenticate {
			if _, authed := client.Identity(); !authed {
				client.Enqueue(ErrorFrame("not authenticated"))
				continue
			}
		}

		if err := handler.Handle(&Ctx{S: s}, frame, client); err != nil {
			logger.Errorf("[ws] handler err conn=%s event=%s: %v", client.ConnID, frame.Event, err)
		}
	}
}

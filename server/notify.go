package server

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"stream-moderator/dto"
)

const (
	writeWait  = 10 * time.Second
	clientSend = 32
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

type client struct {
	conn *websocket.Conn
	send chan dto.Event
}

// Hub pushes events to connected websocket clients. New clients first get
// the snapshot, then live events. Clients that cannot keep up are dropped.
type Hub struct {
	mu       sync.Mutex
	clients  map[*client]struct{}
	snapshot func() []dto.Event
}

func NewHub(snapshot func() []dto.Event) *Hub {
	return &Hub{
		clients:  make(map[*client]struct{}),
		snapshot: snapshot,
	}
}

func (h *Hub) Publish(ctx context.Context, e dto.Event) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for c := range h.clients {
		select {
		case c.send <- e:
		default:
			zerolog.Ctx(ctx).Warn().Str("remote", c.conn.RemoteAddr().String()).Msg("websocket client too slow, disconnecting")
			h.unregisterLocked(c)
		}
	}
}

func (h *Hub) Clients() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// register queues the snapshot and then adds the client. The snapshot reads
// the archive from disk, so it is built before taking the lock.
func (h *Hub) register(c *client) {
	var snapshot []dto.Event
	if h.snapshot != nil {
		snapshot = h.snapshot()
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	for _, e := range snapshot {
		select {
		case c.send <- e:
		default:
		}
	}
	h.clients[c] = struct{}{}
}

func (h *Hub) unregister(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.unregisterLocked(c)
}

func (h *Hub) unregisterLocked(c *client) {
	if _, ok := h.clients[c]; !ok {
		return
	}
	delete(h.clients, c)
	close(c.send)
}

func (h *Hub) ServeWS(ctx context.Context) gin.HandlerFunc {
	return func(gc *gin.Context) {
		conn, err := upgrader.Upgrade(gc.Writer, gc.Request, nil)
		if err != nil {
			zerolog.Ctx(ctx).Error().Err(err).Msg("websocket upgrade failed")
			return
		}

		c := &client{conn: conn, send: make(chan dto.Event, clientSend)}
		h.register(c)
		zerolog.Ctx(ctx).Info().Str("remote", conn.RemoteAddr().String()).Msg("websocket client connected")

		go h.writeLoop(ctx, c)

		// reads only detect the close; clients never send anything
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				break
			}
		}
		h.unregister(c)
		zerolog.Ctx(ctx).Info().Str("remote", conn.RemoteAddr().String()).Msg("websocket client disconnected")
	}
}

func (h *Hub) writeLoop(ctx context.Context, c *client) {
	defer c.conn.Close()
	for e := range c.send {
		_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := c.conn.WriteJSON(e); err != nil {
			zerolog.Ctx(ctx).Debug().Err(err).Msg("websocket write failed")
			h.unregister(c)
			return
		}
	}
	_ = c.conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(writeWait))
}

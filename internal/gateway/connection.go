package gateway

import (
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/rangecrew/matchlive/internal/identity"
)

// ConnConfig holds transport tuning for client connections.
type ConnConfig struct {
	WriteTimeout    time.Duration
	ReadTimeout     time.Duration
	PingInterval    time.Duration
	MaxMessageSize  int64
	ReadBufferSize  int
	WriteBufferSize int
	CheckOrigin     func(r *http.Request) bool
}

// DefaultConnConfig returns the default WebSocket tuning.
func DefaultConnConfig() ConnConfig {
	return ConnConfig{
		WriteTimeout:    10 * time.Second,
		ReadTimeout:     60 * time.Second,
		PingInterval:    30 * time.Second,
		MaxMessageSize:  4096,
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			// Origin checks belong to the deployment's CORS policy.
			return true
		},
	}
}

// Conn is one client connection. The gateway owns it from upgrade to
// disconnect; its ID is never persisted.
type Conn struct {
	ID       string
	MemberID int // identity.Anonymous when unresolved

	creds identity.Credentials
	ws    *websocket.Conn
	send  chan []byte
	gw    *Gateway

	mu     sync.Mutex
	groups map[string]bool
	closed bool
}

func newConn(gw *Gateway, ws *websocket.Conn, creds identity.Credentials) *Conn {
	return &Conn{
		ID:     uuid.New().String(),
		creds:  creds,
		ws:     ws,
		send:   make(chan []byte, 256),
		gw:     gw,
		groups: make(map[string]bool),
	}
}

func (c *Conn) trackGroup(name string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.closed {
		c.groups[name] = true
	}
}

func (c *Conn) untrackGroup(name string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.groups, name)
}

// groupSnapshot returns the groups this connection belongs to.
func (c *Conn) groupSnapshot() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	names := make([]string, 0, len(c.groups))
	for name := range c.groups {
		names = append(names, name)
	}
	return names
}

// trySend hands a frame to the write pump without blocking. A full
// send buffer means the client stopped draining; the connection is
// torn down rather than stalling a broadcast.
func (c *Conn) trySend(frame []byte) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	select {
	case c.send <- frame:
		c.mu.Unlock()
		return
	default:
	}
	c.mu.Unlock()

	c.gw.log.Warn().
		Str("connection_id", c.ID).
		Msg("send buffer full, closing connection")
	c.gw.disconnect(c)
	c.ws.Close()
}

// writePump drains the send channel onto the wire and keeps the
// connection alive with pings.
func (c *Conn) writePump() {
	ticker := time.NewTicker(c.gw.connCfg.PingInterval)
	defer func() {
		ticker.Stop()
		c.ws.Close()
		c.gw.disconnect(c)
	}()

	for {
		select {
		case frame, ok := <-c.send:
			c.ws.SetWriteDeadline(time.Now().Add(c.gw.connCfg.WriteTimeout))
			if !ok {
				c.ws.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.ws.WriteMessage(websocket.TextMessage, frame); err != nil {
				c.gw.log.Debug().
					Err(err).
					Str("connection_id", c.ID).
					Msg("write to client failed")
				return
			}

		case <-ticker.C:
			c.ws.SetWriteDeadline(time.Now().Add(c.gw.connCfg.WriteTimeout))
			if err := c.ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// readPump reads client frames and dispatches them as operations.
func (c *Conn) readPump() {
	defer func() {
		c.gw.disconnect(c)
		c.ws.Close()
	}()

	c.ws.SetReadLimit(c.gw.connCfg.MaxMessageSize)
	c.ws.SetReadDeadline(time.Now().Add(c.gw.connCfg.ReadTimeout))
	c.ws.SetPongHandler(func(string) error {
		c.ws.SetReadDeadline(time.Now().Add(c.gw.connCfg.ReadTimeout))
		return nil
	})

	for {
		_, frame, err := c.ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				c.gw.log.Debug().
					Err(err).
					Str("connection_id", c.ID).
					Msg("unexpected close")
			}
			return
		}
		c.gw.handleClientFrame(c, frame)
		c.ws.SetReadDeadline(time.Now().Add(c.gw.connCfg.ReadTimeout))
	}
}

package gateway

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"transcendence/internal/user"
)

// Connection parameters.
const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second
	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second
	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10
	// Maximum message size allowed from peer.
	maxMessageSize = 4096
)

// client owns one websocket connection. Events are read and written
// sequentially because the websocket library allows only one concurrent
// writer per connection; outbound events go through the buffered send
// channel so broadcasts never block on a slow peer.
type client struct {
	identity  *user.Identity
	conn      *websocket.Conn
	send      chan []byte
	gw        *Gateway
	closeOnce sync.Once
}

func newClient(identity *user.Identity, conn *websocket.Conn, gw *Gateway, sendBuffer int) *client {
	conn.SetReadLimit(maxMessageSize)
	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	return &client{
		identity: identity,
		conn:     conn,
		send:     make(chan []byte, sendBuffer),
		gw:       gw,
	}
}

// Send satisfies presence.Conn. A full send buffer means the peer cannot
// keep up with the fan-out; the connection is dropped rather than letting
// one slow reader stall a whole room.
func (c *client) Send(event string, payload any) {
	raw, err := json.Marshal(ServerEvent{Event: event, Data: payload})
	if err != nil {
		c.gw.logger.Error("cannot encode server event",
			zap.String("event", event), zap.Error(err))
		return
	}

	select {
	case c.send <- raw:
	default:
		c.gw.logger.Warn("send buffer full, dropping connection",
			zap.Int64("user_id", c.identity.ID))
		c.Close()
	}
}

// Close satisfies presence.Conn. Safe to call more than once.
func (c *client) Close() {
	c.closeOnce.Do(func() {
		c.conn.Close()
	})
}

// read decodes inbound events sequentially and hands them to the gateway.
// Any read error tears the connection down.
func (c *client) read() {
	defer c.gw.disconnect(c)

	for {
		var e ClientEvent
		if err := c.conn.ReadJSON(&e); err != nil {
			return
		}
		c.gw.handleEvent(c, e)
	}
}

// write drains the send channel into the connection and keeps the heartbeat
// alive.
func (c *client) write() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.Close()
	}()

	for {
		select {
		case raw, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, nil)
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, raw); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

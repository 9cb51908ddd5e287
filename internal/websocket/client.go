package websocket

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"chat-relay/internal/chat"

	"github.com/gorilla/websocket"
)

const (
	// Time allowed to write a message to the peer
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer
	maxMessageSize = 4096

	// Outbound buffer per connection; overflowing it drops the client
	sendBufferSize = 256
)

var errClientGone = errors.New("client disconnected")

// Client is one websocket connection. Its read pump feeds raw frames to
// the gateway; the gateway talks back through Send, which the write pump
// drains. Client implements chat.Sender.
type Client struct {
	connID  string
	hub     *Hub
	gateway *chat.Gateway
	conn    *websocket.Conn
	send    chan []byte

	closed     int32
	sendClosed int32
	done       chan struct{}
	wg         sync.WaitGroup
}

func newClient(hub *Hub, gateway *chat.Gateway, conn *websocket.Conn) *Client {
	return &Client{
		hub:     hub,
		gateway: gateway,
		conn:    conn,
		send:    make(chan []byte, sendBufferSize),
		done:    make(chan struct{}),
	}
}

// ConnID returns the gateway-assigned connection ID.
func (c *Client) ConnID() string {
	return c.connID
}

// Send queues an outbound event without blocking. A full buffer means the
// peer is not draining; the client is dropped rather than holding up the
// fan-out to the rest of the room.
func (c *Client) Send(ev chat.Event) error {
	if c.isClosed() {
		return errClientGone
	}

	data, err := json.Marshal(ev)
	if err != nil {
		return err
	}

	select {
	case c.send <- data:
		return nil
	case <-c.done:
		return errClientGone
	default:
		slog.Warn("send buffer full, dropping client", "connID", c.connID)
		c.close()
		return errClientGone
	}
}

func (c *Client) isClosed() bool {
	return atomic.LoadInt32(&c.closed) == 1
}

func (c *Client) close() {
	if atomic.CompareAndSwapInt32(&c.closed, 0, 1) {
		close(c.done)
	}
}

func (c *Client) closeSendChannel() {
	if atomic.CompareAndSwapInt32(&c.sendClosed, 0, 1) {
		close(c.send)
	}
}

func (c *Client) readPump() {
	c.wg.Add(1)
	defer func() {
		c.wg.Done()
		c.close()
		c.gateway.OnDisconnect(c.connID)

		select {
		case c.hub.unregister <- c:
		case <-time.After(5 * time.Second):
			slog.Warn("timeout sending unregister request", "connID", c.connID)
		}

		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				slog.Error("websocket read error", "connID", c.connID, "error", err)
			} else {
				slog.Debug("websocket closed", "connID", c.connID, "error", err)
			}
			return
		}
		c.gateway.HandleEvent(c.connID, raw)
	}
}

func (c *Client) writePump() {
	c.wg.Add(1)
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		c.wg.Done()
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case data, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				slog.Debug("websocket write error", "connID", c.connID, "error", err)
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				slog.Debug("websocket ping error", "connID", c.connID, "error", err)
				return
			}

		case <-c.done:
			return
		}
	}
}

// ServeWS upgrades the request and attaches the connection to the
// gateway. A non-empty username (from a validated token on the upgrade
// request) authenticates the connection up front; otherwise the client is
// expected to send an authenticate event first.
func ServeWS(hub *Hub, gateway *chat.Gateway, w http.ResponseWriter, r *http.Request, username string) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Error("websocket upgrade failed", "error", err)
		return
	}

	client := newClient(hub, gateway, conn)
	client.connID = gateway.OnConnect(client)

	select {
	case hub.register <- client:
	case <-time.After(5 * time.Second):
		slog.Error("timeout registering websocket client", "connID", client.connID)
		gateway.OnDisconnect(client.connID)
		conn.Close()
		return
	}

	if username != "" {
		if err := gateway.OnAuthenticate(client.connID, username); err != nil {
			slog.Warn("token pre-authentication failed", "connID", client.connID, "error", err)
		}
	}

	go client.writePump()
	go client.readPump()
}

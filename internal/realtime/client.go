package realtime

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	id "livepoll/pkg/domain"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// Maximum inbound message size: join messages are tiny.
	maxMessageSize = 512

	// Outbound buffer per connection, in messages. Overflow means the
	// peer is not draining and the hub drops it.
	sendBufferSize = 16
)

// joinMessage is the only inbound message type. Joining a poll id that
// does not exist is a no-op until the poll appears.
type joinMessage struct {
	Type   string `json:"type"`
	PollID string `json:"pollId"`
}

// Client couples one websocket connection to the hub. The read pump
// handles join messages and liveness; the write pump drains the send
// buffer. Each runs on its own goroutine; the connection dies when
// either exits.
type Client struct {
	hub    *Hub
	conn   *websocket.Conn
	logger *slog.Logger

	send      chan []byte
	closeOnce sync.Once
}

// Enqueue hands a message to the write pump without blocking.
func (c *Client) Enqueue(msg []byte) bool {
	select {
	case c.send <- msg:
		return true
	default:
		return false
	}
}

// Close shuts the send channel, which terminates the write pump and in
// turn closes the connection.
func (c *Client) Close() {
	c.closeOnce.Do(func() { close(c.send) })
}

func (c *Client) readPump() {
	defer func() {
		c.hub.UnsubscribeAll(c)
		c.Close()
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.logger.Debug("websocket read failed", "error", err.Error())
			}
			return
		}

		var msg joinMessage
		if err := json.Unmarshal(raw, &msg); err != nil || msg.Type != "join" {
			continue
		}
		pollID, err := id.ParsePollID(msg.PollID)
		if err != nil {
			// Malformed ids are ignored, same as joining an unknown poll.
			continue
		}
		c.hub.Subscribe(c, pollID)
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// The HTTP API is already open cross-origin; the push channel
	// carries the same public data.
	CheckOrigin: func(*http.Request) bool { return true },
}

// ServeWS upgrades the request and starts the connection's pumps. No
// authentication: rooms only ever carry public poll state.
func ServeWS(hub *Hub, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			logger.Warn("websocket upgrade failed", "error", err.Error())
			return
		}

		client := &Client{
			hub:    hub,
			conn:   conn,
			logger: logger,
			send:   make(chan []byte, sendBufferSize),
		}

		go client.writePump()
		go client.readPump()
	}
}

package realtime

import (
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/immxrtalbeast/missionops/internal/domain"
	"github.com/immxrtalbeast/missionops/lib/logger/sl"
)

// Client is one authenticated connection. Frames queued with enqueue are
// written by a single writer goroutine.
type Client struct {
	ID   string
	User *domain.User

	conn *websocket.Conn
	log  *slog.Logger

	mu     sync.Mutex
	send   chan []byte
	closed bool
}

func newClient(conn *websocket.Conn, user *domain.User, queue int, log *slog.Logger) *Client {
	id := uuid.NewString()
	return &Client{
		ID:   id,
		User: user,
		conn: conn,
		send: make(chan []byte, queue),
		log:  log.With(slog.String("client_id", id), slog.String("user_id", user.ID.String())),
	}
}

// enqueue queues a frame without blocking. It reports false when the queue
// is full or the client is closing.
func (c *Client) enqueue(frame []byte) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return false
	}
	select {
	case c.send <- frame:
		return true
	default:
		return false
	}
}

// Send encodes ev and queues it for this client only.
func (c *Client) Send(ev domain.ServerEvent) {
	frame, err := Encode(ev)
	if err != nil {
		c.log.Error("failed to encode event", slog.String("event", ev.EventName()), sl.Err(err))
		return
	}
	if !c.enqueue(frame) {
		c.log.Warn("send queue full, closing client", slog.String("event", ev.EventName()))
		c.Close()
	}
}

// Close stops the writer, which sends a close frame and drops the
// connection.
func (c *Client) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return
	}
	c.closed = true
	close(c.send)
}

func (c *Client) writePump(writeTimeout, pingPeriod time.Duration) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case frame, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, frame); err != nil {
				c.log.Debug("write failed", sl.Err(err))
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				c.log.Debug("ping failed", sl.Err(err))
				return
			}
		}
	}
}

// readPump hands every inbound frame to handle in arrival order until the
// connection fails.
func (c *Client) readPump(maxMessageBytes int64, pongWait time.Duration, handle func([]byte)) {
	c.conn.SetReadLimit(maxMessageBytes)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		msgType, frame, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.log.Debug("connection closed unexpectedly", sl.Err(err))
			}
			return
		}
		if msgType != websocket.TextMessage {
			continue
		}
		handle(frame)
	}
}

package ws

import (
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

var (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingInterval   = (pongWait * 9) / 10
	maxMessageSize = int64(64 * 1024)
	sendBufSize    = 256
)

// Conn is one live websocket session for one user. A user may hold several,
// one per device. The subscription set records which conversations this
// particular connection asked for.
type Conn struct {
	ID          string
	UserID      int64
	Device      string
	IP          string
	RequestID   string
	TraceID     string
	ConnectedAt time.Time

	sock *websocket.Conn
	send chan []byte
	done chan struct{}

	mu        sync.RWMutex
	subs      map[int64]struct{}
	closeOnce sync.Once
}

// NewConn wraps an upgraded websocket connection.
func NewConn(userID int64, sock *websocket.Conn) *Conn {
	return &Conn{
		ID:          uuid.NewString(),
		UserID:      userID,
		ConnectedAt: time.Now(),
		sock:        sock,
		send:        make(chan []byte, sendBufSize),
		done:        make(chan struct{}),
		subs:        make(map[int64]struct{}),
	}
}

// addSubscriptions records verified conversation ids on this connection.
func (c *Conn) addSubscriptions(conversationIDs []int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, id := range conversationIDs {
		c.subs[id] = struct{}{}
	}
}

// removeSubscriptions drops conversation ids unconditionally.
func (c *Conn) removeSubscriptions(conversationIDs []int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, id := range conversationIDs {
		delete(c.subs, id)
	}
}

// IsSubscribed reports whether this connection asked for the conversation.
func (c *Conn) IsSubscribed(conversationID int64) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, ok := c.subs[conversationID]
	return ok
}

// Enqueue hands a payload to the writer goroutine without blocking the
// dispatch loop. A full buffer drops the frame; slow consumers reconcile via
// history fetches.
func (c *Conn) Enqueue(payload []byte) bool {
	select {
	case c.send <- payload:
		return true
	case <-c.done:
		return false
	default:
		log.Printf("ws: send buffer full, dropping frame for conn %s user %d", c.ID, c.UserID)
		return false
	}
}

// WritePump drains the send channel onto the socket and keeps the connection
// alive with pings. It exits when Close is called or a write fails.
func (c *Conn) WritePump() {
	ticker := time.NewTicker(pingInterval)
	defer func() {
		ticker.Stop()
		c.sock.Close()
	}()

	for {
		select {
		case <-c.done:
			_ = c.sock.WriteMessage(websocket.CloseMessage, []byte{})
			return
		case payload := <-c.send:
			c.sock.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.sock.WriteMessage(websocket.TextMessage, payload); err != nil {
				log.Printf("ws: write error on conn %s: %v", c.ID, err)
				return
			}
		case <-ticker.C:
			c.sock.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.sock.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// Close stops the writer and closes the socket. Safe to call multiple times.
func (c *Conn) Close() {
	c.closeOnce.Do(func() {
		close(c.done)
		c.sock.Close()
	})
}

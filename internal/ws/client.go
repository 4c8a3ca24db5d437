package ws

import (
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10 // must be < pongWait
	maxMessageSize = 4096
	sendQueueSize  = 32
)

// clientConn owns one websocket connection. All writes go through the send
// queue and a single write pump, so frames reach the peer in enqueue order.
type clientConn struct {
	raw  *websocket.Conn
	send chan []byte
	once sync.Once
}

func newClientConn(raw *websocket.Conn) *clientConn {
	return &clientConn{raw: raw, send: make(chan []byte, sendQueueSize)}
}

// Enqueue implements relay.Sink. A full queue means the peer is not keeping
// up; refusing the frame makes the relay drop the whole session rather than
// stall everyone else.
func (c *clientConn) Enqueue(frame []byte) bool {
	select {
	case c.send <- frame:
		return true
	default:
		return false
	}
}

// Close implements relay.Sink. The write pump drains what is already queued,
// sends a close frame and shuts the socket.
func (c *clientConn) Close() {
	c.once.Do(func() { close(c.send) })
}

func (c *clientConn) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.raw.Close()
	}()

	for {
		select {
		case frame, ok := <-c.send:
			_ = c.raw.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.raw.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.raw.WriteMessage(websocket.TextMessage, frame); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.raw.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.raw.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

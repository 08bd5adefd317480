// Package signal is the websocket adapter: one connection actor per client
// channel, reading frames into store commands and draining the bounded
// outbound queue the store posts to.
package signal

import (
	"errors"
	"sync"

	"github.com/gorilla/websocket"

	"github.com/veilchat/relay/internal/core"
)

var ErrBackpressure = errors.New("backpressure")

// wsConn owns the write half of one websocket. The store reaches it only
// through TrySend, which never blocks.
type wsConn struct {
	conn *websocket.Conn
	send chan core.Frame

	mu     sync.RWMutex
	closed bool
}

func newWSConn(ws *websocket.Conn, queueDepth int) *wsConn {
	return &wsConn{
		conn: ws,
		send: make(chan core.Frame, queueDepth),
	}
}

func (c *wsConn) TrySend(f core.Frame) error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		return errors.New("connection closed")
	}
	select {
	case c.send <- f:
	default:
		return ErrBackpressure
	}
	return nil
}

func (c *wsConn) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	close(c.send)
	_ = c.conn.Close()
	c.mu.Unlock()
}

package server

import (
	"errors"
	"sync"

	"github.com/gorilla/websocket"
)

// ErrClientClosed is returned when sending on a closed browser connection.
var ErrClientClosed = errors.New("client connection closed")

// wsClient adapts a browser WebSocket connection to relay.ClientSender.
// Writes are serialized; Close is idempotent.
type wsClient struct {
	conn *websocket.Conn

	mu     sync.Mutex
	closed bool
}

func newWSClient(conn *websocket.Conn) *wsClient {
	return &wsClient{conn: conn}
}

// Send writes one JSON protocol message to the browser.
func (c *wsClient) Send(msg any) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return ErrClientClosed
	}
	return c.conn.WriteJSON(msg)
}

// Close closes the browser connection. Safe to call repeatedly.
func (c *wsClient) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil
	}
	c.closed = true
	c.conn.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	return c.conn.Close()
}

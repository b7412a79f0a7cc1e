package ws

import (
	"time"

	"github.com/gorilla/websocket"
)

type wsConn struct {
	conn     *websocket.Conn
	identity string
	sendMu   chan struct{}
	closed   chan struct{}
}

func newWsConn(c *websocket.Conn, identity string) *wsConn {
	return &wsConn{
		conn:     c,
		identity: identity,
		sendMu:   make(chan struct{}, 1),
		closed:   make(chan struct{}),
	}
}

// Send serializes concurrent writers; gorilla allows one writer at a time.
func (c *wsConn) Send(evt Event) error {
	c.sendMu <- struct{}{}
	defer func() { <-c.sendMu }()
	c.conn.SetWriteDeadline(time.Now().Add(5 * time.Second))

	return c.conn.WriteJSON(evt)
}

func (c *wsConn) Close() error {
	select {
	case <-c.closed:
	default:
		close(c.closed)
	}

	return c.conn.Close()
}

func (c *wsConn) Identity() string { return c.identity }

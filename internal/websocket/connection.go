package websocket

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"coursehub/pkg/types"
)

// Connection wraps a gorilla WebSocket connection behind the
// registry.Conn interface. All writes go through a single writer
// goroutine; Send never blocks, so a slow receiver costs dropped
// frames for that receiver only, never a stalled hub loop.
type Connection struct {
	conn *websocket.Conn

	id       string
	userID   string // caller-supplied, trusted as-is
	userName string

	writeCh      chan []byte
	writeTimeout time.Duration

	ctx       context.Context
	cancel    context.CancelFunc
	closeOnce sync.Once
}

// NewConnection creates a connection wrapper and starts its write pump.
func NewConnection(conn *websocket.Conn, id, userID, userName string, sendBuffer int, writeTimeout time.Duration) *Connection {
	if sendBuffer <= 0 {
		sendBuffer = 100
	}
	if writeTimeout <= 0 {
		writeTimeout = 10 * time.Second
	}

	ctx, cancel := context.WithCancel(context.Background())
	c := &Connection{
		conn:         conn,
		id:           id,
		userID:       userID,
		userName:     userName,
		writeCh:      make(chan []byte, sendBuffer),
		writeTimeout: writeTimeout,
		ctx:          ctx,
		cancel:       cancel,
	}

	go c.writeLoop()
	return c
}

// ID returns the opaque connection identifier.
func (c *Connection) ID() string { return c.id }

// UserID returns the caller-supplied user ID, possibly empty.
func (c *Connection) UserID() string { return c.userID }

// UserName returns the caller-supplied display name, possibly empty.
func (c *Connection) UserName() string { return c.userName }

// Send queues a frame for delivery. A full buffer or closed connection
// is a best-effort delivery miss: no retry, no buffering beyond the
// channel, the error is the only signal.
func (c *Connection) Send(frame *types.Frame) error {
	select {
	case <-c.ctx.Done():
		return ErrConnectionClosed
	default:
	}

	data, err := json.Marshal(frame)
	if err != nil {
		return ErrInvalidJSON
	}

	select {
	case c.writeCh <- data:
		return nil
	case <-c.ctx.Done():
		return ErrConnectionClosed
	default:
		return ErrSendBufferFull
	}
}

// Close tears down the connection. Safe to call multiple times.
func (c *Connection) Close() error {
	var err error
	c.closeOnce.Do(func() {
		c.cancel()
		if c.conn != nil {
			err = c.conn.Close()
		}
	})
	return err
}

// writeLoop is the single writer for the underlying socket.
func (c *Connection) writeLoop() {
	for {
		select {
		case data := <-c.writeCh:
			if err := c.conn.SetWriteDeadline(time.Now().Add(c.writeTimeout)); err != nil {
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}

		case <-c.ctx.Done():
			return
		}
	}
}

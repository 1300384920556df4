package pushserver

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
)

const writeTimeout = 5 * time.Second

var errClientClosed = errors.New("client closed")

// client is one connected browser. cwd is only touched by the read loop.
type client struct {
	id   string
	conn *websocket.Conn
	cwd  []string

	send      chan outbound
	done      chan struct{}
	closeOnce sync.Once
}

func newClient(id string, conn *websocket.Conn) *client {
	return &client{
		id:   id,
		conn: conn,
		cwd:  []string{},
		send: make(chan outbound, sendQueueSize),
		done: make(chan struct{}),
	}
}

func (c *client) enqueue(msg outbound) bool {
	select {
	case <-c.done:
		return true
	default:
	}
	select {
	case c.send <- msg:
		return true
	default:
		return false
	}
}

func (c *client) close(code websocket.StatusCode, reason string) {
	c.closeOnce.Do(func() {
		close(c.done)
		_ = c.conn.Close(code, reason)
	})
}

func (c *client) readCommand(ctx context.Context) (inbound, error) {
	var msg inbound
	err := wsjson.Read(ctx, c.conn, &msg)
	return msg, err
}

// writeLoop drains the send queue until the client closes.
func (c *client) writeLoop(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-c.done:
			return errClientClosed
		case msg := <-c.send:
			writeCtx, cancel := context.WithTimeout(ctx, writeTimeout)
			err := wsjson.Write(writeCtx, c.conn, msg)
			cancel()
			if err != nil {
				return err
			}
		}
	}
}

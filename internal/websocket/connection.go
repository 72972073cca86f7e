// Package websocket owns the single live transport connection to the
// board server: dialing one of the two endpoints, the read and write
// pumps, and outbound backlog accounting.
package websocket

import (
	"encoding/json"
	"fmt"
	"log"
	"net/url"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"inkboard/pkg/types"
)

// Mode selects the endpoint to dial.
type Mode int

const (
	// ModeCreate opens a new room; no room id is required.
	ModeCreate Mode = iota
	// ModeJoin joins an existing room by code, optionally presenting a
	// membership token to rejoin as the same user.
	ModeJoin
)

const sendBufferSize = 256

// Handler receives decoded inbound messages in receipt order. It is
// called synchronously from the read pump and must not block.
type Handler func(msg types.Inbound)

// CloseHandler is called exactly once when the connection dies, with
// nil for an explicit Close.
type CloseHandler func(err error)

// Connection wraps one websocket with a single writer goroutine.
// Writes are serialized through the send channel; Backlog tracks the
// bytes queued but not yet handed to the transport.
type Connection struct {
	conn    *websocket.Conn
	send    chan []byte
	backlog int64

	handler      Handler
	onClose      CloseHandler
	writeTimeout time.Duration
	pingInterval time.Duration

	closeOnce sync.Once
	closed    chan struct{}
}

// Dial establishes the one connection for a session. mode selects the
// create or join endpoint; roomID and token are only used for joins.
func Dial(serverURL string, mode Mode, roomID, token string, writeTimeout, pingInterval time.Duration, handler Handler, onClose CloseHandler) (*Connection, error) {
	endpoint, err := buildEndpoint(serverURL, mode, roomID, token)
	if err != nil {
		return nil, err
	}

	ws, _, err := websocket.DefaultDialer.Dial(endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", endpoint, err)
	}

	c := &Connection{
		conn:         ws,
		send:         make(chan []byte, sendBufferSize),
		handler:      handler,
		onClose:      onClose,
		writeTimeout: writeTimeout,
		pingInterval: pingInterval,
		closed:       make(chan struct{}),
	}

	go c.writePump()
	go c.readPump()

	return c, nil
}

func buildEndpoint(serverURL string, mode Mode, roomID, token string) (string, error) {
	base, err := url.Parse(serverURL)
	if err != nil || (base.Scheme != "ws" && base.Scheme != "wss") {
		return "", ErrInvalidServerURL
	}

	switch mode {
	case ModeCreate:
		base.Path = "/ws/create"
	case ModeJoin:
		if roomID == "" {
			return "", ErrRoomRequired
		}
		base.Path = "/ws/join/" + roomID
		if token != "" {
			q := base.Query()
			q.Set("token", token)
			base.RawQuery = q.Encode()
		}
	}
	return base.String(), nil
}

// Send marshals v and queues it for transmission. Returns
// ErrConnectionClosed after the transport died and ErrSendBufferFull
// when the writer cannot keep up; the frame is not sent in either case.
func (c *Connection) Send(v interface{}) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal outbound message: %w", err)
	}
	return c.SendRaw(data)
}

// SendRaw queues an already-marshaled frame unchanged.
func (c *Connection) SendRaw(data []byte) error {
	select {
	case <-c.closed:
		return ErrConnectionClosed
	default:
	}

	select {
	case c.send <- data:
		atomic.AddInt64(&c.backlog, int64(len(data)))
		return nil
	case <-c.closed:
		return ErrConnectionClosed
	default:
		return ErrSendBufferFull
	}
}

// Backlog returns the bytes queued but not yet written.
func (c *Connection) Backlog() int {
	return int(atomic.LoadInt64(&c.backlog))
}

// IsOpen reports whether the transport can currently accept data.
func (c *Connection) IsOpen() bool {
	select {
	case <-c.closed:
		return false
	default:
		return true
	}
}

// Close tears the transport down. Idempotent; the close handler fires
// with a nil error.
func (c *Connection) Close() error {
	c.shutdown(nil)
	return nil
}

func (c *Connection) shutdown(err error) {
	c.closeOnce.Do(func() {
		close(c.closed)
		c.conn.Close()
		if c.onClose != nil {
			c.onClose(err)
		}
	})
}

// readPump decodes frames and delivers them to the handler in receipt
// order. Malformed payloads are logged and dropped, never surfaced.
func (c *Connection) readPump() {
	defer c.shutdown(nil)

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			select {
			case <-c.closed:
			default:
				log.Printf("websocket: read failed: %v", err)
				c.shutdown(err)
			}
			return
		}

		msg, err := types.DecodeInbound(data)
		if err != nil {
			log.Printf("websocket: dropping malformed frame: %v", err)
			continue
		}
		if msg == nil {
			// Unrecognized type.
			continue
		}
		c.handler(msg)
	}
}

func (c *Connection) writePump() {
	ticker := time.NewTicker(c.pingInterval)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case data := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(c.writeTimeout))
			err := c.conn.WriteMessage(websocket.TextMessage, data)
			atomic.AddInt64(&c.backlog, -int64(len(data)))
			if err != nil {
				c.shutdown(err)
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(c.writeTimeout))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				c.shutdown(err)
				return
			}
		case <-c.closed:
			return
		}
	}
}

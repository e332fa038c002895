// Package transport wraps gorilla/websocket with the dual read/write
// pump shape used throughout the teacher's proxy code
// (internal/websocket/proxy.go's client<->target goroutine pair),
// adapted here to a single logical connection with an outbound queue
// instead of a second socket.
package transport

import (
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// ErrClosed is returned by Send/SendText once the connection's write
// pump has stopped.
var ErrClosed = errors.New("transport: connection closed")

// Config controls heartbeat and size limits, grounded on spec.md §5's
// defaults (5s heartbeat, 10s keepalive) and §4.5's max message size.
type Config struct {
	HeartbeatInterval time.Duration
	KeepaliveTimeout  time.Duration
	MaxMessageSize    int64
}

// DefaultConfig returns spec.md's stated defaults.
func DefaultConfig() Config {
	return Config{
		HeartbeatInterval: 5 * time.Second,
		KeepaliveTimeout:  10 * time.Second,
		MaxMessageSize:    1 << 20,
	}
}

var Upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

type outboundMsg struct {
	messageType int
	data        []byte
	result      chan error
}

// Conn is a single WebSocket connection with a dedicated write-pump
// goroutine, mirroring the teacher's client<->target dual-goroutine
// proxy shape but feeding one side from an in-process channel rather
// than a second dialed socket.
type Conn struct {
	ws     *websocket.Conn
	cfg    Config
	outbox chan outboundMsg
	done   chan struct{}
	once   sync.Once
}

// Wrap adopts an already-upgraded/dialed *websocket.Conn.
func Wrap(ws *websocket.Conn, cfg Config) *Conn {
	ws.SetReadLimit(cfg.MaxMessageSize)
	c := &Conn{
		ws:     ws,
		cfg:    cfg,
		outbox: make(chan outboundMsg, 64),
		done:   make(chan struct{}),
	}
	ws.SetPongHandler(func(string) error {
		return ws.SetReadDeadline(time.Now().Add(cfg.KeepaliveTimeout))
	})
	_ = ws.SetReadDeadline(time.Now().Add(cfg.KeepaliveTimeout))
	return c
}

// WritePump drains the outbound queue and sends periodic pings. It
// runs until Close is called or a write fails, and must be started in
// its own goroutine by the caller (the session/client handler actor).
func (c *Conn) WritePump() {
	ticker := time.NewTicker(c.cfg.HeartbeatInterval)
	defer ticker.Stop()
	for {
		select {
		case <-c.done:
			return
		case msg := <-c.outbox:
			err := c.ws.WriteMessage(msg.messageType, msg.data)
			if msg.result != nil {
				msg.result <- err
			}
			if err != nil {
				return
			}
		case <-ticker.C:
			if err := c.ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// ReadPump blocks reading frames and dispatches them to onBinary /
// onText until the socket errors or closes, then calls onClose.
func (c *Conn) ReadPump(onBinary func([]byte), onText func(string), onClose func(error)) {
	for {
		messageType, data, err := c.ws.ReadMessage()
		if err != nil {
			onClose(err)
			return
		}
		switch messageType {
		case websocket.BinaryMessage:
			onBinary(data)
		case websocket.TextMessage:
			onText(string(data))
		}
	}
}

// Send enqueues a binary frame and waits for the write pump to report
// its outcome. The write itself runs on the write pump's goroutine,
// but the caller stays blocked until that write finishes or the
// connection closes.
func (c *Conn) Send(data []byte) error {
	return c.send(websocket.BinaryMessage, data)
}

// SendText enqueues a text frame (used for WASM ping/pong emulation).
func (c *Conn) SendText(data string) error {
	return c.send(websocket.TextMessage, []byte(data))
}

func (c *Conn) send(messageType int, data []byte) error {
	result := make(chan error, 1)
	select {
	case <-c.done:
		return ErrClosed
	case c.outbox <- outboundMsg{messageType: messageType, data: data, result: result}:
	}
	select {
	case <-c.done:
		return ErrClosed
	case err := <-result:
		if err != nil {
			return fmt.Errorf("transport: write: %w", err)
		}
		return nil
	}
}

// Close sends a close frame (best-effort) and stops the write pump.
func (c *Conn) Close(code int, reason string) error {
	var closeErr error
	c.once.Do(func() {
		closeErr = c.ws.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(code, reason), time.Now().Add(time.Second))
		close(c.done)
		_ = c.ws.Close()
	})
	return closeErr
}

// IsCloseError reports whether err represents a normal/expected close,
// grounded on the teacher's isCloseError helper.
func IsCloseError(err error) bool {
	if err == nil {
		return false
	}
	return websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway)
}

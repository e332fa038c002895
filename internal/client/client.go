// Package client implements the client-side half of the messaging
// runtime: the pending-request tracker, the per-connection handler
// actor, and the public Client façade, grounded on
// original_source/src/client/{client.rs,client_handler.rs,
// pending_request_tracker.rs,request_signal.rs}.
package client

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/url"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"github.com/netline/simplenet/internal/auth"
	"github.com/netline/simplenet/internal/protocol"
	"github.com/netline/simplenet/internal/transport"
)

// Config parameterizes a Client's connection and reconnect behavior.
type Config struct {
	// URL is the ws(s)://host:port/path base; query parameters are
	// appended per spec.md §6.
	URL             string
	ProtocolVersion string
	EnvType         protocol.EnvType
	AuthRequest     auth.AuthRequest
	Reconnect       bool
	ReconnectDelay  time.Duration
	Transport       transport.Config
	Logger          *slog.Logger
}

func (c Config) withDefaults() Config {
	if c.ProtocolVersion == "" {
		c.ProtocolVersion = protocol.ProtocolVersion
	}
	if c.ReconnectDelay == 0 {
		c.ReconnectDelay = time.Second
	}
	if c.Transport == (transport.Config{}) {
		c.Transport = transport.DefaultConfig()
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
	return c
}

// Client is the public façade over the client-side handler actor. All
// methods are non-blocking: they contend only on mu and a few
// atomics, never on transport I/O (spec.md §5).
type Client[ConnectMsg, ClientMsg, ServerMsg, ClientRequest, ServerResponse any] struct {
	id         protocol.ClientID
	connectMsg ConnectMsg
	cfg        Config
	log        *slog.Logger

	mu                sync.Mutex
	pending           *pendingTracker
	disconnectedCount uint32
	conn              *transport.Conn

	closedSignal atomic.Bool
	closedBySelf atomic.Bool

	events chan Event[ServerMsg, ServerResponse]
	stop   chan struct{}
	stopOK sync.Once
}

// New constructs a Client and starts its connection-handler actor.
func New[ConnectMsg, ClientMsg, ServerMsg, ClientRequest, ServerResponse any](
	id protocol.ClientID, connectMsg ConnectMsg, cfg Config,
) *Client[ConnectMsg, ClientMsg, ServerMsg, ClientRequest, ServerResponse] {
	cfg = cfg.withDefaults()
	c := &Client[ConnectMsg, ClientMsg, ServerMsg, ClientRequest, ServerResponse]{
		id:                id,
		connectMsg:        connectMsg,
		cfg:               cfg,
		log:               cfg.Logger.With("client_id", id),
		pending:           newPendingTracker(),
		disconnectedCount: 1, // created already disconnected, per spec.md §3
		events:            make(chan Event[ServerMsg, ServerResponse], 256),
		stop:              make(chan struct{}),
	}
	go c.run()
	return c
}

// ID returns this client's identity.
func (c *Client[C, M, S, Q, R]) ID() protocol.ClientID { return c.id }

// IsConnected reports whether the handler has emitted a Connected
// report the caller has consumed via Next, and no terminal close has
// happened since.
func (c *Client[C, M, S, Q, R]) IsConnected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.disconnectedCount == 0 && !c.isClosedLocked()
}

func (c *Client[C, M, S, Q, R]) isClosedLocked() bool {
	return c.closedBySelf.Load() || c.closedSignal.Load()
}

// IsDead reports whether the handler actor has terminated.
func (c *Client[C, M, S, Q, R]) IsDead() bool { return c.closedSignal.Load() }

// IsClosed reports IsDead() || closed-by-self.
func (c *Client[C, M, S, Q, R]) IsClosed() bool { return c.closedBySelf.Load() || c.closedSignal.Load() }

// Send transmits a one-shot client message. It fails immediately with
// a SendFailed-equivalent signal if the client is gated (§3 invariant
// 4): disconnected or closed.
func (c *Client[C, M, S, Q, R]) Send(msg M) *MessageSignal {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.disconnectedCount > 0 || c.isClosedLocked() {
		return failedMessageSignal()
	}
	frame := protocol.NewClientMsgFrame[M, Q](msg)
	return c.sendFrameLocked(frame.Encode)
}

// Request transmits a request and returns a RequestSignal the caller
// polls to observe its terminal outcome.
func (c *Client[C, M, S, Q, R]) Request(req Q) *RequestSignal {
	c.mu.Lock()
	defer c.mu.Unlock()
	id := c.pending.reserveID()
	if c.disconnectedCount > 0 || c.isClosedLocked() {
		sig := c.pending.add(id, failedMessageSignal())
		return sig
	}
	frame := protocol.NewClientRequestFrame[M, Q](req, id)
	msg := c.sendFrameLocked(frame.Encode)
	return c.pending.add(id, msg)
}

func (c *Client[C, M, S, Q, R]) sendFrameLocked(encode func() ([]byte, error)) *MessageSignal {
	sig := newMessageSignal()
	conn := c.conn
	if conn == nil {
		sig.setFailed()
		return sig
	}
	b, err := encode()
	if err != nil {
		sig.setFailed()
		return sig
	}
	go func() {
		if err := conn.Send(b); err != nil {
			sig.setFailed()
		} else {
			sig.setSent()
		}
	}()
	return sig
}

// Next pops the next event, or returns ok=false if none is queued. A
// Connected report consumed here is what allows subsequent sends to
// succeed again, honoring invariant 4.
func (c *Client[C, M, S, Q, R]) Next() (Event[S, R], bool) {
	select {
	case ev := <-c.events:
		if ev.Kind == EventReport && ev.Report.Kind == ReportConnected {
			c.mu.Lock()
			if c.disconnectedCount > 0 {
				c.disconnectedCount--
			}
			c.mu.Unlock()
		}
		return ev, true
	default:
		return Event[S, R]{}, false
	}
}

// Close idempotently closes the connection from the client side.
func (c *Client[C, M, S, Q, R]) Close() {
	c.mu.Lock()
	if c.isClosedLocked() {
		c.mu.Unlock()
		return
	}
	c.closedBySelf.Store(true)
	conn := c.conn
	c.mu.Unlock()

	if conn != nil {
		_ = conn.Close(websocket.CloseNormalClosure, "client closing")
	}
	c.publish(Event[S, R]{Kind: EventReport, Report: ClientReport{Kind: ReportClosedBySelf}})
	c.stopOK.Do(func() { close(c.stop) })
}

func (c *Client[C, M, S, Q, R]) publish(ev Event[S, R]) {
	select {
	case c.events <- ev:
	default:
		c.log.Warn("client event queue full, dropping event", "kind", ev.Kind)
	}
}

// run is the connection-handler actor: dial, pump frames, reconnect.
func (c *Client[C, M, S, Q, R]) run() {
	for {
		select {
		case <-c.stop:
			return
		default:
		}

		ws, err := c.dial()
		if err != nil {
			c.onConnectFail()
			if !c.cfg.Reconnect {
				c.die()
				return
			}
			select {
			case <-c.stop:
				return
			case <-time.After(c.cfg.ReconnectDelay):
			}
			continue
		}

		conn := transport.Wrap(ws, c.cfg.Transport)
		c.mu.Lock()
		c.conn = conn
		c.mu.Unlock()
		go conn.WritePump()

		c.onConnect()

		closeCode, closeReason := c.readUntilClosed(conn)

		c.mu.Lock()
		c.conn = nil
		c.mu.Unlock()

		c.onDisconnect(closeCode, closeReason)

		if c.isClosedLocked() || !c.cfg.Reconnect {
			c.die()
			return
		}
		select {
		case <-c.stop:
			return
		case <-time.After(c.cfg.ReconnectDelay):
		}
	}
}

func (c *Client[C, M, S, Q, R]) dial() (*websocket.Conn, error) {
	u, err := url.Parse(c.cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("client: parse url: %w", err)
	}
	authJSON, err := json.Marshal(c.cfg.AuthRequest)
	if err != nil {
		return nil, fmt.Errorf("client: marshal auth request: %w", err)
	}
	connectJSON, err := json.Marshal(c.connectMsg)
	if err != nil {
		return nil, fmt.Errorf("client: marshal connect message: %w", err)
	}
	// Written by hand rather than via url.Values.Encode, which sorts
	// keys, so the parameters keep the handshake order v, t, a, c.
	u.RawQuery = protocol.QueryVersion + "=" + url.QueryEscape(c.cfg.ProtocolVersion) +
		"&" + protocol.QueryEnvType + "=" + url.QueryEscape(strconv.Itoa(int(c.cfg.EnvType))) +
		"&" + protocol.QueryAuth + "=" + url.QueryEscape(string(authJSON)) +
		"&" + protocol.QueryConnect + "=" + url.QueryEscape(string(connectJSON))

	ws, _, err := websocket.DefaultDialer.DialContext(context.Background(), u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("client: dial: %w", err)
	}
	return ws, nil
}

// onConnect drains the previous socket's backlog before publishing
// Connected, so the event stream stays ordered (spec.md §4.7).
func (c *Client[C, M, S, Q, R]) onConnect() {
	c.mu.Lock()
	drained := c.pending.abortAll()
	for _, sig := range drained {
		if sig.msg.Status() == MessageSending {
			sig.msg.setFailed()
		}
	}
	c.mu.Unlock()

	for _, sig := range drained {
		c.publish(Event[S, R]{Kind: EventRequestOutcome, RequestID: sig.ID(), Status: sig.Status()})
	}
	c.publish(Event[S, R]{Kind: EventReport, Report: ClientReport{Kind: ReportConnected}})
}

func (c *Client[C, M, S, Q, R]) onConnectFail() {
	c.mu.Lock()
	drained := c.pending.drainFailed()
	c.mu.Unlock()
	for _, sig := range drained {
		c.publish(Event[S, R]{Kind: EventRequestOutcome, RequestID: sig.ID(), Status: sig.Status()})
	}
}

func (c *Client[C, M, S, Q, R]) onDisconnect(code int, reason string) {
	c.mu.Lock()
	c.disconnectedCount++
	closedBySelf := c.closedBySelf.Load()
	c.mu.Unlock()

	if closedBySelf {
		// ClosedBySelf was already published by Close(); avoid a
		// duplicate Disconnected report.
	} else if code != 0 {
		c.publish(Event[S, R]{Kind: EventReport, Report: ClientReport{Kind: ReportClosedByServer, CloseCode: code, CloseReason: reason}})
	} else {
		c.publish(Event[S, R]{Kind: EventReport, Report: ClientReport{Kind: ReportDisconnected}})
	}

	c.mu.Lock()
	drained := c.pending.drainFailed()
	c.mu.Unlock()
	for _, sig := range drained {
		c.publish(Event[S, R]{Kind: EventRequestOutcome, RequestID: sig.ID(), Status: sig.Status()})
	}
}

// readUntilClosed blocks decoding frames from conn until it errors,
// dispatching decoded frames to the pending tracker / event channel.
func (c *Client[C, M, S, Q, R]) readUntilClosed(conn *transport.Conn) (code int, reason string) {
	done := make(chan struct{})
	conn.ReadPump(
		func(b []byte) { c.onBinary(b) },
		func(s string) { c.onText(s) },
		func(err error) {
			if ce, ok := err.(*websocket.CloseError); ok {
				code, reason = ce.Code, ce.Text
			}
			close(done)
		},
	)
	<-done
	return code, reason
}

func (c *Client[C, M, S, Q, R]) onBinary(b []byte) {
	frame, err := protocol.DecodeServerFrame[S, R](b)
	if err != nil {
		c.log.Error("discarding malformed server frame", "error", err)
		return
	}
	switch frame.Kind {
	case protocol.FrameKindMsg:
		c.publish(Event[S, R]{Kind: EventMsg, Msg: frame.Msg})
	case protocol.FrameKindResponse:
		c.completeRequest(frame.RequestID, innerResponded)
		c.publish(Event[S, R]{Kind: EventResponse, Response: frame.Response, RequestID: frame.RequestID})
	case protocol.FrameKindAck:
		c.completeRequest(frame.RequestID, innerAcknowledged)
		c.publish(Event[S, R]{Kind: EventAck, RequestID: frame.RequestID})
	case protocol.FrameKindReject:
		c.completeRequest(frame.RequestID, innerRejected)
		c.publish(Event[S, R]{Kind: EventReject, RequestID: frame.RequestID})
	}
}

func (c *Client[C, M, S, Q, R]) completeRequest(id protocol.RequestID, status innerStatus) {
	c.mu.Lock()
	ok := c.pending.complete(id, status)
	c.mu.Unlock()
	if !ok {
		c.log.Error("reply for unknown request id, dropping", "request_id", id)
	}
}

func (c *Client[C, M, S, Q, R]) onText(s string) {
	// Native clients never send text; this handler only matters for
	// WASM ping/pong emulation, which this native implementation does
	// not originate, but still tolerates from a WASM-configured peer.
	if len(s) < 5 {
		return
	}
	switch {
	case s[:5] == "ping:":
		_ = s // native Go clients do not reply: heartbeat uses gorilla ping/pong frames instead.
	case s[:5] == "pong:":
		c.log.Debug("pong latency sample", "raw", s)
	}
}

// die terminates the handler actor: aborts all pending requests and
// publishes IsDead, after which every subsequent Next() drains to
// empty once the channel is consumed.
//
// Every drained entry whose outer send had already resolved (Sent or
// Failed) gets its own terminal EventRequestOutcome here, same as
// onConnect/onDisconnect; only ids still Sending go into AbortedIDs,
// since their outer write hasn't resolved yet and will self-resolve
// against the now-detached signal without a further publish.
func (c *Client[C, M, S, Q, R]) die() {
	c.mu.Lock()
	drained := c.pending.abortAll()
	c.mu.Unlock()

	aborted := make([]protocol.RequestID, 0, len(drained))
	for _, sig := range drained {
		if sig.msg.Status() == MessageSending {
			aborted = append(aborted, sig.ID())
			continue
		}
		c.publish(Event[S, R]{Kind: EventRequestOutcome, RequestID: sig.ID(), Status: sig.Status()})
	}
	c.publish(Event[S, R]{Kind: EventReport, Report: ClientReport{Kind: ReportIsDead, AbortedIDs: aborted}})
	c.closedSignal.Store(true)
}

package server

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/netline/simplenet/internal/auth"
	"github.com/netline/simplenet/internal/protocol"
	"github.com/netline/simplenet/internal/ratelimit"
	"github.com/netline/simplenet/internal/transport"
)

// Config parameterizes the connection handler's admission pipeline
// and per-session limits, grounded on
// original_source/src/server/connection_handler.rs and
// connection_validation.rs.
type Config struct {
	Authenticator   auth.Authenticator
	MaxConnections  int
	MaxPending      int
	AuthTimeout     time.Duration
	RateLimit       ratelimit.Config
	MaxMessageSize  int64
	ProtocolVersion string
	Transport       transport.Config
	Logger          *slog.Logger
}

func (c Config) withDefaults() Config {
	if c.MaxConnections == 0 {
		c.MaxConnections = 1000
	}
	if c.AuthTimeout == 0 {
		c.AuthTimeout = 3 * time.Second
	}
	if c.RateLimit == (ratelimit.Config{}) {
		c.RateLimit = ratelimit.DefaultConfig()
	}
	if c.MaxMessageSize == 0 {
		c.MaxMessageSize = 1 << 20
	}
	if c.ProtocolVersion == "" {
		c.ProtocolVersion = protocol.ProtocolVersion
	}
	if c.Transport == (transport.Config{}) {
		c.Transport = transport.DefaultConfig()
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
	return c
}

type binding struct {
	sessionID     protocol.SessionID
	connectionIdx uint64
}

type sessionEntry struct {
	id            protocol.SessionID
	conn          *transport.Conn
	death         *DeathSignal
	promoted      bool
	clientID      protocol.ClientID
	connectionIdx uint64
}

// ConnectionHandler owns the session registry and the two index maps
// between ClientID and (SessionID, connection index), grounded on
// original_source/src/server/connection_handler.rs. All registry
// mutation happens on the calling goroutine under mu; there is no
// separate actor goroutine for the registry itself, since Go's
// net/http already gives each accepted connection its own goroutine
// (the session's own Admit call), matching the teacher's
// one-goroutine-per-connection idiom in internal/websocket/proxy.go.
type ConnectionHandler[ConnectMsg, ClientMsg, ServerMsg, ClientRequest, ServerResponse any] struct {
	cfg Config
	log *slog.Logger

	mu               sync.Mutex
	sessionCounter   uint64
	connectionIdx    uint64
	pendingCount     int
	connectedCount   int
	totalConnections uint64
	sessions         map[protocol.SessionID]*sessionEntry
	clientToSession  map[protocol.ClientID]binding

	events chan Event[ConnectMsg, ClientMsg, ClientRequest]
}

func NewConnectionHandler[ConnectMsg, ClientMsg, ServerMsg, ClientRequest, ServerResponse any](cfg Config) *ConnectionHandler[ConnectMsg, ClientMsg, ServerMsg, ClientRequest, ServerResponse] {
	cfg = cfg.withDefaults()
	return &ConnectionHandler[ConnectMsg, ClientMsg, ServerMsg, ClientRequest, ServerResponse]{
		cfg:             cfg,
		log:             cfg.Logger,
		sessions:        make(map[protocol.SessionID]*sessionEntry),
		clientToSession: make(map[protocol.ClientID]binding),
		events:          make(chan Event[ConnectMsg, ClientMsg, ClientRequest], 256),
	}
}

// Events exposes the event channel the Server façade drains.
func (h *ConnectionHandler[C, M, S, Q, R]) Events() <-chan Event[C, M, Q] { return h.events }

// NumConnections reports the current promoted-connection count.
func (h *ConnectionHandler[C, M, S, Q, R]) NumConnections() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.connectedCount
}

// CheckCapacity reports whether a new socket can be admitted as
// pending (spec.md §4.6 step 1).
func (h *ConnectionHandler[C, M, S, Q, R]) CheckCapacity() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.pendingCount+h.connectedCount < h.cfg.MaxPending+h.cfg.MaxConnections
}

// Authenticate evaluates req against the configured Authenticator. The
// gateway calls this before upgrading the socket (spec.md §4.6 step 3),
// so a rejected auth request fails as an HTTP 4xx on the handshake
// rather than a post-upgrade close frame.
func (h *ConnectionHandler[C, M, S, Q, R]) Authenticate(req auth.AuthRequest) bool {
	return h.cfg.Authenticator.Authenticate(req)
}

// Admit runs the full lifecycle of one already-authenticated socket:
// pending registration, promotion under a deadline, the session's read
// loop, and cleanup on disconnect. It blocks for the life of the
// connection, matching the teacher's ServeHTTP-blocks-until-the-proxy-
// ends shape (internal/websocket/proxy.go). authReq has already passed
// Authenticate by the time the gateway calls Admit; the deadline here
// bounds time-to-promotion and is reserved strictly for the "no auth
// received" case (the session never reaching Connected in time), not
// for re-validating credentials.
func (h *ConnectionHandler[C, M, S, Q, R]) Admit(ctx context.Context, ws *websocket.Conn, envType protocol.EnvType, authReq auth.AuthRequest, connectMsg C) error {
	clientID, ok := authReq.ID()
	if !ok {
		_ = ws.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.ClosePolicyViolation, "Auth message invalid."), time.Now().Add(time.Second))
		return fmt.Errorf("server: admission: auth request missing client id")
	}

	conn := transport.Wrap(ws, h.cfg.Transport)
	death := &DeathSignal{}

	h.mu.Lock()
	h.sessionCounter++
	sid := protocol.SessionID(h.sessionCounter)
	entry := &sessionEntry{id: sid, conn: conn, death: death}
	h.sessions[sid] = entry
	h.pendingCount++
	h.mu.Unlock()

	defer h.teardown(sid)

	go conn.WritePump()

	authCtx, cancel := context.WithTimeout(ctx, h.cfg.AuthTimeout)
	defer cancel()
	promoted := make(chan error, 1)
	go func() { promoted <- h.promote(sid, clientID, connectMsg, envType, conn) }()

	select {
	case err := <-promoted:
		if err != nil {
			_ = conn.Close(websocket.ClosePolicyViolation, "client already connected")
			return err
		}
	case <-authCtx.Done():
		_ = conn.Close(websocket.ClosePolicyViolation, "no auth received")
		return fmt.Errorf("server: admission: auth timeout for client %s", clientID)
	}

	h.serve(sid, clientID, conn, death)
	return nil
}

func (h *ConnectionHandler[C, M, S, Q, R]) promote(sid protocol.SessionID, clientID protocol.ClientID, connectMsg C, envType protocol.EnvType, conn *transport.Conn) error {
	h.mu.Lock()
	if _, dup := h.clientToSession[clientID]; dup {
		h.mu.Unlock()
		return fmt.Errorf("server: admission: client %s already connected", clientID)
	}
	h.connectionIdx++
	idx := h.connectionIdx
	entry := h.sessions[sid]
	entry.promoted = true
	entry.clientID = clientID
	entry.connectionIdx = idx
	h.pendingCount--
	h.connectedCount++
	h.totalConnections++
	h.clientToSession[clientID] = binding{sessionID: sid, connectionIdx: idx}
	h.mu.Unlock()

	h.publish(Event[C, M, Q]{Kind: EventConnected, ClientID: clientID, EnvType: envType, ConnectMsg: connectMsg})
	return nil
}

// serve runs the promoted session's binary/text frame loop.
func (h *ConnectionHandler[C, M, S, Q, R]) serve(sid protocol.SessionID, clientID protocol.ClientID, conn *transport.Conn, death *DeathSignal) {
	tracker := ratelimit.NewTracker(h.cfg.RateLimit)

	rejector := func(reqID protocol.RequestID) {
		frame := protocol.NewServerRejectFrame[S, R](reqID)
		b, err := frame.Encode()
		if err != nil {
			h.log.Error("encode reject frame", "error", err)
			return
		}
		if err := conn.Send(b); err != nil {
			h.log.Debug("reject frame dropped, session gone", "session_id", sid)
		}
	}

	closeSession := func(reason string) {
		_ = conn.Close(websocket.ClosePolicyViolation, reason)
	}

	conn.ReadPump(
		func(b []byte) {
			if !tracker.TryCountMsg() {
				closeSession("rate limit violation")
				return
			}
			if int64(len(b)) > h.cfg.MaxMessageSize {
				closeSession("message size violation")
				return
			}
			frame, err := protocol.DecodeClientFrame[M, Q](b)
			if err != nil {
				closeSession("deserialization failure")
				return
			}
			switch frame.Kind {
			case protocol.FrameKindMsg:
				h.publish(Event[C, M, Q]{Kind: EventMsg, ClientID: clientID, Msg: frame.Msg})
			case protocol.FrameKindRequest:
				token := NewRequestToken(clientID, frame.RequestID, rejector, death)
				h.publish(Event[C, M, Q]{Kind: EventRequest, ClientID: clientID, Request: frame.Request, Token: token})
			}
		},
		func(s string) {
			if len(s) < 5 {
				closeSession("text not allowed")
				return
			}
			switch s[:5] {
			case "ping:":
				_ = conn.SendText("pong:" + s[5:])
			case "pong:":
				h.log.Debug("pong latency sample", "session_id", sid, "raw", s)
			default:
				closeSession("text not allowed")
			}
		},
		func(error) {},
	)
}

func (h *ConnectionHandler[C, M, S, Q, R]) teardown(sid protocol.SessionID) {
	h.mu.Lock()
	entry, ok := h.sessions[sid]
	if !ok {
		h.mu.Unlock()
		return
	}
	delete(h.sessions, sid)
	wasPromoted := entry.promoted
	clientID := entry.clientID
	if wasPromoted {
		delete(h.clientToSession, clientID)
		h.connectedCount--
	} else {
		h.pendingCount--
	}
	// Mark dead inside the same critical section that removes the
	// clientToSession binding: a concurrent promote() for a new socket
	// with the same clientID must never observe a live death signal for
	// a session already (or about to be) absent from the registry.
	entry.death.markDead()
	h.mu.Unlock()

	if wasPromoted {
		h.publish(Event[C, M, Q]{Kind: EventDisconnected, ClientID: clientID})
	}
}

func (h *ConnectionHandler[C, M, S, Q, R]) publish(ev Event[C, M, Q]) {
	select {
	case h.events <- ev:
	default:
		h.log.Warn("server event queue full, dropping event", "kind", ev.Kind)
	}
}

// Send routes a pre-encoded server frame to clientID's current
// session, honoring the gating invariant symmetric to the client side
// (spec.md §4.6): a stale consumedIdx or a dead destination drops the
// message silently rather than misdelivering it to a newer session.
func (h *ConnectionHandler[C, M, S, Q, R]) Send(clientID protocol.ClientID, data []byte, consumedIdx *uint64, death *DeathSignal) error {
	h.mu.Lock()
	b, ok := h.clientToSession[clientID]
	var conn *transport.Conn
	if ok {
		if entry, ok2 := h.sessions[b.sessionID]; ok2 {
			conn = entry.conn
		}
	}
	h.mu.Unlock()

	if !ok || conn == nil {
		return fmt.Errorf("server: send: client %s not connected", clientID)
	}
	if consumedIdx != nil && *consumedIdx < b.connectionIdx {
		return nil
	}
	if death != nil && death.IsDead() {
		return nil
	}
	return conn.Send(data)
}

// Disconnect closes clientID's current session with the given close
// code and reason.
func (h *ConnectionHandler[C, M, S, Q, R]) Disconnect(clientID protocol.ClientID, code int, reason string) error {
	h.mu.Lock()
	b, ok := h.clientToSession[clientID]
	var conn *transport.Conn
	if ok {
		if entry, ok2 := h.sessions[b.sessionID]; ok2 {
			conn = entry.conn
		}
	}
	h.mu.Unlock()
	if !ok || conn == nil {
		return fmt.Errorf("server: disconnect: client %s not connected", clientID)
	}
	return conn.Close(code, reason)
}

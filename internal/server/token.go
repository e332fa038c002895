// Package server implements the server-side half of the messaging
// runtime: the request token, the per-connection session handler, the
// connection handler (registry + admission + dispatch), and the
// public Server façade, grounded on
// original_source/src/server/{request_token.rs,session_handler.rs,
// connection_handler.rs,connection_validation.rs}.
package server

import (
	"runtime"
	"sync"

	"github.com/netline/simplenet/internal/protocol"
)

// DeathSignal is a mutex-guarded flag set when a session handler is
// destroyed. Tokens and the outbound dispatcher read it to avoid
// cross-session leakage (spec.md §4.4, §4.6).
type DeathSignal struct {
	mu   sync.RWMutex
	dead bool
}

func (d *DeathSignal) IsDead() bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.dead
}

func (d *DeathSignal) markDead() {
	d.mu.Lock()
	d.dead = true
	d.mu.Unlock()
}

// Rejector emits a Reject(requestID) frame on the session that
// originally received the request.
type Rejector func(requestID protocol.RequestID)

// tokenState is the data a RequestToken needs to resolve, held apart
// from the RequestToken value itself so the GC cleanup registered in
// NewRequestToken can reach it without keeping the token reachable
// (see runtime.AddCleanup's documented arg-independence requirement).
type tokenState struct {
	mu        sync.Mutex
	used      bool
	clientID  protocol.ClientID
	requestID protocol.RequestID
	rejector  Rejector
	death     *DeathSignal
}

func (s *tokenState) consume() (Rejector, protocol.RequestID, *DeathSignal, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.used {
		return nil, 0, nil, false
	}
	s.used = true
	return s.rejector, s.requestID, s.death, true
}

func (s *tokenState) rejectIfUnused() {
	rejector, id, death, ok := s.consume()
	if !ok {
		return
	}
	if death != nil && death.IsDead() {
		return
	}
	if rejector != nil {
		rejector(id)
	}
}

// RequestToken is the server-side capability to complete one client
// request. Go has no destructor, so the "rejects on drop unless
// consumed" rule (spec.md §4.4, §9) is enforced two ways: primarily,
// by the server package only exposing Respond/Ack/Reject as the ways
// to dispose of a token, all of which permanently consume it; as a
// backstop, a GC cleanup runs the same reject-unless-dead logic if a
// caller drops a token on the floor (an early return, a forgotten
// branch) without calling any of the three.
type RequestToken struct {
	state *tokenState
}

func NewRequestToken(clientID protocol.ClientID, requestID protocol.RequestID, rejector Rejector, death *DeathSignal) *RequestToken {
	state := &tokenState{clientID: clientID, requestID: requestID, rejector: rejector, death: death}
	token := &RequestToken{state: state}
	runtime.AddCleanup(token, func(s *tokenState) { s.rejectIfUnused() }, state)
	return token
}

// ClientID returns the client the token addresses.
func (t *RequestToken) ClientID() protocol.ClientID { return t.state.clientID }

// RequestID returns the request this token can complete.
func (t *RequestToken) RequestID() protocol.RequestID { return t.state.requestID }

// DestinationIsDead reports whether the originating session is gone.
// The server checks this before every respond/ack to avoid
// cross-session leakage (spec.md §4.4).
func (t *RequestToken) DestinationIsDead() bool {
	return t.state.death != nil && t.state.death.IsDead()
}

// Reject explicitly rejects the request, consuming the token.
func (t *RequestToken) Reject() {
	t.state.rejectIfUnused()
}

// take consumes the token for respond/ack, returning what the caller
// needs to route the reply, without invoking the rejector.
func (t *RequestToken) take() (protocol.RequestID, *DeathSignal, bool) {
	_, id, death, ok := t.state.consume()
	return id, death, ok
}

package server

import (
	"fmt"

	"github.com/netline/simplenet/internal/protocol"
)

// Server is the public façade over the connection handler. Send,
// Respond, Ack and Reject encode a frame and hand it to the session's
// write pump, then wait until the pump reports the write's outcome:
// they block for the duration of that socket write and are not
// non-blocking. Next and NumConnections do not wait on I/O.
type Server[ConnectMsg, ClientMsg, ServerMsg, ClientRequest, ServerResponse any] struct {
	handler *ConnectionHandler[ConnectMsg, ClientMsg, ServerMsg, ClientRequest, ServerResponse]

	consumedConnectionEvents uint64
}

func New[ConnectMsg, ClientMsg, ServerMsg, ClientRequest, ServerResponse any](
	cfg Config,
) *Server[ConnectMsg, ClientMsg, ServerMsg, ClientRequest, ServerResponse] {
	return &Server[ConnectMsg, ClientMsg, ServerMsg, ClientRequest, ServerResponse]{
		handler: NewConnectionHandler[ConnectMsg, ClientMsg, ServerMsg, ClientRequest, ServerResponse](cfg),
	}
}

// ConnectionHandler exposes the handler so the HTTP gateway can drive
// admission (Admit/CheckCapacity) without this façade needing to know
// about HTTP at all.
func (s *Server[C, M, S, Q, R]) ConnectionHandler() *ConnectionHandler[C, M, S, Q, R] {
	return s.handler
}

// NumConnections reports the current promoted-connection count.
func (s *Server[C, M, S, Q, R]) NumConnections() int { return s.handler.NumConnections() }

// Send transmits a one-shot server message to clientID.
func (s *Server[C, M, S, Q, R]) Send(clientID protocol.ClientID, msg S) error {
	frame := protocol.NewServerMsgFrame[S, R](msg)
	b, err := frame.Encode()
	if err != nil {
		return fmt.Errorf("server: encode msg: %w", err)
	}
	idx := s.consumedConnectionEvents
	return s.handler.Send(clientID, b, &idx, nil)
}

// Respond completes a request with a response payload. token is
// consumed. If the originating session has already died the response
// is never misdelivered: it is dropped with a nil error when the client
// has since reconnected on a newer session, and an error is returned
// when the client has no session at all.
func (s *Server[C, M, S, Q, R]) Respond(token *RequestToken, resp R) error {
	clientID := token.ClientID()
	id, death, ok := token.take()
	if !ok {
		return fmt.Errorf("server: respond: token for request %d already consumed", token.RequestID())
	}
	frame := protocol.NewServerResponseFrame[S, R](resp, id)
	b, err := frame.Encode()
	if err != nil {
		return fmt.Errorf("server: encode response: %w", err)
	}
	return s.handler.Send(clientID, b, nil, death)
}

// Ack acknowledges a request without a payload. token is consumed.
func (s *Server[C, M, S, Q, R]) Ack(token *RequestToken) error {
	clientID := token.ClientID()
	id, death, ok := token.take()
	if !ok {
		return fmt.Errorf("server: ack: token for request %d already consumed", token.RequestID())
	}
	frame := protocol.NewServerAckFrame[S, R](id)
	b, err := frame.Encode()
	if err != nil {
		return fmt.Errorf("server: encode ack: %w", err)
	}
	return s.handler.Send(clientID, b, nil, death)
}

// Reject explicitly rejects a request. token is consumed.
func (s *Server[C, M, S, Q, R]) Reject(token *RequestToken) {
	token.Reject()
}

// DisconnectClient closes clientID's session with the given close
// code and reason.
func (s *Server[C, M, S, Q, R]) DisconnectClient(clientID protocol.ClientID, code int, reason string) error {
	return s.handler.Disconnect(clientID, code, reason)
}

// Next pops the next inbound event. A Connected event bumps the
// consumed-connection-events counter stamped onto outbound Send
// calls, gating sends targeting sessions the caller has not yet
// observed as connected (spec.md §4.9).
func (s *Server[C, M, S, Q, R]) Next() (Event[C, M, Q], bool) {
	select {
	case ev := <-s.handler.Events():
		if ev.Kind == EventConnected {
			s.consumedConnectionEvents++
		}
		return ev, true
	default:
		return Event[C, M, Q]{}, false
	}
}

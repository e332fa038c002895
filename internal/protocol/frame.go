package protocol

import (
	"fmt"

	"github.com/vmihailenco/msgpack/v5"
)

// FrameKind tags which variant of a frame envelope is populated.
type FrameKind uint8

const (
	FrameKindMsg FrameKind = iota
	FrameKindResponse
	FrameKindAck
	FrameKindReject
	FrameKindRequest
)

// ServerFrame is the server→client envelope: Msg(server_msg),
// Response(server_response, req_id), Ack(req_id), or Reject(req_id).
type ServerFrame[ServerMsg, ServerResponse any] struct {
	Kind      FrameKind
	Msg       ServerMsg       `msgpack:"msg,omitempty"`
	Response  ServerResponse  `msgpack:"response,omitempty"`
	RequestID RequestID       `msgpack:"request_id,omitempty"`
}

// NewServerMsgFrame builds a Msg-kind server frame.
func NewServerMsgFrame[ServerMsg, ServerResponse any](msg ServerMsg) ServerFrame[ServerMsg, ServerResponse] {
	return ServerFrame[ServerMsg, ServerResponse]{Kind: FrameKindMsg, Msg: msg}
}

// NewServerResponseFrame builds a Response-kind server frame.
func NewServerResponseFrame[ServerMsg, ServerResponse any](resp ServerResponse, id RequestID) ServerFrame[ServerMsg, ServerResponse] {
	return ServerFrame[ServerMsg, ServerResponse]{Kind: FrameKindResponse, Response: resp, RequestID: id}
}

// NewServerAckFrame builds an Ack-kind server frame.
func NewServerAckFrame[ServerMsg, ServerResponse any](id RequestID) ServerFrame[ServerMsg, ServerResponse] {
	return ServerFrame[ServerMsg, ServerResponse]{Kind: FrameKindAck, RequestID: id}
}

// NewServerRejectFrame builds a Reject-kind server frame.
func NewServerRejectFrame[ServerMsg, ServerResponse any](id RequestID) ServerFrame[ServerMsg, ServerResponse] {
	return ServerFrame[ServerMsg, ServerResponse]{Kind: FrameKindReject, RequestID: id}
}

// Encode serializes the frame with the module's binary wire codec.
func (f ServerFrame[ServerMsg, ServerResponse]) Encode() ([]byte, error) {
	b, err := msgpack.Marshal(f)
	if err != nil {
		return nil, fmt.Errorf("protocol: encode server frame: %w", err)
	}
	return b, nil
}

// DecodeServerFrame deserializes a server→client frame.
func DecodeServerFrame[ServerMsg, ServerResponse any](b []byte) (ServerFrame[ServerMsg, ServerResponse], error) {
	var f ServerFrame[ServerMsg, ServerResponse]
	if err := msgpack.Unmarshal(b, &f); err != nil {
		return f, fmt.Errorf("protocol: decode server frame: %w", err)
	}
	return f, nil
}

// ClientFrame is the client→server envelope: Msg(client_msg) or
// Request(client_request, req_id).
type ClientFrame[ClientMsg, ClientRequest any] struct {
	Kind      FrameKind
	Msg       ClientMsg      `msgpack:"msg,omitempty"`
	Request   ClientRequest  `msgpack:"request,omitempty"`
	RequestID RequestID      `msgpack:"request_id,omitempty"`
}

// NewClientMsgFrame builds a Msg-kind client frame.
func NewClientMsgFrame[ClientMsg, ClientRequest any](msg ClientMsg) ClientFrame[ClientMsg, ClientRequest] {
	return ClientFrame[ClientMsg, ClientRequest]{Kind: FrameKindMsg, Msg: msg}
}

// NewClientRequestFrame builds a Request-kind client frame.
func NewClientRequestFrame[ClientMsg, ClientRequest any](req ClientRequest, id RequestID) ClientFrame[ClientMsg, ClientRequest] {
	return ClientFrame[ClientMsg, ClientRequest]{Kind: FrameKindRequest, Request: req, RequestID: id}
}

// Encode serializes the frame with the module's binary wire codec.
func (f ClientFrame[ClientMsg, ClientRequest]) Encode() ([]byte, error) {
	b, err := msgpack.Marshal(f)
	if err != nil {
		return nil, fmt.Errorf("protocol: encode client frame: %w", err)
	}
	return b, nil
}

// DecodeClientFrame deserializes a client→server frame.
func DecodeClientFrame[ClientMsg, ClientRequest any](b []byte) (ClientFrame[ClientMsg, ClientRequest], error) {
	var f ClientFrame[ClientMsg, ClientRequest]
	if err := msgpack.Unmarshal(b, &f); err != nil {
		return f, fmt.Errorf("protocol: decode client frame: %w", err)
	}
	return f, nil
}

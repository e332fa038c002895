package server

import "github.com/netline/simplenet/internal/protocol"

// EventKind discriminates a ServerEvent.
type EventKind uint8

const (
	EventConnected EventKind = iota
	EventDisconnected
	EventMsg
	EventRequest
)

// Event is the unit the Server façade's Next method returns.
type Event[ConnectMsg, ClientMsg, ClientRequest any] struct {
	Kind       EventKind
	ClientID   protocol.ClientID
	EnvType    protocol.EnvType
	ConnectMsg ConnectMsg
	Msg        ClientMsg
	Request    ClientRequest
	Token      *RequestToken
}

package client

import "github.com/netline/simplenet/internal/protocol"

// ReportKind discriminates a ClientReport.
type ReportKind uint8

const (
	ReportConnected ReportKind = iota
	ReportDisconnected
	ReportClosedByServer
	ReportClosedBySelf
	ReportIsDead
)

// ClientReport carries connection-lifecycle events, distinct from
// application Msg/Response/Ack/Reject events.
type ClientReport struct {
	Kind        ReportKind
	CloseCode   int
	CloseReason string
	AbortedIDs  []protocol.RequestID
}

// EventKind discriminates a ClientEvent.
type EventKind uint8

const (
	EventMsg EventKind = iota
	EventResponse
	EventAck
	EventReject
	EventReport
	// EventRequestOutcome surfaces a pending request reaching a
	// terminal status (SendFailed/ResponseLost) without a matching
	// wire frame, so invariant (Order) holds: these are always
	// published before the next Connected report.
	EventRequestOutcome
)

// Event is the unit callers receive from Client.Next. Exactly one of
// Msg/Response/Report/Status is meaningful, selected by Kind.
type Event[ServerMsg, ServerResponse any] struct {
	Kind      EventKind
	Msg       ServerMsg
	Response  ServerResponse
	RequestID protocol.RequestID
	Status    RequestStatus
	Report    ClientReport
}

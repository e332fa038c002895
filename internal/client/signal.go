package client

import (
	"sync/atomic"

	"github.com/netline/simplenet/internal/protocol"
)

// MessageStatus is the outer, transport-owned half of a request's
// status (spec.md §3's two-level composition). It is written exactly
// once, by whichever goroutine observes the write's outcome.
type MessageStatus uint32

const (
	MessageSending MessageStatus = iota
	MessageSent
	MessageFailed
)

// MessageSignal is a lock-free handle to a single send's outcome.
type MessageSignal struct {
	status atomic.Uint32
}

func newMessageSignal() *MessageSignal {
	return &MessageSignal{}
}

func failedMessageSignal() *MessageSignal {
	s := &MessageSignal{}
	s.status.Store(uint32(MessageFailed))
	return s
}

func (s *MessageSignal) setSent() { s.status.CompareAndSwap(uint32(MessageSending), uint32(MessageSent)) }

func (s *MessageSignal) setFailed() {
	s.status.CompareAndSwap(uint32(MessageSending), uint32(MessageFailed))
}

// Status returns the current outer status.
func (s *MessageSignal) Status() MessageStatus {
	return MessageStatus(s.status.Load())
}

// innerStatus is the inner, pending-tracker-owned half.
type innerStatus uint32

const (
	innerWaiting innerStatus = iota
	innerResponded
	innerAcknowledged
	innerRejected
	innerResponseLost
)

// RequestStatus is the publicly observable status: a pure function of
// the outer MessageStatus and the inner tracker status.
type RequestStatus uint32

const (
	StatusSending RequestStatus = iota
	StatusWaiting
	StatusResponded
	StatusAcknowledged
	StatusRejected
	StatusSendFailed
	StatusResponseLost
)

func (s RequestStatus) String() string {
	switch s {
	case StatusSending:
		return "Sending"
	case StatusWaiting:
		return "Waiting"
	case StatusResponded:
		return "Responded"
	case StatusAcknowledged:
		return "Acknowledged"
	case StatusRejected:
		return "Rejected"
	case StatusSendFailed:
		return "SendFailed"
	case StatusResponseLost:
		return "ResponseLost"
	default:
		return "Unknown"
	}
}

// IsTerminal reports whether s can never change again.
func (s RequestStatus) IsTerminal() bool {
	switch s {
	case StatusSending, StatusWaiting:
		return false
	default:
		return true
	}
}

// RequestSignal composes a MessageSignal (the send outcome) with an
// inner atomic (the eventual reply outcome) into one observable
// status, per spec.md §3 and §9's "two-level status composition".
type RequestSignal struct {
	id    protocol.RequestID
	msg   *MessageSignal
	inner atomic.Uint32
}

func newRequestSignal(id protocol.RequestID, msg *MessageSignal) *RequestSignal {
	return &RequestSignal{id: id, msg: msg}
}

// ID returns the request id this signal tracks.
func (r *RequestSignal) ID() protocol.RequestID { return r.id }

// Status composes the outer and inner halves into the public view.
func (r *RequestSignal) Status() RequestStatus {
	switch r.msg.Status() {
	case MessageSending:
		return StatusSending
	case MessageFailed:
		return StatusSendFailed
	default: // MessageSent
		switch innerStatus(r.inner.Load()) {
		case innerResponded:
			return StatusResponded
		case innerAcknowledged:
			return StatusAcknowledged
		case innerRejected:
			return StatusRejected
		case innerResponseLost:
			return StatusResponseLost
		default:
			return StatusWaiting
		}
	}
}

func (r *RequestSignal) setInner(s innerStatus) {
	r.inner.Store(uint32(s))
}

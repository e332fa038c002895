package client

import (
	"github.com/netline/simplenet/internal/protocol"
)

// pendingTracker is the per-client registry mapping RequestID to its
// RequestSignal, grounded on
// original_source/src/client/pending_request_tracker.rs. It holds no
// lock of its own: the Client façade and handler share a single
// sync.Mutex (see Client.mu) so that the "am I connected" check on
// send serializes with tracker mutation, per spec.md §4.3.
type pendingTracker struct {
	counter uint64
	pending map[protocol.RequestID]*RequestSignal
}

func newPendingTracker() *pendingTracker {
	return &pendingTracker{pending: make(map[protocol.RequestID]*RequestSignal)}
}

func (t *pendingTracker) reserveID() protocol.RequestID {
	t.counter++
	return protocol.RequestID(t.counter)
}

func (t *pendingTracker) add(id protocol.RequestID, msg *MessageSignal) *RequestSignal {
	sig := newRequestSignal(id, msg)
	t.pending[id] = sig
	return sig
}

// complete sets the inner status and removes the entry. It returns
// false if the id is unknown, which callers must treat as an internal
// invariant violation (logged, not panicked).
func (t *pendingTracker) complete(id protocol.RequestID, status innerStatus) bool {
	sig, ok := t.pending[id]
	if !ok {
		return false
	}
	sig.setInner(status)
	delete(t.pending, id)
	return true
}

// drainFailed removes every entry whose outer status is not Sending
// (i.e. the write already resolved to Sent or Failed), marks its
// inner status ResponseLost, and returns the drained signals.
func (t *pendingTracker) drainFailed() []*RequestSignal {
	var drained []*RequestSignal
	for id, sig := range t.pending {
		if sig.msg.Status() == MessageSending {
			continue
		}
		sig.setInner(innerResponseLost)
		delete(t.pending, id)
		drained = append(drained, sig)
	}
	return drained
}

// abortAll unconditionally marks every entry ResponseLost and removes
// it, regardless of outer status.
func (t *pendingTracker) abortAll() []*RequestSignal {
	drained := make([]*RequestSignal, 0, len(t.pending))
	for id, sig := range t.pending {
		sig.setInner(innerResponseLost)
		delete(t.pending, id)
		drained = append(drained, sig)
	}
	return drained
}

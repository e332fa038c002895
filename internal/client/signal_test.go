package client

import "testing"

func TestRequestStatusComposition(t *testing.T) {
	msg := newMessageSignal()
	sig := newRequestSignal(1, msg)

	if got := sig.Status(); got != StatusSending {
		t.Fatalf("got %v, want Sending", got)
	}
	if sig.Status().IsTerminal() {
		t.Fatal("Sending must not be terminal")
	}

	msg.setSent()
	if got := sig.Status(); got != StatusWaiting {
		t.Fatalf("got %v, want Waiting", got)
	}

	sig.setInner(innerResponded)
	if got := sig.Status(); got != StatusResponded {
		t.Fatalf("got %v, want Responded", got)
	}
	if !sig.Status().IsTerminal() {
		t.Fatal("Responded must be terminal")
	}
}

func TestRequestStatusSendFailedOverridesInner(t *testing.T) {
	msg := newMessageSignal()
	sig := newRequestSignal(2, msg)
	sig.setInner(innerResponseLost)
	msg.setFailed()
	if got := sig.Status(); got != StatusSendFailed {
		t.Fatalf("got %v, want SendFailed (outer Failed dominates inner)", got)
	}
}

func TestPendingTrackerDrainFailed(t *testing.T) {
	tr := newPendingTracker()
	sending := newMessageSignal()
	sent := newMessageSignal()
	sent.setSent()

	id1 := tr.reserveID()
	tr.add(id1, sending)
	id2 := tr.reserveID()
	tr.add(id2, sent)

	drained := tr.drainFailed()
	if len(drained) != 1 || drained[0].ID() != id2 {
		t.Fatalf("expected only the Sent entry to drain, got %+v", drained)
	}
	if _, stillPending := tr.pending[id1]; !stillPending {
		t.Fatal("Sending entry should remain pending")
	}
	if drained[0].Status() != StatusResponseLost {
		t.Fatalf("drained entry should be ResponseLost, got %v", drained[0].Status())
	}
}

func TestPendingTrackerAbortAll(t *testing.T) {
	tr := newPendingTracker()
	id1 := tr.reserveID()
	tr.add(id1, newMessageSignal())
	id2 := tr.reserveID()
	sent := newMessageSignal()
	sent.setSent()
	tr.add(id2, sent)

	drained := tr.abortAll()
	if len(drained) != 2 {
		t.Fatalf("expected both entries drained, got %d", len(drained))
	}
	if len(tr.pending) != 0 {
		t.Fatal("tracker should be empty after abortAll")
	}
}

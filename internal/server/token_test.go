package server

import (
	"testing"

	"github.com/google/uuid"
	"github.com/netline/simplenet/internal/protocol"
)

func TestRequestTokenRejectsOnExplicitReject(t *testing.T) {
	var rejected protocol.RequestID
	var calls int
	rejector := func(id protocol.RequestID) {
		calls++
		rejected = id
	}
	death := &DeathSignal{}
	token := NewRequestToken(uuid.New(), protocol.RequestID(7), rejector, death)

	token.Reject()
	if calls != 1 || rejected != 7 {
		t.Fatalf("expected exactly one reject call for id 7, got %d calls, id %d", calls, rejected)
	}

	// A second Reject is a no-op: the token is already consumed.
	token.Reject()
	if calls != 1 {
		t.Fatalf("expected reject to be idempotent, got %d calls", calls)
	}
}

func TestRequestTokenTakeSuppressesReject(t *testing.T) {
	var calls int
	rejector := func(protocol.RequestID) { calls++ }
	death := &DeathSignal{}
	token := NewRequestToken(uuid.New(), protocol.RequestID(1), rejector, death)

	if _, _, ok := token.take(); !ok {
		t.Fatal("expected first take to succeed")
	}
	token.Reject()
	if calls != 0 {
		t.Fatalf("expected no reject after take, got %d calls", calls)
	}
}

func TestRequestTokenDeadDestinationSuppressesReject(t *testing.T) {
	var calls int
	rejector := func(protocol.RequestID) { calls++ }
	death := &DeathSignal{}
	death.markDead()
	token := NewRequestToken(uuid.New(), protocol.RequestID(3), rejector, death)

	if !token.DestinationIsDead() {
		t.Fatal("expected destination to report dead")
	}
	token.Reject()
	if calls != 0 {
		t.Fatalf("expected reject to be suppressed for a dead destination, got %d calls", calls)
	}
}

package auth

import (
	"crypto/ed25519"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/netline/simplenet/internal/protocol"
)

func TestNoneAuthenticator(t *testing.T) {
	a := NoneAuthenticator{}
	id := uuid.New()
	if !a.Authenticate(AuthRequest{Kind: KindNone, None: &NoneAuth{ClientID: id}}) {
		t.Fatal("expected none auth to succeed")
	}
	if a.Authenticate(AuthRequest{Kind: KindSecret}) {
		t.Fatal("expected mismatched kind to fail")
	}
}

func TestSecretAuthenticator(t *testing.T) {
	var secret [SecretLen]byte
	copy(secret[:], "0123456789abcdef")
	a := NewSecretAuthenticator(secret)

	ok := SecretAuth{ClientID: uuid.New(), Secret: secret}
	if !a.Authenticate(AuthRequest{Kind: KindSecret, Secret: &ok}) {
		t.Fatal("expected matching secret to succeed")
	}

	var wrong [SecretLen]byte
	copy(wrong[:], "zzzzzzzzzzzzzzzz")
	bad := SecretAuth{ClientID: uuid.New(), Secret: wrong}
	if a.Authenticate(AuthRequest{Kind: KindSecret, Secret: &bad}) {
		t.Fatal("expected mismatched secret to fail")
	}
}

func TestTokenAuthenticatorRoundTrip(t *testing.T) {
	pub, priv, err := ed25519.GenerateKey(nil)
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	const version = 1
	clientID := uuid.New()
	expiry := uint64(time.Now().Add(time.Hour).Unix())
	tok := IssueToken(priv, version, expiry, clientID)

	authenticator := NewTokenAuthenticator(pub, version)
	if !authenticator.Authenticate(AuthRequest{Kind: KindToken, Token: &tok}) {
		t.Fatal("expected valid token to authenticate")
	}

	expired := IssueToken(priv, version, uint64(time.Now().Add(-time.Hour).Unix()), clientID)
	if authenticator.Authenticate(AuthRequest{Kind: KindToken, Token: &expired}) {
		t.Fatal("expected expired token to fail")
	}

	wrongVersion := IssueToken(priv, version+1, expiry, clientID)
	if authenticator.Authenticate(AuthRequest{Kind: KindToken, Token: &wrongVersion}) {
		t.Fatal("expected version mismatch to fail")
	}

	tampered := tok
	tampered.ClientID = protocol.ClientID(uuid.New())
	if authenticator.Authenticate(AuthRequest{Kind: KindToken, Token: &tampered}) {
		t.Fatal("expected tampered client id to fail signature check")
	}
}

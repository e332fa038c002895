// Package auth implements the protocol's connection-admission
// authenticator: a closed set of three variants (none, shared secret,
// signed token) evaluated once per handshake with no side effects.
package auth

import (
	"crypto/ed25519"
	"crypto/subtle"
	"encoding/binary"
	"errors"
	"time"

	"github.com/netline/simplenet/internal/protocol"
)

// SecretLen is the fixed length of the shared secret in bytes.
const SecretLen = 16

// domainSeparator is prepended to every signed token payload so that
// signatures produced for this protocol can never be replayed against
// an unrelated signing scheme that happens to share the same key.
var domainSeparator = [22]byte{'s', 'i', 'm', 'p', 'l', 'e', 'n', 'e', 't', '-', 'a', 'u', 't', 'h', '-', 't', 'o', 'k', 'e', 'n', 'v', '1'}

// AuthRequest is the JSON-encoded payload carried in the "a=" query
// parameter. Exactly one of the three variants is populated,
// discriminated by Kind.
type AuthRequest struct {
	Kind   AuthKind          `json:"kind"`
	None   *NoneAuth         `json:"none,omitempty"`
	Secret *SecretAuth       `json:"secret,omitempty"`
	Token  *TokenAuth        `json:"token,omitempty"`
}

type AuthKind string

const (
	KindNone   AuthKind = "none"
	KindSecret AuthKind = "secret"
	KindToken  AuthKind = "token"
)

type NoneAuth struct {
	ClientID protocol.ClientID `json:"client_id"`
}

type SecretAuth struct {
	ClientID protocol.ClientID `json:"client_id"`
	Secret   [SecretLen]byte   `json:"secret"`
}

// TokenAuth carries the signed capability issued by IssueToken. Expiry is
// UNIX seconds, wall-clock time (§9: monotonic clocks are reserved for
// rate limiting only).
type TokenAuth struct {
	ClientID        protocol.ClientID `json:"client_id"`
	ProtocolVersion uint16            `json:"protocol_version"`
	Expiry          uint64            `json:"expiry"`
	Signature       [ed25519.SignatureSize]byte `json:"signature"`
}

// ID returns the claimed identity regardless of auth variant, and false
// when Kind is unknown or its variant is not populated.
func (r AuthRequest) ID() (protocol.ClientID, bool) {
	switch r.Kind {
	case KindNone:
		if r.None == nil {
			return protocol.ClientID{}, false
		}
		return r.None.ClientID, true
	case KindSecret:
		if r.Secret == nil {
			return protocol.ClientID{}, false
		}
		return r.Secret.ClientID, true
	case KindToken:
		if r.Token == nil {
			return protocol.ClientID{}, false
		}
		return r.Token.ClientID, true
	default:
		return protocol.ClientID{}, false
	}
}

// Authenticator evaluates an AuthRequest. Implementations must have no
// side effects: a failed authentication attempt does not partially
// admit a connection.
type Authenticator interface {
	Authenticate(req AuthRequest) bool
}

// NoneAuthenticator accepts any request carrying the None variant.
type NoneAuthenticator struct{}

func (NoneAuthenticator) Authenticate(req AuthRequest) bool {
	return req.Kind == KindNone && req.None != nil
}

// SecretAuthenticator accepts a Secret request whose secret matches a
// configured value. Comparison is constant-time per spec.md §9's
// recommendation for adversarial settings.
type SecretAuthenticator struct {
	secret [SecretLen]byte
}

func NewSecretAuthenticator(secret [SecretLen]byte) SecretAuthenticator {
	return SecretAuthenticator{secret: secret}
}

func (a SecretAuthenticator) Authenticate(req AuthRequest) bool {
	if req.Kind != KindSecret || req.Secret == nil {
		return false
	}
	return subtle.ConstantTimeCompare(req.Secret.Secret[:], a.secret[:]) == 1
}

// TokenAuthenticator verifies signed tokens issued by IssueToken.
type TokenAuthenticator struct {
	publicKey ed25519.PublicKey
	version   uint16
	now       func() time.Time
}

func NewTokenAuthenticator(publicKey ed25519.PublicKey, version uint16) TokenAuthenticator {
	return TokenAuthenticator{publicKey: publicKey, version: version, now: time.Now}
}

func (a TokenAuthenticator) Authenticate(req AuthRequest) bool {
	if req.Kind != KindToken || req.Token == nil {
		return false
	}
	tok := req.Token
	if tok.ProtocolVersion != a.version {
		return false
	}
	payload := tokenPayload(tok.ProtocolVersion, tok.Expiry, tok.ClientID)
	if !ed25519.Verify(a.publicKey, payload, tok.Signature[:]) {
		return false
	}
	// Expiry is checked after signature verification so a forged,
	// still-unexpired token is rejected for the same reason as a
	// genuine, expired one: both fail closed.
	expiry := time.Unix(int64(tok.Expiry), 0)
	if !a.now().Before(expiry) {
		return false
	}
	return true
}

// IssueToken signs a token for clientID, valid until expiry (UNIX
// seconds, wall-clock). Parameterized by the private key; a separate
// operation from verification per spec.md §4.1.
func IssueToken(privateKey ed25519.PrivateKey, version uint16, expiry uint64, clientID protocol.ClientID) TokenAuth {
	payload := tokenPayload(version, expiry, clientID)
	sig := ed25519.Sign(privateKey, payload)
	var tok TokenAuth
	tok.ClientID = clientID
	tok.ProtocolVersion = version
	tok.Expiry = expiry
	copy(tok.Signature[:], sig)
	return tok
}

// tokenPayload builds DOMAIN_SEPARATOR(22) || version(LE u16) ||
// expiry(LE u64) || client_id(LE u128), exactly as spec.md §4.1
// defines the signed payload.
func tokenPayload(version uint16, expiry uint64, clientID protocol.ClientID) []byte {
	buf := make([]byte, 0, 22+2+8+16)
	buf = append(buf, domainSeparator[:]...)
	var vbuf [2]byte
	binary.LittleEndian.PutUint16(vbuf[:], version)
	buf = append(buf, vbuf[:]...)
	var ebuf [8]byte
	binary.LittleEndian.PutUint64(ebuf[:], expiry)
	buf = append(buf, ebuf[:]...)
	idBytes := clientID // uuid.UUID is [16]byte big-endian by convention;
	// the wire format wants little-endian u128, so reverse it here.
	reversed := make([]byte, 16)
	for i := 0; i < 16; i++ {
		reversed[i] = idBytes[15-i]
	}
	buf = append(buf, reversed...)
	return buf
}

// ErrUnknownAuthKind is returned by callers decoding a query-string
// auth request whose kind discriminator does not match any variant.
var ErrUnknownAuthKind = errors.New("auth: unknown auth request kind")

// Package protocol defines the wire-level identifiers and frame
// envelopes shared by the client and server sides of the messaging
// runtime. Payloads carried inside the envelopes (ConnectMsg,
// ClientMsg, ServerMsg, ClientRequest, ServerResponse) are opaque to
// this package; callers supply their own Go types and this package
// encodes/decodes only the envelope structure around them.
package protocol

import (
	"github.com/google/uuid"
)

// ClientID is the identity a client claims in its auth request. It is
// an unsigned 128-bit value, represented as a UUID so callers get a
// familiar, collision-resistant identifier type for free.
type ClientID = uuid.UUID

// SessionID is a server-internal, strictly monotonically increasing
// identifier assigned to each accepted socket.
type SessionID uint64

// RequestID is a per-client monotonic counter. It is never reused
// within a client's lifetime.
type RequestID uint64

// EnvType distinguishes the runtime environment a client is running
// in. WASM clients use text-frame ping/pong in place of the
// transport's native heartbeat.
type EnvType uint8

const (
	EnvNative EnvType = 0
	EnvWasm   EnvType = 1
)

func (e EnvType) String() string {
	switch e {
	case EnvNative:
		return "native"
	case EnvWasm:
		return "wasm"
	default:
		return "unknown"
	}
}

// ParseEnvType parses the "t=" query parameter value.
func ParseEnvType(s string) (EnvType, bool) {
	switch s {
	case "0":
		return EnvNative, true
	case "1":
		return EnvWasm, true
	default:
		return 0, false
	}
}

// Query parameter keys used on the WebSocket upgrade URL, in the
// order they must appear.
const (
	QueryVersion = "v"
	QueryEnvType = "t"
	QueryAuth    = "a"
	QueryConnect = "c"
)

// MaxVersionLen bounds the protocol-version query value.
const MaxVersionLen = 20

// ProtocolVersion is the version string this module's wire format
// implements. Servers reject clients whose "v=" value does not match
// exactly.
const ProtocolVersion = "1"

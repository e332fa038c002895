// Package gateway provides the HTTP upgrade endpoint that admits new
// WebSocket connections: per-IP rate limiting, strict query-string
// handshake validation with spec-exact reason strings, and delegation
// into the connection handler's admission pipeline. Grounded on
// _examples/rjsadow-sortie/internal/gateway/gateway.go's
// rate-limit-then-auth-then-delegate shape and
// original_source/src/server/connection_validation.rs's validation
// order.
package gateway

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/netline/simplenet/internal/auth"
	"github.com/netline/simplenet/internal/protocol"
	"github.com/netline/simplenet/internal/ratelimit"
	"github.com/netline/simplenet/internal/server"
	"github.com/netline/simplenet/internal/transport"
)

// Handler upgrades HTTP requests to WebSocket connections and admits
// them into a server.Server.
type Handler[ConnectMsg, ClientMsg, ServerMsg, ClientRequest, ServerResponse any] struct {
	srv             *server.Server[ConnectMsg, ClientMsg, ServerMsg, ClientRequest, ServerResponse]
	admission       *ratelimit.AdmissionLimiter
	maxMsgSize      int64
	protocolVersion string
	log             *slog.Logger
}

func NewHandler[ConnectMsg, ClientMsg, ServerMsg, ClientRequest, ServerResponse any](
	srv *server.Server[ConnectMsg, ClientMsg, ServerMsg, ClientRequest, ServerResponse],
	admission *ratelimit.AdmissionLimiter,
	maxMsgSize int64,
	log *slog.Logger,
) *Handler[ConnectMsg, ClientMsg, ServerMsg, ClientRequest, ServerResponse] {
	if log == nil {
		log = slog.Default()
	}
	if maxMsgSize == 0 {
		maxMsgSize = 1 << 20
	}
	return &Handler[ConnectMsg, ClientMsg, ServerMsg, ClientRequest, ServerResponse]{
		srv:             srv,
		admission:       admission,
		maxMsgSize:      maxMsgSize,
		protocolVersion: protocol.ProtocolVersion,
		log:             log,
	}
}

// ServeHTTP implements the admission pipeline of spec.md §4.6 and the
// exact handshake reason strings of §6.
func (h *Handler[C, M, S, Q, R]) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if h.admission != nil && !h.admission.Allow(ratelimit.ClientIP(r)) {
		http.Error(w, "Too many requests", http.StatusTooManyRequests)
		return
	}
	if !h.srv.ConnectionHandler().CheckCapacity() {
		http.Error(w, "Max connections reached.", http.StatusBadRequest)
		return
	}

	q := r.URL.Query()

	version := q.Get(protocol.QueryVersion)
	switch {
	case version == "":
		http.Error(w, "Version missing.", http.StatusBadRequest)
		return
	case len(version) > protocol.MaxVersionLen:
		http.Error(w, "Version oversized.", http.StatusBadRequest)
		return
	case version != h.protocolVersion:
		http.Error(w, "Version mismatch.", http.StatusBadRequest)
		return
	}

	envRaw := q.Get(protocol.QueryEnvType)
	if envRaw == "" {
		http.Error(w, "Env type missing.", http.StatusBadRequest)
		return
	}
	envType, ok := protocol.ParseEnvType(envRaw)
	if !ok {
		http.Error(w, "Unknown env type.", http.StatusBadRequest)
		return
	}

	authRaw := q.Get(protocol.QueryAuth)
	if authRaw == "" {
		http.Error(w, "Auth message missing.", http.StatusBadRequest)
		return
	}
	var authReq auth.AuthRequest
	if err := json.Unmarshal([]byte(authRaw), &authReq); err != nil {
		http.Error(w, "Auth message malformed.", http.StatusBadRequest)
		return
	}
	if _, ok := authReq.ID(); !ok {
		http.Error(w, "Auth message invalid.", http.StatusBadRequest)
		return
	}
	if !h.srv.ConnectionHandler().Authenticate(authReq) {
		http.Error(w, "Auth message invalid.", http.StatusBadRequest)
		return
	}

	connectRaw := q.Get(protocol.QueryConnect)
	if connectRaw == "" {
		http.Error(w, "Connect message missing.", http.StatusBadRequest)
		return
	}
	if int64(len(connectRaw)) > h.maxMsgSize {
		http.Error(w, "Connect message too large.", http.StatusBadRequest)
		return
	}
	var connectMsg C
	if err := json.Unmarshal([]byte(connectRaw), &connectMsg); err != nil {
		http.Error(w, "Connect message malformed.", http.StatusBadRequest)
		return
	}

	if len(q) > 4 {
		http.Error(w, "Excess query elements.", http.StatusBadRequest)
		return
	}

	ws, err := transport.Upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Error("gateway: upgrade failed", "error", err)
		return
	}

	if err := h.srv.ConnectionHandler().Admit(r.Context(), ws, envType, authReq, connectMsg); err != nil {
		h.log.Debug("gateway: connection ended", "error", err)
	}
}

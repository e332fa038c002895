package gateway

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/google/uuid"
	"github.com/netline/simplenet/internal/auth"
	"github.com/netline/simplenet/internal/protocol"
	"github.com/netline/simplenet/internal/server"
)

func newTestHandler(t *testing.T) *Handler[string, string, string, string, string] {
	t.Helper()
	srv := server.New[string, string, string, string, string](server.Config{
		Authenticator: auth.NoneAuthenticator{},
	})
	return NewHandler[string, string, string, string, string](srv, nil, 0, nil)
}

func TestServeHTTPRejectsMissingVersion(t *testing.T) {
	h := newTestHandler(t)
	req := httptest.NewRequest(http.MethodGet, "/ws", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
	if body := rec.Body.String(); body != "Version missing.\n" {
		t.Fatalf("body = %q, want %q", body, "Version missing.\n")
	}
}

func TestServeHTTPRejectsVersionMismatch(t *testing.T) {
	h := newTestHandler(t)
	req := httptest.NewRequest(http.MethodGet, "/ws?v=999", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
	if body := rec.Body.String(); body != "Version mismatch.\n" {
		t.Fatalf("body = %q, want %q", body, "Version mismatch.\n")
	}
}

func TestServeHTTPRejectsUnknownEnvType(t *testing.T) {
	h := newTestHandler(t)
	req := httptest.NewRequest(http.MethodGet, "/ws?v="+protocol.ProtocolVersion+"&t=9", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
	if body := rec.Body.String(); body != "Unknown env type.\n" {
		t.Fatalf("body = %q, want %q", body, "Unknown env type.\n")
	}
}

func TestServeHTTPRejectsMissingAuth(t *testing.T) {
	h := newTestHandler(t)
	req := httptest.NewRequest(http.MethodGet, "/ws?v="+protocol.ProtocolVersion+"&t=0", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if body := rec.Body.String(); body != "Auth message missing.\n" {
		t.Fatalf("body = %q, want %q", body, "Auth message missing.\n")
	}
}

// TestServeHTTPRejectsInvalidAuthPreUpgrade confirms a credential that
// fails Authenticator.Authenticate is rejected as an HTTP 4xx before
// any WebSocket upgrade is attempted, rather than succeeding the
// handshake and closing the socket afterward.
func TestServeHTTPRejectsInvalidAuthPreUpgrade(t *testing.T) {
	var secret [auth.SecretLen]byte
	copy(secret[:], "0123456789abcdef")
	srv := server.New[string, string, string, string, string](server.Config{
		Authenticator: auth.NewSecretAuthenticator(secret),
	})
	h := NewHandler[string, string, string, string, string](srv, nil, 0, nil)

	var wrongSecret [auth.SecretLen]byte
	copy(wrongSecret[:], "wrongwrongwrongg")
	authReq := auth.AuthRequest{Kind: auth.KindSecret, Secret: &auth.SecretAuth{ClientID: uuid.New(), Secret: wrongSecret}}
	authJSON, err := json.Marshal(authReq)
	if err != nil {
		t.Fatalf("marshal auth request: %v", err)
	}
	connectJSON, err := json.Marshal("hello")
	if err != nil {
		t.Fatalf("marshal connect message: %v", err)
	}

	q := url.Values{}
	q.Set("v", protocol.ProtocolVersion)
	q.Set("t", "0")
	q.Set("a", string(authJSON))
	q.Set("c", string(connectJSON))

	req := httptest.NewRequest(http.MethodGet, "/ws?"+q.Encode(), nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
	if body := rec.Body.String(); body != "Auth message invalid.\n" {
		t.Fatalf("body = %q, want %q", body, "Auth message invalid.\n")
	}
	if srv.NumConnections() != 0 {
		t.Fatalf("NumConnections() = %d, want 0: rejected auth must never promote a connection", srv.NumConnections())
	}
}

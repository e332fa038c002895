// Command server runs the protocol's WebSocket gateway plus its admin
// control API, grounded on
// _examples/rjsadow-sortie/main.go's flag/config/slog/ListenAndServe
// composition style.
package main

import (
	"context"
	"encoding/hex"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/netline/simplenet/internal/admin"
	"github.com/netline/simplenet/internal/auth"
	"github.com/netline/simplenet/internal/config"
	"github.com/netline/simplenet/internal/gateway"
	"github.com/netline/simplenet/internal/middleware"
	"github.com/netline/simplenet/internal/ratelimit"
	"github.com/netline/simplenet/internal/server"
	"github.com/netline/simplenet/internal/storage"

	"golang.org/x/time/rate"
)

// admissionRate and admissionBurst bound per-IP upgrade attempts
// before a socket is even handed to the connection handler's own
// per-session rate limiter.
const (
	admissionRate  = rate.Limit(5)
	admissionBurst = 10
)

// ConnectMsg, ClientMsg, ServerMsg, ClientRequest, and ServerResponse
// are placeholder channel-pack payload types for this example binary;
// a real deployment defines its own application-specific types and
// instantiates the generic client/server/gateway packages with them.
type (
	ConnectMsg     = string
	ClientMsg      = string
	ServerMsg      = string
	ClientRequest  = string
	ServerResponse = string
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	port := flag.Int("port", config.DefaultPort, "port to listen on")
	auditDBPath := flag.String("audit-db", config.DefaultAuditDBPath, "path to the sqlite audit log database")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("configuration error", "error", err)
		os.Exit(1)
	}
	if *port != config.DefaultPort {
		cfg.Port = *port
	}
	if *auditDBPath != config.DefaultAuditDBPath {
		cfg.AuditDBPath = *auditDBPath
	}

	auditLog, err := storage.Open(cfg.AuditDBPath)
	if err != nil {
		slog.Error("failed to open audit log", "error", err)
		os.Exit(1)
	}
	defer auditLog.Close()

	authenticator, err := buildAuthenticator(cfg)
	if err != nil {
		slog.Error("failed to build authenticator", "error", err)
		os.Exit(1)
	}

	srv := server.New[ConnectMsg, ClientMsg, ServerMsg, ClientRequest, ServerResponse](server.Config{
		Authenticator:  authenticator,
		MaxConnections: cfg.MaxConnections,
		MaxPending:     cfg.MaxPending,
		AuthTimeout:    cfg.AuthTimeout,
		RateLimit:      ratelimit.Config{Period: cfg.RateLimitPeriod, MaxCount: cfg.RateLimitCount},
		MaxMessageSize: cfg.MaxMessageSize,
		Logger:         logger,
	})

	go auditSessionEvents(srv, auditLog, logger)

	admission := ratelimit.NewAdmissionLimiter(admissionRate, admissionBurst)
	wsHandler := gateway.NewHandler[ConnectMsg, ClientMsg, ServerMsg, ClientRequest, ServerResponse](
		srv, admission, cfg.MaxMessageSize, logger)

	mux := http.NewServeMux()
	mux.Handle("/ws", wsHandler)
	mux.HandleFunc("/healthz", handleHealthz)

	if cfg.AdminPasswordHash != "" && cfg.JWTSecret != "" {
		authn, err := admin.NewAuthenticator(cfg.AdminUsername, cfg.AdminPasswordHash, []byte(cfg.JWTSecret), cfg.JWTAccessExpiry)
		if err != nil {
			slog.Error("failed to build admin authenticator", "error", err)
			os.Exit(1)
		}
		mux.HandleFunc("/admin/login", auditAdminLogin(authn, auditLog, logger))
		mux.Handle("/admin/sessions", middleware.AdminAuth(authn)(admin.HandleSessions(srv)))
	} else {
		slog.Warn("admin control API disabled: set SIMPLENET_ADMIN_PASSWORD_HASH and SIMPLENET_ADMIN_JWT_SECRET to enable it")
	}

	handler := middleware.SecurityHeaders(middleware.RequestID(mux))

	addr := fmt.Sprintf(":%d", cfg.Port)
	slog.Info("simplenet server starting", "addr", "http://localhost"+addr)
	if err := http.ListenAndServe(addr, handler); err != nil {
		slog.Error("server error", "error", err)
		os.Exit(1)
	}
}

func buildAuthenticator(cfg *config.ServerConfig) (auth.Authenticator, error) {
	switch cfg.AuthMode {
	case config.AuthModeNone:
		return auth.NoneAuthenticator{}, nil
	case config.AuthModeSecret:
		raw, err := hex.DecodeString(cfg.Secret)
		if err != nil || len(raw) != auth.SecretLen {
			return nil, fmt.Errorf("main: SIMPLENET_AUTH_SECRET must be %d hex-encoded bytes", auth.SecretLen)
		}
		var secret [auth.SecretLen]byte
		copy(secret[:], raw)
		return auth.NewSecretAuthenticator(secret), nil
	case config.AuthModeToken:
		raw, err := hex.DecodeString(cfg.TokenPublicKey)
		if err != nil || len(raw) != 32 {
			return nil, fmt.Errorf("main: SIMPLENET_AUTH_TOKEN_PUBLIC_KEY must be 32 hex-encoded bytes")
		}
		return auth.NewTokenAuthenticator(raw, 1), nil
	default:
		return nil, fmt.Errorf("main: unknown auth mode %q", cfg.AuthMode)
	}
}

// auditSessionEvents drains server connection/disconnection events
// into the audit log so operators have a durable history even though
// the in-memory registry doesn't.
func auditSessionEvents(srv *server.Server[ConnectMsg, ClientMsg, ServerMsg, ClientRequest, ServerResponse], auditLog *storage.DB, logger *slog.Logger) {
	for {
		ev, ok := srv.Next()
		if !ok {
			time.Sleep(10 * time.Millisecond)
			continue
		}
		ctx := context.Background()
		switch ev.Kind {
		case server.EventConnected:
			if err := auditLog.LogEvent(ctx, ev.ClientID.String(), 0, ev.EnvType.String(), storage.EventConnected, ""); err != nil {
				logger.Error("audit log write failed", "error", err)
			}
		case server.EventDisconnected:
			if err := auditLog.LogEvent(ctx, ev.ClientID.String(), 0, "", storage.EventDisconnected, ""); err != nil {
				logger.Error("audit log write failed", "error", err)
			}
		}
	}
}

func handleHealthz(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	fmt.Fprint(w, `{"status":"ok"}`)
}

// statusRecorder captures the status code HandleLogin writes so
// auditAdminLogin can record the outcome without HandleLogin itself
// needing to know about the audit log.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

// auditAdminLogin wraps the control API's login endpoint so every
// attempt, successful or not, lands in the audit log, correlated by
// the request id RequestID middleware attached to the context.
func auditAdminLogin(authn *admin.Authenticator, auditLog *storage.DB, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		authn.HandleLogin(rec, r)

		detail := fmt.Sprintf("request_id=%s status=%d", middleware.GetRequestID(r.Context()), rec.status)
		if err := auditLog.LogEvent(r.Context(), r.RemoteAddr, 0, "", storage.EventAdminLogin, detail); err != nil {
			logger.Error("audit log write failed", "error", err)
		}
	}
}

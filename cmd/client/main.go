// Command client dials a simplenet server, announces itself with a
// connect message (default "hello"), and logs every event it receives
// until interrupted or the client dies. It sends no messages or
// requests of its own after the handshake. Grounded on
// _examples/modelcontextprotocol-go-sdk/examples/client/websocket's
// dial-then-print-then-loop shape, adapted to this module's
// non-blocking Client/Next API instead of a request/response RPC
// session.
package main

import (
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/netline/simplenet/internal/auth"
	simplenetclient "github.com/netline/simplenet/internal/client"
	"github.com/netline/simplenet/internal/config"
	"github.com/netline/simplenet/internal/protocol"
)

func main() {
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	url := flag.String("url", "", "server WebSocket URL, e.g. ws://localhost:8080/ws (overrides SIMPLENET_CLIENT_URL)")
	connectMsg := flag.String("connect-msg", "hello", "connect message payload to announce on the handshake")
	flag.Parse()

	cfg, err := config.LoadClient()
	if err != nil {
		slog.Error("configuration error", "error", err)
		os.Exit(1)
	}
	if *url != "" {
		cfg.URL = *url
	}

	id := uuid.New()
	c := simplenetclient.New[string, string, string, string, string](id, *connectMsg, simplenetclient.Config{
		URL:            cfg.URL,
		EnvType:        protocol.EnvNative,
		AuthRequest:    auth.AuthRequest{Kind: auth.KindNone, None: &auth.NoneAuth{ClientID: id}},
		Reconnect:      cfg.Reconnect,
		ReconnectDelay: cfg.ReconnectDelay,
		Logger:         logger,
	})
	defer c.Close()

	fmt.Printf("connecting to %s as %s...\n", cfg.URL, id)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	events := make(chan simplenetclient.Event[string, string])
	go func() {
		for {
			ev, ok := c.Next()
			if !ok {
				if c.IsDead() {
					close(events)
					return
				}
				time.Sleep(10 * time.Millisecond)
				continue
			}
			events <- ev
		}
	}()

	for {
		select {
		case ev, ok := <-events:
			if !ok {
				slog.Info("connection closed")
				return
			}
			logEvent(ev)
		case <-sigCh:
			slog.Info("interrupted, closing connection")
			c.Close()
			return
		}
	}
}

func logEvent(ev simplenetclient.Event[string, string]) {
	switch ev.Kind {
	case simplenetclient.EventMsg:
		slog.Info("received message", "msg", ev.Msg)
	case simplenetclient.EventResponse:
		slog.Info("received response", "request_id", ev.RequestID, "response", ev.Response)
	case simplenetclient.EventAck:
		slog.Info("request acknowledged", "request_id", ev.RequestID)
	case simplenetclient.EventReject:
		slog.Info("request rejected", "request_id", ev.RequestID)
	case simplenetclient.EventReport:
		slog.Info("connection report", "kind", ev.Report.Kind)
	case simplenetclient.EventRequestOutcome:
		slog.Info("request outcome", "request_id", ev.RequestID, "status", ev.Status)
	}
}

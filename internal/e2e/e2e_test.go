package e2e

import (
	"fmt"
	"net/http/httptest"
	"strings"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/google/uuid"
	"github.com/netline/simplenet/internal/auth"
	simplenetclient "github.com/netline/simplenet/internal/client"
	"github.com/netline/simplenet/internal/gateway"
	"github.com/netline/simplenet/internal/protocol"
	"github.com/netline/simplenet/internal/ratelimit"
	simplenetserver "github.com/netline/simplenet/internal/server"
)

type testServer struct {
	srv *simplenetserver.Server[string, string, string, string, string]
	ts  *httptest.Server
	url string
}

func newTestServer(cfg simplenetserver.Config) *testServer {
	srv := simplenetserver.New[string, string, string, string, string](cfg)
	h := gateway.NewHandler[string, string, string, string, string](srv, nil, 0, nil)
	ts := httptest.NewServer(h)
	url := "ws" + strings.TrimPrefix(ts.URL, "http")
	return &testServer{srv: srv, ts: ts, url: url}
}

func (s *testServer) Close() { s.ts.Close() }

func newTestClient(s *testServer, clientID protocol.ClientID, connectMsg string) *simplenetclient.Client[string, string, string, string, string] {
	cfg := simplenetclient.Config{
		URL:         s.url + "/ws",
		EnvType:     protocol.EnvNative,
		AuthRequest: auth.AuthRequest{Kind: auth.KindNone, None: &auth.NoneAuth{ClientID: clientID}},
		Reconnect:   false,
	}
	return simplenetclient.New[string, string, string, string, string](clientID, connectMsg, cfg)
}

// nextServerEvent polls Server.Next until an event arrives or the
// deadline elapses.
func nextServerEvent(srv *simplenetserver.Server[string, string, string, string, string]) (simplenetserver.Event[string, string, string], bool) {
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if ev, ok := srv.Next(); ok {
			return ev, true
		}
		time.Sleep(5 * time.Millisecond)
	}
	return simplenetserver.Event[string, string, string]{}, false
}

// nextClientEvent polls Client.Next until an event arrives or the
// deadline elapses.
func nextClientEvent(c *simplenetclient.Client[string, string, string, string, string]) (simplenetclient.Event[string, string], bool) {
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if ev, ok := c.Next(); ok {
			return ev, true
		}
		time.Sleep(5 * time.Millisecond)
	}
	return simplenetclient.Event[string, string]{}, false
}

var _ = Describe("Hello world", func() {
	It("delivers a client message to the server and a server message back", func() {
		ts := newTestServer(simplenetserver.Config{Authenticator: auth.NoneAuthenticator{}})
		defer ts.Close()

		id := uuid.New()
		c := newTestClient(ts, id, "hello-connect")
		defer c.Close()

		ev, ok := nextServerEvent(ts.srv)
		Expect(ok).To(BeTrue())
		Expect(ev.Kind).To(Equal(simplenetserver.EventConnected))
		Expect(ev.ClientID).To(Equal(id))
		Expect(ev.ConnectMsg).To(Equal("hello-connect"))

		cev, ok := nextClientEvent(c)
		Expect(ok).To(BeTrue())
		Expect(cev.Kind).To(Equal(simplenetclient.EventReport))
		Expect(cev.Report.Kind).To(Equal(simplenetclient.ReportConnected))

		sig := c.Send("hello from client")
		Eventually(sig.Status).Should(Equal(simplenetclient.MessageSent))

		ev, ok = nextServerEvent(ts.srv)
		Expect(ok).To(BeTrue())
		Expect(ev.Kind).To(Equal(simplenetserver.EventMsg))
		Expect(ev.Msg).To(Equal("hello from client"))

		Expect(ts.srv.Send(id, "hello from server")).To(Succeed())

		cev, ok = nextClientEvent(c)
		Expect(ok).To(BeTrue())
		Expect(cev.Kind).To(Equal(simplenetclient.EventMsg))
		Expect(cev.Msg).To(Equal("hello from server"))
	})
})

var _ = Describe("Request/response", func() {
	It("completes a request with a response and marks it responded", func() {
		ts := newTestServer(simplenetserver.Config{Authenticator: auth.NoneAuthenticator{}})
		defer ts.Close()

		id := uuid.New()
		c := newTestClient(ts, id, "connect")
		defer c.Close()

		_, ok := nextServerEvent(ts.srv)
		Expect(ok).To(BeTrue())
		_, ok = nextClientEvent(c)
		Expect(ok).To(BeTrue())

		reqSig := c.Request("what is the time")
		ev, ok := nextServerEvent(ts.srv)
		Expect(ok).To(BeTrue())
		Expect(ev.Kind).To(Equal(simplenetserver.EventRequest))
		Expect(ev.Request).To(Equal("what is the time"))

		Expect(ts.srv.Respond(ev.Token, "noon")).To(Succeed())

		cev, ok := nextClientEvent(c)
		Expect(ok).To(BeTrue())
		Expect(cev.Kind).To(Equal(simplenetclient.EventResponse))
		Expect(cev.Response).To(Equal("noon"))

		Eventually(reqSig.Status).Should(Equal(simplenetclient.StatusResponded))
	})
})

var _ = Describe("Connections cap", func() {
	It("rejects a second socket once MaxConnections is reached", func() {
		ts := newTestServer(simplenetserver.Config{
			Authenticator:  auth.NoneAuthenticator{},
			MaxConnections: 1,
			MaxPending:     0,
		})
		defer ts.Close()

		first := newTestClient(ts, uuid.New(), "a")
		defer first.Close()
		_, ok := nextServerEvent(ts.srv)
		Expect(ok).To(BeTrue())

		second := newTestClient(ts, uuid.New(), "b")
		defer second.Close()

		Eventually(second.IsDead, "2s", "10ms").Should(BeTrue())
	})
})

var _ = Describe("Dropped request token", func() {
	It("rejects the request through the reject path an unconsumed token's cleanup uses", func() {
		ts := newTestServer(simplenetserver.Config{Authenticator: auth.NoneAuthenticator{}})
		defer ts.Close()

		id := uuid.New()
		c := newTestClient(ts, id, "connect")
		defer c.Close()
		_, ok := nextServerEvent(ts.srv)
		Expect(ok).To(BeTrue())
		_, ok = nextClientEvent(c)
		Expect(ok).To(BeTrue())

		c.Request("ignored")
		ev, ok := nextServerEvent(ts.srv)
		Expect(ok).To(BeTrue())
		Expect(ev.Kind).To(Equal(simplenetserver.EventRequest))

		// The token is not dropped here: the GC-cleanup backstop does not
		// fire deterministically within a test, so reject explicitly to
		// exercise the same code path a dropped token's cleanup would
		// trigger.
		ts.srv.Reject(ev.Token)

		cev, ok := nextClientEvent(c)
		Expect(ok).To(BeTrue())
		Expect(cev.Kind).To(Equal(simplenetclient.EventReject))
	})
})

var _ = Describe("Rate limit boundary", func() {
	It("allows exactly MaxCount messages per window and rejects the next", func() {
		tracker := ratelimit.NewTracker(ratelimit.Config{Period: 100 * time.Millisecond, MaxCount: 3})
		for i := 0; i < 3; i++ {
			Expect(tracker.TryCountMsg()).To(BeTrue(), fmt.Sprintf("message %d should be allowed", i))
		}
		Expect(tracker.TryCountMsg()).To(BeFalse(), "message exceeding MaxCount should be rejected")
	})

	It("disconnects a session that exceeds the configured rate limit", func() {
		ts := newTestServer(simplenetserver.Config{
			Authenticator: auth.NoneAuthenticator{},
			RateLimit:     ratelimit.Config{Period: 100 * time.Millisecond, MaxCount: 2},
		})
		defer ts.Close()

		id := uuid.New()
		c := newTestClient(ts, id, "connect")
		defer c.Close()
		_, ok := nextServerEvent(ts.srv)
		Expect(ok).To(BeTrue())
		_, ok = nextClientEvent(c)
		Expect(ok).To(BeTrue())

		for i := 0; i < 5; i++ {
			c.Send(fmt.Sprintf("msg-%d", i))
		}

		Eventually(func() bool {
			for {
				ev, ok := c.Next()
				if !ok {
					return false
				}
				if ev.Kind == simplenetclient.EventReport && ev.Report.Kind == simplenetclient.ReportClosedByServer {
					return true
				}
			}
		}, "2s", "10ms").Should(BeTrue())
	})
})

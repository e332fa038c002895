package transport

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

func TestConnSendReceive(t *testing.T) {
	received := make(chan []byte, 1)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ws, err := Upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Errorf("upgrade: %v", err)
			return
		}
		conn := Wrap(ws, DefaultConfig())
		go conn.WritePump()
		conn.ReadPump(func(b []byte) {
			received <- b
		}, func(string) {}, func(error) {})
	}))
	defer server.Close()

	wsURL := "ws" + server.URL[len("http"):]
	clientWS, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer clientWS.Close()

	if err := clientWS.WriteMessage(websocket.BinaryMessage, []byte("hello")); err != nil {
		t.Fatalf("write: %v", err)
	}

	select {
	case b := <-received:
		if string(b) != "hello" {
			t.Fatalf("got %q, want %q", b, "hello")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for message")
	}
}

package observer

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"hivenet.ai/internal/protocol"
	"hivenet.ai/internal/sim/world"
)

type fakeWorld struct{}

func (fakeWorld) ID() string          { return "w1" }
func (fakeWorld) CurrentTick() uint64 { return 42 }
func (fakeWorld) TickRateHz() int     { return 20 }

func dial(t *testing.T, s *Server, sub protocol.SubscribeMsg) *websocket.Conn {
	t.Helper()
	srv := httptest.NewServer(s.WSHandler())
	t.Cleanup(srv.Close)

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http"), nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	if err := conn.WriteJSON(sub); err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	deadline := time.Now().Add(2 * time.Second)
	for s.Sessions() == 0 {
		if time.Now().After(deadline) {
			t.Fatalf("session never registered")
		}
		time.Sleep(5 * time.Millisecond)
	}
	return conn
}

func read(t *testing.T, conn *websocket.Conn, v any) {
	t.Helper()
	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, b, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if err := json.Unmarshal(b, v); err != nil {
		t.Fatalf("decode: %v", err)
	}
}

func TestObserverReceivesFollowedViewsAndEvents(t *testing.T) {
	s := NewServer(fakeWorld{}, nil, nil)
	followed := [3]int{0, 64, 0}
	conn := dial(t, s, protocol.SubscribeMsg{
		Type:            protocol.TypeSubscribe,
		ProtocolVersion: protocol.Version,
		Controllers:     [][3]int{followed},
	})

	s.PublishViews(7, []protocol.NetworkViewMsg{
		{Type: protocol.TypeNetworkView, Tick: 7, Controller: [3]int{99, 64, 0}},
		{Type: protocol.TypeNetworkView, Tick: 7, Controller: followed, Formed: true, Fuel: 12},
	})
	var v protocol.NetworkViewMsg
	read(t, conn, &v)
	if v.Controller != followed || !v.Formed || v.Fuel != 12 {
		t.Fatalf("view=%+v", v)
	}

	_ = s.WriteEvent(world.EventEntry{Tick: 8, WorldID: "w1", Kind: "unformed", Node: [3]int{99, 64, 0}})
	_ = s.WriteEvent(world.EventEntry{Tick: 8, WorldID: "w1", Kind: "formed", Node: followed})
	var e protocol.EventMsg
	read(t, conn, &e)
	if e.Type != protocol.TypeEvent || e.Kind != "formed" || e.Node != followed {
		t.Fatalf("event=%+v", e)
	}
}

func TestObserverRejectsWrongHandshake(t *testing.T) {
	s := NewServer(fakeWorld{}, nil, nil)
	srv := httptest.NewServer(s.WSHandler())
	defer srv.Close()

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http"), nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()
	_ = conn.WriteJSON(map[string]string{"type": "HELLO"})
	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, _, err = conn.ReadMessage()
	if !websocket.IsCloseError(err, websocket.ClosePolicyViolation) {
		t.Fatalf("err=%v want policy violation close", err)
	}
}

func TestBootstrap(t *testing.T) {
	s := NewServer(fakeWorld{}, nil, nil)
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/observer/bootstrap", nil)
	req.RemoteAddr = "127.0.0.1:5555"
	s.BootstrapHandler()(rec, req)
	var resp protocol.BootstrapResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.WorldID != "w1" || resp.Tick != 42 || resp.TickRateHz != 20 {
		t.Fatalf("resp=%+v", resp)
	}

	rec = httptest.NewRecorder()
	req.RemoteAddr = "10.0.0.7:5555"
	s.BootstrapHandler()(rec, req)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("remote code=%d want 403", rec.Code)
	}
}

func TestSendLatestKeepsNewest(t *testing.T) {
	ch := make(chan []byte, 1)
	sendLatest(ch, []byte("a"))
	sendLatest(ch, []byte("b"))
	if got := string(<-ch); got != "b" {
		t.Fatalf("got %q want b", got)
	}
}

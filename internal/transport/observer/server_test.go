package observer

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"amoebotsim.ai/internal/observerproto"
	"amoebotsim.ai/internal/sim/world"
)

func startWorld(t *testing.T) (*world.World, *httptest.Server) {
	t.Helper()
	w, err := world.New(world.WorldConfig{
		ID:              "obs",
		Seed:            5,
		ParticleCount:   8,
		TileCount:       12,
		HoleProbability: 0.1,
		RoundRateHz:     50,
	})
	if err != nil {
		t.Fatalf("world.New: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	go func() { _ = w.Run(ctx) }()
	t.Cleanup(cancel)

	s := NewServer(w, nil)
	mux := http.NewServeMux()
	mux.HandleFunc("/admin/v1/observer/bootstrap", s.BootstrapHandler())
	mux.HandleFunc("/admin/v1/observer/ws", s.WSHandler())
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return w, srv
}

func TestBootstrap(t *testing.T) {
	w, srv := startWorld(t)

	resp, err := http.Get(srv.URL + "/admin/v1/observer/bootstrap")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status=%d", resp.StatusCode)
	}
	var b observerproto.BootstrapResponse
	if err := json.NewDecoder(resp.Body).Decode(&b); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if b.WorldID != "obs" || b.ProtocolVersion != observerproto.Version {
		t.Fatalf("bootstrap: %+v", b)
	}
	if len(b.Tiles) != w.NumTiles() || b.WorldParams.ParticleCount != 8 || b.WorldParams.Seed != 5 {
		t.Fatalf("tiles=%d params=%+v", len(b.Tiles), b.WorldParams)
	}

	post, err := http.Post(srv.URL+"/admin/v1/observer/bootstrap", "application/json", nil)
	if err != nil {
		t.Fatalf("post: %v", err)
	}
	post.Body.Close()
	if post.StatusCode != http.StatusMethodNotAllowed {
		t.Fatalf("POST status=%d", post.StatusCode)
	}
}

func dial(t *testing.T, srv *httptest.Server) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/admin/v1/observer/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func readRound(t *testing.T, conn *websocket.Conn) observerproto.RoundMsg {
	t.Helper()
	_ = conn.SetReadDeadline(time.Now().Add(3 * time.Second))
	_, b, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	var msg observerproto.RoundMsg
	if err := json.Unmarshal(b, &msg); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	return msg
}

func TestWS_StreamsRounds(t *testing.T) {
	_, srv := startWorld(t)
	conn := dial(t, srv)

	sub := observerproto.SubscribeMsg{Type: "SUBSCRIBE", ProtocolVersion: observerproto.Version, EveryRounds: 1}
	if err := conn.WriteJSON(sub); err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	first := readRound(t, conn)
	if first.Type != "ROUND" || len(first.Particles) != 8 {
		t.Fatalf("first frame: %+v", first)
	}
	if first.Particles[0].Text != "" {
		t.Fatalf("text without include_text")
	}
	next := readRound(t, conn)
	if next.Round < first.Round {
		t.Fatalf("rounds went backwards: %d -> %d", first.Round, next.Round)
	}

	sub.IncludeText = true
	if err := conn.WriteJSON(sub); err != nil {
		t.Fatalf("resubscribe: %v", err)
	}
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if msg := readRound(t, conn); msg.Particles[0].Text != "" {
			return
		}
	}
	t.Fatalf("no frame with inspection text after resubscribe")
}

func TestWS_RejectsBadHandshake(t *testing.T) {
	_, srv := startWorld(t)
	conn := dial(t, srv)

	if err := conn.WriteJSON(observerproto.SubscribeMsg{Type: "SUBSCRIBE", ProtocolVersion: "9.9"}); err != nil {
		t.Fatalf("write: %v", err)
	}
	_ = conn.SetReadDeadline(time.Now().Add(3 * time.Second))
	_, _, err := conn.ReadMessage()
	if !websocket.IsCloseError(err, websocket.ClosePolicyViolation) {
		t.Fatalf("got %v, want policy violation close", err)
	}
}

func TestNormalizeSubscribe(t *testing.T) {
	for _, c := range []struct{ in, want int }{{0, 1}, {-3, 1}, {7, 7}, {maxEveryRounds + 1, maxEveryRounds}} {
		sub := observerproto.SubscribeMsg{EveryRounds: c.in}
		normalizeSubscribe(&sub)
		if sub.EveryRounds != c.want {
			t.Fatalf("every=%d: got %d want %d", c.in, sub.EveryRounds, c.want)
		}
	}
}

func TestIsLoopbackRemote(t *testing.T) {
	for addr, want := range map[string]bool{
		"127.0.0.1:1234": true,
		"[::1]:80":       true,
		"10.0.0.1:80":    false,
		"garbage":        false,
	} {
		if got := isLoopbackRemote(addr); got != want {
			t.Fatalf("%s: got %v want %v", addr, got, want)
		}
	}
}

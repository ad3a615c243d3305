package main

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"amoebotsim.ai/internal/persistence/snapshot"
	"amoebotsim.ai/internal/sim/world"
)

func newTestWorld(t *testing.T) *world.World {
	t.Helper()
	w, err := world.New(world.WorldConfig{
		ID:              "hull_test",
		Seed:            99,
		ParticleCount:   10,
		TileCount:       20,
		HoleProbability: 0.1,
		RoundRateHz:     100,
	})
	if err != nil {
		t.Fatalf("world.New: %v", err)
	}
	return w
}

func TestHandlers(t *testing.T) {
	w := newTestWorld(t)
	sink := make(chan snapshot.SnapshotV1, 4)
	w.SetSnapshotSink(sink)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = w.Run(ctx) }()

	srv := httptest.NewServer(newMux(w, nil, routeOptions{EnableAdmin: true}, nil))
	defer srv.Close()

	get := func(path string) (int, string) {
		t.Helper()
		resp, err := http.Get(srv.URL + path)
		if err != nil {
			t.Fatalf("GET %s: %v", path, err)
		}
		defer resp.Body.Close()
		b, _ := io.ReadAll(resp.Body)
		return resp.StatusCode, string(b)
	}

	if code, body := get("/healthz"); code != 200 || body != "ok" {
		t.Fatalf("healthz: %d %q", code, body)
	}

	code, body := get("/metrics")
	if code != 200 || !strings.Contains(body, `amoebot_world_particles{world="hull_test"} 10`) {
		t.Fatalf("metrics: %d\n%s", code, body)
	}
	if strings.Contains(body, "amoebot_index_") {
		t.Fatalf("index metrics without index")
	}

	code, body = get("/admin/v1/state")
	if code != 200 {
		t.Fatalf("state: %d %s", code, body)
	}
	var st struct {
		WorldID string `json:"world_id"`
		State   struct {
			Particles []struct {
				Text string `json:"text"`
			} `json:"particles"`
		} `json:"state"`
	}
	if err := json.Unmarshal([]byte(body), &st); err != nil {
		t.Fatalf("state json: %v", err)
	}
	if st.WorldID != "hull_test" || len(st.State.Particles) != 10 || st.State.Particles[0].Text == "" {
		t.Fatalf("state: %+v", st)
	}

	if code, _ := get("/admin/v1/snapshot"); code != http.StatusMethodNotAllowed {
		t.Fatalf("GET snapshot: %d", code)
	}
	resp, err := http.Post(srv.URL+"/admin/v1/snapshot", "application/json", nil)
	if err != nil {
		t.Fatalf("POST snapshot: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != 200 {
		t.Fatalf("POST snapshot: %d", resp.StatusCode)
	}
	select {
	case snap := <-sink:
		if snap.Header.WorldID != "hull_test" {
			t.Fatalf("snapshot header: %+v", snap.Header)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("no snapshot")
	}
}

func TestHandlers_AdminDisabled(t *testing.T) {
	w := newTestWorld(t)
	srv := httptest.NewServer(newMux(w, nil, routeOptions{}, nil))
	defer srv.Close()
	resp, err := http.Get(srv.URL + "/admin/v1/state")
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("status=%d want 404", resp.StatusCode)
	}
}

func TestWriteMetrics_WithIndex(t *testing.T) {
	dir := t.TempDir()
	idx, err := openRuntimeIndex(dir, false)
	if err != nil {
		t.Fatalf("open index: %v", err)
	}
	defer idx.Close()

	var buf bytes.Buffer
	writeMetrics(&buf, "w", world.WorldMetrics{Round: 3, Fault: "x"}, idx)
	out := buf.String()
	for _, want := range []string{
		`amoebot_world_round{world="w"} 3`,
		`amoebot_world_fault{world="w"} 1`,
		`amoebot_index_dropped_total{world="w",kind="round"} 0`,
	} {
		if !strings.Contains(out, want) {
			t.Fatalf("missing %q in\n%s", want, out)
		}
	}
}

func TestOpenRuntimeIndex_Backends(t *testing.T) {
	t.Setenv("AMOEBOT_INDEX_BACKEND", "off")
	idx, err := openRuntimeIndex(t.TempDir(), false)
	if err != nil || idx != nil {
		t.Fatalf("off backend: %v %v", idx, err)
	}
	t.Setenv("AMOEBOT_INDEX_BACKEND", "postgres")
	if _, err := openRuntimeIndex(t.TempDir(), false); err == nil {
		t.Fatalf("unknown backend accepted")
	}
	if idx, err := openRuntimeIndex(t.TempDir(), true); err != nil || idx != nil {
		t.Fatalf("disabled: %v %v", idx, err)
	}
}

func TestRunHeadless(t *testing.T) {
	w := newTestWorld(t)
	var out bytes.Buffer
	if err := runHeadless(context.Background(), w, 40, &out); err != nil {
		t.Fatalf("runHeadless: %v", err)
	}
	if w.Rounds() != 40 {
		t.Fatalf("rounds=%d", w.Rounds())
	}
	s := out.String()
	if !strings.Contains(s, "rounds=40 (+40)") || !strings.Contains(s, "hull:") {
		t.Fatalf("summary:\n%s", s)
	}
}

func TestMultiRoundLogger(t *testing.T) {
	var a, b recorder
	m := multiRoundLogger{a: &a, b: &b}
	_ = m.WriteRound(world.RoundLogEntry{Round: 4})
	if len(a.rounds) != 1 || len(b.rounds) != 1 || b.rounds[0] != 4 {
		t.Fatalf("fan-out: %v %v", a.rounds, b.rounds)
	}
	_ = multiRoundLogger{a: &a}.WriteRound(world.RoundLogEntry{Round: 5})
	if len(a.rounds) != 2 {
		t.Fatalf("single: %v", a.rounds)
	}
}

type recorder struct{ rounds []uint64 }

func (r *recorder) WriteRound(e world.RoundLogEntry) error {
	r.rounds = append(r.rounds, e.Round)
	return nil
}

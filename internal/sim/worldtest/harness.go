package worldtest

import (
	"path/filepath"
	"testing"

	"amoebotsim.ai/internal/persistence/snapshot"
	"amoebotsim.ai/internal/sim/lattice"
	"amoebotsim.ai/internal/sim/tuning"
	world "amoebotsim.ai/internal/sim/world"
)

// Harness is a small black-box test helper for driving a world via exported APIs:
// - Step()/StepN() issue rounds via StepOnce() and collect digests
// - Snapshot()/Restore() move the world through a snapshot file on disk
//
// It intentionally avoids touching world internals so tests can live outside the world package.
type Harness struct {
	T *testing.T
	W *world.World

	Digests []string
}

func NewHarness(t *testing.T, cfg world.WorldConfig) *Harness {
	t.Helper()
	w, err := world.New(cfg)
	if err != nil {
		t.Fatalf("world.New: %v", err)
	}
	return &Harness{T: t, W: w}
}

// ConfigFromTuning builds a world config from the repo's tuning file.
func ConfigFromTuning(t *testing.T, seed uint64) world.WorldConfig {
	t.Helper()
	tu, err := tuning.Load("../../../configs/tuning.yaml")
	if err != nil {
		t.Fatalf("load tuning: %v", err)
	}
	return world.WorldConfig{
		ID:                  "test",
		Seed:                seed,
		ParticleCount:       tu.ParticleCount,
		TileCount:           tu.TileCount,
		HoleProbability:     tu.HoleProbability,
		SnapshotEveryRounds: tu.SnapshotEveryRounds,
		DebugConnectivity:   tu.DebugConnectivity,
		PullChildren:        tu.PullChildren,
	}
}

// Step runs one round and fails the test on any error.
func (h *Harness) Step() string {
	h.T.Helper()
	round, digest, err := h.W.StepOnce()
	if err != nil {
		h.T.Fatalf("round %d: %v", round, err)
	}
	h.Digests = append(h.Digests, digest)
	return digest
}

func (h *Harness) StepN(n int) []string {
	h.T.Helper()
	out := make([]string, 0, n)
	for i := 0; i < n; i++ {
		out = append(out, h.Step())
	}
	return out
}

// Snapshot writes the current state to a file under the test's temp dir and returns its path.
func (h *Harness) Snapshot() string {
	h.T.Helper()
	snap := h.W.ExportSnapshot()
	path := filepath.Join(h.T.TempDir(), snapshot.FileName(snap.Header.Round))
	if err := snapshot.WriteSnapshot(path, snap); err != nil {
		h.T.Fatalf("write snapshot: %v", err)
	}
	return path
}

// Restore builds a new harness whose world is loaded from the snapshot file at path.
func Restore(t *testing.T, cfg world.WorldConfig, path string) *Harness {
	t.Helper()
	snap, err := snapshot.ReadSnapshot(path)
	if err != nil {
		t.Fatalf("read snapshot: %v", err)
	}
	h := NewHarness(t, cfg)
	if err := h.W.ImportSnapshot(snap); err != nil {
		t.Fatalf("import: %v", err)
	}
	return h
}

// Hull returns the hull vertices and fails the test if there is none.
func (h *Harness) Hull() [6]lattice.Node {
	h.T.Helper()
	v, err := h.W.HullVertices()
	if err != nil {
		h.T.Fatalf("hull: %v", err)
	}
	return v
}

package indexdb

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"
	"time"

	"amoebotsim.ai/internal/persistence/snapshot"
	"amoebotsim.ai/internal/sim/tuning"
	"amoebotsim.ai/internal/sim/world"
)

func TestSQLiteIndex_QueueDropStats(t *testing.T) {
	s := &SQLiteIndex{ch: make(chan req, 1)}
	s.ch <- req{kind: reqRound, round: world.RoundLogEntry{Round: 1}}

	_ = s.WriteRound(world.RoundLogEntry{Round: 2})
	s.RecordSnapshot("/tmp/2.snap.zst", snapshot.SnapshotV1{})

	st := s.Stats()
	if st.DropRoundTotal != 1 {
		t.Fatalf("DropRoundTotal=%d want=1", st.DropRoundTotal)
	}
	if st.DropSnapshotTotal != 1 {
		t.Fatalf("DropSnapshotTotal=%d want=1", st.DropSnapshotTotal)
	}
	if st.QueueDepth != 1 || st.QueueCapacity != 1 {
		t.Fatalf("queue stats mismatch: depth=%d cap=%d", st.QueueDepth, st.QueueCapacity)
	}
}

func openTemp(t *testing.T) (*SQLiteIndex, string) {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "index", "world.sqlite")
	idx, err := OpenSQLite(dbPath)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() { _ = idx.Close() })
	return idx, dbPath
}

func syncIndex(t *testing.T, idx *SQLiteIndex) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := idx.Sync(ctx); err != nil {
		t.Fatalf("sync: %v", err)
	}
}

func TestSQLiteIndex_WritesRoundsAndSnapshots(t *testing.T) {
	idx, _ := openTemp(t)

	for i := 0; i < 3; i++ {
		_ = idx.WriteRound(world.RoundLogEntry{Round: uint64(i), Movements: uint64(i * 3), Leader: i, Digest: "d"})
	}
	_ = idx.WriteRound(world.RoundLogEntry{Round: 3, Terminated: true, Fault: "round 3: illegal move", Digest: "e"})
	idx.RecordSnapshot("/data/snapshots/3.snap.zst", snapshot.SnapshotV1{
		Header:    snapshot.Header{Version: snapshot.Version, WorldID: "w1", Round: 3},
		Seed:      42,
		Movements: 9,
		Leader:    2,
		Tiles:     []snapshot.NodeV1{{X: 0, Y: 0}, {X: 1, Y: 0}},
		Particles: []snapshot.ParticleV1{{ID: 0}},
	})
	syncIndex(t, idx)

	var n, terminated int
	if err := idx.db.QueryRow(`SELECT COUNT(*) FROM rounds`).Scan(&n); err != nil {
		t.Fatalf("count rounds: %v", err)
	}
	if n != 4 {
		t.Fatalf("rounds=%d want=4", n)
	}
	var fault sql.NullString
	if err := idx.db.QueryRow(`SELECT terminated, fault FROM rounds WHERE round=3`).Scan(&terminated, &fault); err != nil {
		t.Fatalf("round 3: %v", err)
	}
	if terminated != 1 || !fault.Valid || fault.String == "" {
		t.Fatalf("round 3: terminated=%d fault=%v", terminated, fault)
	}
	if err := idx.db.QueryRow(`SELECT fault FROM rounds WHERE round=0`).Scan(&fault); err != nil {
		t.Fatalf("round 0: %v", err)
	}
	if fault.Valid {
		t.Fatalf("round 0 fault should be NULL: %v", fault)
	}

	var path string
	var seed int64
	var particles, tiles, leader int
	if err := idx.db.QueryRow(`SELECT path, seed, particles, tiles, leader FROM snapshots WHERE round=3`).
		Scan(&path, &seed, &particles, &tiles, &leader); err != nil {
		t.Fatalf("snapshot row: %v", err)
	}
	if path != "/data/snapshots/3.snap.zst" || seed != 42 || particles != 1 || tiles != 2 || leader != 2 {
		t.Fatalf("snapshot row: %s %d %d %d %d", path, seed, particles, tiles, leader)
	}
}

func TestSQLiteIndex_UpsertTuning(t *testing.T) {
	idx, _ := openTemp(t)
	tune := tuning.Defaults()
	if err := idx.UpsertTuning(tune); err != nil {
		t.Fatalf("upsert: %v", err)
	}
	if err := idx.UpsertTuning(tune); err != nil {
		t.Fatalf("upsert again: %v", err)
	}
	tune.ParticleCount++
	if err := idx.UpsertTuning(tune); err != nil {
		t.Fatalf("upsert changed: %v", err)
	}
	var n int
	if err := idx.db.QueryRow(`SELECT COUNT(*) FROM tuning`).Scan(&n); err != nil {
		t.Fatalf("count: %v", err)
	}
	if n != 2 {
		t.Fatalf("tuning rows=%d want=2", n)
	}
	var v string
	if err := idx.db.QueryRow(`SELECT value FROM meta WHERE key='schema_version'`).Scan(&v); err != nil || v != schemaVersion {
		t.Fatalf("schema_version=%q err=%v", v, err)
	}
}

func TestSQLiteIndex_PersistsAcrossReopen(t *testing.T) {
	idx, dbPath := openTemp(t)
	_ = idx.WriteRound(world.RoundLogEntry{Round: 7, Digest: "x"})
	if err := idx.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	// Closed index ignores writes.
	_ = idx.WriteRound(world.RoundLogEntry{Round: 8})
	if err := idx.Close(); err != nil {
		t.Fatalf("second close: %v", err)
	}

	idx2, err := OpenSQLite(dbPath)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer idx2.Close()
	var digest string
	if err := idx2.db.QueryRow(`SELECT digest FROM rounds WHERE round=7`).Scan(&digest); err != nil || digest != "x" {
		t.Fatalf("digest=%q err=%v", digest, err)
	}
}

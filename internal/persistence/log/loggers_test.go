package log

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"amoebotsim.ai/internal/sim/world"
)

func readAll(t *testing.T, dir string) []world.RoundLogEntry {
	t.Helper()
	files, err := ListRoundFiles(dir)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	var out []world.RoundLogEntry
	for _, p := range files {
		if err := ReadRoundFile(p, func(e world.RoundLogEntry) error {
			out = append(out, e)
			return nil
		}); err != nil {
			t.Fatalf("read %s: %v", p, err)
		}
	}
	return out
}

func TestRoundLogger_WriteAndRead(t *testing.T) {
	dir := t.TempDir()
	l := NewRoundLogger(dir)
	for i := 0; i < 5; i++ {
		if err := l.WriteRound(world.RoundLogEntry{Round: uint64(i), Movements: uint64(2 * i), Digest: "d"}); err != nil {
			t.Fatalf("write: %v", err)
		}
	}
	if err := l.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	got := readAll(t, RoundsDir(dir))
	if len(got) != 5 || got[4].Round != 4 || got[4].Movements != 8 {
		t.Fatalf("entries: %+v", got)
	}
}

func TestJSONLZstdWriter_RotatesHourly(t *testing.T) {
	dir := t.TempDir()
	w := NewJSONLZstdWriter(dir, roundPrefix)
	clock := time.Date(2026, 1, 2, 10, 59, 0, 0, time.UTC)
	w.now = func() time.Time { return clock }

	if err := w.Write(world.RoundLogEntry{Round: 0}); err != nil {
		t.Fatalf("write: %v", err)
	}
	clock = clock.Add(2 * time.Minute)
	if err := w.Write(world.RoundLogEntry{Round: 1}); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	files, err := ListRoundFiles(dir)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	want := []string{"rounds-2026-01-02-10.jsonl.zst", "rounds-2026-01-02-11.jsonl.zst"}
	if len(files) != 2 || filepath.Base(files[0]) != want[0] || filepath.Base(files[1]) != want[1] {
		t.Fatalf("files: %v", files)
	}
	if got := readAll(t, dir); len(got) != 2 || got[0].Round != 0 || got[1].Round != 1 {
		t.Fatalf("entries: %+v", got)
	}
}

func TestJSONLZstdWriter_AppendsAcrossRestarts(t *testing.T) {
	dir := t.TempDir()
	clock := time.Date(2026, 1, 2, 10, 0, 0, 0, time.UTC)
	for i := 0; i < 2; i++ {
		w := NewJSONLZstdWriter(dir, roundPrefix)
		w.now = func() time.Time { return clock }
		if err := w.Write(world.RoundLogEntry{Round: uint64(i)}); err != nil {
			t.Fatalf("write: %v", err)
		}
		if err := w.Close(); err != nil {
			t.Fatalf("close: %v", err)
		}
	}
	if got := readAll(t, dir); len(got) != 2 {
		t.Fatalf("entries: %+v", got)
	}
}

func TestListRoundFiles_IgnoresOthers(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"rounds-2026-01-01-00.jsonl.zst", "audit-2026-01-01-00.jsonl.zst", "rounds.txt"} {
		if err := os.WriteFile(filepath.Join(dir, name), nil, 0o644); err != nil {
			t.Fatal(err)
		}
	}
	if err := os.Mkdir(filepath.Join(dir, "rounds-dir"), 0o755); err != nil {
		t.Fatal(err)
	}
	files, err := ListRoundFiles(dir)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(files) != 1 {
		t.Fatalf("files: %v", files)
	}
}

package main

import (
	"errors"
	"path/filepath"
	"testing"

	persistlog "amoebotsim.ai/internal/persistence/log"
	"amoebotsim.ai/internal/persistence/snapshot"
	"amoebotsim.ai/internal/sim/world"
)

func TestReplay_MatchesRoundLog(t *testing.T) {
	dir := t.TempDir()
	cfg := world.WorldConfig{ID: "r", Seed: 11, ParticleCount: 10, TileCount: 20, HoleProbability: 0.1}
	w, err := world.New(cfg)
	if err != nil {
		t.Fatalf("world.New: %v", err)
	}
	for i := 0; i < 10; i++ {
		if _, _, err := w.StepOnce(); err != nil {
			t.Fatalf("StepOnce: %v", err)
		}
	}
	snapPath := filepath.Join(dir, "snapshots", snapshot.FileName(w.Rounds()))
	if err := snapshot.WriteSnapshot(snapPath, w.ExportSnapshot()); err != nil {
		t.Fatalf("write snapshot: %v", err)
	}

	logger := persistlog.NewRoundLogger(dir)
	w.SetRoundLogger(logger)
	for i := 0; i < 30; i++ {
		if _, _, err := w.StepOnce(); err != nil {
			t.Fatalf("StepOnce: %v", err)
		}
	}
	if err := logger.Close(); err != nil {
		t.Fatalf("close log: %v", err)
	}

	replay := func(to uint64, tamper func(*world.RoundLogEntry)) (*replayer, error) {
		snap, err := snapshot.ReadSnapshot(snapPath)
		if err != nil {
			t.Fatalf("read snapshot: %v", err)
		}
		w2, err := world.New(cfg)
		if err != nil {
			t.Fatalf("world.New: %v", err)
		}
		if err := w2.ImportSnapshot(snap); err != nil {
			t.Fatalf("import: %v", err)
		}
		r := &replayer{w: w2, start: w2.Rounds(), verifyFrom: w2.Rounds(), to: to}
		files, err := persistlog.ListRoundFiles(persistlog.RoundsDir(dir))
		if err != nil || len(files) == 0 {
			t.Fatalf("list: %v %v", files, err)
		}
		for _, f := range files {
			err := persistlog.ReadRoundFile(f, func(e world.RoundLogEntry) error {
				if tamper != nil {
					tamper(&e)
				}
				return r.apply(e)
			})
			if errors.Is(err, errStop) {
				break
			}
			if err != nil {
				return r, err
			}
		}
		return r, nil
	}

	r, err := replay(0, nil)
	if err != nil {
		t.Fatalf("replay: %v", err)
	}
	if r.checked != 30 {
		t.Fatalf("checked=%d want=30", r.checked)
	}

	r, err = replay(20, nil)
	if err != nil || r.checked != 11 {
		t.Fatalf("bounded replay: checked=%d err=%v", r.checked, err)
	}

	if _, err := replay(0, func(e *world.RoundLogEntry) {
		if e.Round == 15 {
			e.Digest = "bogus"
		}
	}); err == nil {
		t.Fatalf("tampered digest not detected")
	}
}

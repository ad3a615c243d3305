package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"amoebotsim.ai/internal/persistence/indexdb"
	"amoebotsim.ai/internal/persistence/snapshot"
	"amoebotsim.ai/internal/sim/tuning"
	"amoebotsim.ai/internal/sim/world"
)

type runtimeIndex interface {
	world.RoundLogger
	Close() error
	UpsertTuning(tune tuning.Tuning) error
	RecordSnapshot(path string, snap snapshot.SnapshotV1)
	Stats() indexdb.Stats
}

func indexPath(worldDir string) string {
	return filepath.Join(worldDir, "index", "world.sqlite")
}

func openRuntimeIndex(worldDir string, disableDB bool) (runtimeIndex, error) {
	if disableDB {
		return nil, nil
	}

	backend := strings.ToLower(strings.TrimSpace(os.Getenv("AMOEBOT_INDEX_BACKEND")))
	if backend == "" {
		backend = "sqlite"
	}

	switch backend {
	case "none", "off", "disabled":
		return nil, nil
	case "sqlite":
		return indexdb.OpenSQLite(indexPath(worldDir))
	default:
		return nil, fmt.Errorf("unsupported AMOEBOT_INDEX_BACKEND: %s", backend)
	}
}

// multiRoundLogger fans one round entry out to the log file and the index.
type multiRoundLogger struct {
	a world.RoundLogger
	b world.RoundLogger
}

func (m multiRoundLogger) WriteRound(entry world.RoundLogEntry) error {
	if m.a != nil {
		_ = m.a.WriteRound(entry)
	}
	if m.b != nil {
		_ = m.b.WriteRound(entry)
	}
	return nil
}

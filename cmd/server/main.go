package main

import (
	"context"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	persistlog "amoebotsim.ai/internal/persistence/log"
	"amoebotsim.ai/internal/persistence/snapshot"
	"amoebotsim.ai/internal/sim/tuning"
	"amoebotsim.ai/internal/sim/world"
)

func main() {
	var (
		addr       = flag.String("addr", ":8080", "http listen address")
		worldID    = flag.String("world", "hull_1", "world id")
		seed       = flag.Uint64("seed", 1337, "construction seed (used only when starting a fresh world)")
		configDir  = flag.String("configs", "./configs", "config directory")
		dataDir    = flag.String("data", "./data", "runtime data directory")
		tuningPath = flag.String("tuning", "", "path to tuning.yaml (default: <configs>/tuning.yaml)")
		disableDB  = flag.Bool("disable_db", false, "disable indexing (rounds + tuning + snapshot metadata)")

		snapPath   = flag.String("snapshot", "", "path to snapshot to load (optional)")
		loadLatest = flag.Bool("load_latest_snapshot", true, "load latest snapshot from data dir if present (when -snapshot is empty)")

		headless = flag.Bool("headless", false, "run rounds back to back without http, then print a summary")
		rounds   = flag.Uint64("rounds", 0, "headless round limit (default: tuning max_rounds; 0 = until termination)")
	)
	flag.Parse()

	logger := log.New(os.Stdout, "[server] ", log.LstdFlags|log.Lmicroseconds)

	worldDir := filepath.Join(*dataDir, "worlds", *worldID)
	_ = os.MkdirAll(worldDir, 0o755)

	tp := strings.TrimSpace(*tuningPath)
	if tp == "" {
		tp = filepath.Join(*configDir, "tuning.yaml")
	}

	snapshotToLoad := strings.TrimSpace(*snapPath)
	if snapshotToLoad == "" && *loadLatest {
		snapshotToLoad, _ = snapshot.Latest(filepath.Join(worldDir, "snapshots"))
	}

	// Load tuning (required for fresh world; optional for snapshot resumes).
	tune, tuneErr := tuning.Load(tp)
	if tuneErr != nil {
		if snapshotToLoad == "" {
			logger.Fatalf("load tuning: %v", tuneErr)
		}
		// Resume fallback: the snapshot carries the parameters that matter.
		if os.IsNotExist(tuneErr) {
			logger.Printf("tuning not found (%s); using defaults", tp)
			tune = tuning.Defaults()
		} else {
			logger.Fatalf("load tuning: %v", tuneErr)
		}
	}

	// Optional: read-model index backend (does not affect sim determinism).
	idx, err := openRuntimeIndex(worldDir, *disableDB)
	if err != nil {
		logger.Fatalf("open index backend: %v", err)
	}
	if idx != nil {
		defer idx.Close()
		if err := idx.UpsertTuning(tune); err != nil {
			logger.Printf("index backend: upsert tuning: %v", err)
		}
	}

	w, err := world.New(world.WorldConfig{
		ID:                  *worldID,
		Seed:                *seed,
		ParticleCount:       tune.ParticleCount,
		TileCount:           tune.TileCount,
		HoleProbability:     tune.HoleProbability,
		RoundRateHz:         tune.RoundRateHz,
		SnapshotEveryRounds: tune.SnapshotEveryRounds,
		DebugConnectivity:   tune.DebugConnectivity,
		PullChildren:        tune.PullChildren,
	})
	if err != nil {
		logger.Fatalf("world: %v", err)
	}
	if snapshotToLoad != "" {
		snap, err := snapshot.ReadSnapshot(snapshotToLoad)
		if err != nil {
			logger.Fatalf("read snapshot: %v", err)
		}
		if snap.Header.WorldID != "" && snap.Header.WorldID != *worldID {
			logger.Fatalf("snapshot world id mismatch: flag=%s snap=%s", *worldID, snap.Header.WorldID)
		}
		if err := w.ImportSnapshot(snap); err != nil {
			logger.Fatalf("import snapshot: %v", err)
		}
		logger.Printf("resumed from snapshot=%s round=%d", filepath.Base(snapshotToLoad), w.Rounds())
	} else {
		logger.Printf("constructed world=%s seed=%d particles=%d tiles=%d", *worldID, *seed, w.NumParticles(), w.NumTiles())
	}

	ctx, cancel := signalContext()
	defer cancel()

	roundLog := persistlog.NewRoundLogger(worldDir)
	defer roundLog.Close()
	var idxLogger world.RoundLogger
	if idx != nil {
		idxLogger = idx
	}
	w.SetRoundLogger(multiRoundLogger{a: roundLog, b: idxLogger})

	// Snapshot writer.
	snapCh := make(chan snapshot.SnapshotV1, 2)
	w.SetSnapshotSink(snapCh)
	writerDone := make(chan struct{})
	go func() {
		defer close(writerDone)
		for snap := range snapCh {
			writeSnapshot(worldDir, snap, idx, logger)
		}
	}()

	if *headless {
		limit := *rounds
		if limit == 0 {
			limit = tune.MaxRounds
		}
		runErr := runHeadless(ctx, w, limit, os.Stdout)
		// Final state, also when the run ended early.
		w.SetSnapshotSink(nil)
		close(snapCh)
		<-writerDone
		writeSnapshot(worldDir, w.ExportSnapshot(), idx, logger)
		if runErr != nil {
			logger.Printf("headless run stopped: %v", runErr)
			roundLog.Close()
			if idx != nil {
				idx.Close()
			}
			os.Exit(1)
		}
		return
	}

	go func() {
		if err := w.Run(ctx); err != nil && err != context.Canceled {
			logger.Printf("world stopped: %v", err)
		}
	}()

	mux := newMux(w, idx, routeOptions{
		EnableAdmin: envBool("AMOEBOT_ENABLE_ADMIN_HTTP", defaultEnableAdminHTTP()),
		EnablePprof: envBool("AMOEBOT_ENABLE_PPROF_HTTP", false),
	}, logger)

	srv := &http.Server{
		Addr:              *addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		ctx2, cancel2 := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel2()
		_ = srv.Shutdown(ctx2)
	}()

	logger.Printf("listening on %s", *addr)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Fatalf("ListenAndServe: %v", err)
	}
}

func writeSnapshot(worldDir string, snap snapshot.SnapshotV1, idx runtimeIndex, logger *log.Logger) {
	path := filepath.Join(worldDir, "snapshots", snapshot.FileName(snap.Header.Round))
	if err := snapshot.WriteSnapshot(path, snap); err != nil {
		logger.Printf("snapshot write: %v", err)
		return
	}
	if idx != nil {
		idx.RecordSnapshot(path, snap)
	}
}

func signalContext() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())
	ch := make(chan os.Signal, 2)
	signal.Notify(ch, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-ch
		cancel()
	}()
	return ctx, cancel
}

package world

import (
	"fmt"
	"time"

	"amoebotsim.ai/internal/sim/amoebot"
)

func (w *World) stepInternal() (string, error) {
	stepStart := time.Now()
	now := w.rounds.Load()

	err := w.sys.Round(w.rng, w.alg.Activate)
	if err != nil {
		err = fmt.Errorf("round %d: %w", now, err)
		w.fault = err
	} else if w.cfg.DebugConnectivity && !w.sys.IsConnected() {
		w.fault = fmt.Errorf("round %d: %w", now, amoebot.ErrConnectivity)
	}
	next := w.rounds.Add(1)
	halted := w.HasTerminated()

	digest := w.stateDigest()
	if w.roundLogger != nil {
		_ = w.roundLogger.WriteRound(RoundLogEntry{
			Round:      now,
			Movements:  w.sys.Movements(),
			Leader:     int(w.sys.Leader()),
			Terminated: halted,
			Fault:      w.faultString(),
			Digest:     digest,
		})
	}

	if w.snapshotSink != nil && w.cfg.SnapshotEveryRounds > 0 && next%uint64(w.cfg.SnapshotEveryRounds) == 0 {
		snap := w.ExportSnapshot()
		select {
		case w.snapshotSink <- snap:
		default:
			// Drop snapshot if sink is backed up.
		}
	}

	w.stepObservers(halted)
	w.storeMetrics(time.Since(stepStart))
	return digest, err
}

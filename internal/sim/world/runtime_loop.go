package world

import (
	"context"
	"errors"
	"fmt"
	"time"

	"amoebotsim.ai/internal/sim/amoebot"
	"amoebotsim.ai/internal/sim/lattice"
)

// alwaysReady paces Run when no round rate is configured.
var alwaysReady = func() <-chan time.Time {
	ch := make(chan time.Time)
	close(ch)
	return ch
}()

// Run owns the world until ctx is done or Stop is called. It issues rounds at the
// configured rate until the world halts, and keeps serving observers and admin requests
// afterwards so a halted configuration stays inspectable.
func (w *World) Run(ctx context.Context) error {
	tick := alwaysReady
	if w.cfg.RoundRateHz > 0 {
		ticker := time.NewTicker(time.Second / time.Duration(w.cfg.RoundRateHz))
		defer ticker.Stop()
		tick = ticker.C
	}

	for {
		var next <-chan time.Time
		if !w.HasTerminated() {
			next = tick
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-w.stop:
			return nil
		case req := <-w.observerJoin:
			w.handleObserverJoin(req)
		case req := <-w.observerSub:
			w.handleObserverSubscribe(req)
		case id := <-w.observerLeave:
			w.handleObserverLeave(id)
		case req := <-w.admin:
			w.handleAdminSnapshotRequest(req)
		case req := <-w.stateReq:
			w.handleStateRequest(req)
		case <-next:
			// A failed round is recorded as the world's fault and halts it.
			_, _ = w.stepInternal()
		}
	}
}

func (w *World) Stop() { close(w.stop) }

// StepOnce runs exactly one round using the same ordering semantics as Run. round is the
// index of the round it ran and digest the state digest after it.
func (w *World) StepOnce() (round uint64, digest string, err error) {
	round = w.rounds.Load()
	if w.HasTerminated() {
		return round, w.stateDigest(), fmt.Errorf("step round %d: %w", round, ErrHalted)
	}
	digest, err = w.stepInternal()
	return round, digest, err
}

// StepParticleAt activates only the particle on n. It is a debugging aid: the activation
// is not a round and is not written to the round log.
func (w *World) StepParticleAt(n lattice.Node) error {
	if w.HasTerminated() {
		return fmt.Errorf("step particle at %v: %w", n, ErrHalted)
	}
	start := time.Now()
	err := w.sys.ActivateAt(n, w.alg.Activate)
	if errors.Is(err, amoebot.ErrIllegalMove) {
		w.fault = err
	}
	w.stepObservers(true)
	w.storeMetrics(time.Since(start))
	return err
}

// RunUntilTermination steps rounds until the world halts, ctx is done, or maxRounds
// rounds have run (0 means no limit). It returns the fault of an abnormal halt.
func (w *World) RunUntilTermination(ctx context.Context, maxRounds uint64) error {
	for n := uint64(0); maxRounds == 0 || n < maxRounds; n++ {
		if w.HasTerminated() {
			break
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if _, _, err := w.StepOnce(); err != nil {
			return err
		}
	}
	return w.fault
}

func sendLatest(ch chan []byte, b []byte) {
	select {
	case ch <- b:
		return
	default:
	}
	// Drop one.
	select {
	case <-ch:
	default:
	}
	select {
	case ch <- b:
	default:
	}
}

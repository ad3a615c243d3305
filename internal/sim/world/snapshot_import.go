package world

import (
	"errors"
	"fmt"
	"math/rand/v2"

	"amoebotsim.ai/internal/persistence/snapshot"
	"amoebotsim.ai/internal/sim/amoebot"
	"amoebotsim.ai/internal/sim/convexhull"
	"amoebotsim.ai/internal/sim/lattice"
)

// ImportSnapshot replaces the world's state. It must be called before Run.
// Parameters that change round semantics are taken from the snapshot; RoundRateHz stays
// as configured.
func (w *World) ImportSnapshot(snap snapshot.SnapshotV1) error {
	if snap.Header.Version != snapshot.Version {
		return fmt.Errorf("unsupported snapshot version: %d", snap.Header.Version)
	}

	sys := amoebot.NewSystem[convexhull.Memory]()
	for _, t := range snap.Tiles {
		if err := sys.AddTile(lattice.Node{X: t.X, Y: t.Y}); err != nil {
			return fmt.Errorf("import snapshot: %w", err)
		}
	}
	for i, p := range snap.Particles {
		if p.ID != i {
			return fmt.Errorf("import snapshot: particle %d stored at index %d", p.ID, i)
		}
		if _, err := sys.AddParticle(amoebot.Particle[convexhull.Memory]{
			Head:          lattice.Node{X: p.Head.X, Y: p.Head.Y},
			GlobalTailDir: lattice.Dir(p.GlobalTailDir),
			Orientation:   p.Orientation,
			Mem: convexhull.Memory{
				State:     convexhull.State(p.State),
				ParentDir: p.ParentDir,
				MoveDir:   p.MoveDir,
				Distance:  p.Distance,
				Completed: p.Completed,
			},
		}); err != nil {
			return fmt.Errorf("import snapshot: %w", err)
		}
	}
	if err := sys.SetLeader(amoebot.ParticleID(snap.Leader)); err != nil {
		return fmt.Errorf("import snapshot: %w", err)
	}
	sys.SetMovements(snap.Movements)
	if err := sys.Audit(); err != nil {
		return fmt.Errorf("import snapshot: %w", err)
	}
	if err := convexhull.CheckMemories(sys); err != nil {
		return fmt.Errorf("import snapshot: %w", err)
	}

	src := &rand.PCG{}
	if err := src.UnmarshalBinary(snap.RNG); err != nil {
		return fmt.Errorf("import snapshot: rng state: %w", err)
	}

	if snap.Header.WorldID != "" {
		w.cfg.ID = snap.Header.WorldID
	}
	w.cfg.Seed = snap.Seed
	w.cfg.ParticleCount = snap.Params.ParticleCount
	w.cfg.TileCount = snap.Params.TileCount
	w.cfg.HoleProbability = snap.Params.HoleProbability
	w.cfg.SnapshotEveryRounds = snap.SnapshotEveryRounds
	w.cfg.DebugConnectivity = snap.DebugConnectivity
	w.cfg.PullChildren = snap.PullChildren
	w.alg = convexhull.Algorithm{PullChildren: snap.PullChildren}

	w.install(sys, src, rand.New(src))
	w.rounds.Store(snap.Header.Round)
	w.fault = nil
	if snap.Fault != "" {
		w.fault = errors.New(snap.Fault)
	}
	w.storeMetrics(0)
	return nil
}

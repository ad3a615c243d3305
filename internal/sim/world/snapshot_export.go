package world

import (
	"amoebotsim.ai/internal/persistence/snapshot"
	"amoebotsim.ai/internal/sim/amoebot"
	"amoebotsim.ai/internal/sim/convexhull"
)

// ExportSnapshot captures the state between rounds. Importing it into a fresh world and
// stepping reproduces the same rounds and digests.
func (w *World) ExportSnapshot() snapshot.SnapshotV1 {
	rngState, _ := w.src.MarshalBinary()
	snap := snapshot.SnapshotV1{
		Header: snapshot.Header{
			Version: snapshot.Version,
			WorldID: w.cfg.ID,
			Round:   w.rounds.Load(),
		},
		Seed: w.cfg.Seed,
		Params: snapshot.ParamsV1{
			ParticleCount:   w.cfg.ParticleCount,
			TileCount:       w.cfg.TileCount,
			HoleProbability: w.cfg.HoleProbability,
		},
		RoundRateHz:         w.cfg.RoundRateHz,
		SnapshotEveryRounds: w.cfg.SnapshotEveryRounds,
		DebugConnectivity:   w.cfg.DebugConnectivity,
		PullChildren:        w.cfg.PullChildren,
		RNG:                 rngState,
		Movements:           w.sys.Movements(),
		Leader:              int(w.sys.Leader()),
		Fault:               w.faultString(),
	}

	snap.Tiles = make([]snapshot.NodeV1, 0, len(w.tiles))
	for _, n := range w.tiles {
		snap.Tiles = append(snap.Tiles, snapshot.NodeV1{X: n.X, Y: n.Y})
	}
	snap.Particles = make([]snapshot.ParticleV1, 0, w.sys.NumParticles())
	w.sys.Each(func(p *amoebot.Particle[convexhull.Memory]) {
		snap.Particles = append(snap.Particles, snapshot.ParticleV1{
			ID:            int(p.ID),
			Head:          snapshot.NodeV1{X: p.Head.X, Y: p.Head.Y},
			GlobalTailDir: int(p.GlobalTailDir),
			Orientation:   p.Orientation,
			State:         uint8(p.Mem.State),
			ParentDir:     p.Mem.ParentDir,
			MoveDir:       p.Mem.MoveDir,
			Distance:      p.Mem.Distance,
			Completed:     p.Mem.Completed,
		})
	})
	return snap
}

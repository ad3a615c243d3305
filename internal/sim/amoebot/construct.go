package amoebot

import (
	"fmt"
	"math/rand/v2"
	"slices"

	"amoebotsim.ai/internal/sim/lattice"
)

// Params are the construction parameters of a randomized initial configuration.
type Params struct {
	ParticleCount   int     `json:"particle_count" yaml:"particle_count"`
	TileCount       int     `json:"tile_count" yaml:"tile_count"`
	HoleProbability float64 `json:"hole_probability" yaml:"hole_probability"`
}

func (p Params) Validate() error {
	if p.ParticleCount <= 0 {
		return fmt.Errorf("%w: particle count %d must be positive", ErrConstruction, p.ParticleCount)
	}
	if p.TileCount <= 0 {
		return fmt.Errorf("%w: tile count %d must be positive", ErrConstruction, p.TileCount)
	}
	if !(p.HoleProbability >= 0 && p.HoleProbability <= 1) {
		return fmt.Errorf("%w: hole probability %v outside [0,1]", ErrConstruction, p.HoleProbability)
	}
	return nil
}

// Construct grows a tile blob by randomized flood fill from (0,0), then places the
// distinguished particle just past the blob's maximum node and grows the remaining
// particles by flood fill around it. init(0) is the distinguished particle's memory.
// Every particle gets a uniformly random orientation.
func Construct[M any](p Params, rng *rand.Rand, init func(i int) M) (*System[M], error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	if rng == nil {
		return nil, fmt.Errorf("%w: nil rng", ErrConstruction)
	}
	s := NewSystem[M]()

	origin := lattice.Node{}
	if err := s.AddTile(origin); err != nil {
		return nil, fmt.Errorf("place tile: %w", err)
	}
	considered := map[lattice.Node]bool{origin: true}
	var candidates nodeSet
	for d := lattice.Dir(0); d < lattice.NumDirs; d++ {
		candidates.add(origin.NodeInDir(d))
	}
	maxNode := origin
	for s.NumTiles() < p.TileCount && candidates.len() > 0 {
		n := candidates.take(rng.IntN(candidates.len()))
		considered[n] = true
		if rng.Float64() >= 1-p.HoleProbability {
			continue
		}
		if err := s.AddTile(n); err != nil {
			return nil, fmt.Errorf("place tile: %w", err)
		}
		if lattice.Less(maxNode, n) {
			maxNode = n
		}
		for d := lattice.Dir(0); d < lattice.NumDirs; d++ {
			if m := n.NodeInDir(d); !considered[m] {
				candidates.add(m)
			}
		}
	}

	leaderPos := lattice.Node{X: maxNode.X, Y: maxNode.Y + 1}
	leader, err := s.AddParticle(Particle[M]{
		Head:          leaderPos,
		GlobalTailDir: lattice.NoDir,
		Orientation:   rng.IntN(lattice.NumDirs),
		Mem:           init(0),
	})
	if err != nil {
		return nil, fmt.Errorf("place leader: %w", err)
	}
	s.leader = leader

	candidates = nodeSet{}
	for d := lattice.Dir(0); d < lattice.NumDirs; d++ {
		if m := leaderPos.NodeInDir(d); s.OccupantAt(m).IsEmpty() {
			candidates.add(m)
		}
	}
	for s.NumParticles() < p.ParticleCount {
		n := candidates.take(rng.IntN(candidates.len()))
		if _, err := s.AddParticle(Particle[M]{
			Head:          n,
			GlobalTailDir: lattice.NoDir,
			Orientation:   rng.IntN(lattice.NumDirs),
			Mem:           init(s.NumParticles()),
		}); err != nil {
			return nil, fmt.Errorf("place particle: %w", err)
		}
		for d := lattice.Dir(0); d < lattice.NumDirs; d++ {
			if m := n.NodeInDir(d); s.OccupantAt(m).IsEmpty() {
				candidates.add(m)
			}
		}
	}
	return s, nil
}

// nodeSet is an ordered set; draws by index depend only on its contents.
type nodeSet struct{ nodes []lattice.Node }

func (ns *nodeSet) len() int { return len(ns.nodes) }

func (ns *nodeSet) add(n lattice.Node) {
	i, found := slices.BinarySearchFunc(ns.nodes, n, lattice.Compare)
	if found {
		return
	}
	ns.nodes = slices.Insert(ns.nodes, i, n)
}

func (ns *nodeSet) take(i int) lattice.Node {
	n := ns.nodes[i]
	ns.nodes = slices.Delete(ns.nodes, i, i+1)
	return n
}

package amoebot

import (
	"fmt"

	"github.com/katalvlaran/lvlath/bfs"
	"github.com/katalvlaran/lvlath/core"

	"amoebotsim.ai/internal/sim/lattice"
)

// System owns every tile and particle and the node index over them.
type System[M any] struct {
	tiles     []Tile
	particles []*Particle[M]
	cells     map[lattice.Node]Occupant

	// leader is the single distinguished particle, moved only by RoleExchange.
	leader    ParticleID
	movements uint64
}

func NewSystem[M any]() *System[M] {
	return &System[M]{
		cells:  map[lattice.Node]Occupant{},
		leader: NoParticle,
	}
}

// AddTile places a tile on an empty node.
func (s *System[M]) AddTile(n lattice.Node) error {
	if o := s.cells[n]; !o.IsEmpty() {
		return fmt.Errorf("add tile at %v: node holds a %v", n, o.Kind)
	}
	s.tiles = append(s.tiles, Tile{Node: n})
	s.cells[n] = Occupant{Kind: TileOccupant, Particle: NoParticle}
	return nil
}

// AddParticle places p (contracted or expanded) and assigns the next ID.
func (s *System[M]) AddParticle(p Particle[M]) (ParticleID, error) {
	if p.GlobalTailDir != lattice.NoDir && !p.GlobalTailDir.Valid() {
		return NoParticle, fmt.Errorf("add particle: bad tail dir %d", p.GlobalTailDir)
	}
	p.Orientation = lattice.Mod6(p.Orientation)
	if o := s.cells[p.Head]; !o.IsEmpty() {
		return NoParticle, fmt.Errorf("add particle at %v: node holds a %v", p.Head, o.Kind)
	}
	if p.Expanded() {
		if o := s.cells[p.Tail()]; !o.IsEmpty() {
			return NoParticle, fmt.Errorf("add particle tail at %v: node holds a %v", p.Tail(), o.Kind)
		}
	}
	id := ParticleID(len(s.particles))
	p.ID = id
	cp := p
	s.particles = append(s.particles, &cp)
	s.cells[cp.Head] = Occupant{Kind: ParticleOccupant, Particle: id, Segment: lattice.Head}
	if cp.Expanded() {
		s.cells[cp.Tail()] = Occupant{Kind: ParticleOccupant, Particle: id, Segment: lattice.Tail}
	}
	return id, nil
}

func (s *System[M]) Leader() ParticleID { return s.leader }

// SetLeader installs the distinguished particle at construction or restore time.
func (s *System[M]) SetLeader(id ParticleID) error {
	if id != NoParticle && (id < 0 || int(id) >= len(s.particles)) {
		return fmt.Errorf("set leader %d: %w", id, ErrNoParticle)
	}
	s.leader = id
	return nil
}

func (s *System[M]) NumParticles() int { return len(s.particles) }
func (s *System[M]) NumTiles() int     { return len(s.tiles) }

// Movements counts movement primitive invocations.
func (s *System[M]) Movements() uint64 { return s.movements }

func (s *System[M]) SetMovements(n uint64) { s.movements = n }

func (s *System[M]) OccupantAt(n lattice.Node) Occupant {
	o, ok := s.cells[n]
	if !ok {
		return Occupant{Particle: NoParticle}
	}
	return o
}

// Particle returns a copy of particle id.
func (s *System[M]) Particle(id ParticleID) (Particle[M], bool) {
	if id < 0 || int(id) >= len(s.particles) {
		return Particle[M]{}, false
	}
	return *s.particles[id], true
}

// ParticleAt returns a copy of the particle with a segment on n.
func (s *System[M]) ParticleAt(n lattice.Node) (Particle[M], bool) {
	o := s.cells[n]
	if o.Kind != ParticleOccupant {
		return Particle[M]{}, false
	}
	return *s.particles[o.Particle], true
}

// Particles returns copies of all particles in ID order.
func (s *System[M]) Particles() []Particle[M] {
	out := make([]Particle[M], 0, len(s.particles))
	for _, p := range s.particles {
		out = append(out, *p)
	}
	return out
}

// Tiles returns the tiles in placement order.
func (s *System[M]) Tiles() []Tile {
	out := make([]Tile, len(s.tiles))
	copy(out, s.tiles)
	return out
}

// Each calls fn for every particle in ID order. fn must not retain p.
func (s *System[M]) Each(fn func(p *Particle[M])) {
	for _, p := range s.particles {
		fn(p)
	}
}

// IsConnected reports whether the occupied nodes form one connected component.
func (s *System[M]) IsConnected() bool {
	if len(s.cells) == 0 {
		return true
	}
	g, start, err := s.occupancyGraph()
	if err != nil {
		return false
	}
	res, err := bfs.BFS(g, start)
	if err != nil {
		return false
	}
	return len(res.Order) == len(s.cells)
}

// occupancyGraph has a vertex per occupied node and an edge per pair of adjacent ones.
// start is the vertex of the smallest node.
func (s *System[M]) occupancyGraph() (*core.Graph, string, error) {
	g := core.NewGraph()
	var first lattice.Node
	seeded := false
	for n := range s.cells {
		if err := g.AddVertex(n.String()); err != nil {
			return nil, "", err
		}
		if !seeded || lattice.Less(n, first) {
			first, seeded = n, true
		}
	}
	// E, NE and NW cover every adjacent pair exactly once.
	for n := range s.cells {
		for d := lattice.East; d <= lattice.NorthWest; d++ {
			m := n.NodeInDir(d)
			if _, ok := s.cells[m]; !ok {
				continue
			}
			if _, err := g.AddEdge(n.String(), m.String(), 0); err != nil {
				return nil, "", err
			}
		}
	}
	return g, first.String(), nil
}

// Audit checks that the node index and the occupants agree exactly: every tile and every
// particle segment owns one node and no node is shared.
func (s *System[M]) Audit() error {
	want := len(s.tiles)
	for _, t := range s.tiles {
		if o := s.cells[t.Node]; o.Kind != TileOccupant {
			return fmt.Errorf("audit: tile %v indexed as %v", t.Node, o.Kind)
		}
	}
	for i, p := range s.particles {
		if p.ID != ParticleID(i) {
			return fmt.Errorf("audit: particle slot %d has id %d", i, p.ID)
		}
		if o := s.cells[p.Head]; o.Kind != ParticleOccupant || o.Particle != p.ID || o.Segment != lattice.Head {
			return fmt.Errorf("audit: particle %d head %v indexed as %+v", p.ID, p.Head, o)
		}
		want++
		if p.Expanded() {
			if !p.GlobalTailDir.Valid() {
				return fmt.Errorf("audit: particle %d tail dir %d", p.ID, p.GlobalTailDir)
			}
			if o := s.cells[p.Tail()]; o.Kind != ParticleOccupant || o.Particle != p.ID || o.Segment != lattice.Tail {
				return fmt.Errorf("audit: particle %d tail %v indexed as %+v", p.ID, p.Tail(), o)
			}
			want++
		}
	}
	if len(s.cells) != want {
		return fmt.Errorf("audit: %d indexed nodes, %d occupants", len(s.cells), want)
	}
	if s.leader != NoParticle && int(s.leader) >= len(s.particles) {
		return fmt.Errorf("audit: leader %d: %w", s.leader, ErrNoParticle)
	}
	return nil
}

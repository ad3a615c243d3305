package amoebot

import "amoebotsim.ai/internal/sim/lattice"

// Local is the view a particle has of itself and its one-hop neighborhood during its own
// activation. Neighbors are returned as copies; only the movement primitives and their
// transactions change another particle.
type Local[M any] struct {
	sys *System[M]
	p   *Particle[M]
}

// Match tests a neighboring particle.
type Match[M any] func(nbr Particle[M]) bool

// Port addresses a neighboring node by anchor endpoint and local label.
type Port struct {
	Anchor lattice.Endpoint
	Label  int
}

func (l *Local[M]) ID() ParticleID { return l.p.ID }

// Mem is the particle's own memory.
func (l *Local[M]) Mem() *M { return &l.p.Mem }

// Self returns a copy of the particle.
func (l *Local[M]) Self() Particle[M] { return *l.p }

func (l *Local[M]) Head() lattice.Node { return l.p.Head }
func (l *Local[M]) Tail() lattice.Node { return l.p.Tail() }

func (l *Local[M]) IsExpanded() bool   { return l.p.Expanded() }
func (l *Local[M]) IsContracted() bool { return !l.p.Expanded() }

// IsLeader reports whether the system's leader reference points here.
func (l *Local[M]) IsLeader() bool { return l.sys.leader == l.p.ID }

func (l *Local[M]) Frame() lattice.Frame     { return l.p.Frame() }
func (l *Local[M]) TailFrame() lattice.Frame { return l.p.Frame().WithAnchor(lattice.Tail) }

func (l *Local[M]) LabelToDir(label int) lattice.Dir { return l.p.Frame().Dir(label) }
func (l *Local[M]) DirToLabel(d lattice.Dir) int     { return l.p.Frame().Label(d) }

// TailLabel is the head-anchored label of the tail, -1 when contracted.
func (l *Local[M]) TailLabel() int { return l.p.TailLabel() }

// HeadLabelFromTail is the tail-anchored label of the head, -1 when contracted.
func (l *Local[M]) HeadLabelFromTail() int {
	if !l.p.Expanded() {
		return -1
	}
	return l.p.Frame().Label(lattice.Opposite(l.p.GlobalTailDir))
}

func (l *Local[M]) portNode(pt Port) lattice.Node {
	return l.p.Frame().WithAnchor(pt.Anchor).Node(l.p.Head, l.p.Tail(), pt.Label)
}

func (l *Local[M]) nodeAtLabel(label int) lattice.Node {
	return l.portNode(Port{Anchor: lattice.Head, Label: label})
}

// NeighborAtLabel is the occupant of the node one hop from the head along label.
func (l *Local[M]) NeighborAtLabel(label int) Occupant {
	return l.sys.OccupantAt(l.nodeAtLabel(label))
}

// OccupantAtPort is the occupant of the node addressed by pt.
func (l *Local[M]) OccupantAtPort(pt Port) Occupant {
	return l.sys.OccupantAt(l.portNode(pt))
}

func (l *Local[M]) HasTileAtLabel(label int) bool {
	return l.NeighborAtLabel(label).Kind == TileOccupant
}

func (l *Local[M]) isOther(o Occupant) bool {
	return o.Kind == ParticleOccupant && o.Particle != l.p.ID
}

// HasNbrAtLabel reports another particle at label.
func (l *Local[M]) HasNbrAtLabel(label int) bool {
	return l.isOther(l.NeighborAtLabel(label))
}

// HasHeadAtLabel reports another particle whose head is at label.
func (l *Local[M]) HasHeadAtLabel(label int) bool {
	o := l.NeighborAtLabel(label)
	return l.isOther(o) && o.Segment == lattice.Head
}

// HasTailAtLabel reports an expanded particle whose tail is at label.
func (l *Local[M]) HasTailAtLabel(label int) bool {
	o := l.NeighborAtLabel(label)
	return l.isOther(o) && o.Segment == lattice.Tail
}

// NbrAtLabel returns a copy of the particle at label.
func (l *Local[M]) NbrAtLabel(label int) (Particle[M], bool) {
	return l.nbrAt(l.nodeAtLabel(label))
}

// NbrAtPort returns a copy of the particle at pt.
func (l *Local[M]) NbrAtPort(pt Port) (Particle[M], bool) {
	return l.nbrAt(l.portNode(pt))
}

func (l *Local[M]) nbrAt(n lattice.Node) (Particle[M], bool) {
	o := l.sys.OccupantAt(n)
	if !l.isOther(o) {
		return Particle[M]{}, false
	}
	return *l.sys.particles[o.Particle], true
}

// Ports lists the neighboring nodes: six around a contracted particle, ten around an
// expanded one (head ports first, then tail ports, never the particle's own nodes).
func (l *Local[M]) Ports() []Port {
	if !l.p.Expanded() {
		out := make([]Port, 0, lattice.NumDirs)
		for i := 0; i < lattice.NumDirs; i++ {
			out = append(out, Port{Anchor: lattice.Head, Label: i})
		}
		return out
	}
	toTail, toHead := l.TailLabel(), l.HeadLabelFromTail()
	out := make([]Port, 0, 2*lattice.NumDirs-2)
	for i := 0; i < lattice.NumDirs; i++ {
		if i != toTail {
			out = append(out, Port{Anchor: lattice.Head, Label: i})
		}
	}
	for i := 0; i < lattice.NumDirs; i++ {
		if i != toHead {
			out = append(out, Port{Anchor: lattice.Tail, Label: i})
		}
	}
	return out
}

// FirstPortWhere returns the first port whose particle satisfies match.
func (l *Local[M]) FirstPortWhere(match Match[M]) (Port, bool) {
	for _, pt := range l.Ports() {
		if nbr, ok := l.NbrAtPort(pt); ok && match(nbr) {
			return pt, true
		}
	}
	return Port{}, false
}

func (l *Local[M]) HasNeighborWhere(match Match[M]) bool {
	_, ok := l.FirstPortWhere(match)
	return ok
}

// FirstLabelWhere scans head-anchored labels start, start+1, ... and returns the first
// whose particle satisfies match, or -1.
func (l *Local[M]) FirstLabelWhere(match Match[M], start int) int {
	for i := 0; i < lattice.NumDirs; i++ {
		label := lattice.Mod6(start + i)
		if nbr, ok := l.NbrAtLabel(label); ok && match(nbr) {
			return label
		}
	}
	return -1
}

// PointsAtMe reports whether nbr's head-anchored label reaches one of this particle's nodes.
func (l *Local[M]) PointsAtMe(nbr Particle[M], nbrLabel int) bool {
	return l.p.Occupies(nbr.NodeAtLabel(nbrLabel))
}

// PointsAtMyTail reports whether nbr's head-anchored label reaches this particle's tail.
func (l *Local[M]) PointsAtMyTail(nbr Particle[M], nbrLabel int) bool {
	return l.p.Expanded() && nbr.NodeAtLabel(nbrLabel) == l.p.Tail()
}

// ToNeighborLabel re-expresses a local label in nbr's frame.
func (l *Local[M]) ToNeighborLabel(nbr Particle[M], label int) int {
	return l.p.Frame().Translate(label, nbr.Frame())
}

// FromNeighborLabel re-expresses one of nbr's labels in the local frame.
func (l *Local[M]) FromNeighborLabel(nbr Particle[M], nbrLabel int) int {
	return nbr.Frame().Translate(nbrLabel, l.p.Frame())
}

package amoebot

import (
	"fmt"

	"amoebotsim.ai/internal/sim/lattice"
)

// Relation describes the pair in a two-party transaction: the mover-local label under
// which the target was addressed, and the orientation offset target minus mover (mod 6),
// i.e. the mover label that corresponds to the target's label 0.
type Relation struct {
	Label  int
	Offset int
}

// Transaction rewrites the memories of both parties of a push, pull or role exchange.
// It runs inside the primitive after the geometry has changed, before any other particle
// is activated. A nil Transaction leaves both memories unchanged.
type Transaction[M any] func(mover, target M, rel Relation) (M, M)

func (l *Local[M]) illegal(op string, format string, args ...any) error {
	return fmt.Errorf("%s (particle %d): %s: %w", op, l.p.ID, fmt.Sprintf(format, args...), ErrIllegalMove)
}

// Expand moves the head onto the empty node at label; the old head becomes the tail.
func (l *Local[M]) Expand(label int) error {
	if l.p.Expanded() {
		return l.illegal("expand", "already expanded")
	}
	d := l.LabelToDir(label)
	target := l.p.Head.NodeInDir(d)
	if o := l.sys.OccupantAt(target); !o.IsEmpty() {
		return l.illegal("expand", "target %v holds a %v", target, o.Kind)
	}
	l.sys.expand(l.p, d)
	l.sys.movements++
	return nil
}

// ContractTail releases the tail; the particle stays on its head.
func (l *Local[M]) ContractTail() error {
	if !l.p.Expanded() {
		return l.illegal("contract tail", "not expanded")
	}
	l.sys.contractTail(l.p)
	l.sys.movements++
	return nil
}

// ContractHead releases the head; the particle stays on its tail.
func (l *Local[M]) ContractHead() error {
	if !l.p.Expanded() {
		return l.illegal("contract head", "not expanded")
	}
	l.sys.contractHead(l.p)
	l.sys.movements++
	return nil
}

// Contract releases the endpoint opposite to keep.
func (l *Local[M]) Contract(keep lattice.Endpoint) error {
	if keep == lattice.Tail {
		return l.ContractHead()
	}
	return l.ContractTail()
}

// CanPush reports whether a contracted particle can take the node at label by making the
// expanded particle there contract onto its other node.
func (l *Local[M]) CanPush(label int) bool {
	if l.p.Expanded() {
		return false
	}
	nbr, ok := l.NbrAtLabel(label)
	return ok && nbr.Expanded()
}

// Push is a handover: the expanded neighbor at label vacates the target node by contracting
// onto its other node and this particle expands into it, in one step.
func (l *Local[M]) Push(label int, tx Transaction[M]) error {
	if !l.CanPush(label) {
		return l.illegal("push", "label %d holds no expanded neighbor", label)
	}
	d := l.LabelToDir(label)
	target := l.p.Head.NodeInDir(d)
	o := l.sys.OccupantAt(target)
	nbr := l.sys.particles[o.Particle]
	if o.Segment == lattice.Head {
		l.sys.contractHead(nbr)
	} else {
		l.sys.contractTail(nbr)
	}
	l.sys.expand(l.p, d)
	l.sys.movements++
	l.apply(nbr, label, tx)
	return nil
}

// CanPull reports whether an expanded particle can drag the contracted neighbor found at
// tail-anchored label into its tail node.
func (l *Local[M]) CanPull(tailLabel int) bool {
	if !l.p.Expanded() || tailLabel == l.HeadLabelFromTail() {
		return false
	}
	nbr, ok := l.NbrAtPort(Port{Anchor: lattice.Tail, Label: tailLabel})
	return ok && nbr.Contracted()
}

// Pull contracts this particle onto its head while the contracted neighbor at tail-anchored
// label expands into the vacated tail node.
func (l *Local[M]) Pull(tailLabel int, tx Transaction[M]) error {
	if !l.CanPull(tailLabel) {
		return l.illegal("pull", "tail label %d holds no contracted neighbor", tailLabel)
	}
	tail := l.p.Tail()
	d := l.LabelToDir(tailLabel)
	o := l.sys.OccupantAt(tail.NodeInDir(d))
	nbr := l.sys.particles[o.Particle]
	l.sys.contractTail(l.p)
	// nbr's head moves onto our old tail; its tail stays where it was.
	l.sys.expand(nbr, lattice.Opposite(d))
	l.sys.movements++
	l.apply(nbr, tailLabel, tx)
	return nil
}

// RoleExchange runs a two-party transaction with the particle at label without moving
// anyone, and hands the system's leader reference to it if this particle holds it.
func (l *Local[M]) RoleExchange(label int, tx Transaction[M]) error {
	o := l.NeighborAtLabel(label)
	if !l.isOther(o) {
		return l.illegal("role exchange", "label %d holds no particle", label)
	}
	nbr := l.sys.particles[o.Particle]
	l.apply(nbr, label, tx)
	if l.sys.leader == l.p.ID {
		l.sys.leader = nbr.ID
	}
	return nil
}

func (l *Local[M]) apply(nbr *Particle[M], label int, tx Transaction[M]) {
	if tx == nil {
		return
	}
	rel := Relation{Label: label, Offset: l.p.Frame().Offset(nbr.Frame())}
	l.p.Mem, nbr.Mem = tx(l.p.Mem, nbr.Mem, rel)
}

func (s *System[M]) expand(p *Particle[M], d lattice.Dir) {
	tail := p.Head
	head := tail.NodeInDir(d)
	s.cells[tail] = Occupant{Kind: ParticleOccupant, Particle: p.ID, Segment: lattice.Tail}
	s.cells[head] = Occupant{Kind: ParticleOccupant, Particle: p.ID, Segment: lattice.Head}
	p.Head = head
	p.GlobalTailDir = lattice.Opposite(d)
}

func (s *System[M]) contractTail(p *Particle[M]) {
	delete(s.cells, p.Tail())
	p.GlobalTailDir = lattice.NoDir
}

func (s *System[M]) contractHead(p *Particle[M]) {
	tail := p.Tail()
	delete(s.cells, p.Head)
	p.Head = tail
	p.GlobalTailDir = lattice.NoDir
	s.cells[tail] = Occupant{Kind: ParticleOccupant, Particle: p.ID, Segment: lattice.Head}
}

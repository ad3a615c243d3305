// Package amoebot is the execution substrate of the amoebot model: occupancy of the
// triangular lattice by tiles and particles, the randomized round scheduler, and the
// movement primitives through which particles change the occupancy map.
//
// A System is single-threaded. Particles observe and change the world only through the
// Local handle they receive when activated.
package amoebot

import (
	"errors"

	"amoebotsim.ai/internal/sim/lattice"
)

var (
	ErrIllegalMove  = errors.New("illegal move")
	ErrConstruction = errors.New("invalid construction parameters")
	ErrConnectivity = errors.New("connectivity violation")
	ErrNoParticle   = errors.New("no particle")
)

// ParticleID indexes System particles in placement order.
type ParticleID int

// NoParticle is the zero reference.
const NoParticle ParticleID = -1

// Tile is an immovable occupant of one node.
type Tile struct {
	Node lattice.Node
}

// Particle occupies its head, and also its tail when expanded. M is the algorithm memory;
// it must have value semantics so that neighbor views are copies.
type Particle[M any] struct {
	ID ParticleID
	// Head is the node the particle occupies when contracted.
	Head lattice.Node
	// GlobalTailDir is the global direction from head to tail, NoDir when contracted.
	GlobalTailDir lattice.Dir
	Orientation   int
	Mem           M
}

func (p Particle[M]) Expanded() bool   { return p.GlobalTailDir != lattice.NoDir }
func (p Particle[M]) Contracted() bool { return !p.Expanded() }

// Tail returns the tail node, or the head when contracted.
func (p Particle[M]) Tail() lattice.Node {
	if !p.Expanded() {
		return p.Head
	}
	return p.Head.NodeInDir(p.GlobalTailDir)
}

// Frame is the head-anchored local frame.
func (p Particle[M]) Frame() lattice.Frame {
	return lattice.Frame{Orientation: p.Orientation, Anchor: lattice.Head}
}

// TailLabel is the head-anchored label pointing at the tail, or -1.
func (p Particle[M]) TailLabel() int {
	if !p.Expanded() {
		return -1
	}
	return p.Frame().Label(p.GlobalTailDir)
}

// NodeAtLabel is the node one hop from the head along a local label.
func (p Particle[M]) NodeAtLabel(label int) lattice.Node {
	return p.Frame().Node(p.Head, p.Tail(), label)
}

func (p Particle[M]) Occupies(n lattice.Node) bool {
	return n == p.Head || (p.Expanded() && n == p.Tail())
}

// OccupantKind classifies what sits on a node.
type OccupantKind uint8

const (
	Empty OccupantKind = iota
	TileOccupant
	ParticleOccupant
)

func (k OccupantKind) String() string {
	switch k {
	case TileOccupant:
		return "tile"
	case ParticleOccupant:
		return "particle"
	}
	return "empty"
}

// Occupant is the content of one node.
type Occupant struct {
	Kind     OccupantKind
	Particle ParticleID
	Segment  lattice.Endpoint
}

func (o Occupant) IsEmpty() bool { return o.Kind == Empty }

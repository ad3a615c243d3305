package amoebot

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"amoebotsim.ai/internal/sim/lattice"
)

func local(s *System[mem], id ParticleID) *Local[mem] {
	return &Local[mem]{sys: s, p: s.particles[id]}
}

func addContracted(t *testing.T, s *System[mem], n lattice.Node, orientation, tag int) ParticleID {
	t.Helper()
	id, err := s.AddParticle(Particle[mem]{Head: n, GlobalTailDir: lattice.NoDir, Orientation: orientation, Mem: mem{Tag: tag}})
	require.NoError(t, err)
	return id
}

func TestExpandContract(t *testing.T) {
	s := NewSystem[mem]()
	require.NoError(t, s.AddTile(lattice.Node{X: -1}))
	id := addContracted(t, s, lattice.Node{}, 2, 0)
	l := local(s, id)

	// Label 4 with orientation 2 is global direction 0 (east).
	require.NoError(t, l.Expand(4))
	assert.True(t, l.IsExpanded())
	assert.Equal(t, lattice.Node{X: 1}, l.Head())
	assert.Equal(t, lattice.Node{}, l.Tail())
	assert.Equal(t, 1, l.TailLabel(), "west is label 1 at orientation 2")
	assert.Equal(t, 4, l.HeadLabelFromTail())
	assert.Equal(t, Occupant{Kind: ParticleOccupant, Particle: id, Segment: lattice.Tail}, s.OccupantAt(lattice.Node{}))
	require.NoError(t, s.Audit())

	err := l.Expand(0)
	assert.True(t, errors.Is(err, ErrIllegalMove), "expand while expanded")

	require.NoError(t, l.ContractTail())
	assert.Equal(t, lattice.Node{X: 1}, l.Head())
	assert.True(t, s.OccupantAt(lattice.Node{}).IsEmpty())
	assert.True(t, errors.Is(l.ContractTail(), ErrIllegalMove))
	assert.True(t, errors.Is(l.ContractHead(), ErrIllegalMove))

	require.NoError(t, l.Expand(1)) // west, back onto (0,0)
	require.NoError(t, l.ContractHead())
	assert.Equal(t, lattice.Node{X: 1}, l.Head(), "contracting the head keeps the tail node")
	require.NoError(t, s.Audit())
	assert.Equal(t, uint64(4), s.Movements())
}

func TestExpandIntoOccupiedIsIllegal(t *testing.T) {
	s := NewSystem[mem]()
	require.NoError(t, s.AddTile(lattice.Node{X: 1}))
	a := addContracted(t, s, lattice.Node{}, 0, 0)
	addContracted(t, s, lattice.Node{X: -1}, 0, 1)

	assert.True(t, errors.Is(local(s, a).Expand(int(lattice.East)), ErrIllegalMove), "tile")
	assert.True(t, errors.Is(local(s, a).Expand(int(lattice.West)), ErrIllegalMove), "particle")
	assert.Equal(t, uint64(0), s.Movements())
	require.NoError(t, s.Audit())
}

func TestPushHandover(t *testing.T) {
	for _, seg := range []lattice.Endpoint{lattice.Head, lattice.Tail} {
		s := NewSystem[mem]()
		a := addContracted(t, s, lattice.Node{}, 1, 10)
		// b is expanded across (1,0) and (2,0); seg decides which end touches a.
		bp := Particle[mem]{Head: lattice.Node{X: 2}, GlobalTailDir: lattice.West, Orientation: 4, Mem: mem{Tag: 20}}
		if seg == lattice.Head {
			bp = Particle[mem]{Head: lattice.Node{X: 1}, GlobalTailDir: lattice.East, Orientation: 4, Mem: mem{Tag: 20}}
		}
		b, err := s.AddParticle(bp)
		require.NoError(t, err)

		la := local(s, a)
		label := la.DirToLabel(lattice.East)
		require.True(t, la.CanPush(label))

		var gotRel Relation
		require.NoError(t, la.Push(label, func(mover, target mem, rel Relation) (mem, mem) {
			gotRel = rel
			mover.Seen, target.Seen = target.Tag, mover.Tag
			return mover, target
		}))
		require.NoError(t, s.Audit())

		assert.Equal(t, lattice.Node{X: 1}, la.Head())
		assert.Equal(t, lattice.Node{}, la.Tail())
		pb, _ := s.Particle(b)
		assert.True(t, pb.Contracted())
		assert.Equal(t, lattice.Node{X: 2}, pb.Head, "neighbor keeps the node away from a (%v touched)", seg)
		assert.Equal(t, Relation{Label: label, Offset: 3}, gotRel)
		assert.Equal(t, 20, la.Mem().Seen)
		assert.Equal(t, 10, pb.Mem.Seen)
		assert.Equal(t, uint64(1), s.Movements())
	}
}

func TestPushContractedNeighborIsIllegal(t *testing.T) {
	s := NewSystem[mem]()
	a := addContracted(t, s, lattice.Node{}, 0, 0)
	b := addContracted(t, s, lattice.Node{X: 1}, 0, 1)
	la := local(s, a)
	assert.False(t, la.CanPush(0))
	assert.False(t, la.CanPush(3), "empty node")
	err := la.Push(0, nil)
	assert.True(t, errors.Is(err, ErrIllegalMove))

	pa, _ := s.Particle(a)
	pb, _ := s.Particle(b)
	assert.Equal(t, lattice.Node{}, pa.Head)
	assert.Equal(t, lattice.Node{X: 1}, pb.Head)
	assert.Equal(t, uint64(0), s.Movements())
}

func TestPull(t *testing.T) {
	s := NewSystem[mem]()
	// a expanded: tail (0,0), head (1,0). c contracted west of a's tail.
	a, err := s.AddParticle(Particle[mem]{Head: lattice.Node{X: 1}, GlobalTailDir: lattice.West, Orientation: 5})
	require.NoError(t, err)
	c := addContracted(t, s, lattice.Node{X: -1}, 2, 0)
	la := local(s, a)

	tailLabel := la.TailFrame().Label(lattice.West)
	require.True(t, la.CanPull(tailLabel))
	assert.False(t, la.CanPull(la.HeadLabelFromTail()))

	require.NoError(t, la.Pull(tailLabel, func(mover, target mem, rel Relation) (mem, mem) {
		target.Seen = rel.Offset
		return mover, target
	}))
	require.NoError(t, s.Audit())
	assert.True(t, la.IsContracted())
	assert.Equal(t, lattice.Node{X: 1}, la.Head())
	pc, _ := s.Particle(c)
	assert.True(t, pc.Expanded())
	assert.Equal(t, lattice.Node{}, pc.Head)
	assert.Equal(t, lattice.Node{X: -1}, pc.Tail())
	assert.Equal(t, 3, pc.Mem.Seen, "offset 2-5 mod 6")
	assert.True(t, s.IsConnected())

	assert.False(t, la.CanPull(0), "contracted particles cannot pull")
	assert.True(t, errors.Is(la.Pull(0, nil), ErrIllegalMove))
}

func TestRoleExchangeMovesLeaderReference(t *testing.T) {
	s := NewSystem[mem]()
	a := addContracted(t, s, lattice.Node{}, 0, 1)
	b := addContracted(t, s, lattice.Node{X: 1}, 3, 2)
	require.NoError(t, s.SetLeader(a))

	la := local(s, a)
	require.NoError(t, la.RoleExchange(0, func(mover, target mem, rel Relation) (mem, mem) {
		mover.Tag, target.Tag = target.Tag, mover.Tag
		return mover, target
	}))
	assert.Equal(t, b, s.Leader())
	pb, _ := s.Particle(b)
	assert.Equal(t, 1, pb.Mem.Tag)
	assert.Equal(t, 2, la.Mem().Tag)
	assert.Equal(t, uint64(0), s.Movements())

	assert.True(t, errors.Is(la.RoleExchange(3, nil), ErrIllegalMove), "no particle west")

	// A non-leader exchanging does not move the reference.
	require.NoError(t, la.RoleExchange(0, nil))
	assert.Equal(t, b, s.Leader())
}

func TestNeighborQueries(t *testing.T) {
	s := NewSystem[mem]()
	require.NoError(t, s.AddTile(lattice.Node{X: 0, Y: 1}))
	a, err := s.AddParticle(Particle[mem]{Head: lattice.Node{X: 1}, GlobalTailDir: lattice.West, Orientation: 0})
	require.NoError(t, err)
	b, err := s.AddParticle(Particle[mem]{Head: lattice.Node{X: 2}, GlobalTailDir: lattice.NorthEast, Orientation: 1, Mem: mem{Tag: 7}})
	require.NoError(t, err)
	addContracted(t, s, lattice.Node{X: -1}, 0, 9)
	la := local(s, a)

	assert.Len(t, la.Ports(), 10)
	assert.True(t, la.HasHeadAtLabel(0))
	assert.False(t, la.HasTailAtLabel(0))
	assert.False(t, la.HasNbrAtLabel(3), "own tail is not a neighbor")
	assert.True(t, la.NeighborAtLabel(3).Kind == ParticleOccupant)
	assert.True(t, la.HasTileAtLabel(2), "(0,1) is north-west of (1,0)")

	assert.Equal(t, 0, la.FirstLabelWhere(func(p Particle[mem]) bool { return p.Mem.Tag == 7 }, 0))
	assert.Equal(t, -1, la.FirstLabelWhere(func(p Particle[mem]) bool { return p.Mem.Tag == 9 }, 0), "only reachable from the tail")
	pt, ok := la.FirstPortWhere(func(p Particle[mem]) bool { return p.Mem.Tag == 9 })
	require.True(t, ok)
	assert.Equal(t, Port{Anchor: lattice.Tail, Label: 3}, pt)
	assert.True(t, la.HasNeighborWhere(func(p Particle[mem]) bool { return p.ID == b }))

	pb, _ := la.NbrAtLabel(0)
	// b's label toward a: global west, at orientation 1 that is label 2.
	assert.True(t, la.PointsAtMe(pb, 2))
	assert.False(t, la.PointsAtMyTail(pb, 2))
	assert.Equal(t, 5, la.ToNeighborLabel(pb, 0))
	assert.Equal(t, 0, la.FromNeighborLabel(pb, 5))
}

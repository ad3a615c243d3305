package convexhull

import (
	"math/rand/v2"

	"amoebotsim.ai/internal/sim/amoebot"
	"amoebotsim.ai/internal/sim/lattice"
)

// checkOrder lists the boundary-tracing candidates relative to moveDir: straight on, then
// alternately clockwise and counterclockwise.
var checkOrder = [6]int{0, 5, 4, 1, 2, 3}

// Algorithm is the convex-hull transition function.
type Algorithm struct {
	// PullChildren lets an expanded Leader or Follower that is held back by a child drag
	// that child into its tail instead of waiting for it to push.
	PullChildren bool
}

// Activate runs one activation of the particle behind l.
func (a Algorithm) Activate(l *amoebot.Local[Memory]) error {
	switch l.Mem().State {
	case Leader:
		return a.activateLeader(l)
	case Idle:
		activateIdle(l)
		return nil
	case Follower:
		return a.activateFollower(l)
	}
	return nil
}

func (a Algorithm) activateLeader(l *amoebot.Local[Memory]) error {
	if l.IsExpanded() {
		return a.settle(l)
	}
	m := l.Mem()
	if allCompleted(m.Completed) {
		if m.Distance[m.MoveDir] == 0 {
			m.MoveDir = lattice.Mod6(m.MoveDir + 5)
		}
	} else if d, ok := traceBoundary(l, m.MoveDir); ok {
		m.MoveDir = d
		m.Completed = UpdateCompleted(m.Completed, m.Distance, d)
	}
	m.Distance = UpdateDistance(m.Distance, m.MoveDir)

	dir := m.MoveDir
	if !l.HasNbrAtLabel(dir) {
		return l.Expand(dir)
	}
	if l.CanPush(dir) {
		var tx amoebot.Transaction[Memory]
		if l.HasHeadAtLabel(dir) {
			// The pushed particle keeps its tail node; its parent is now where its head was.
			nbr, _ := l.NbrAtLabel(dir)
			parent := lattice.Mod6(nbr.TailLabel() + 3)
			tx = func(mover, target Memory, _ amoebot.Relation) (Memory, Memory) {
				target.ParentDir = parent
				return mover, target
			}
		}
		return l.Push(dir, tx)
	}
	return l.RoleExchange(dir, handOver(dir))
}

// traceBoundary returns the first candidate direction with no tile on it but a tile one
// step clockwise of it.
func traceBoundary(l *amoebot.Local[Memory], moveDir int) (int, bool) {
	for _, c := range checkOrder {
		d := lattice.Mod6(moveDir + c)
		if !l.HasTileAtLabel(d) && l.HasTileAtLabel(lattice.Mod6(d+5)) {
			return d, true
		}
	}
	return 0, false
}

// handOver makes the particle at dir the Leader. Its vectors are the mover's, re-indexed
// into its own frame; the mover becomes its Follower.
func handOver(dir int) amoebot.Transaction[Memory] {
	return func(mover, target Memory, rel amoebot.Relation) (Memory, Memory) {
		target.State = Leader
		target.MoveDir = lattice.Mod6(mover.MoveDir - rel.Offset)
		target.ParentDir = -1
		target.Distance = Rotate(mover.Distance, rel.Offset)
		target.Completed = Rotate(mover.Completed, rel.Offset)

		mover = Memory{State: Follower, ParentDir: dir}
		return mover, target
	}
}

func activateIdle(l *amoebot.Local[Memory]) {
	for _, s := range []State{Leader, Follower} {
		if label := FirstLabelWithState(l, 0, s); label != -1 {
			m := l.Mem()
			m.ParentDir = label
			m.State = Follower
			return
		}
	}
}

func (a Algorithm) activateFollower(l *amoebot.Local[Memory]) error {
	if l.IsExpanded() {
		return a.settle(l)
	}
	return pushParentIfPossible(l)
}

// settle contracts an expanded particle once nothing depends on its tail.
func (a Algorithm) settle(l *amoebot.Local[Memory]) error {
	if !hasChild(l) && !HasNeighborWithState(l, Idle) {
		return l.ContractTail()
	}
	if a.PullChildren {
		return pullChildIfPossible(l)
	}
	return nil
}

// hasChild reports a Follower whose parent pointer reaches this particle: anywhere on it
// when contracted, its tail when expanded.
func hasChild(l *amoebot.Local[Memory]) bool {
	return l.HasNeighborWhere(func(p amoebot.Particle[Memory]) bool {
		if p.Mem.State != Follower || p.Mem.ParentDir < 0 {
			return false
		}
		if l.IsContracted() {
			return l.PointsAtMe(p, p.Mem.ParentDir)
		}
		return l.PointsAtMyTail(p, p.Mem.ParentDir)
	})
}

// pushParentIfPossible follows an expanded parent by taking over its tail node.
func pushParentIfPossible(l *amoebot.Local[Memory]) error {
	m := l.Mem()
	if m.ParentDir < 0 || !l.HasTailAtLabel(m.ParentDir) {
		return nil
	}
	parent, _ := l.NbrAtLabel(m.ParentDir)
	next := l.DirToLabel(lattice.Opposite(parent.GlobalTailDir))
	if err := l.Push(m.ParentDir, nil); err != nil {
		return err
	}
	l.Mem().ParentDir = next
	return nil
}

// pullChildIfPossible drags a contracted child that points at the tail into the tail node.
func pullChildIfPossible(l *amoebot.Local[Memory]) error {
	toHead := l.HeadLabelFromTail()
	for label := 0; label < lattice.NumDirs; label++ {
		if label == toHead {
			continue
		}
		child, ok := l.NbrAtPort(amoebot.Port{Anchor: lattice.Tail, Label: label})
		if !ok || child.Mem.State != Follower || child.Expanded() ||
			child.Mem.ParentDir < 0 || !l.PointsAtMyTail(child, child.Mem.ParentDir) {
			continue
		}
		parent := l.ToNeighborLabel(child, toHead)
		return l.Pull(label, func(mover, target Memory, _ amoebot.Relation) (Memory, Memory) {
			target.ParentDir = parent
			return mover, target
		})
	}
	return nil
}

// Construct builds a randomized configuration with the distinguished particle as Leader
// and every other particle Idle.
func Construct(p amoebot.Params, rng *rand.Rand) (*amoebot.System[Memory], error) {
	return amoebot.Construct(p, rng, func(i int) Memory {
		if i == 0 {
			return NewMemory(Leader)
		}
		return NewMemory(Idle)
	})
}

// Terminated reports whether every particle is Done.
func Terminated(sys *amoebot.System[Memory]) bool {
	done := true
	sys.Each(func(p *amoebot.Particle[Memory]) {
		if p.Mem.State != Done {
			done = false
		}
	})
	return done
}

// Package convexhull is the convex-hull boundary-formation algorithm: a single Leader walks
// the boundary of a tile object clockwise, accumulating how far it has travelled in each of
// the six directions, while Idle particles join a Follower chain that trails behind it.
package convexhull

import (
	"fmt"

	"amoebotsim.ai/internal/sim/amoebot"
)

type State uint8

const (
	Idle State = iota
	Leader
	Follower
	Done
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Leader:
		return "leader"
	case Follower:
		return "follower"
	case Done:
		return "done"
	default:
		return fmt.Sprintf("state(%d)", uint8(s))
	}
}

// Memory is the per-particle algorithm state. Distance and Completed are indexed by
// labels of the particle's own frame.
type Memory struct {
	State     State  `json:"state"`
	ParentDir int    `json:"parent_dir"`
	MoveDir   int    `json:"move_dir"`
	Distance  [6]int `json:"distance"`
	Completed [6]int `json:"completed"`
}

// NewMemory is the initial memory of a particle in state s.
func NewMemory(s State) Memory {
	return Memory{State: s, ParentDir: -1}
}

func inState(states ...State) amoebot.Match[Memory] {
	return func(p amoebot.Particle[Memory]) bool {
		for _, s := range states {
			if p.Mem.State == s {
				return true
			}
		}
		return false
	}
}

// HasNeighborWithState reports whether any neighbor, around head or tail, is in one of states.
func HasNeighborWithState(l *amoebot.Local[Memory], states ...State) bool {
	return l.HasNeighborWhere(inState(states...))
}

// FirstLabelWithState scans head labels from start and returns the first whose particle is
// in one of states, or -1.
func FirstLabelWithState(l *amoebot.Local[Memory], start int, states ...State) int {
	return l.FirstLabelWhere(inState(states...), start)
}

// Validate checks that m is a memory the transition function can run on.
func (m Memory) Validate() error {
	if m.State > Done {
		return fmt.Errorf("bad state %d", uint8(m.State))
	}
	if m.ParentDir < -1 || m.ParentDir >= 6 {
		return fmt.Errorf("bad parent dir %d", m.ParentDir)
	}
	if m.MoveDir < 0 || m.MoveDir >= 6 {
		return fmt.Errorf("bad move dir %d", m.MoveDir)
	}
	for i := range m.Distance {
		if m.Distance[i] < 0 {
			return fmt.Errorf("negative distance %d at label %d", m.Distance[i], i)
		}
		if m.Completed[i] != 0 && m.Completed[i] != 1 {
			return fmt.Errorf("completed flag %d at label %d", m.Completed[i], i)
		}
	}
	return nil
}

// CheckMemories validates every particle's memory and that exactly one particle is in
// Leader state, the one the system holds as its leader.
func CheckMemories(sys *amoebot.System[Memory]) error {
	var err error
	leaders := 0
	sys.Each(func(p *amoebot.Particle[Memory]) {
		if err != nil {
			return
		}
		if verr := p.Mem.Validate(); verr != nil {
			err = fmt.Errorf("particle %d: %w", p.ID, verr)
			return
		}
		if p.Mem.State != Leader {
			return
		}
		leaders++
		if p.ID != sys.Leader() {
			err = fmt.Errorf("particle %d is in leader state but the leader is %d", p.ID, sys.Leader())
		}
	})
	if err != nil {
		return err
	}
	if leaders != 1 {
		return fmt.Errorf("%d particles in leader state", leaders)
	}
	return nil
}

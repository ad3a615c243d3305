package convexhull

import (
	"fmt"

	"amoebotsim.ai/internal/sim/amoebot"
	"amoebotsim.ai/internal/sim/lattice"
)

const (
	ColorLeader   = 0xff0000
	ColorIdle     = 0x8080ff
	ColorFollower = 0x0000ff
)

func HeadMarkColor(m Memory) int {
	switch m.State {
	case Leader:
		return ColorLeader
	case Idle:
		return ColorIdle
	case Follower, Done:
		return ColorFollower
	}
	return -1
}

func TailMarkColor(m Memory) int { return HeadMarkColor(m) }

// HeadMarkDir is the local label a particle's head mark points along: the Leader's move
// direction, a Follower's parent, -1 otherwise.
func HeadMarkDir(m Memory) int {
	switch m.State {
	case Leader:
		return m.MoveDir
	case Follower:
		return m.ParentDir
	}
	return -1
}

// Heading is HeadMarkDir as a global direction.
func Heading(p amoebot.Particle[Memory]) lattice.Dir {
	label := HeadMarkDir(p.Mem)
	if label < 0 {
		return lattice.NoDir
	}
	return p.Frame().Dir(label)
}

// InspectionText is a human-readable dump of a particle.
func InspectionText(p amoebot.Particle[Memory]) string {
	return fmt.Sprintf("head: (%d, %d)\norientation: %d\nglobalTailDir: %d\nstate: %s\n",
		p.Head.X, p.Head.Y, p.Orientation, int(p.GlobalTailDir), p.Mem.State)
}

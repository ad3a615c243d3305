// Package lattice implements axial addressing on the triangular lattice.
package lattice

import "fmt"

// Dir is one of the six lattice directions, numbered counterclockwise from east.
type Dir int

const (
	East Dir = iota
	NorthEast
	NorthWest
	West
	SouthWest
	SouthEast
)

// NoDir marks an absent direction (e.g. the tail direction of a contracted particle).
const NoDir Dir = -1

// NumDirs is the lattice degree.
const NumDirs = 6

var dirVecs = [NumDirs][2]int{
	{1, 0},
	{0, 1},
	{-1, 1},
	{-1, 0},
	{0, -1},
	{1, -1},
}

func (d Dir) Valid() bool { return d >= 0 && d < NumDirs }

// Opposite returns (d+3) mod 6.
func Opposite(d Dir) Dir { return Rotate(d, 3) }

// Rotate turns d counterclockwise by k steps (k may be negative).
func Rotate(d Dir, k int) Dir { return Dir(Mod6(int(d) + k)) }

// Vec returns the axial offset of one step in direction d.
func (d Dir) Vec() (dx, dy int) {
	v := dirVecs[Mod6(int(d))]
	return v[0], v[1]
}

func (d Dir) String() string {
	switch d {
	case East:
		return "E"
	case NorthEast:
		return "NE"
	case NorthWest:
		return "NW"
	case West:
		return "W"
	case SouthWest:
		return "SW"
	case SouthEast:
		return "SE"
	}
	return "-"
}

// Mod6 is a non-negative modulo for direction arithmetic.
func Mod6(v int) int {
	v %= NumDirs
	if v < 0 {
		v += NumDirs
	}
	return v
}

// Node is a lattice position in axial coordinates.
type Node struct {
	X int `json:"x"`
	Y int `json:"y"`
}

func (n Node) NodeInDir(d Dir) Node {
	dx, dy := d.Vec()
	return Node{X: n.X + dx, Y: n.Y + dy}
}

// DirTo returns the direction from n to an adjacent node m, or NoDir.
func (n Node) DirTo(m Node) Dir {
	for d := Dir(0); d < NumDirs; d++ {
		if n.NodeInDir(d) == m {
			return d
		}
	}
	return NoDir
}

func (n Node) Adjacent(m Node) bool { return n.DirTo(m) != NoDir }

func (n Node) String() string { return fmt.Sprintf("(%d, %d)", n.X, n.Y) }

// Compare orders nodes by x, then y.
func Compare(a, b Node) int {
	switch {
	case a.X < b.X:
		return -1
	case a.X > b.X:
		return 1
	case a.Y < b.Y:
		return -1
	case a.Y > b.Y:
		return 1
	}
	return 0
}

func Less(a, b Node) bool { return Compare(a, b) < 0 }

package convexhull

import "amoebotsim.ai/internal/sim/lattice"

// Delta[m][i] is the change of the extremal offset in probe direction i after one step in
// direction m. Rows and columns are frame-relative, and the table is invariant under
// rotating both, so it holds in every particle's frame.
var Delta = [6][6]int{
	{-1, 0, 1, 1, 0, -1}, // E
	{-1, -1, 0, 1, 1, 0}, // NE
	{0, -1, -1, 0, 1, 1}, // NW
	{1, 0, -1, -1, 0, 1}, // W
	{1, 1, 0, -1, -1, 0}, // SW
	{0, 1, 1, 0, -1, -1}, // SE
}

// UpdateDistance applies one step in moveDir to the offsets, clamping at zero.
func UpdateDistance(distance [6]int, moveDir int) [6]int {
	for i := range distance {
		distance[i] = max(0, distance[i]+Delta[moveDir][i])
	}
	return distance
}

// UpdateCompleted records which probe directions reach their extreme on a step in moveDir.
// Stepping where either moveDir or its clockwise neighbor has no accumulated offset yet
// restarts the bookkeeping.
func UpdateCompleted(completed, distance [6]int, moveDir int) [6]int {
	if distance[moveDir] == 0 || distance[lattice.Mod6(moveDir+5)] == 0 {
		return [6]int{}
	}
	for i := range completed {
		if distance[i]+Delta[moveDir][i] == 0 {
			completed[i] = 1
		}
	}
	return completed
}

// Rotate re-indexes v into a frame whose label 0 is label offset of v's frame.
func Rotate(v [6]int, offset int) [6]int {
	var out [6]int
	for i := range out {
		out[i] = v[lattice.Mod6(i+offset)]
	}
	return out
}

func allCompleted(c [6]int) bool {
	sum := 0
	for _, v := range c {
		sum += v
	}
	return sum == 6
}

package convexhull

import (
	"fmt"

	"amoebotsim.ai/internal/sim/amoebot"
	"amoebotsim.ai/internal/sim/lattice"
)

// GlobalDistance returns the Leader's extremal offsets indexed by global direction.
func GlobalDistance(leader amoebot.Particle[Memory]) [6]int {
	return Rotate(leader.Mem.Distance, -leader.Orientation)
}

// HullVertices approximates the hull of the traced object by six vertices, one per
// direction, counterclockwise from East. Vertex i is reached from the Leader's head by
// walking distance[i-1] along direction i and then distance[i]-distance[i-1] along i+1.
func HullVertices(sys *amoebot.System[Memory]) ([6]lattice.Node, error) {
	var out [6]lattice.Node
	leader, ok := sys.Particle(sys.Leader())
	if !ok {
		return out, fmt.Errorf("hull vertices: %w", amoebot.ErrNoParticle)
	}
	dist := GlobalDistance(leader)
	for i := range out {
		prev := dist[lattice.Mod6(i+5)]
		ax, ay := lattice.Dir(i).Vec()
		bx, by := lattice.Rotate(lattice.Dir(i), 1).Vec()
		out[i] = lattice.Node{
			X: leader.Head.X + prev*ax + (dist[i]-prev)*bx,
			Y: leader.Head.Y + prev*ay + (dist[i]-prev)*by,
		}
	}
	return out, nil
}

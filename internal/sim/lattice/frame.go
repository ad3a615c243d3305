package lattice

// Endpoint names one node of a particle. A contracted particle has only a head.
type Endpoint uint8

const (
	Head Endpoint = iota
	Tail
)

func (e Endpoint) String() string {
	if e == Tail {
		return "tail"
	}
	return "head"
}

// Frame is a particle's local reference frame: local labels 0..5 are rotated by
// Orientation and measured from the Anchor endpoint.
type Frame struct {
	Orientation int
	Anchor      Endpoint
}

// Dir maps a local label to a global direction.
func (f Frame) Dir(label int) Dir { return Dir(Mod6(label + f.Orientation)) }

// Label maps a global direction to a local label.
func (f Frame) Label(d Dir) int { return Mod6(int(d) - f.Orientation) }

// Offset is the rotation that takes labels of f to labels of g for the same global direction:
// g.Label(f.Dir(l)) == l - f.Offset(g).
func (f Frame) Offset(g Frame) int { return Mod6(g.Orientation - f.Orientation) }

// Translate re-expresses a label of f as a label of g.
func (f Frame) Translate(label int, g Frame) int { return g.Label(f.Dir(label)) }

// Origin returns the node the labels are measured from.
func (f Frame) Origin(head, tail Node) Node {
	if f.Anchor == Tail {
		return tail
	}
	return head
}

// Node returns the node one hop from the anchor along label.
func (f Frame) Node(head, tail Node, label int) Node {
	return f.Origin(head, tail).NodeInDir(f.Dir(label))
}

// WithAnchor returns f re-anchored at e; the label/direction mapping is unchanged.
func (f Frame) WithAnchor(e Endpoint) Frame {
	f.Anchor = e
	return f
}

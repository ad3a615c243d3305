package world

import (
	"encoding/json"

	"amoebotsim.ai/internal/observerproto"
	"amoebotsim.ai/internal/sim/convexhull"
	"amoebotsim.ai/internal/sim/lattice"
)

// ObserverJoinRequest registers a read-only observer session that receives ROUND frames
// on Out. All observer state is maintained by the world loop goroutine.
type ObserverJoinRequest struct {
	SessionID string
	Out       chan []byte

	EveryRounds int
	IncludeText bool
}

// ObserverSubscribeRequest updates an existing observer session subscription settings.
type ObserverSubscribeRequest struct {
	SessionID   string
	EveryRounds int
	IncludeText bool
}

type observerClient struct {
	id  string
	out chan []byte

	every       uint64
	includeText bool
}

func clampEvery(n int) uint64 {
	switch {
	case n <= 0:
		return 1
	case n > 100000:
		return 100000
	}
	return uint64(n)
}

func (w *World) handleObserverJoin(req ObserverJoinRequest) {
	if req.SessionID == "" || req.Out == nil {
		return
	}
	// Replace existing session id if any.
	if old := w.observers[req.SessionID]; old != nil && old.out != req.Out {
		close(old.out)
	}
	c := &observerClient{
		id:          req.SessionID,
		out:         req.Out,
		every:       clampEvery(req.EveryRounds),
		includeText: req.IncludeText,
	}
	w.observers[req.SessionID] = c

	// New observers get the current frame right away, also when the world has halted.
	if b, err := json.Marshal(w.buildRoundMsg(c.includeText)); err == nil {
		sendLatest(c.out, b)
	}
}

func (w *World) handleObserverSubscribe(req ObserverSubscribeRequest) {
	c := w.observers[req.SessionID]
	if c == nil {
		return
	}
	c.every = clampEvery(req.EveryRounds)
	c.includeText = req.IncludeText
}

func (w *World) handleObserverLeave(sessionID string) {
	c := w.observers[sessionID]
	if c == nil {
		return
	}
	delete(w.observers, sessionID)
	close(c.out)
}

// stepObservers sends a frame to every observer whose cadence matches the current round,
// or to all of them when force is set.
func (w *World) stepObservers(force bool) {
	if len(w.observers) == 0 {
		return
	}
	round := w.rounds.Load()
	var frames [2][]byte
	for _, c := range w.observers {
		if !force && round%c.every != 0 {
			continue
		}
		i := 0
		if c.includeText {
			i = 1
		}
		if frames[i] == nil {
			b, err := json.Marshal(w.buildRoundMsg(c.includeText))
			if err != nil {
				continue
			}
			frames[i] = b
		}
		sendLatest(c.out, frames[i])
	}
}

func (w *World) buildRoundMsg(includeText bool) observerproto.RoundMsg {
	msg := observerproto.RoundMsg{
		Type:            "ROUND",
		ProtocolVersion: observerproto.Version,
		Round:           w.rounds.Load(),
		Movements:       w.sys.Movements(),
		Terminated:      w.HasTerminated(),
		Fault:           w.faultString(),
		LeaderID:        int(w.sys.Leader()),
	}
	ps := w.sys.Particles()
	msg.Particles = make([]observerproto.ParticleState, 0, len(ps))
	for _, p := range ps {
		st := observerproto.ParticleState{
			ID:        int(p.ID),
			Head:      protoNode(p.Head),
			Tail:      protoNode(p.Tail()),
			HeadColor: convexhull.HeadMarkColor(p.Mem),
			TailColor: convexhull.TailMarkColor(p.Mem),
			Heading:   int(convexhull.Heading(p)),
			State:     p.Mem.State.String(),
		}
		if includeText {
			st.Text = convexhull.InspectionText(p)
		}
		msg.Particles = append(msg.Particles, st)
	}
	if hull, err := convexhull.HullVertices(w.sys); err == nil {
		msg.Hull = make([]observerproto.Node, 0, len(hull))
		for _, v := range hull {
			msg.Hull = append(msg.Hull, protoNode(v))
		}
	}
	return msg
}

func protoNode(n lattice.Node) observerproto.Node {
	return observerproto.Node{X: n.X, Y: n.Y}
}

package world

import "time"

// WorldMetrics is a thread-safe read-only view of key world runtime signals.
// It is updated from the world loop goroutine and read from HTTP handlers/tests.
type WorldMetrics struct {
	Round      uint64 `json:"round"`
	Movements  uint64 `json:"movements"`
	Particles  int    `json:"particles"`
	Tiles      int    `json:"tiles"`
	Leader     int    `json:"leader"`
	Terminated bool   `json:"terminated"`
	Fault      string `json:"fault,omitempty"`
	Observers  int    `json:"observers"`

	QueueDepths QueueDepths `json:"queue_depths"`

	StepMS float64 `json:"step_ms"`
}

type QueueDepths struct {
	ObserverJoin  int `json:"observer_join"`
	ObserverLeave int `json:"observer_leave"`
	Admin         int `json:"admin"`
}

func (w *World) storeMetrics(step time.Duration) {
	w.metrics.Store(WorldMetrics{
		Round:      w.rounds.Load(),
		Movements:  w.sys.Movements(),
		Particles:  w.sys.NumParticles(),
		Tiles:      w.sys.NumTiles(),
		Leader:     int(w.sys.Leader()),
		Terminated: w.HasTerminated(),
		Fault:      w.faultString(),
		Observers:  len(w.observers),
		QueueDepths: QueueDepths{
			ObserverJoin:  len(w.observerJoin),
			ObserverLeave: len(w.observerLeave),
			Admin:         len(w.admin),
		},
		StepMS: float64(step.Microseconds()) / 1000.0,
	})
}

func (w *World) Metrics() WorldMetrics {
	if w == nil {
		return WorldMetrics{}
	}
	v := w.metrics.Load()
	if v == nil {
		return WorldMetrics{}
	}
	m, ok := v.(WorldMetrics)
	if !ok {
		return WorldMetrics{}
	}
	return m
}

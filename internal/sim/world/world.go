// Package world drives one amoebot system running the convex-hull algorithm: it owns the
// system and its scheduler randomness, issues rounds, and publishes logs, snapshots,
// metrics and observer frames around them.
package world

import (
	"errors"
	"math/rand/v2"
	"sync/atomic"

	"amoebotsim.ai/internal/persistence/snapshot"
	"amoebotsim.ai/internal/sim/amoebot"
	"amoebotsim.ai/internal/sim/convexhull"
	"amoebotsim.ai/internal/sim/lattice"
)

// ErrHalted is returned when a round is requested from a terminated or faulted world.
var ErrHalted = errors.New("world halted")

// pcgStream derives the second PCG word from the seed.
const pcgStream = 0x5851f42d4c957f2d

// World is not safe for concurrent use. While Run is active only the request methods
// (RequestSnapshot, RequestState, the observer channels) and Metrics may be used from
// other goroutines.
type World struct {
	cfg WorldConfig
	alg convexhull.Algorithm

	sys   *amoebot.System[convexhull.Memory]
	src   *rand.PCG
	rng   *rand.Rand
	tiles []lattice.Node

	rounds atomic.Uint64
	// fault is the reason the world halted abnormally: an illegal move (fatal) or, in
	// debug mode, a connectivity violation.
	fault error

	// Optional sinks (may be nil). Implemented in internal/persistence/*.
	roundLogger  RoundLogger
	snapshotSink chan<- snapshot.SnapshotV1

	observers     map[string]*observerClient
	observerJoin  chan ObserverJoinRequest
	observerSub   chan ObserverSubscribeRequest
	observerLeave chan string
	admin         chan adminSnapshotReq
	stateReq      chan stateReq
	stop          chan struct{}

	metrics atomic.Value
}

// RoundLogEntry is one line of the round log.
type RoundLogEntry struct {
	Round      uint64 `json:"round"`
	Movements  uint64 `json:"movements"`
	Leader     int    `json:"leader"`
	Terminated bool   `json:"terminated"`
	Fault      string `json:"fault,omitempty"`
	Digest     string `json:"digest"`
}

type RoundLogger interface {
	WriteRound(entry RoundLogEntry) error
}

func New(cfg WorldConfig) (*World, error) {
	cfg.applyDefaults()
	src := rand.NewPCG(cfg.Seed, cfg.Seed^pcgStream)
	rng := rand.New(src)
	sys, err := convexhull.Construct(cfg.Params(), rng)
	if err != nil {
		return nil, err
	}
	w := &World{
		cfg:           cfg,
		alg:           convexhull.Algorithm{PullChildren: cfg.PullChildren},
		observers:     map[string]*observerClient{},
		observerJoin:  make(chan ObserverJoinRequest, 16),
		observerSub:   make(chan ObserverSubscribeRequest, 64),
		observerLeave: make(chan string, 16),
		admin:         make(chan adminSnapshotReq, 8),
		stateReq:      make(chan stateReq, 8),
		stop:          make(chan struct{}),
	}
	w.install(sys, src, rng)
	w.storeMetrics(0)
	return w, nil
}

func (w *World) install(sys *amoebot.System[convexhull.Memory], src *rand.PCG, rng *rand.Rand) {
	w.sys, w.src, w.rng = sys, src, rng
	ts := sys.Tiles()
	w.tiles = make([]lattice.Node, len(ts))
	for i, t := range ts {
		w.tiles[i] = t.Node
	}
}

func (w *World) SetRoundLogger(l RoundLogger)                   { w.roundLogger = l }
func (w *World) SetSnapshotSink(ch chan<- snapshot.SnapshotV1) { w.snapshotSink = ch }

func (w *World) ObserverJoin() chan<- ObserverJoinRequest           { return w.observerJoin }
func (w *World) ObserverSubscribe() chan<- ObserverSubscribeRequest { return w.observerSub }
func (w *World) ObserverLeave() chan<- string                       { return w.observerLeave }

func (w *World) ID() string {
	if w == nil {
		return ""
	}
	return w.cfg.ID
}

func (w *World) Config() WorldConfig {
	if w == nil {
		return WorldConfig{}
	}
	return w.cfg
}

// Rounds is the number of completed rounds. Safe for concurrent use.
func (w *World) Rounds() uint64 { return w.rounds.Load() }

func (w *World) Movements() uint64 { return w.sys.Movements() }
func (w *World) NumParticles() int { return w.sys.NumParticles() }
func (w *World) NumTiles() int     { return w.sys.NumTiles() }

// Tiles lists the tile nodes in placement order. Tiles never move, so the result may be
// read from any goroutine.
func (w *World) Tiles() []lattice.Node { return w.tiles }

func (w *World) Leader() amoebot.ParticleID { return w.sys.Leader() }

// Particles returns copies of all particles in ID order.
func (w *World) Particles() []amoebot.Particle[convexhull.Memory] { return w.sys.Particles() }

// HasTerminated reports whether every particle is Done or the world has halted on a fault.
func (w *World) HasTerminated() bool {
	return w.fault != nil || convexhull.Terminated(w.sys)
}

// Fault is the reason for an abnormal halt, nil otherwise.
func (w *World) Fault() error { return w.fault }

func (w *World) HullVertices() ([6]lattice.Node, error) {
	return convexhull.HullVertices(w.sys)
}

func (w *World) faultString() string {
	if w.fault == nil {
		return ""
	}
	return w.fault.Error()
}

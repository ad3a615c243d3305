package observerproto

// Version is the observer protocol version.
const Version = "0.1"

// Client -> Server. First message on the observer WS connection, and can be re-sent to update settings.
type SubscribeMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`

	// EveryRounds thins the stream to one ROUND frame per N rounds (default 1).
	EveryRounds int `json:"every_rounds,omitempty"`
	// IncludeText adds the per-particle inspection text to every frame.
	IncludeText bool `json:"include_text,omitempty"`
}

// HTTP response for GET /admin/v1/observer/bootstrap.
type BootstrapResponse struct {
	ProtocolVersion string      `json:"protocol_version"`
	WorldID         string      `json:"world_id"`
	Round           uint64      `json:"round"`
	WorldParams     WorldParams `json:"world_params"`
	Tiles           []Node      `json:"tiles"`
}

type WorldParams struct {
	RoundRateHz     int     `json:"round_rate_hz"`
	Seed            uint64  `json:"seed"`
	ParticleCount   int     `json:"particle_count"`
	TileCount       int     `json:"tile_count"`
	HoleProbability float64 `json:"hole_probability"`
}

// Server -> Client. Sent after rounds and once on subscribe.
type RoundMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	Round           uint64 `json:"round"`
	Movements       uint64 `json:"movements"`
	Terminated      bool   `json:"terminated"`
	Fault           string `json:"fault,omitempty"`
	LeaderID        int    `json:"leader_id"`

	Particles []ParticleState `json:"particles"`
	// Hull is the current six-vertex approximation, counterclockwise from east.
	Hull []Node `json:"hull,omitempty"`
}

type Node struct {
	X int `json:"x"`
	Y int `json:"y"`
}

type ParticleState struct {
	ID   int  `json:"id"`
	Head Node `json:"head"`
	// Tail equals Head for a contracted particle.
	Tail      Node   `json:"tail"`
	HeadColor int    `json:"head_color"`
	TailColor int    `json:"tail_color"`
	Heading   int    `json:"heading"`
	State     string `json:"state"`
	Text      string `json:"text,omitempty"`
}

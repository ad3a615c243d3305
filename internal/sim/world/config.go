package world

import "amoebotsim.ai/internal/sim/amoebot"

type WorldConfig struct {
	ID   string
	Seed uint64

	// Construction parameters of the initial configuration.
	ParticleCount   int
	TileCount       int
	HoleProbability float64

	// RoundRateHz paces Run; 0 runs rounds back to back.
	RoundRateHz         int
	SnapshotEveryRounds int

	// DebugConnectivity checks connectivity after every round and halts the world on a
	// violation.
	DebugConnectivity bool
	PullChildren      bool
}

func (c *WorldConfig) applyDefaults() {
	if c.ID == "" {
		c.ID = "hull_1"
	}
	if c.RoundRateHz < 0 {
		c.RoundRateHz = 0
	}
	if c.SnapshotEveryRounds < 0 {
		c.SnapshotEveryRounds = 0
	}
}

func (c WorldConfig) Params() amoebot.Params {
	return amoebot.Params{
		ParticleCount:   c.ParticleCount,
		TileCount:       c.TileCount,
		HoleProbability: c.HoleProbability,
	}
}

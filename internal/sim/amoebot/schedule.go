package amoebot

import (
	"fmt"
	"math/rand/v2"

	"amoebotsim.ai/internal/sim/lattice"
)

// Activation is a particle's local transition function.
type Activation[M any] func(l *Local[M]) error

// Round activates every particle exactly once in a uniformly random order.
// The first failing activation aborts the round.
func (s *System[M]) Round(rng *rand.Rand, act Activation[M]) error {
	order := rng.Perm(len(s.particles))
	for _, i := range order {
		if err := act(&Local[M]{sys: s, p: s.particles[i]}); err != nil {
			return fmt.Errorf("activate particle %d: %w", i, err)
		}
	}
	return nil
}

// ActivateAt runs the transition function of the particle on n only.
func (s *System[M]) ActivateAt(n lattice.Node, act Activation[M]) error {
	o := s.cells[n]
	if o.Kind != ParticleOccupant {
		return fmt.Errorf("activate at %v: %w", n, ErrNoParticle)
	}
	if err := act(&Local[M]{sys: s, p: s.particles[o.Particle]}); err != nil {
		return fmt.Errorf("activate particle %d: %w", o.Particle, err)
	}
	return nil
}

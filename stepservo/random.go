package stepservo

import "math/rand/v2"

// RandSource draws the targets for MoveToRandom.
type RandSource interface {
	// IntRange returns a uniformly drawn integer in [low, high].
	IntRange(low, high int) int
	// Seed resets the source.
	Seed(seed uint64)
}

type pcgSource struct {
	pcg *rand.PCG
	rnd *rand.Rand
}

// NewRandSource returns a RandSource backed by a PCG generator. The same seed always yields
// the same sequence.
func NewRandSource(seed uint64) RandSource {
	pcg := rand.NewPCG(seed, seed)
	return &pcgSource{pcg: pcg, rnd: rand.New(pcg)}
}

func (s *pcgSource) IntRange(low, high int) int {
	if high <= low {
		return low
	}
	return low + s.rnd.IntN(high-low+1)
}

func (s *pcgSource) Seed(seed uint64) {
	s.pcg.Seed(seed, seed)
}

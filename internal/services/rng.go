package services

import "math/rand/v2"

// RandomSource abstracts the randomness the engine consumes so tests can
// run against a seeded stream.
type RandomSource interface {
	IntN(n int) int
	Perm(n int) []int
}

type defaultRNG struct{}

func (defaultRNG) IntN(n int) int { return rand.IntN(n) }
func (defaultRNG) Perm(n int) []int { return rand.Perm(n) }

func DefaultRNG() RandomSource { return defaultRNG{} }

// NewSeededRNG returns a replicable source for tests.
func NewSeededRNG(seed uint64) RandomSource {
	return &seededRNG{r: rand.New(rand.NewPCG(seed, 0))}
}

type seededRNG struct{ r *rand.Rand }

func (s *seededRNG) IntN(n int) int { return s.r.IntN(n) }
func (s *seededRNG) Perm(n int) []int { return s.r.Perm(n) }

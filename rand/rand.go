package rand

import (
	mathrand "math/rand"

	"github.com/pkg/errors"
	"github.com/seehuhn/mt19937"
)

// A Generator is a seedable Mersenne twister handle. A sampling chain owns
// exactly one Generator and every random draw it makes (momentum, tree
// direction, candidate selection) goes through it in program order, so a
// chain is reproducible given its seed.
//
// A Generator is not safe for concurrent use.
type Generator struct {
	mt  *mt19937.MT19937
	rnd *mathrand.Rand // shares mt, only used for NormFloat64
}

func newGenerator(mt *mt19937.MT19937) *Generator {
	return &Generator{
		mt:  mt,
		rnd: mathrand.New(mt),
	}
}

// NewGenerator creates a PRNG based on the given seed
func NewGenerator(seed int64) (*Generator, error) {
	mt := mt19937.New()
	mt.Seed(seed)
	return newGenerator(mt), nil
}

// NewGeneratorSlice creates a PRNG seeded from a key array, which is the
// canonical MT19937-64 initialization.
func NewGeneratorSlice(key []uint64) (*Generator, error) {
	if len(key) < 1 {
		return nil, errors.New("At least one value is required to seed from a slice")
	}
	mt := mt19937.New()
	mt.SeedFromSlice(key)
	return newGenerator(mt), nil
}

// Int63 provides the same interface as Go's math/rand
func (g *Generator) Int63() int64 {
	return g.mt.Int63()
}

// Int63n is a copy of the current Go code
func (g *Generator) Int63n(n int64) int64 {
	if n <= 0 {
		panic("invalid argument to Int63n")
	}

	if n&(n-1) == 0 { // n is power of two, can mask
		return g.Int63() & (n - 1)
	}

	max := int64((1 << 63) - 1 - (1<<63)%uint64(n))
	v := g.Int63()
	for v > max {
		v = g.Int63()
	}

	return v % n
}

// Float64 uses the commented, simpler implmentation since we don't have the
// same support requirements for users
func (g *Generator) Float64() float64 {
	// See the Go lang comments for Rand Float64 implementation for details
	return float64(g.Int63n(1<<53)) / (1 << 53)
}

// NormFloat64 returns a standard normal deviate.
func (g *Generator) NormFloat64() float64 {
	return g.rnd.NormFloat64()
}

// Direction returns -1 or +1 with equal probability.
func (g *Generator) Direction() int {
	if g.Int63()&1 == 0 {
		return -1
	}
	return 1
}

// Bernoulli returns true with probability p. Values of p outside [0, 1] are
// clamped.
func (g *Generator) Bernoulli(p float64) bool {
	if p <= 0 {
		return false
	}
	if p >= 1 {
		return true
	}
	return g.Float64() < p
}

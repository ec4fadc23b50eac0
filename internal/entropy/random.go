// Package entropy provides the simulation's uniform random source.
// Seeded sources make runs reproducible; seed 0 draws a seed from crypto/rand.
package entropy

import (
	"crypto/rand"
	"encoding/binary"
	mrand "math/rand"
)

// Source yields uniform floats in [0,1). It satisfies world.Random.
type Source struct {
	seed int64
	rng  *mrand.Rand
}

// NewSource creates a source with the given seed.
func NewSource(seed int64) *Source {
	if seed == 0 {
		seed = int64(cryptoRandUint64() >> 1)
	}
	return &Source{seed: seed, rng: mrand.New(mrand.NewSource(seed))}
}

// Seed returns the seed the source was created with.
func (s *Source) Seed() int64 { return s.seed }

// Float64 returns a random float64 in [0, 1).
func (s *Source) Float64() float64 {
	return s.rng.Float64()
}

// Intn returns a random int in [0, n).
func (s *Source) Intn(n int) int {
	if n <= 0 {
		return 0
	}
	return s.rng.Intn(n)
}

// Range returns a random float in [lo, hi).
func (s *Source) Range(lo, hi float64) float64 {
	return lo + s.rng.Float64()*(hi-lo)
}

// Scripted replays a fixed sequence of values, cycling when exhausted.
// Tests use it to force specific draws.
type Scripted struct {
	Values []float64
	i      int
}

// Float64 returns the next scripted value.
func (s *Scripted) Float64() float64 {
	if len(s.Values) == 0 {
		return 0.5
	}
	v := s.Values[s.i%len(s.Values)]
	s.i++
	return v
}

func cryptoRandUint64() uint64 {
	var buf [8]byte
	if _, err := rand.Read(buf[:]); err != nil {
		// This should never happen but fall back to a fixed seed.
		return 42
	}
	return binary.LittleEndian.Uint64(buf[:])
}

// CryptoFloat returns a random float using crypto/rand.
func CryptoFloat() float64 {
	// Use only 53 bits for a uniform float64 in [0, 1).
	n := cryptoRandUint64() >> 11
	return float64(n) / float64(1<<53)
}

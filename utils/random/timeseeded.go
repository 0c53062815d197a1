package random

import (
	"math/rand"
	"sync"
	"time"
)

// Source is a time-seeded pseudo-random byte source safe for concurrent
// use. Output is not reproducible between runs.
type Source struct {
	mux sync.Mutex
	rng *rand.Rand
}

// NewTimeSeeded creates *Source seeded with current time
func NewTimeSeeded() *Source {
	return &Source{
		rng: rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// Read fills b with random bytes. It always returns len(b), nil.
func (s *Source) Read(b []byte) (int, error) {
	s.mux.Lock()
	defer s.mux.Unlock()
	return s.rng.Read(b)
}

// Intn returns a random int in [0, n).
func (s *Source) Intn(n int) int {
	s.mux.Lock()
	defer s.mux.Unlock()
	return s.rng.Intn(n)
}

var defaultSource = NewTimeSeeded()

// Default returns the process-wide source.
func Default() *Source {
	return defaultSource
}

package monitor

import (
	"math/rand/v2"
	"sync"
	"time"
)

// Rand is the random source behind every probabilistic rule. Engines own their
// source; there is no process-global generator.
type Rand interface {
	Float64() float64
	IntN(n int) int
}

// NewRand returns a seeded source when seed is non-nil, otherwise one seeded
// from the clock.
func NewRand(seed *uint64) Rand {
	var s uint64
	if seed != nil {
		s = *seed
	} else {
		s = uint64(time.Now().UnixNano())
	}
	return &lockedRand{r: rand.New(rand.NewPCG(s, s^0x9e3779b97f4a7c15))}
}

// lockedRand lets the status API and the scan loop share one source.
type lockedRand struct {
	mu sync.Mutex
	r  *rand.Rand
}

func (l *lockedRand) Float64() float64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.r.Float64()
}

func (l *lockedRand) IntN(n int) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.r.IntN(n)
}

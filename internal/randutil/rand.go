// Package randutil centralises how the bot seeds and shares random sources.
package randutil

import (
	rand "math/rand/v2"
	"sync"
	"time"
)

const goldenRatio64 = 0x9e3779b97f4a7c15

// New returns a *rand.Rand seeded deterministically from seed.
func New(seed int64) *rand.Rand {
	u := uint64(seed)
	return rand.New(rand.NewPCG(mix(u), mix(u+goldenRatio64)))
}

// Seed returns *fixed when set and a time-derived seed otherwise.
func Seed(fixed *int64) int64 {
	if fixed != nil {
		return *fixed
	}
	return time.Now().UnixNano()
}

func mix(x uint64) uint64 {
	x ^= x >> 30
	x *= 0xbf58476d1ce4e5b9
	x ^= x >> 27
	x *= 0x94d049bb133111eb
	x ^= x >> 31
	return x
}

// Locked serialises access to a *rand.Rand shared between goroutines.
type Locked struct {
	mu  sync.Mutex
	rng *rand.Rand
}

// NewLocked wraps rng.
func NewLocked(rng *rand.Rand) *Locked {
	return &Locked{rng: rng}
}

// With executes fn with exclusive access to the wrapped source.
func (l *Locked) With(fn func(*rand.Rand)) {
	l.mu.Lock()
	defer l.mu.Unlock()
	fn(l.rng)
}

// Float64 returns a value in [0.0, 1.0).
func (l *Locked) Float64() float64 {
	var f float64
	l.With(func(r *rand.Rand) { f = r.Float64() })
	return f
}

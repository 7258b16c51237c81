package utils

import (
	"fmt"
	"math/rand"
	"sync"
	"time"
)

// IntGenerator draws an integer from [low, high], both bounds inclusive.
type IntGenerator interface {
	NextInt(low, high int) int
}

// Random is a uniform IntGenerator safe for concurrent use.
type Random struct {
	mu  sync.Mutex
	rng *rand.Rand
}

// NewRandom creates a generator; a zero seed seeds from the clock.
func NewRandom(seed int64) *Random {
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	return &Random{rng: rand.New(rand.NewSource(seed))}
}

func (r *Random) NextInt(low, high int) int {
	if high < low {
		panic(fmt.Sprintf("utils: empty range [%d, %d]", low, high))
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return low + r.rng.Intn(high-low+1)
}

// Fixed always returns the same value, ignoring the range.
type Fixed int

func (f Fixed) NextInt(low, high int) int { return int(f) }

// Sequence replays values in order and then repeats the last one.
type Sequence struct {
	mu     sync.Mutex
	values []int
	next   int
}

func NewSequence(values ...int) *Sequence {
	return &Sequence{values: values}
}

func (s *Sequence) NextInt(low, high int) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.values) == 0 {
		return low
	}
	v := s.values[s.next]
	if s.next < len(s.values)-1 {
		s.next++
	}
	return v
}

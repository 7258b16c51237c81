package clinic

import (
	"context"
	"fmt"
	"sync"
)

// slot is a guarded cell holding at most one patient id.
type slot struct {
	name     string
	mu       sync.Mutex
	patient  int
	occupied bool
}

func newSlot(name string) *slot {
	return &slot{name: name, patient: -1}
}

// Occupy stores a patient id; an occupied slot is a protocol violation.
func (s *slot) Occupy(patient int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.occupied {
		return fmt.Errorf("%w: %s holds patient %d, cannot take patient %d", ErrProtocol, s.name, s.patient, patient)
	}
	s.patient, s.occupied = patient, true
	return nil
}

// Peek returns the current patient without clearing the slot.
func (s *slot) Peek() (int, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.patient, s.occupied
}

// Take returns the current patient and clears the slot.
func (s *slot) Take() (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.occupied {
		return -1, fmt.Errorf("%w: %s is empty", ErrProtocol, s.name)
	}
	patient := s.patient
	s.patient, s.occupied = -1, false
	return patient, nil
}

// nurseQueue is a FIFO of patient ids; the lock covers push/pop only.
type nurseQueue struct {
	mu       sync.Mutex
	patients []int
}

func (q *nurseQueue) push(patient int) {
	q.mu.Lock()
	q.patients = append(q.patients, patient)
	q.mu.Unlock()
}

func (q *nurseQueue) pop() (int, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.patients) == 0 {
		return -1, false
	}
	patient := q.patients[0]
	q.patients = q.patients[1:]
	return patient, true
}

// stageCounter is a guarded monotonic counter bounded by target. Its context
// is cancelled once the target is reached, releasing every loop still
// waiting for work in that stage.
type stageCounter struct {
	name   string
	mu     sync.Mutex
	value  int
	target int
	ctx    context.Context
	cancel context.CancelFunc
}

func newStageCounter(parent context.Context, name string, target int) *stageCounter {
	ctx, cancel := context.WithCancel(parent)
	c := &stageCounter{name: name, target: target, ctx: ctx, cancel: cancel}
	if target == 0 {
		cancel()
	}
	return c
}

func (c *stageCounter) Increment() (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.value >= c.target {
		return c.value, fmt.Errorf("%w: %s already at %d", ErrProtocol, c.name, c.target)
	}
	c.value++
	if c.value == c.target {
		c.cancel()
	}
	return c.value, nil
}

func (c *stageCounter) Value() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.value
}

// Done reports whether the counter reached its target.
func (c *stageCounter) Done() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.value >= c.target
}

// Context is done when the target is reached or the run is aborted.
func (c *stageCounter) Context() context.Context { return c.ctx }

// finished tells a normal stage exit from an abort after a wait was interrupted.
func (c *stageCounter) finished(err error) (bool, error) {
	if c.Done() {
		return true, nil
	}
	return false, err
}

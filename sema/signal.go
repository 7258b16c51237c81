// File: sema/signal.go

// Package sema provides counting and binary signals: a non-negative count with
// Post (increment, wake one waiter) and Wait (block until positive, then decrement).
//
// Every signal carries a name so that a failed operation can be reported by
// the resource it concerns. A signal also carries a limit: posting past it is
// treated as a release the protocol never acquired and fails with ErrOverflow.
package sema

import (
	"context"
	"errors"
	"fmt"
)

var (
	// ErrOverflow is returned by Post when the count is already at its limit.
	ErrOverflow = errors.New("count would exceed limit")
	// ErrInvalid is returned when a signal cannot be initialized with the given values.
	ErrInvalid = errors.New("invalid initial value or limit")
)

// Op names the operation that failed.
type Op string

const (
	OpInit Op = "init"
	OpWait Op = "wait"
	OpPost Op = "post"
)

// Error reports a failed signal operation.
type Error struct {
	Signal string
	Op     Op
	Err    error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s on signal %q: %v", e.Op, e.Signal, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Signal is a counting signal backed by a buffered channel of tokens.
type Signal struct {
	name   string
	tokens chan struct{}
}

// New creates a counting signal holding initial tokens, never more than limit.
func New(name string, initial, limit int) (*Signal, error) {
	if limit < 1 || initial < 0 || initial > limit {
		return nil, &Error{Signal: name, Op: OpInit, Err: fmt.Errorf("%w: initial=%d limit=%d", ErrInvalid, initial, limit)}
	}
	s := &Signal{
		name:   name,
		tokens: make(chan struct{}, limit),
	}
	for i := 0; i < initial; i++ {
		s.tokens <- struct{}{}
	}
	return s, nil
}

// NewBinary creates a signal whose count is either 0 or 1.
func NewBinary(name string, initial int) (*Signal, error) {
	return New(name, initial, 1)
}

// Name returns the name the signal was created with.
func (s *Signal) Name() string { return s.name }

// Value returns the current count. It is a snapshot and may be stale immediately.
func (s *Signal) Value() int { return len(s.tokens) }

// Limit returns the maximum count.
func (s *Signal) Limit() int { return cap(s.tokens) }

// Wait blocks until the count is positive and decrements it, or until ctx is done.
// An available token is always taken in preference to a done context.
func (s *Signal) Wait(ctx context.Context) error {
	select {
	case <-s.tokens:
		return nil
	default:
	}
	select {
	case <-s.tokens:
		return nil
	case <-ctx.Done():
		return &Error{Signal: s.name, Op: OpWait, Err: ctx.Err()}
	}
}

// Post increments the count, waking one waiter if any.
func (s *Signal) Post() error {
	select {
	case s.tokens <- struct{}{}:
		return nil
	default:
		return &Error{Signal: s.name, Op: OpPost, Err: ErrOverflow}
	}
}

// Array is a fixed-size collection of independent signals, one per index.
type Array []*Signal

// NewArray creates n signals named "name[i]", all with the same initial value and limit.
func NewArray(name string, n, initial, limit int) (Array, error) {
	if n < 0 {
		return nil, &Error{Signal: name, Op: OpInit, Err: fmt.Errorf("%w: size=%d", ErrInvalid, n)}
	}
	signals := make(Array, n)
	for i := range signals {
		s, err := New(fmt.Sprintf("%s[%d]", name, i), initial, limit)
		if err != nil {
			return nil, err
		}
		signals[i] = s
	}
	return signals, nil
}

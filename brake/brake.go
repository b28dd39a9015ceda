// Package brake implements a bounded failure-rate brake: it retains the
// most recent N boolean health samples in a fixed-capacity window and
// signals a trip once the number of failures in that window reaches a
// configured threshold.
//
// The brake only decides whether to trip. It never performs the health
// check that produces samples and never terminates anything; both are the
// caller's responsibility. The decision is recomputed from the window on
// every call, so there is no sticky tripped state: once failures age out
// of the window the brake reads as healthy again.
package brake

import (
	"errors"
	"fmt"
)

// ErrInvalidConfiguration is returned by constructors when the requested
// window capacity or threshold cannot form a usable brake.
var ErrInvalidConfiguration = errors.New("invalid configuration")

// Brake couples a sample window with an immutable failure threshold.
//
// Like Window, a Brake is not safe for concurrent use; one lock must guard
// AddSample and ShouldTrip together when shared.
type Brake struct {
	window    *Window
	threshold int
}

// New creates a Brake over a window of windowSize samples that trips once
// threshold failures are present. Returns ErrInvalidConfiguration when
// windowSize is less than 1 or threshold is negative.
//
// A threshold of zero is legal and trips immediately, even before any
// sample is recorded. A threshold greater than windowSize is also legal
// and means the brake can never trip.
func New(windowSize, threshold int) (*Brake, error) {
	if threshold < 0 {
		return nil, fmt.Errorf("%w: threshold must be non-negative, got %d", ErrInvalidConfiguration, threshold)
	}
	w, err := NewWindow(windowSize)
	if err != nil {
		return nil, err
	}
	return &Brake{window: w, threshold: threshold}, nil
}

// AddSample records one health observation: true for success, false for
// failure. It always succeeds.
func (b *Brake) AddSample(ok bool) {
	b.window.Insert(ok)
}

// ShouldTrip reports whether the failure count in the window has reached
// the threshold. The comparison is inclusive: a threshold of n trips once
// n or more failures are present. Calling it does not mutate state, so
// repeated calls without intervening AddSample return the same result.
func (b *Brake) ShouldTrip() bool {
	return b.window.FailureCount() >= b.threshold
}

// FailureCount returns the number of failures currently in the window.
func (b *Brake) FailureCount() int {
	return b.window.FailureCount()
}

// SuccessCount returns the number of successes currently in the window.
func (b *Brake) SuccessCount() int {
	return b.window.SuccessCount()
}

// SampleCount returns the number of samples currently in the window.
func (b *Brake) SampleCount() int {
	return b.window.Len()
}

// WindowSize returns the window capacity fixed at construction.
func (b *Brake) WindowSize() int {
	return b.window.Cap()
}

// Threshold returns the failure threshold fixed at construction.
func (b *Brake) Threshold() int {
	return b.threshold
}

package brake

import "fmt"

// Window is a fixed-capacity circular buffer of boolean health samples.
// Once the window is full, each insertion evicts the oldest sample. A sample
// is true for success and false for failure.
//
// Window is not safe for concurrent use. Callers sharing an instance across
// goroutines must hold a single lock around Insert and the read methods
// together; the two are not composed atomically here.
type Window struct {
	samples []bool
	head    int // next write position, always in [0, cap)
	filled  int // samples recorded so far, saturates at cap

	// Running failure tally, updated on each insertion so FailureCount is
	// O(1) instead of rescanning the buffer. Slots that have never been
	// written contribute nothing.
	failures int
}

// NewWindow creates an empty window holding at most capacity samples.
// Returns ErrInvalidConfiguration when capacity is less than 1: a window
// that can never hold a sample makes the trip policy meaningless.
func NewWindow(capacity int) (*Window, error) {
	if capacity < 1 {
		return nil, fmt.Errorf("%w: window capacity must be at least 1, got %d", ErrInvalidConfiguration, capacity)
	}
	return &Window{samples: make([]bool, capacity)}, nil
}

// Insert records one sample at the write cursor, evicting the oldest sample
// when the window is full. It always succeeds.
func (w *Window) Insert(ok bool) {
	if w.filled == len(w.samples) {
		// Full: the slot under the cursor holds the oldest sample.
		// Remove its contribution before overwriting.
		if !w.samples[w.head] {
			w.failures--
		}
	} else {
		w.filled++
	}

	w.samples[w.head] = ok
	if !ok {
		w.failures++
	}
	w.head = (w.head + 1) % len(w.samples)
}

// FailureCount returns the number of failure samples currently in the
// window. Before the window fills, only samples actually inserted count;
// default slot values are never mistaken for outcomes.
func (w *Window) FailureCount() int {
	return w.failures
}

// SuccessCount returns the number of success samples currently in the window.
func (w *Window) SuccessCount() int {
	return w.filled - w.failures
}

// Len returns the number of samples currently held, at most Cap.
func (w *Window) Len() int {
	return w.filled
}

// Cap returns the capacity fixed at construction.
func (w *Window) Cap() int {
	return len(w.samples)
}

// Samples returns a copy of the recorded samples in insertion order,
// oldest first.
func (w *Window) Samples() []bool {
	n := len(w.samples)
	out := make([]bool, 0, w.filled)
	for i := 0; i < w.filled; i++ {
		out = append(out, w.samples[((w.head-w.filled+i)%n+n)%n])
	}
	return out
}

package brake

import (
	"errors"
	"math/rand"
	"testing"
)

func TestNewWindow_RejectsZeroCapacity(t *testing.T) {
	for _, capacity := range []int{0, -1, -100} {
		_, err := NewWindow(capacity)
		if err == nil {
			t.Fatalf("expected error for capacity %d, got nil", capacity)
		}
		if !errors.Is(err, ErrInvalidConfiguration) {
			t.Errorf("capacity %d: expected ErrInvalidConfiguration, got %v", capacity, err)
		}
	}
}

func TestWindow_PartialFillCountsOnlyInsertedSamples(t *testing.T) {
	w, err := NewWindow(10)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if got := w.FailureCount(); got != 0 {
		t.Fatalf("empty window: expected 0 failures, got %d", got)
	}
	if got := w.Len(); got != 0 {
		t.Fatalf("empty window: expected length 0, got %d", got)
	}

	// Insert three samples into a window of ten. Unwritten slots must not
	// leak into the counts as phantom successes or failures.
	w.Insert(true)
	w.Insert(false)
	w.Insert(false)

	if got := w.FailureCount(); got != 2 {
		t.Errorf("expected 2 failures after partial fill, got %d", got)
	}
	if got := w.SuccessCount(); got != 1 {
		t.Errorf("expected 1 success after partial fill, got %d", got)
	}
	if got := w.Len(); got != 3 {
		t.Errorf("expected length 3, got %d", got)
	}
	if got := w.Cap(); got != 10 {
		t.Errorf("expected capacity 10, got %d", got)
	}
}

func TestWindow_OverwriteOldest(t *testing.T) {
	w, err := NewWindow(3)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// Fill: [F, F, T].
	w.Insert(false)
	w.Insert(false)
	w.Insert(true)
	if got := w.FailureCount(); got != 2 {
		t.Fatalf("expected 2 failures in full window, got %d", got)
	}

	// Next insertion evicts the oldest F. Window becomes [F, T, T].
	w.Insert(true)
	if got := w.FailureCount(); got != 1 {
		t.Errorf("expected 1 failure after eviction, got %d", got)
	}
	if got := w.Len(); got != 3 {
		t.Errorf("expected length to stay at capacity, got %d", got)
	}

	want := []bool{false, true, true}
	got := w.Samples()
	if len(got) != len(want) {
		t.Fatalf("expected %d samples, got %d", len(want), len(got))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("sample %d: expected %v, got %v", i, want[i], got[i])
		}
	}
}

func TestWindow_LogicalWindowIsLastCapacityInsertions(t *testing.T) {
	w, err := NewWindow(4)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// Insert far more samples than the capacity; the window must always
	// hold exactly the last four, in insertion order.
	seq := []bool{true, false, true, true, false, false, true, false, true, true, false}
	for _, s := range seq {
		w.Insert(s)
	}

	want := seq[len(seq)-4:]
	got := w.Samples()
	if len(got) != 4 {
		t.Fatalf("expected 4 samples, got %d", len(got))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("sample %d: expected %v, got %v", i, want[i], got[i])
		}
	}
}

func TestWindow_SingleSlot(t *testing.T) {
	w, err := NewWindow(1)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	w.Insert(false)
	if got := w.FailureCount(); got != 1 {
		t.Errorf("expected 1 failure, got %d", got)
	}

	// Every further insertion overwrites the single slot.
	w.Insert(true)
	if got := w.FailureCount(); got != 0 {
		t.Errorf("expected 0 failures after overwrite, got %d", got)
	}
	w.Insert(false)
	if got := w.FailureCount(); got != 1 {
		t.Errorf("expected 1 failure after overwrite, got %d", got)
	}
	if got := w.Len(); got != 1 {
		t.Errorf("expected length 1, got %d", got)
	}
}

// TestWindow_RunningTallyMatchesRescan verifies the incrementally maintained
// failure count against a full rescan of the logical window over random
// insertion sequences.
func TestWindow_RunningTallyMatchesRescan(t *testing.T) {
	rng := rand.New(rand.NewSource(1))

	for _, capacity := range []int{1, 2, 3, 7, 25, 64} {
		w, err := NewWindow(capacity)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		for i := 0; i < 500; i++ {
			w.Insert(rng.Intn(2) == 0)

			rescan := 0
			for _, s := range w.Samples() {
				if !s {
					rescan++
				}
			}
			if got := w.FailureCount(); got != rescan {
				t.Fatalf("capacity %d, insertion %d: tally %d != rescan %d", capacity, i, got, rescan)
			}
			if got := w.SuccessCount(); got != w.Len()-rescan {
				t.Fatalf("capacity %d, insertion %d: successes %d != %d", capacity, i, got, w.Len()-rescan)
			}
		}
	}
}

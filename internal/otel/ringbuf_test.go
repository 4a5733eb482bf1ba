package otel

import (
	"sync"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func counts(events []Event) []int {
	out := make([]int, len(events))
	for i, e := range events {
		out[i] = e.Count
	}
	return out
}

func TestRingLast(t *testing.T) {
	tests := []struct {
		name   string
		size   int
		pushed int
		n      int
		want   []int
	}{
		{"partial", 8, 5, 3, []int{2, 3, 4}},
		{"more than buffered", 8, 2, 100, []int{0, 1}},
		{"wrapped", 4, 6, 2, []int{4, 5}},
		{"wrapped all", 4, 6, 4, []int{2, 3, 4, 5}},
		{"zero", 8, 3, 0, []int{}},
		{"negative", 8, 3, -1, []int{}},
		{"empty", 8, 0, 3, []int{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := NewRingBuffer(tt.size)
			for i := 0; i < tt.pushed; i++ {
				r.Push(Event{Kind: KindViewEnter, Count: i})
			}
			if diff := cmp.Diff(tt.want, counts(r.Last(tt.n))); diff != "" {
				t.Errorf("Last(%d) mismatch (-want +got):\n%s", tt.n, diff)
			}
		})
	}
}

func TestRingSnapshotAfterWrap(t *testing.T) {
	r := NewRingBuffer(4)
	for i := 0; i < 9; i++ {
		r.Push(Event{Kind: KindFetchStart, Count: i})
	}
	if diff := cmp.Diff([]int{5, 6, 7, 8}, counts(r.Snapshot())); diff != "" {
		t.Errorf("Snapshot mismatch (-want +got):\n%s", diff)
	}
	if r.Len() != 4 || r.Cap() != 4 {
		t.Errorf("Len/Cap = %d/%d, want 4/4", r.Len(), r.Cap())
	}
}

func TestRingStats(t *testing.T) {
	r := NewRingBuffer(16)
	for _, k := range []EventKind{KindViewReport, KindViewReport, KindViewDiscard, KindFetchError} {
		r.Push(Event{Kind: k})
	}
	want := map[EventKind]int{KindViewReport: 2, KindViewDiscard: 1, KindFetchError: 1}
	if diff := cmp.Diff(want, r.Stats()); diff != "" {
		t.Errorf("Stats mismatch (-want +got):\n%s", diff)
	}
}

func TestRingCopiesExtra(t *testing.T) {
	r := NewRingBuffer(4)
	extra := map[string]any{"key": "original"}
	r.Push(Event{Kind: KindStartup, Extra: extra})
	extra["key"] = "mutated"

	if got := r.Last(1)[0].Extra["key"]; got != "original" {
		t.Errorf("extra was aliased: got %v", got)
	}
}

func TestRingDefaultSize(t *testing.T) {
	if got := NewRingBuffer(0).Cap(); got != DefaultRingSize {
		t.Errorf("Cap = %d, want %d", got, DefaultRingSize)
	}
}

func TestRingConcurrentAccess(t *testing.T) {
	r := NewRingBuffer(64)
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				r.Push(Event{Kind: KindViewEnter})
			}
		}()
		go func() {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				_ = r.Last(10)
				_ = r.Stats()
			}
		}()
	}
	wg.Wait()
	if r.Len() != 64 {
		t.Errorf("Len = %d, want 64", r.Len())
	}
}

func TestRingFedByLogger(t *testing.T) {
	r := NewRingBuffer(16)
	l := NewNullLogger()
	l.SetRingBuffer(r)

	l.View("c1", 700_000_000, "")
	l.Info(KindShutdown, "main", "bye")
	l.Close()

	got := r.Last(2)
	if len(got) != 2 || got[0].Kind != KindViewReport || got[1].Kind != KindShutdown {
		t.Fatalf("ring contents = %+v", got)
	}
	if got[0].Dur != 700_000_000 {
		t.Errorf("Dur not preserved: %v", got[0].Dur)
	}
}

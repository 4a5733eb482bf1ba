package pager

import (
	"errors"
	"testing"

	"github.com/abelbrown/thinktok/internal/api"
	"github.com/google/go-cmp/cmp"
)

func items(ids ...string) []api.FeedItem {
	out := make([]api.FeedItem, len(ids))
	for i, id := range ids {
		out[i] = api.FeedItem{ContentID: id, Title: "title " + id}
	}
	return out
}

func ids(c *Controller) []string {
	var out []string
	for _, it := range c.Items() {
		out = append(out, it.ContentID)
	}
	return out
}

func TestSentinelIndex(t *testing.T) {
	tests := []struct {
		total, threshold, want int
	}{
		{0, 3, 0},
		{1, 3, 1},
		{3, 3, 3},
		{4, 3, 0},
		{5, 3, 1},
		{10, 3, 6},
		{10, 0, 9},
	}
	for _, tt := range tests {
		if got := SentinelIndex(tt.total, tt.threshold); got != tt.want {
			t.Errorf("SentinelIndex(%d, %d) = %d, want %d", tt.total, tt.threshold, got, tt.want)
		}
	}
}

func TestInitialBatchAndLoadMore(t *testing.T) {
	c := New(3)
	c.Reset(items("A", "B", "C", "D", "E"))

	if got := c.State(); got != (State{Sentinel: 1}) {
		t.Fatalf("state after reset = %+v", got)
	}
	if c.SentinelVisible(0) {
		t.Error("sentinel visible at cursor 0")
	}
	if !c.SentinelVisible(1) {
		t.Fatal("sentinel not visible at cursor 1")
	}

	if !c.Begin() {
		t.Fatal("Begin returned false on idle controller")
	}
	if c.Begin() {
		t.Fatal("second Begin while loading should be refused")
	}

	if got := c.Finish(items("F", "G", "H", "I", "J"), nil); got != OutcomeAppended {
		t.Fatalf("Finish = %v, want appended", got)
	}
	if diff := cmp.Diff([]string{"A", "B", "C", "D", "E", "F", "G", "H", "I", "J"}, ids(c)); diff != "" {
		t.Errorf("items mismatch (-want +got):\n%s", diff)
	}
	if got := c.State(); got != (State{Sentinel: 6}) {
		t.Errorf("state after append = %+v", got)
	}
}

func TestEmptyPageExhausts(t *testing.T) {
	c := New(3)
	c.Reset(items("A", "B"))
	if got := c.State().Sentinel; got != 2 {
		t.Fatalf("sentinel = %d, want 2", got)
	}

	if !c.ShouldFetch(2) {
		t.Fatal("ShouldFetch at the end should claim the slot")
	}
	if got := c.Finish(nil, nil); got != OutcomeExhausted {
		t.Fatalf("Finish = %v, want exhausted", got)
	}
	if got := c.State(); got != (State{Exhausted: true, Sentinel: -1}) {
		t.Errorf("state = %+v", got)
	}
	if c.SentinelVisible(2) {
		t.Error("removed sentinel reported visible")
	}
	if c.Begin() {
		t.Error("Begin after exhaustion should be refused")
	}

	c.Append(items("X"))
	if c.State().Sentinel != -1 {
		t.Error("append after exhaustion brought the sentinel back")
	}
}

func TestFailedFetchAllowsRetry(t *testing.T) {
	c := New(3)
	c.Reset(items("A", "B", "C", "D", "E"))
	c.Begin()

	if got := c.Finish(nil, errors.New("boom")); got != OutcomeFailed {
		t.Fatalf("Finish = %v, want failed", got)
	}
	if got := c.State(); got != (State{Sentinel: 1}) {
		t.Errorf("state = %+v", got)
	}
	if !c.ShouldFetch(3) {
		t.Error("later scroll past the sentinel should retry")
	}
}

func TestFinishWithoutBegin(t *testing.T) {
	c := New(3)
	c.Reset(items("A"))
	if got := c.Finish(items("B"), nil); got != OutcomeIgnored {
		t.Fatalf("Finish = %v, want ignored", got)
	}
	if c.Len() != 1 {
		t.Errorf("Len = %d, want 1", c.Len())
	}
}

func TestAppendKeepsFlags(t *testing.T) {
	c := New(3)
	c.Reset(items("A", "B", "C", "D", "E"))
	c.Begin()

	if n := c.Append(items("S1", "S2", "S3")); n != 3 {
		t.Fatalf("Append = %d, want 3", n)
	}
	st := c.State()
	if !st.Loading || st.Exhausted {
		t.Errorf("flags changed by Append: %+v", st)
	}
	if st.Sentinel != 4 {
		t.Errorf("sentinel = %d, want 4", st.Sentinel)
	}
	if n := c.Append(nil); n != 0 {
		t.Errorf("Append(nil) = %d", n)
	}
}

func TestDuplicatesAreRendered(t *testing.T) {
	c := New(3)
	c.Reset(items("A", "B"))
	c.Begin()
	c.Finish(items("B", "C"), nil)
	if diff := cmp.Diff([]string{"A", "B", "B", "C"}, ids(c)); diff != "" {
		t.Errorf("items mismatch (-want +got):\n%s", diff)
	}
}

func TestUpdateAndItem(t *testing.T) {
	c := New(0)
	c.Reset(items("A", "B"))
	c.Update(api.FeedItem{ContentID: "B", IsLiked: true})

	got, ok := c.Item(1)
	if !ok || !got.IsLiked {
		t.Errorf("Item(1) = %+v, %v", got, ok)
	}
	if _, ok := c.Item(2); ok {
		t.Error("Item(2) should be out of range")
	}
	if _, ok := c.Item(-1); ok {
		t.Error("Item(-1) should be out of range")
	}
}

func TestOutcomeString(t *testing.T) {
	for o, want := range map[Outcome]string{
		OutcomeIgnored:   "ignored",
		OutcomeAppended:  "appended",
		OutcomeExhausted: "exhausted",
		OutcomeFailed:    "failed",
	} {
		if o.String() != want {
			t.Errorf("%d.String() = %q, want %q", o, o.String(), want)
		}
	}
}

// Package pager decides when the feed asks the server for more cards.
//
// A zero-size trigger (the sentinel) sits a fixed number of cards before the
// end of the rendered list. When the viewport reaches it and no fetch is in
// flight, one fetch is issued. An empty page ends pagination for good.
package pager

import "github.com/abelbrown/thinktok/internal/api"

// DefaultThreshold keeps the sentinel so that Threshold+1 cards remain at
// and below it.
const DefaultThreshold = 3

// Outcome describes how a finished fetch changed the controller.
type Outcome int

const (
	OutcomeIgnored   Outcome = iota // no fetch was in flight
	OutcomeAppended                 // items appended, sentinel moved
	OutcomeExhausted                // empty page, pagination stopped
	OutcomeFailed                   // fetch failed, sentinel left for retry
)

func (o Outcome) String() string {
	switch o {
	case OutcomeAppended:
		return "appended"
	case OutcomeExhausted:
		return "exhausted"
	case OutcomeFailed:
		return "failed"
	default:
		return "ignored"
	}
}

// State is a snapshot of the pagination state.
type State struct {
	Loading   bool
	Exhausted bool
	// Sentinel is the index of the card the trigger sits before; equal to the
	// number of cards when it sits at the end. -1 once removed.
	Sentinel int
}

// Controller owns the rendered list and the sentinel. It performs no I/O:
// callers ask Begin before fetching and hand the result to Finish.
// Not safe for concurrent use; drive it from one goroutine (the UI loop).
type Controller struct {
	threshold int
	items     []api.FeedItem
	loading   bool
	exhausted bool
	sentinel  int
}

// New creates an empty Controller. threshold <= 0 uses DefaultThreshold.
func New(threshold int) *Controller {
	if threshold <= 0 {
		threshold = DefaultThreshold
	}
	return &Controller{threshold: threshold}
}

// SentinelIndex returns where the sentinel belongs for total cards.
// With more than threshold cards it sits before card (total-1)-threshold;
// otherwise at the very end, just before the loading indicator.
func SentinelIndex(total, threshold int) int {
	if total > threshold {
		return (total - 1) - threshold
	}
	return total
}

// Reset replaces the rendered list with the initial batch.
func (c *Controller) Reset(items []api.FeedItem) {
	c.items = append([]api.FeedItem(nil), items...)
	c.loading = false
	c.exhausted = false
	c.reposition()
}

// Begin claims the single in-flight fetch slot. It returns false when a fetch
// is already outstanding or pagination is exhausted; the caller must not
// fetch in that case.
func (c *Controller) Begin() bool {
	if c.loading || c.exhausted {
		return false
	}
	c.loading = true
	return true
}

// Finish applies the result of the fetch started by Begin.
func (c *Controller) Finish(items []api.FeedItem, err error) Outcome {
	if !c.loading {
		return OutcomeIgnored
	}
	c.loading = false

	switch {
	case err != nil:
		return OutcomeFailed
	case len(items) == 0:
		c.exhausted = true
		c.sentinel = -1
		return OutcomeExhausted
	default:
		c.items = append(c.items, items...)
		c.reposition()
		return OutcomeAppended
	}
}

// Append adds a supplementary batch that was fetched outside the load-more
// cycle. It never touches the loading or exhausted flags. Returns the number
// of cards added.
func (c *Controller) Append(items []api.FeedItem) int {
	if len(items) == 0 {
		return 0
	}
	c.items = append(c.items, items...)
	c.reposition()
	return len(items)
}

// reposition moves the sentinel after the list changed. A removed sentinel
// stays removed.
func (c *Controller) reposition() {
	if c.exhausted {
		c.sentinel = -1
		return
	}
	c.sentinel = SentinelIndex(len(c.items), c.threshold)
}

// SentinelVisible reports whether a viewport positioned at cursor has the
// sentinel in view: it has scrolled to or past the trigger and the trigger
// still exists.
func (c *Controller) SentinelVisible(cursor int) bool {
	if c.exhausted || c.sentinel < 0 {
		return false
	}
	return cursor >= c.sentinel
}

// ShouldFetch combines SentinelVisible and Begin: it claims the fetch slot
// only when the sentinel is in view.
func (c *Controller) ShouldFetch(cursor int) bool {
	if !c.SentinelVisible(cursor) {
		return false
	}
	return c.Begin()
}

// State returns a snapshot of the pagination flags.
func (c *Controller) State() State {
	return State{Loading: c.loading, Exhausted: c.exhausted, Sentinel: c.sentinel}
}

// Loading reports whether a fetch is in flight.
func (c *Controller) Loading() bool { return c.loading }

// Exhausted reports whether the server ran out of cards.
func (c *Controller) Exhausted() bool { return c.exhausted }

// Items returns the rendered list. The slice must not be modified.
func (c *Controller) Items() []api.FeedItem { return c.items }

// Len returns the number of rendered cards.
func (c *Controller) Len() int { return len(c.items) }

// Item returns the card at index i.
func (c *Controller) Item(i int) (api.FeedItem, bool) {
	if i < 0 || i >= len(c.items) {
		return api.FeedItem{}, false
	}
	return c.items[i], true
}

// Update replaces the card with the same content ID (e.g. after a like toggle).
func (c *Controller) Update(item api.FeedItem) {
	for i := range c.items {
		if c.items[i].ContentID == item.ContentID {
			c.items[i] = item
		}
	}
}

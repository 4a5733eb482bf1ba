// Package tracker measures how long each card stays in view and decides,
// exactly once per card per session, whether the view is reported.
//
// Per content ID the lifecycle is Unseen -> Viewing -> (Reported | Discarded).
// A card may re-enter Viewing any number of times; only the first eligible
// exit produces a Report because the tracked set blocks the rest.
package tracker

import (
	"sort"
	"sync"
	"time"
)

// MinDwell is the shortest view that counts. Anything shorter is noise.
const MinDwell = 500 * time.Millisecond

// VisibleFraction is the share of a card's area that must be on screen for
// the card to count as in view.
const VisibleFraction = 0.5

// Report is an eligible view ready to be sent to the server.
type Report struct {
	ContentID string
	Duration  time.Duration
}

// Seconds returns the dwell in seconds, the unit the server expects.
func (r Report) Seconds() float64 {
	return r.Duration.Seconds()
}

// Reason explains why a closed view was not reported.
type Reason string

const (
	ReasonNone    Reason = ""
	ReasonNoise   Reason = "noise"   // dwell below MinDwell
	ReasonTracked Reason = "tracked" // already reported this session
	ReasonRecent  Reason = "recent"  // in the persisted viewed history
)

// History is the cross-session record of viewed IDs. *history.Store satisfies it.
type History interface {
	Contains(id string) bool
	Add(id string) error
}

// Beacon delivers a report without waiting for a response. Used on teardown,
// when there is no time left for a request.
type Beacon interface {
	Send(r Report)
}

// Outcome is the result of closing a view session.
type Outcome struct {
	Report   Report
	Eligible bool
	Reason   Reason
	// HistoryErr is set when recording the view in the history failed to
	// persist. The report is still eligible.
	HistoryErr error
}

// Tracker owns the open view sessions and the tracked set.
// Thread-safety: all methods are safe for concurrent use; eligibility checks
// and the state changes they cause happen under one lock.
type Tracker struct {
	mu       sync.Mutex
	history  History
	now      func() time.Time
	minDwell time.Duration
	sessions map[string]time.Time // content ID -> view started at
	tracked  map[string]bool      // reported this session; never shrinks
}

// New creates a Tracker backed by history. now may be nil (time.Now).
func New(history History, now func() time.Time) *Tracker {
	if now == nil {
		now = time.Now
	}
	return &Tracker{
		history:  history,
		now:      now,
		minDwell: MinDwell,
		sessions: make(map[string]time.Time),
		tracked:  make(map[string]bool),
	}
}

// SetMinDwell overrides MinDwell. Non-positive values are ignored.
func (t *Tracker) SetMinDwell(d time.Duration) {
	if d <= 0 {
		return
	}
	t.mu.Lock()
	t.minDwell = d
	t.mu.Unlock()
}

// Enter opens a view session for id. Re-entering an open session keeps the
// original start time.
func (t *Tracker) Enter(id string) {
	if id == "" {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()

	if _, open := t.sessions[id]; !open {
		t.sessions[id] = t.now()
	}
}

// Leave closes the view session for id and decides whether it is reported.
// When the returned Outcome is Eligible the id is already recorded as tracked
// and viewed; the caller only has to deliver the Report. Leaving a card
// without an open session returns a zero Outcome.
func (t *Tracker) Leave(id string) Outcome {
	t.mu.Lock()
	defer t.mu.Unlock()

	start, open := t.sessions[id]
	if !open {
		return Outcome{}
	}
	delete(t.sessions, id)

	return t.close(id, t.now().Sub(start))
}

// close applies the eligibility rules in order. Caller must hold t.mu.
func (t *Tracker) close(id string, dwell time.Duration) Outcome {
	out := Outcome{Report: Report{ContentID: id, Duration: dwell}}

	switch {
	case dwell < t.minDwell:
		out.Reason = ReasonNoise
	case t.tracked[id]:
		out.Reason = ReasonTracked
	case t.history.Contains(id):
		out.Reason = ReasonRecent
	default:
		t.tracked[id] = true
		out.Eligible = true
		out.HistoryErr = t.history.Add(id)
	}
	return out
}

// Teardown closes every open session as the program exits. Eligible views
// are recorded and handed to beacon synchronously, in content ID order.
// Returns all outcomes, eligible or not.
func (t *Tracker) Teardown(beacon Beacon) []Outcome {
	t.mu.Lock()
	defer t.mu.Unlock()

	ids := make([]string, 0, len(t.sessions))
	for id := range t.sessions {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	now := t.now()
	outcomes := make([]Outcome, 0, len(ids))
	for _, id := range ids {
		start := t.sessions[id]
		delete(t.sessions, id)

		out := t.close(id, now.Sub(start))
		if out.Eligible && beacon != nil {
			beacon.Send(out.Report)
		}
		outcomes = append(outcomes, out)
	}
	return outcomes
}

// Viewing reports whether id has an open session.
func (t *Tracker) Viewing(id string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	_, open := t.sessions[id]
	return open
}

// Tracked reports whether id has been reported this session.
func (t *Tracker) Tracked(id string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.tracked[id]
}

// TrackedCount returns the size of the tracked set.
func (t *Tracker) TrackedCount() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.tracked)
}

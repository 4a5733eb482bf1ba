// Package otel provides structured observability for ThinkTok.
//
// Events are typed structs serialized as JSONL lines. The Logger writes
// events asynchronously via a buffered channel and background drain goroutine.
// An optional RingBuffer provides live in-memory inspection for the debug overlay.
package otel

import (
	"encoding/json"
	"time"
)

// Level defines event severity for filtering.
type Level string

const (
	LevelDebug Level = "debug"
	LevelInfo  Level = "info"
	LevelWarn  Level = "warn"
	LevelError Level = "error"
)

// EventKind identifies the category of an observability event.
// Dot-delimited: "<subsystem>.<action>".
type EventKind string

const (
	// Feed fetches (initial, supplementary, load-more)
	KindFetchStart    EventKind = "fetch.start"
	KindFetchComplete EventKind = "fetch.complete"
	KindFetchError    EventKind = "fetch.error"
	KindExhausted     EventKind = "fetch.exhausted"

	// Engagement tracking
	KindViewEnter   EventKind = "view.enter"
	KindViewReport  EventKind = "view.report"
	KindViewDiscard EventKind = "view.discard"
	KindViewError   EventKind = "view.error"

	// Beacon outbox
	KindBeaconQueue EventKind = "beacon.queue"
	KindBeaconFlush EventKind = "beacon.flush"
	KindBeaconError EventKind = "beacon.error"

	// User actions
	KindLike    EventKind = "action.like"
	KindComment EventKind = "action.comment"

	// Store events
	KindStoreError EventKind = "store.error"

	// UI events
	KindKeyPress EventKind = "ui.key"

	// System events
	KindStartup  EventKind = "sys.startup"
	KindShutdown EventKind = "sys.shutdown"
	KindError    EventKind = "sys.error"

	// Trace events (THINKTOK_TRACE)
	KindMsgReceived EventKind = "trace.msg_received"
	KindMsgHandled  EventKind = "trace.msg_handled"
)

// Event is the universal observability record. Every field except Kind and
// Time is optional. Serialized as a single JSONL line.
type Event struct {
	Time      time.Time      `json:"t"`
	Level     Level          `json:"level,omitempty"`
	Kind      EventKind      `json:"kind"`
	Comp      string         `json:"comp,omitempty"`       // component: "ui", "tracker", "beacon", "main"
	SessionID string         `json:"session_id,omitempty"` // random hex, same for entire app run
	ContentID string         `json:"content_id,omitempty"`
	Endpoint  string         `json:"endpoint,omitempty"` // API path for fetch events
	Reason    string         `json:"reason,omitempty"`   // discard reason for view events
	Dur       time.Duration  `json:"-"`                  // not serialized directly
	DurMs     float64        `json:"dur_ms,omitempty"`   // computed from Dur at marshal time
	Count     int            `json:"count,omitempty"`
	Err       string         `json:"err,omitempty"`
	Msg       string         `json:"msg,omitempty"`   // free text
	Extra     map[string]any `json:"extra,omitempty"` // escape hatch for unusual fields
}

// MarshalJSON implements json.Marshaler, converting Dur to DurMs.
func (e Event) MarshalJSON() ([]byte, error) {
	type Alias Event
	a := struct {
		Alias
	}{Alias: Alias(e)}
	if e.Dur > 0 {
		a.DurMs = float64(e.Dur) / float64(time.Millisecond)
	}
	return json.Marshal(a)
}

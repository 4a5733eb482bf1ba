package otel

// Goroutine safety:
// The drain goroutine is the sole reader of l.ch and the sole writer to l.w.
// Logger.mu protects only the l.ring pointer (read by drain, written by SetRingBuffer).
// No nested lock acquisition occurs: drain releases Logger.mu before calling ring.Push().

import (
	"crypto/rand"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"
)

// queueSize is the capacity of the async write channel.
const queueSize = 2048

// EnvTrace turns on per-message trace events for new loggers.
const EnvTrace = "THINKTOK_TRACE"

type entry struct {
	line []byte
	ev   Event
}

// Logger serializes events as JSONL via an async background writer.
// Emit never blocks the caller; a full queue drops the event and counts it.
type Logger struct {
	mu        sync.Mutex
	ring      *RingBuffer
	sessionID string
	ch        chan entry
	w         io.Writer
	closer    io.Closer // set by OpenFile
	dropped   atomic.Uint64
	closed    atomic.Bool
	tracing   atomic.Bool
	done      chan struct{}
	closeOnce sync.Once
}

// NewLogger creates a Logger writing JSONL to w and starts its drain goroutine.
// Call Close to flush and stop.
func NewLogger(w io.Writer) *Logger {
	var sid [8]byte
	_, _ = rand.Read(sid[:])

	l := &Logger{
		sessionID: fmt.Sprintf("%x", sid[:]),
		ch:        make(chan entry, queueSize),
		w:         w,
		done:      make(chan struct{}),
	}
	l.tracing.Store(os.Getenv(EnvTrace) != "")
	go l.drain()
	return l
}

// NewNullLogger creates a Logger that discards output.
func NewNullLogger() *Logger {
	return NewLogger(io.Discard)
}

// OpenFile creates dir if needed and appends events to a per-day
// events-YYYY-MM-DD.jsonl file inside it.
func OpenFile(dir string) (*Logger, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create event dir: %w", err)
	}
	name := fmt.Sprintf("events-%s.jsonl", time.Now().Format("2006-01-02"))
	f, err := os.OpenFile(filepath.Join(dir, name), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open event log: %w", err)
	}
	l := NewLogger(f)
	l.closer = f
	return l, nil
}

func (l *Logger) drain() {
	defer close(l.done)
	for e := range l.ch {
		if _, err := l.w.Write(e.line); err != nil {
			l.dropped.Add(1)
		}

		l.mu.Lock()
		ring := l.ring
		l.mu.Unlock()

		if ring != nil {
			ring.Push(e.ev)
		}
	}
}

// Emit queues an event. Time is filled in when zero and SessionID is always
// overwritten. Safe to call concurrently with Close: late events are dropped.
func (l *Logger) Emit(e Event) {
	if l == nil {
		return
	}
	defer func() {
		// Close can win the race between the closed check and the send.
		if recover() != nil {
			l.dropped.Add(1)
		}
	}()

	if l.closed.Load() {
		l.dropped.Add(1)
		return
	}

	if e.Time.IsZero() {
		e.Time = time.Now()
	}
	e.SessionID = l.sessionID

	line, err := json.Marshal(e)
	if err != nil {
		l.dropped.Add(1)
		return
	}
	line = append(line, '\n')

	select {
	case l.ch <- entry{line: line, ev: e}:
	default:
		l.dropped.Add(1)
	}
}

// Info emits an info-level event.
func (l *Logger) Info(kind EventKind, comp, msg string) {
	l.Emit(Event{Level: LevelInfo, Kind: kind, Comp: comp, Msg: msg})
}

// Warn emits a warn-level event.
func (l *Logger) Warn(kind EventKind, comp, msg string) {
	l.Emit(Event{Level: LevelWarn, Kind: kind, Comp: comp, Msg: msg})
}

// Error emits an error-level event. Nil err is allowed.
func (l *Logger) Error(kind EventKind, comp string, err error) {
	var s string
	if err != nil {
		s = err.Error()
	}
	l.Emit(Event{Level: LevelError, Kind: kind, Comp: comp, Err: s})
}

// View records the outcome of a closed viewing session. An empty reason
// means the view was reported.
func (l *Logger) View(contentID string, dwell time.Duration, reason string) {
	kind := KindViewReport
	if reason != "" {
		kind = KindViewDiscard
	}
	l.Emit(Event{Level: LevelDebug, Kind: kind, Comp: "tracker", ContentID: contentID, Dur: dwell, Reason: reason})
}

// Fetch records a completed or failed feed request against endpoint.
func (l *Logger) Fetch(endpoint string, count int, dur time.Duration, err error) {
	e := Event{Level: LevelInfo, Kind: KindFetchComplete, Comp: "api", Endpoint: endpoint, Count: count, Dur: dur}
	if err != nil {
		e.Level = LevelError
		e.Kind = KindFetchError
		e.Err = err.Error()
	}
	l.Emit(e)
}

// SetRingBuffer attaches a ring buffer for live inspection.
func (l *Logger) SetRingBuffer(ring *RingBuffer) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.ring = ring
}

// Tracing reports whether trace events are wanted. False for a nil Logger.
func (l *Logger) Tracing() bool {
	return l != nil && l.tracing.Load()
}

// SetTracing overrides the THINKTOK_TRACE setting.
func (l *Logger) SetTracing(on bool) {
	l.tracing.Store(on)
}

// SessionID returns the random ID stamped on every event of this run.
func (l *Logger) SessionID() string {
	return l.sessionID
}

// Dropped returns the number of events dropped since creation.
func (l *Logger) Dropped() uint64 {
	return l.dropped.Load()
}

// Close flushes pending events, stops the drain goroutine and closes the
// file opened by OpenFile. Dropped events are reported on stderr.
func (l *Logger) Close() {
	if l == nil {
		return
	}
	l.closeOnce.Do(func() {
		l.closed.Store(true)
		close(l.ch)
		<-l.done

		if l.closer != nil {
			_ = l.closer.Close()
		}
		if d := l.dropped.Load(); d > 0 {
			fmt.Fprintf(os.Stderr, "thinktok: %d events dropped during session %s\n", d, l.sessionID)
		}
	})
}

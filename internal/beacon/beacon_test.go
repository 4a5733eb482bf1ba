package beacon

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/abelbrown/thinktok/internal/logging"
	"github.com/abelbrown/thinktok/internal/store"
	"github.com/abelbrown/thinktok/internal/tracker"
	"github.com/charmbracelet/log"
	"github.com/google/go-cmp/cmp"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type post struct {
	ContentID string
	Seconds   float64
}

// fakeReporter records posts and fails for IDs listed in fail.
type fakeReporter struct {
	mu       sync.Mutex
	posts    []post
	fail     map[string]bool
	inFlight atomic.Int32
	maxSeen  atomic.Int32
	delay    time.Duration
}

func (f *fakeReporter) ReportView(ctx context.Context, id string, seconds float64) error {
	n := f.inFlight.Add(1)
	defer f.inFlight.Add(-1)
	for {
		m := f.maxSeen.Load()
		if n <= m || f.maxSeen.CompareAndSwap(m, n) {
			break
		}
	}
	if f.delay > 0 {
		time.Sleep(f.delay)
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail[id] {
		return errors.New("server unavailable")
	}
	f.posts = append(f.posts, post{id, seconds})
	return nil
}

func (f *fakeReporter) sorted() []post {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := append([]post(nil), f.posts...)
	sort.Slice(out, func(i, j int) bool { return out[i].ContentID < out[j].ContentID })
	return out
}

func openStore(t *testing.T) *store.Store {
	t.Helper()
	s, err := store.Open(":memory:")
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func pendingCount(t *testing.T, s *store.Store) int {
	t.Helper()
	n, err := s.CountBeacons()
	if err != nil {
		t.Fatalf("CountBeacons: %v", err)
	}
	return n
}

func TestOutboxSendQueuesReport(t *testing.T) {
	s := openStore(t)
	o := NewOutbox(s, nil)

	o.Send(tracker.Report{ContentID: "c1", Duration: 1500 * time.Millisecond})
	o.Send(tracker.Report{ContentID: "c1", Duration: 700 * time.Millisecond})

	pending, err := s.PendingBeacons(time.Now(), 10)
	if err != nil {
		t.Fatalf("PendingBeacons: %v", err)
	}
	if len(pending) != 2 {
		t.Fatalf("pending = %d, want 2", len(pending))
	}
	if pending[0].ContentID != "c1" || pending[0].ViewDuration != 1.5 {
		t.Errorf("first beacon = %+v", pending[0])
	}
	if pending[0].ID == pending[1].ID {
		t.Error("beacons share an ID")
	}
}

func TestOutboxSendOnClosedStoreDoesNotPanic(t *testing.T) {
	s, err := store.Open(":memory:")
	if err != nil {
		t.Fatal(err)
	}
	s.Close()
	NewOutbox(s, nil).Send(tracker.Report{ContentID: "lost", Duration: time.Second})
}

func TestFlushDeliversAndDeletes(t *testing.T) {
	s := openStore(t)
	o := NewOutbox(s, nil)
	o.Send(tracker.Report{ContentID: "a", Duration: 2 * time.Second})
	o.Send(tracker.Report{ContentID: "b", Duration: 600 * time.Millisecond})

	rep := &fakeReporter{}
	res, err := NewDrainer(s, rep).Flush(context.Background())
	if err != nil {
		t.Fatalf("Flush: %v", err)
	}
	if res != (FlushResult{Delivered: 2}) {
		t.Errorf("result = %+v", res)
	}
	want := []post{{"a", 2}, {"b", 0.6}}
	if diff := cmp.Diff(want, rep.sorted()); diff != "" {
		t.Errorf("posts mismatch (-want +got):\n%s", diff)
	}
	if n := pendingCount(t, s); n != 0 {
		t.Errorf("pending after flush = %d", n)
	}
}

type fakeClock struct{ t time.Time }

func (c *fakeClock) Now() time.Time { return c.t }

func TestFlushKeepsFailedBeacons(t *testing.T) {
	s := openStore(t)
	o := NewOutbox(s, nil)
	o.Send(tracker.Report{ContentID: "ok", Duration: time.Second})
	o.Send(tracker.Report{ContentID: "bad", Duration: time.Second})

	clock := &fakeClock{t: time.Now()}
	rep := &fakeReporter{fail: map[string]bool{"bad": true}}
	d := NewDrainer(s, rep, WithClock(clock.Now))
	res, err := d.Flush(context.Background())
	if err != nil {
		t.Fatalf("Flush: %v", err)
	}
	if res != (FlushResult{Delivered: 1, Failed: 1}) {
		t.Errorf("result = %+v", res)
	}
	if n := pendingCount(t, s); n != 1 {
		t.Fatalf("queued = %d, want 1", n)
	}

	// Held back until the backoff passes.
	if res, _ := d.Flush(context.Background()); res != (FlushResult{}) {
		t.Errorf("flush during backoff = %+v", res)
	}

	rep.mu.Lock()
	rep.fail = nil
	rep.mu.Unlock()
	clock.t = clock.t.Add(backoff(1))

	pending, _ := s.PendingBeacons(clock.t, 10)
	if len(pending) != 1 || pending[0].ContentID != "bad" || pending[0].Attempts != 1 {
		t.Fatalf("pending = %+v", pending)
	}
	if res, _ := d.Flush(context.Background()); res.Delivered != 1 {
		t.Errorf("retry result = %+v", res)
	}
	if n := pendingCount(t, s); n != 0 {
		t.Errorf("pending after retry = %d", n)
	}
}

func TestFailingBeaconsDoNotStarveNewerOnes(t *testing.T) {
	s := openStore(t)
	o := NewOutbox(s, nil)
	fail := map[string]bool{}
	for i := 0; i < DefaultBatchSize; i++ {
		id := fmt.Sprintf("gone%02d", i)
		fail[id] = true
		o.Send(tracker.Report{ContentID: id, Duration: time.Second})
	}
	o.Send(tracker.Report{ContentID: "good", Duration: time.Second})

	clock := &fakeClock{t: time.Now()}
	rep := &fakeReporter{fail: fail}
	d := NewDrainer(s, rep, WithClock(clock.Now))
	for i := 0; i < 3; i++ {
		if _, err := d.Flush(context.Background()); err != nil {
			t.Fatalf("Flush: %v", err)
		}
	}

	if diff := cmp.Diff([]post{{"good", 1}}, rep.sorted()); diff != "" {
		t.Errorf("posts mismatch (-want +got):\n%s", diff)
	}
	if n := pendingCount(t, s); n != DefaultBatchSize {
		t.Errorf("queued = %d, want %d", n, DefaultBatchSize)
	}
}

func TestBeaconDroppedAfterMaxAttempts(t *testing.T) {
	s := openStore(t)
	NewOutbox(s, nil).Send(tracker.Report{ContentID: "deleted-card", Duration: time.Second})

	clock := &fakeClock{t: time.Now()}
	rep := &fakeReporter{fail: map[string]bool{"deleted-card": true}}
	d := NewDrainer(s, rep, WithClock(clock.Now), WithMaxAttempts(3))

	var results []FlushResult
	for i := 1; i <= 3; i++ {
		res, err := d.Flush(context.Background())
		if err != nil {
			t.Fatalf("Flush: %v", err)
		}
		results = append(results, res)
		clock.t = clock.t.Add(backoff(i))
	}

	want := []FlushResult{{Failed: 1}, {Failed: 1}, {Dropped: 1}}
	if diff := cmp.Diff(want, results); diff != "" {
		t.Errorf("results mismatch (-want +got):\n%s", diff)
	}
	if n := pendingCount(t, s); n != 0 {
		t.Errorf("queued = %d, want 0", n)
	}
}

func TestBackoff(t *testing.T) {
	tests := []struct {
		attempts int
		want     time.Duration
	}{
		{1, 30 * time.Second},
		{2, time.Minute},
		{3, 2 * time.Minute},
		{7, 32 * time.Minute},
		{8, time.Hour},
		{50, time.Hour},
	}
	for _, tt := range tests {
		if got := backoff(tt.attempts); got != tt.want {
			t.Errorf("backoff(%d) = %v, want %v", tt.attempts, got, tt.want)
		}
	}
}

func TestFlushEmptyOutbox(t *testing.T) {
	s := openStore(t)
	rep := &fakeReporter{}
	res, err := NewDrainer(s, rep).Flush(context.Background())
	if err != nil || res != (FlushResult{}) {
		t.Errorf("Flush = %+v, %v", res, err)
	}
}

func TestFlushRespectsBatchSizeAndParallelism(t *testing.T) {
	s := openStore(t)
	o := NewOutbox(s, nil)
	for _, id := range []string{"a", "b", "c", "d", "e", "f", "g", "h"} {
		o.Send(tracker.Report{ContentID: id, Duration: time.Second})
	}

	rep := &fakeReporter{delay: 20 * time.Millisecond}
	d := NewDrainer(s, rep, WithBatchSize(6), WithParallelism(2))
	res, err := d.Flush(context.Background())
	if err != nil {
		t.Fatalf("Flush: %v", err)
	}
	if res.Delivered != 6 {
		t.Errorf("delivered = %d, want 6", res.Delivered)
	}
	if m := rep.maxSeen.Load(); m > 2 {
		t.Errorf("max concurrent deliveries = %d, want <= 2", m)
	}
	if n := pendingCount(t, s); n != 2 {
		t.Errorf("pending = %d, want 2", n)
	}
}

func TestFlushOnClosedStoreReturnsError(t *testing.T) {
	s, err := store.Open(":memory:")
	if err != nil {
		t.Fatal(err)
	}
	s.Close()
	if _, err := NewDrainer(s, &fakeReporter{}).Flush(context.Background()); err == nil {
		t.Error("expected error reading a closed outbox")
	}
}

func TestStartFlushesImmediatelyAndStopsOnCancel(t *testing.T) {
	s := openStore(t)
	NewOutbox(s, nil).Send(tracker.Report{ContentID: "startup", Duration: time.Second})

	rep := &fakeReporter{}
	d := NewDrainer(s, rep, WithInterval(time.Hour))
	ctx, cancel := context.WithCancel(context.Background())
	d.Start(ctx)

	deadline := time.Now().Add(2 * time.Second)
	for pendingCount(t, s) != 0 {
		if time.Now().After(deadline) {
			t.Fatal("startup flush did not deliver the queued beacon")
		}
		time.Sleep(5 * time.Millisecond)
	}

	cancel()
	d.Wait()
	if got := rep.sorted(); len(got) != 1 || got[0].ContentID != "startup" {
		t.Errorf("posts = %+v", got)
	}
}

func TestStartFlushesOnInterval(t *testing.T) {
	s := openStore(t)
	rep := &fakeReporter{}
	d := NewDrainer(s, rep, WithInterval(10*time.Millisecond))
	ctx, cancel := context.WithCancel(context.Background())
	defer func() {
		cancel()
		d.Wait()
	}()
	d.Start(ctx)

	NewOutbox(s, nil).Send(tracker.Report{ContentID: "later", Duration: time.Second})

	deadline := time.Now().Add(2 * time.Second)
	for pendingCount(t, s) != 0 {
		if time.Now().After(deadline) {
			t.Fatal("interval flush did not deliver the beacon")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestBeaconsSurviveRestart(t *testing.T) {
	path := filepath.Join(t.TempDir(), "thinktok.db")

	s1, err := store.Open(path)
	if err != nil {
		t.Fatal(err)
	}
	NewOutbox(s1, nil).Send(tracker.Report{ContentID: "teardown", Duration: 900 * time.Millisecond})
	s1.Close()

	s2, err := store.Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer s2.Close()

	rep := &fakeReporter{}
	if res, err := NewDrainer(s2, rep).Flush(context.Background()); err != nil || res.Delivered != 1 {
		t.Fatalf("Flush = %+v, %v", res, err)
	}
	if diff := cmp.Diff([]post{{"teardown", 0.9}}, rep.sorted()); diff != "" {
		t.Errorf("posts mismatch (-want +got):\n%s", diff)
	}
}

func TestOutboxSatisfiesTrackerBeacon(t *testing.T) {
	var _ tracker.Beacon = (*Outbox)(nil)
}

func TestDrainerLogsWithPrefix(t *testing.T) {
	var buf bytes.Buffer
	logging.SetOutput(&buf, log.DebugLevel)
	t.Cleanup(logging.Close)

	s := openStore(t)
	NewOutbox(s, nil).Send(tracker.Report{ContentID: "x", Duration: time.Second})
	rep := &fakeReporter{fail: map[string]bool{"x": true}}
	if _, err := NewDrainer(s, rep).Flush(context.Background()); err != nil {
		t.Fatalf("Flush: %v", err)
	}

	out := buf.String()
	if !strings.Contains(out, "beacon") || !strings.Contains(out, "delivery failed") {
		t.Errorf("log output = %q", out)
	}
}

// Package beacon delivers view reports that must survive the process exiting.
//
// Send writes the report to a local sqlite outbox and returns immediately.
// A Drainer posts queued reports to the server in the background and deletes
// each one once the server accepted it. Reports queued during teardown are
// delivered by the next run's startup flush.
package beacon

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/abelbrown/thinktok/internal/logging"
	"github.com/abelbrown/thinktok/internal/otel"
	"github.com/abelbrown/thinktok/internal/store"
	"github.com/abelbrown/thinktok/internal/tracker"
	"github.com/charmbracelet/log"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

const (
	DefaultInterval    = 30 * time.Second
	DefaultBatchSize   = 50
	DefaultParallelism = 4
	DefaultMaxAttempts = 8
	// attemptTimeout bounds a single delivery so one stuck request cannot
	// hold up a flush.
	attemptTimeout = 10 * time.Second

	baseBackoff = 30 * time.Second
	maxBackoff  = time.Hour
)

// backoff returns how long a beacon waits after its n-th failed attempt:
// baseBackoff doubled per attempt, capped at maxBackoff.
func backoff(n int) time.Duration {
	d := baseBackoff
	for i := 1; i < n && d < maxBackoff; i++ {
		d *= 2
	}
	return min(d, maxBackoff)
}

// Reporter posts a single view report. *api.Client satisfies it.
type Reporter interface {
	ReportView(ctx context.Context, contentID string, seconds float64) error
}

// Outbox queues reports in the store. It satisfies tracker.Beacon.
type Outbox struct {
	store  *store.Store
	events *otel.Logger
	now    func() time.Time
}

// NewOutbox creates an Outbox writing to s. events may be nil.
func NewOutbox(s *store.Store, events *otel.Logger) *Outbox {
	return &Outbox{store: s, events: events, now: time.Now}
}

// Send enqueues r. It never fails the caller; a write error is logged and
// the report is lost.
func (o *Outbox) Send(r tracker.Report) {
	b := store.Beacon{
		ID:           uuid.NewString(),
		ContentID:    r.ContentID,
		ViewDuration: r.Seconds(),
		Created:      o.now(),
	}
	if err := o.store.EnqueueBeacon(b); err != nil {
		logging.Error("beacon enqueue failed", "content_id", r.ContentID, "err", err)
		o.events.Emit(otel.Event{Level: otel.LevelError, Kind: otel.KindBeaconError, Comp: "beacon", ContentID: r.ContentID, Err: err.Error()})
		return
	}
	o.events.Emit(otel.Event{Level: otel.LevelInfo, Kind: otel.KindBeaconQueue, Comp: "beacon", ContentID: r.ContentID, Dur: r.Duration})
}

// FlushResult summarises one pass over the outbox. Failed beacons stay
// queued; Dropped ones ran out of attempts and were deleted.
type FlushResult struct {
	Delivered int
	Failed    int
	Dropped   int
}

type delivery int

const (
	delivered delivery = iota
	retrying
	dropped
)

// Drainer posts queued beacons.
type Drainer struct {
	store       *store.Store
	reporter    Reporter
	events      *otel.Logger
	interval    time.Duration
	batchSize   int
	parallelism int
	maxAttempts int
	now         func() time.Time
	log         *log.Logger

	flushMu sync.Mutex // one flush at a time
	wg      sync.WaitGroup
}

// Option configures a Drainer.
type Option func(*Drainer)

// WithInterval sets how often Start flushes.
func WithInterval(d time.Duration) Option {
	return func(dr *Drainer) {
		if d > 0 {
			dr.interval = d
		}
	}
}

// WithBatchSize caps the beacons read per flush.
func WithBatchSize(n int) Option {
	return func(dr *Drainer) {
		if n > 0 {
			dr.batchSize = n
		}
	}
}

// WithParallelism caps concurrent deliveries.
func WithParallelism(n int) Option {
	return func(dr *Drainer) {
		if n > 0 {
			dr.parallelism = n
		}
	}
}

// WithMaxAttempts sets after how many failed attempts a beacon is deleted.
func WithMaxAttempts(n int) Option {
	return func(dr *Drainer) {
		if n > 0 {
			dr.maxAttempts = n
		}
	}
}

// WithClock replaces time.Now for backoff scheduling.
func WithClock(now func() time.Time) Option {
	return func(dr *Drainer) {
		if now != nil {
			dr.now = now
		}
	}
}

// WithEvents attaches the structured event log.
func WithEvents(l *otel.Logger) Option {
	return func(dr *Drainer) { dr.events = l }
}

// NewDrainer creates a Drainer delivering beacons from s through r.
func NewDrainer(s *store.Store, r Reporter, opts ...Option) *Drainer {
	d := &Drainer{
		store:       s,
		reporter:    r,
		interval:    DefaultInterval,
		batchSize:   DefaultBatchSize,
		parallelism: DefaultParallelism,
		maxAttempts: DefaultMaxAttempts,
		now:         time.Now,
		log:         logging.WithPrefix("beacon"),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Flush delivers up to one batch of due beacons. Delivered rows are deleted.
// A failed row is held back with exponential backoff, so it cannot keep
// newer beacons out of the batch, and deleted after maxAttempts failures.
// The returned error covers reading the outbox only, never delivery failures.
func (d *Drainer) Flush(ctx context.Context) (FlushResult, error) {
	d.flushMu.Lock()
	defer d.flushMu.Unlock()

	pending, err := d.store.PendingBeacons(d.now(), d.batchSize)
	if err != nil {
		return FlushResult{}, fmt.Errorf("read outbox: %w", err)
	}
	if len(pending) == 0 {
		return FlushResult{}, nil
	}

	start := time.Now()
	var (
		mu  sync.Mutex
		res FlushResult
	)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(d.parallelism)
	for _, b := range pending {
		g.Go(func() error {
			outcome := d.deliver(gctx, b)
			mu.Lock()
			switch outcome {
			case delivered:
				res.Delivered++
			case retrying:
				res.Failed++
			case dropped:
				res.Dropped++
			}
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	d.events.Emit(otel.Event{
		Level: otel.LevelInfo,
		Kind:  otel.KindBeaconFlush,
		Comp:  "beacon",
		Count: res.Delivered,
		Dur:   time.Since(start),
		Extra: map[string]any{"failed": res.Failed, "dropped": res.Dropped},
	})
	d.log.Debug("flush", "delivered", res.Delivered, "failed", res.Failed, "dropped", res.Dropped)
	return res, nil
}

func (d *Drainer) deliver(ctx context.Context, b store.Beacon) delivery {
	ctx, cancel := context.WithTimeout(ctx, attemptTimeout)
	defer cancel()

	err := d.reporter.ReportView(ctx, b.ContentID, b.ViewDuration)
	if err == nil {
		if err := d.store.DeleteBeacon(b.ID); err != nil {
			// Delivered but still queued: the server will see it again.
			d.log.Error("delete failed", "id", b.ID, "err", err)
		}
		return delivered
	}

	attempts := b.Attempts + 1
	if attempts >= d.maxAttempts {
		d.log.Warn("giving up on beacon", "id", b.ID, "content_id", b.ContentID, "attempts", attempts, "err", err)
		d.events.Emit(otel.Event{Level: otel.LevelWarn, Kind: otel.KindBeaconError, Comp: "beacon", ContentID: b.ContentID, Err: err.Error(), Msg: "dropped"})
		if derr := d.store.DeleteBeacon(b.ID); derr != nil {
			d.log.Error("delete failed", "id", b.ID, "err", derr)
		}
		return dropped
	}

	d.log.Warn("delivery failed", "id", b.ID, "content_id", b.ContentID, "attempts", attempts, "err", err)
	if merr := d.store.MarkBeaconAttempt(b.ID, d.now().Add(backoff(attempts))); merr != nil {
		d.log.Error("attempt not recorded", "id", b.ID, "err", merr)
	}
	return retrying
}

// Start flushes once immediately and then on every interval until ctx is
// cancelled. Call Wait after cancelling to join the goroutine.
func (d *Drainer) Start(ctx context.Context) {
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		d.flushLogged(ctx)

		ticker := time.NewTicker(d.interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				d.flushLogged(ctx)
			}
		}
	}()
}

func (d *Drainer) flushLogged(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}
	if _, err := d.Flush(ctx); err != nil {
		d.log.Error("flush failed", "err", err)
		d.events.Error(otel.KindBeaconError, "beacon", err)
	}
}

// Wait blocks until the goroutine started by Start has returned.
func (d *Drainer) Wait() {
	d.wg.Wait()
}

package main

import (
	"context"
	"time"

	"github.com/abelbrown/thinktok/internal/beacon"
	"github.com/abelbrown/thinktok/internal/logging"
	"github.com/abelbrown/thinktok/internal/otel"
	"github.com/abelbrown/thinktok/internal/tracker"
	"github.com/abelbrown/thinktok/internal/ui"
	tea "github.com/charmbracelet/bubbletea"
)

// reportViewCmd builds the App's ReportView producer. Each report is posted
// exactly once; a failure is handed back to the App, which logs it. Only
// teardown reports go through the outbox.
func reportViewCmd(ctx context.Context, rep beacon.Reporter) func(tracker.Report) tea.Cmd {
	return func(r tracker.Report) tea.Cmd {
		return func() tea.Msg {
			err := rep.ReportView(ctx, r.ContentID, r.Seconds())
			return ui.ViewReported{ContentID: r.ContentID, Err: err}
		}
	}
}

// shutdown runs once the program has stopped and before the store closes:
// cards still on screen are closed and their reports queued, the background
// drainer is stopped, then one flush bounded by flushTimeout tries to
// deliver the queue. Undelivered beacons wait for the next run.
func shutdown(trk *tracker.Tracker, outbox *beacon.Outbox, drainer *beacon.Drainer, stop context.CancelFunc, events *otel.Logger, flushTimeout time.Duration) beacon.FlushResult {
	for _, out := range trk.Teardown(outbox) {
		events.View(out.Report.ContentID, out.Report.Duration, string(out.Reason))
		if out.HistoryErr != nil {
			logging.Warn("viewed history not persisted", "content_id", out.Report.ContentID, "err", out.HistoryErr)
		}
	}

	stop()
	drainer.Wait()

	ctx, cancel := context.WithTimeout(context.Background(), flushTimeout)
	defer cancel()
	res, err := drainer.Flush(ctx)
	if err != nil {
		logging.Warn("final beacon flush failed", "err", err)
	}
	return res
}

package ui

import (
	"fmt"
	"strings"
	"time"

	"github.com/abelbrown/thinktok/internal/otel"
)

// debugPanelChrome is the number of lines DebugPanel's border and padding
// take. Must follow DebugPanel.
const debugPanelChrome = 4

// debugOverlay renders feed and engagement stats plus the most recent events.
// Returns "" when ring is nil.
func debugOverlay(ring *otel.RingBuffer, width, height int) string {
	if ring == nil {
		return ""
	}

	stats := ring.Stats()
	recent := ring.Last(20)

	var lines []string
	lines = append(lines, DebugHeaderStyle.Render("Feed"))
	lines = append(lines, fmt.Sprintf("  Fetches:    %d complete, %d errors, %d exhausted",
		stats[otel.KindFetchComplete], stats[otel.KindFetchError], stats[otel.KindExhausted]))
	lines = append(lines, fmt.Sprintf("  Views:      %d reported, %d discarded, %d failed",
		stats[otel.KindViewReport], stats[otel.KindViewDiscard], stats[otel.KindViewError]))
	lines = append(lines, fmt.Sprintf("  Beacons:    %d queued, %d flushes, %d errors",
		stats[otel.KindBeaconQueue], stats[otel.KindBeaconFlush], stats[otel.KindBeaconError]))
	lines = append(lines, fmt.Sprintf("  Buffer:     %d / %d events", ring.Len(), ring.Cap()))
	lines = append(lines, "")

	lines = append(lines, DebugHeaderStyle.Render("Recent Events"))
	for _, e := range recent {
		line := fmt.Sprintf("  %6s  %-16s", formatAge(time.Since(e.Time)), string(e.Kind))
		if e.ContentID != "" {
			line += "  " + truncateRunes(e.ContentID, 16)
		}
		if e.Reason != "" {
			line += "  (" + e.Reason + ")"
		}
		if e.Msg != "" {
			line += "  " + truncateRunes(e.Msg, 40)
		}
		if e.Err != "" {
			line += "  ERR:" + truncateRunes(e.Err, 30)
		}
		lines = append(lines, line)
	}

	maxHeight := height - debugPanelChrome
	if maxHeight < 1 {
		maxHeight = 1
	}
	if len(lines) > maxHeight {
		lines = lines[:maxHeight]
	}

	panelWidth := 80
	if panelWidth > width-4 {
		panelWidth = width - 4
	}
	if panelWidth < 20 {
		panelWidth = 20
	}

	return DebugPanel.Width(panelWidth).Render(strings.Join(lines, "\n"))
}

// formatAge formats a duration compactly. Negative durations clamp to "0ms".
func formatAge(d time.Duration) string {
	if d < 0 {
		return "0ms"
	}
	switch {
	case d < time.Second:
		return fmt.Sprintf("%dms", d.Milliseconds())
	case d < time.Minute:
		return fmt.Sprintf("%.1fs", d.Seconds())
	default:
		return fmt.Sprintf("%.0fm", d.Minutes())
	}
}

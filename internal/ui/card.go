package ui

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/abelbrown/thinktok/internal/api"
	"github.com/charmbracelet/lipgloss"
	lru "github.com/hashicorp/golang-lru/v2"
)

// DefaultCardCacheSize is how many rendered cards are kept.
const DefaultCardCacheSize = 64

// cardKey identifies one rendering of a card. Anything that changes the
// output must be part of it.
type cardKey struct {
	id       string
	width    int
	height   int
	expanded bool
	liked    bool
	comments int
}

// CardRenderer draws one full-screen card. Rendered strings are cached
// because View runs on every message, including spinner ticks.
type CardRenderer struct {
	cache *lru.Cache[cardKey, string]
}

// NewCardRenderer creates a renderer caching up to size cards.
func NewCardRenderer(size int) *CardRenderer {
	if size <= 0 {
		size = DefaultCardCacheSize
	}
	cache, _ := lru.New[cardKey, string](size) // only fails for size <= 0
	return &CardRenderer{cache: cache}
}

// Render returns item drawn as a card filling width x height.
func (r *CardRenderer) Render(item api.FeedItem, width, height int, expanded bool) string {
	k := cardKey{
		id:       item.ContentID,
		width:    width,
		height:   height,
		expanded: expanded,
		liked:    item.IsLiked,
		comments: item.CommentCount,
	}
	if s, ok := r.cache.Get(k); ok {
		return s
	}
	s := renderCard(item, width, height, expanded)
	r.cache.Add(k, s)
	return s
}

// Len returns the number of cached renderings.
func (r *CardRenderer) Len() int {
	return r.cache.Len()
}

func renderCard(item api.FeedItem, width, height int, expanded bool) string {
	// Border (2) + horizontal padding (4).
	inner := width - 6
	if inner < 10 {
		inner = 10
	}

	var b strings.Builder
	b.WriteString(CardTitle.Width(inner).Render(item.Title))
	b.WriteString("\n")

	if len(item.Categories) > 0 {
		tags := make([]string, 0, len(item.Categories))
		for _, c := range item.Categories {
			tags = append(tags, Tag.Render(truncateRunes(c, 24)))
		}
		b.WriteString(lipgloss.JoinHorizontal(lipgloss.Top, tags...))
		b.WriteString("\n")
	}
	b.WriteString("\n")

	summary := item.Summary
	if expanded && item.HasLongSummary() {
		summary = item.WholeSummary
	}
	b.WriteString(CardBody.Width(inner).Render(summary))
	b.WriteString("\n")

	if item.Image != "" {
		b.WriteString("\n")
		b.WriteString(CardMeta.Width(inner).Render("image: " + item.Image))
	}
	if len(item.Related) > 0 {
		b.WriteString("\n")
		b.WriteString(CardMeta.Width(inner).Render("related: " + strings.Join(item.Related, " · ")))
	}

	b.WriteString("\n\n")
	b.WriteString(actionLine(item, expanded))

	style := Card.Width(width - 2)
	if height > 2 {
		style = style.MaxHeight(height)
	}
	return style.Render(b.String())
}

func actionLine(item api.FeedItem, expanded bool) string {
	like := Action.Render("♡ like")
	if item.IsLiked {
		like = Liked.Render("♥ liked")
	}
	parts := []string{like, Action.Render(commentLabel(item.CommentCount))}
	if item.HasLongSummary() {
		if expanded {
			parts = append(parts, Action.Render("m: less"))
		} else {
			parts = append(parts, Action.Render("m: more"))
		}
	}
	return strings.Join(parts, "   ")
}

func commentLabel(n int) string {
	if n == 1 {
		return "1 comment"
	}
	return fmt.Sprintf("%d comments", n)
}

// renderFooter draws the slot after the last card: the loading indicator
// while a page is in flight, the end-of-feed notice once exhausted.
func renderFooter(spinnerView string, loading, exhausted, failed bool, width int) string {
	var s string
	switch {
	case exhausted:
		s = CaughtUp.Render("You're all caught up")
	case loading:
		s = spinnerView + " Loading more..."
	case failed:
		s = ErrorStyle.Render("Couldn't load more.") + " Scroll to retry."
	default:
		s = spinnerView + " Loading more..."
	}
	return Footer.Width(width).Render(s)
}

// truncateRunes shortens s to at most n runes, adding an ellipsis.
func truncateRunes(s string, n int) string {
	if n <= 0 {
		return ""
	}
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	r := []rune(s)
	if n == 1 {
		return "…"
	}
	return string(r[:n-1]) + "…"
}

// RenderStatusBar renders the bottom bar: position on the left, key help on the right.
func RenderStatusBar(position, hints string, width int) string {
	padding := width - lipgloss.Width(position) - lipgloss.Width(hints) - 2
	if padding < 1 {
		padding = 1
	}
	return StatusBar.Width(width).Render(position + strings.Repeat(" ", padding) + hints)
}

// positionLabel describes where the cursor is, e.g. "3/12".
func positionLabel(cursor, total int, loading bool) string {
	switch {
	case total == 0 && loading:
		return "Loading..."
	case cursor >= total:
		return fmt.Sprintf("end/%d", total)
	default:
		return fmt.Sprintf("%d/%d", cursor+1, total)
	}
}

// Package ui provides the Bubble Tea TUI for ThinkTok.
package ui

import (
	"time"

	"github.com/abelbrown/thinktok/internal/api"
)

// FeedLoaded is sent when the initial batch arrives.
type FeedLoaded struct {
	Items []api.FeedItem
	Took  time.Duration
	Err   error
}

// SupplementLoaded is sent when the background enrichment batch arrives.
type SupplementLoaded struct {
	Items []api.FeedItem
	Took  time.Duration
	Err   error
}

// MoreLoaded is sent when a load-more page arrives. An empty, error-free
// page means the feed is exhausted.
type MoreLoaded struct {
	Items []api.FeedItem
	Took  time.Duration
	Err   error
}

// ViewReported is sent after a view report was posted.
type ViewReported struct {
	ContentID string
	Err       error
}

// LikeToggled is sent when the server answered a like toggle.
type LikeToggled struct {
	ContentID string
	Liked     bool
	Err       error
}

// CommentsLoaded is sent when the comment list for a card arrives.
type CommentsLoaded struct {
	ContentID string
	Page      api.CommentPage
	Err       error
}

// CommentPosted is sent when a submitted comment was stored.
type CommentPosted struct {
	ContentID string
	Comment   api.Comment
	Err       error
}

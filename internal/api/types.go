package api

import "fmt"

// FeedItem is a server-supplied content card.
type FeedItem struct {
	ContentID    string   `json:"content_id"`
	Title        string   `json:"title"`
	Summary      string   `json:"summary"`
	WholeSummary string   `json:"whole_summary,omitempty"` // longer text, optional
	Image        string   `json:"image,omitempty"`
	Related      []string `json:"related,omitempty"`
	Categories   []string `json:"categories,omitempty"`
	CommentCount int      `json:"comment_count"`
	IsLiked      bool     `json:"is_liked"`
}

// HasLongSummary reports whether the card has a distinct longer summary worth
// a "more" toggle.
func (f FeedItem) HasLongSummary() bool {
	return f.WholeSummary != "" && f.WholeSummary != f.Summary
}

// Comment is a single flat comment on a card.
type Comment struct {
	ID        int    `json:"id"`
	Text      string `json:"text"`
	User      User   `json:"user"`
	ContentID string `json:"content_id"`
}

// User identifies a comment author.
type User struct {
	Username string `json:"username"`
}

// CommentPage is the response of the comments endpoint.
type CommentPage struct {
	Comments  []Comment `json:"comments"`
	PageTitle string    `json:"page_title"`
}

// APIError is returned for non-2xx responses.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("api error (status %d)", e.Status)
	}
	return fmt.Sprintf("api error (status %d): %s", e.Status, e.Message)
}

// feedResponse is the body of every feed endpoint.
type feedResponse struct {
	Items []FeedItem `json:"items"`
}

// trackViewRequest is the body of a view report.
type trackViewRequest struct {
	ContentID    string  `json:"content_id"`
	ViewDuration float64 `json:"view_duration"`
}

type contentRequest struct {
	ContentID string `json:"content_id"`
}

type likeResponse struct {
	IsLiked   bool   `json:"is_liked"`
	ContentID string `json:"content_id"`
}

type commentRequest struct {
	ContentID string `json:"content_id"`
	Text      string `json:"text"`
}

type commentResponse struct {
	Comment Comment `json:"comment"`
}

type errorResponse struct {
	Error string `json:"error"`
}

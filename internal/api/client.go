// Package api is the JSON-over-HTTP client for the ThinkTok feed server.
//
// Every call is a single attempt: the feed client decides what to do with a
// failure (the pager leaves its trigger in place, view reports are dropped).
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/time/rate"
)

// Endpoint paths, relative to the server base URL.
const (
	PathFeed         = "/api/feed"
	PathFeedMore     = "/api/feed/more"
	PathLoadMore     = "/api/load_more"
	PathTrackView    = "/api/track_view"
	PathToggleLike   = "/api/toggle_like"
	PathComments     = "/api/comments"
	UsernameCookie   = "username"
	maxResponseBytes = 1 << 20
)

// Client talks to the feed server.
type Client struct {
	baseURL  string
	username string
	client   *http.Client
	limiter  *rate.Limiter
}

// NewClient creates a Client for the server at baseURL, identifying as
// username. rps <= 0 disables rate limiting.
func NewClient(baseURL, username string, timeout time.Duration, rps float64) *Client {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	limit := rate.Inf
	if rps > 0 {
		limit = rate.Limit(rps)
	}
	return &Client{
		baseURL:  strings.TrimRight(baseURL, "/"),
		username: username,
		client:   &http.Client{Timeout: timeout},
		limiter:  rate.NewLimiter(limit, 1),
	}
}

// BaseURL returns the server base URL.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// FetchFeed requests the initial batch, excluding the given IDs.
func (c *Client) FetchFeed(ctx context.Context, exclude []string) ([]FeedItem, error) {
	return c.fetchItems(ctx, PathFeed, exclude)
}

// FetchSupplementary requests the slower enrichment batch shown after the
// initial render.
func (c *Client) FetchSupplementary(ctx context.Context, exclude []string) ([]FeedItem, error) {
	return c.fetchItems(ctx, PathFeedMore, exclude)
}

// FetchMore requests the next page. An empty slice means the feed is exhausted.
func (c *Client) FetchMore(ctx context.Context, exclude []string) ([]FeedItem, error) {
	return c.fetchItems(ctx, PathLoadMore, exclude)
}

func (c *Client) fetchItems(ctx context.Context, path string, exclude []string) ([]FeedItem, error) {
	q := url.Values{}
	q.Set("exclude", strings.Join(exclude, ","))

	var resp feedResponse
	if err := c.do(ctx, http.MethodGet, path+"?"+q.Encode(), nil, &resp); err != nil {
		return nil, err
	}
	if resp.Items == nil {
		return []FeedItem{}, nil
	}
	return resp.Items, nil
}

// ReportView records a view of contentID lasting seconds.
func (c *Client) ReportView(ctx context.Context, contentID string, seconds float64) error {
	body := trackViewRequest{ContentID: contentID, ViewDuration: seconds}
	return c.do(ctx, http.MethodPost, PathTrackView, body, nil)
}

// ToggleLike flips the like state of contentID and returns the new state.
func (c *Client) ToggleLike(ctx context.Context, contentID string) (bool, error) {
	var resp likeResponse
	if err := c.do(ctx, http.MethodPost, PathToggleLike, contentRequest{ContentID: contentID}, &resp); err != nil {
		return false, err
	}
	return resp.IsLiked, nil
}

// Comments lists the comments on contentID.
func (c *Client) Comments(ctx context.Context, contentID string) (CommentPage, error) {
	var page CommentPage
	err := c.do(ctx, http.MethodGet, PathComments+"/"+url.PathEscape(contentID), nil, &page)
	return page, err
}

// PostComment adds a comment to contentID.
func (c *Client) PostComment(ctx context.Context, contentID, text string) (Comment, error) {
	var resp commentResponse
	if err := c.do(ctx, http.MethodPost, PathComments, commentRequest{ContentID: contentID, Text: text}, &resp); err != nil {
		return Comment{}, err
	}
	return resp.Comment, nil
}

// do executes one request. body, when non-nil, is sent as JSON; out, when
// non-nil, receives the decoded response.
func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limiter: %w", err)
	}

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.username != "" {
		req.AddCookie(&http.Cookie{Name: UsernameCookie, Value: c.username})
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		apiErr := &APIError{Status: resp.StatusCode}
		var er errorResponse
		if json.Unmarshal(data, &er) == nil && er.Error != "" {
			apiErr.Message = er.Error
		} else {
			apiErr.Message = strings.TrimSpace(string(data))
		}
		return apiErr
	}

	if out == nil || len(data) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("parse response: %w", err)
	}
	return nil
}

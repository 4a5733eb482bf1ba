package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"golang.org/x/time/rate"
)

func newTestClient(url string) *Client {
	c := NewClient(url, "alice", 5*time.Second, 0)
	c.limiter = rate.NewLimiter(rate.Inf, 1)
	return c
}

func TestFetchFeedSendsExcludeAndCookie(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		if req.Method != http.MethodGet {
			t.Errorf("expected GET, got %s", req.Method)
		}
		if req.URL.Path != PathFeed {
			t.Errorf("path = %q, want %q", req.URL.Path, PathFeed)
		}
		if got := req.URL.Query().Get("exclude"); got != "a,b,c" {
			t.Errorf("exclude = %q, want %q", got, "a,b,c")
		}
		cookie, err := req.Cookie(UsernameCookie)
		if err != nil || cookie.Value != "alice" {
			t.Errorf("username cookie = %v, %v", cookie, err)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"items":[
			{"content_id":"A","title":"Alpha","summary":"s","whole_summary":"longer","image":"http://img","related":["x"],"comment_count":2,"is_liked":true},
			{"content_id":"B","title":"Beta","summary":"s2","comment_count":0,"is_liked":false}
		]}`))
	}))
	defer server.Close()

	c := newTestClient(server.URL)
	items, err := c.FetchFeed(context.Background(), []string{"a", "b", "c"})
	if err != nil {
		t.Fatalf("FetchFeed() error: %v", err)
	}
	if len(items) != 2 {
		t.Fatalf("expected 2 items, got %d", len(items))
	}
	a := items[0]
	if a.ContentID != "A" || a.Title != "Alpha" || a.CommentCount != 2 || !a.IsLiked {
		t.Errorf("unexpected first item: %+v", a)
	}
	if !a.HasLongSummary() {
		t.Error("A should have a long summary")
	}
	if items[1].HasLongSummary() {
		t.Error("B should not have a long summary")
	}
}

func TestFetchPaths(t *testing.T) {
	var gotPath atomic.Value
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		gotPath.Store(req.URL.Path)
		w.Write([]byte(`{"items":[]}`))
	}))
	defer server.Close()

	c := newTestClient(server.URL)
	ctx := context.Background()

	tests := []struct {
		name string
		call func() ([]FeedItem, error)
		path string
	}{
		{"feed", func() ([]FeedItem, error) { return c.FetchFeed(ctx, nil) }, PathFeed},
		{"supplementary", func() ([]FeedItem, error) { return c.FetchSupplementary(ctx, nil) }, PathFeedMore},
		{"more", func() ([]FeedItem, error) { return c.FetchMore(ctx, nil) }, PathLoadMore},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			items, err := tt.call()
			if err != nil {
				t.Fatalf("error: %v", err)
			}
			if items == nil || len(items) != 0 {
				t.Errorf("expected empty non-nil slice, got %#v", items)
			}
			if got := gotPath.Load().(string); got != tt.path {
				t.Errorf("path = %q, want %q", got, tt.path)
			}
		})
	}
}

func TestFetchMoreMissingItemsIsEmpty(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		w.Write([]byte(`{}`))
	}))
	defer server.Close()

	items, err := newTestClient(server.URL).FetchMore(context.Background(), nil)
	if err != nil {
		t.Fatalf("FetchMore() error: %v", err)
	}
	if len(items) != 0 {
		t.Errorf("expected no items, got %d", len(items))
	}
}

func TestReportViewBody(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		if req.Method != http.MethodPost || req.URL.Path != PathTrackView {
			t.Errorf("unexpected %s %s", req.Method, req.URL.Path)
		}
		if got := req.Header.Get("Content-Type"); got != "application/json" {
			t.Errorf("Content-Type = %q", got)
		}
		var body trackViewRequest
		if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		if body.ContentID != "C" || body.ViewDuration != 0.8 {
			t.Errorf("body = %+v", body)
		}
		w.Write([]byte(`{"success":true}`))
	}))
	defer server.Close()

	if err := newTestClient(server.URL).ReportView(context.Background(), "C", 0.8); err != nil {
		t.Fatalf("ReportView() error: %v", err)
	}
}

func TestToggleLike(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		var body contentRequest
		json.NewDecoder(req.Body).Decode(&body)
		json.NewEncoder(w).Encode(likeResponse{IsLiked: true, ContentID: body.ContentID})
	}))
	defer server.Close()

	liked, err := newTestClient(server.URL).ToggleLike(context.Background(), "A")
	if err != nil {
		t.Fatalf("ToggleLike() error: %v", err)
	}
	if !liked {
		t.Error("expected liked = true")
	}
}

func TestComments(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		switch req.Method {
		case http.MethodGet:
			if req.URL.Path != PathComments+"/A" {
				t.Errorf("path = %q", req.URL.Path)
			}
			w.Write([]byte(`{"comments":[{"id":1,"text":"hi","user":{"username":"bob"},"content_id":"A"}],"page_title":"Alpha"}`))
		case http.MethodPost:
			var body commentRequest
			json.NewDecoder(req.Body).Decode(&body)
			json.NewEncoder(w).Encode(commentResponse{Comment: Comment{ID: 2, Text: body.Text, User: User{Username: "alice"}, ContentID: body.ContentID}})
		}
	}))
	defer server.Close()

	c := newTestClient(server.URL)
	page, err := c.Comments(context.Background(), "A")
	if err != nil {
		t.Fatalf("Comments() error: %v", err)
	}
	if page.PageTitle != "Alpha" || len(page.Comments) != 1 || page.Comments[0].User.Username != "bob" {
		t.Errorf("unexpected page: %+v", page)
	}

	comment, err := c.PostComment(context.Background(), "A", "nice")
	if err != nil {
		t.Fatalf("PostComment() error: %v", err)
	}
	if comment.Text != "nice" || comment.ID != 2 {
		t.Errorf("unexpected comment: %+v", comment)
	}
}

func TestAPIErrorFromBody(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"error":"Not authenticated"}`))
	}))
	defer server.Close()

	_, err := newTestClient(server.URL).FetchFeed(context.Background(), nil)
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected *APIError, got %v", err)
	}
	if apiErr.Status != http.StatusUnauthorized || apiErr.Message != "Not authenticated" {
		t.Errorf("unexpected error: %+v", apiErr)
	}
}

func TestAPIErrorPlainBody(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer server.Close()

	err := newTestClient(server.URL).ReportView(context.Background(), "A", 1)
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected *APIError, got %v", err)
	}
	if apiErr.Message != "boom" {
		t.Errorf("Message = %q, want %q", apiErr.Message, "boom")
	}
}

func TestNoRetryOnServerError(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	if _, err := newTestClient(server.URL).FetchMore(context.Background(), nil); err == nil {
		t.Fatal("expected error")
	}
	if got := calls.Load(); got != 1 {
		t.Errorf("expected exactly 1 request, got %d", got)
	}
}

func TestMalformedResponse(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		w.Write([]byte(`not json`))
	}))
	defer server.Close()

	if _, err := newTestClient(server.URL).FetchFeed(context.Background(), nil); err == nil {
		t.Error("expected parse error")
	}
}

func TestContextCancelled(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		w.Write([]byte(`{"items":[]}`))
	}))
	defer server.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := newTestClient(server.URL).FetchFeed(ctx, nil); err == nil {
		t.Error("expected error for cancelled context")
	}
}

func TestBaseURLTrimmed(t *testing.T) {
	c := NewClient("http://localhost:8000/", "", 0, 2)
	if c.BaseURL() != "http://localhost:8000" {
		t.Errorf("BaseURL() = %q", c.BaseURL())
	}
	if c.limiter.Limit() != 2 {
		t.Errorf("limit = %v, want 2", c.limiter.Limit())
	}
}

// Package feedsim is an in-memory feed server implementing the HTTP contract
// the ThinkTok client speaks. It backs local development (cmd/feedsim) and
// serves as the fake server in client tests.
package feedsim

import (
	"encoding/json"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/abelbrown/thinktok/internal/api"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// Batch sizes per endpoint.
const (
	FeedSize     = 5
	MoreSize     = 3
	LoadMoreSize = 3
)

// MinRecordedView is the shortest view_duration, in seconds, that the server
// stores. Shorter reports are acknowledged and dropped.
const MinRecordedView = 1.0

// View is a recorded track_view call.
type View struct {
	Username  string
	ContentID string
	Seconds   float64
	At        time.Time
}

// Server holds the catalogue and per-user state.
type Server struct {
	mu       sync.Mutex
	pages    []Page
	byID     map[string]int
	cursor   map[string]int // username -> next catalogue position
	likes    map[string]map[string]bool
	comments map[string][]api.Comment
	views    []View
	nextID   int
	// Recycle restarts the catalogue for a user who has seen it all, so the
	// feed never runs dry. Off by default, which makes exhaustion reachable.
	Recycle bool
}

// New creates a Server over pages.
func New(pages []Page) *Server {
	s := &Server{
		pages:    pages,
		byID:     make(map[string]int, len(pages)),
		cursor:   make(map[string]int),
		likes:    make(map[string]map[string]bool),
		comments: make(map[string][]api.Comment),
		nextID:   1,
	}
	for i, p := range pages {
		s.byID[ContentID(p.Title)] = i
	}
	return s
}

// Handler returns the chi router for the API.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Route("/api", func(r chi.Router) {
		r.With(requireUser(`{"error":"Not authenticated"}`, http.StatusUnauthorized)).
			Get("/feed", s.handleBatch(FeedSize))
		r.Get("/feed/more", s.handleBatch(MoreSize))
		r.With(requireUser(`{"items":[]}`, http.StatusOK)).
			Get("/load_more", s.handleBatch(LoadMoreSize))

		r.Post("/track_view", s.handleTrackView)
		r.With(requireUser(`{"error":"Not authenticated"}`, http.StatusUnauthorized)).
			Post("/toggle_like", s.handleToggleLike)

		r.Get("/comments/{contentID}", s.handleComments)
		r.With(requireUser(`{"error":"Not authenticated"}`, http.StatusUnauthorized)).
			Post("/comments", s.handlePostComment)
	})
	return r
}

// Views returns every stored view, oldest first.
func (s *Server) Views() []View {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]View(nil), s.views...)
}

func username(r *http.Request) string {
	c, err := r.Cookie(api.UsernameCookie)
	if err != nil {
		return ""
	}
	return c.Value
}

// requireUser answers with body when the username cookie is missing.
func requireUser(body string, status int) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if username(r) == "" {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(status)
				_, _ = w.Write([]byte(body))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func parseExclude(raw string) map[string]bool {
	out := make(map[string]bool)
	for _, id := range strings.Split(raw, ",") {
		if id = strings.TrimSpace(id); id != "" {
			out[id] = true
		}
	}
	return out
}

func (s *Server) handleBatch(size int) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user := username(r)
		exclude := parseExclude(r.URL.Query().Get("exclude"))

		s.mu.Lock()
		items := s.next(user, size, exclude)
		s.mu.Unlock()

		writeJSON(w, http.StatusOK, map[string]any{"items": items})
	}
}

// next walks the catalogue from the user's cursor and returns up to size
// pages not in exclude. Caller holds s.mu.
func (s *Server) next(user string, size int, exclude map[string]bool) []api.FeedItem {
	items := make([]api.FeedItem, 0, size)
	pos := s.cursor[user]
	if s.Recycle && pos >= len(s.pages) {
		pos = 0
	}
	for ; pos < len(s.pages) && len(items) < size; pos++ {
		it := s.pages[pos].item()
		if exclude[it.ContentID] {
			continue
		}
		it.IsLiked = s.likes[user][it.ContentID]
		it.CommentCount = len(s.comments[it.ContentID])
		items = append(items, it)
	}
	s.cursor[user] = pos
	return items
}

type trackViewBody struct {
	ContentID    string  `json:"content_id"`
	ViewDuration float64 `json:"view_duration"`
}

func (s *Server) handleTrackView(w http.ResponseWriter, r *http.Request) {
	user := username(r)
	if user == "" {
		writeJSON(w, http.StatusOK, map[string]bool{"success": false})
		return
	}
	var body trackViewBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.ContentID == "" {
		writeError(w, http.StatusUnprocessableEntity, "invalid body")
		return
	}
	if body.ViewDuration > MinRecordedView {
		s.mu.Lock()
		s.views = append(s.views, View{Username: user, ContentID: body.ContentID, Seconds: body.ViewDuration, At: time.Now()})
		s.mu.Unlock()
	}
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

type contentBody struct {
	ContentID string `json:"content_id"`
	Text      string `json:"text,omitempty"`
}

func (s *Server) handleToggleLike(w http.ResponseWriter, r *http.Request) {
	user := username(r)
	var body contentBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.ContentID == "" {
		writeError(w, http.StatusUnprocessableEntity, "invalid body")
		return
	}

	s.mu.Lock()
	liked := s.likes[user]
	if liked == nil {
		liked = make(map[string]bool)
		s.likes[user] = liked
	}
	now := !liked[body.ContentID]
	if now {
		liked[body.ContentID] = true
	} else {
		delete(liked, body.ContentID)
	}
	s.mu.Unlock()

	writeJSON(w, http.StatusOK, map[string]any{"is_liked": now, "content_id": body.ContentID})
}

func (s *Server) handleComments(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "contentID")

	s.mu.Lock()
	page := api.CommentPage{
		Comments:  append([]api.Comment{}, s.comments[id]...),
		PageTitle: "Unknown",
	}
	if i, ok := s.byID[id]; ok {
		page.PageTitle = s.pages[i].Title
	}
	s.mu.Unlock()

	writeJSON(w, http.StatusOK, page)
}

func (s *Server) handlePostComment(w http.ResponseWriter, r *http.Request) {
	user := username(r)
	var body contentBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.ContentID == "" {
		writeError(w, http.StatusUnprocessableEntity, "invalid body")
		return
	}
	if strings.TrimSpace(body.Text) == "" {
		writeError(w, http.StatusBadRequest, "empty comment")
		return
	}

	s.mu.Lock()
	c := api.Comment{ID: s.nextID, Text: body.Text, User: api.User{Username: user}, ContentID: body.ContentID}
	s.nextID++
	s.comments[body.ContentID] = append(s.comments[body.ContentID], c)
	s.mu.Unlock()

	writeJSON(w, http.StatusOK, map[string]any{"comment": c})
}

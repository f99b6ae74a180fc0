// Package reddittest provides a fake Reddit API server for tests.
package reddittest

import (
	"encoding/json"
	"fmt"
	"maps"
	"net/http"
	"net/http/httptest"
	"slices"
	"strconv"
	"strings"
	"sync"
)

// Credentials accepted by the fake token endpoint.
const (
	ClientID     = "test-client"
	ClientSecret = "test-secret"
	Username     = "test-user"
	Password     = "test-pass"
	AccessToken  = "test-token"

	configPage = "config/automoderator"
)

// Edit records one wiki edit received by the server.
type Edit struct {
	Subreddit string
	Content   string
	Reason    string
}

// Server is a fake Reddit API. Its zero value is not usable; use New.
type Server struct {
	*httptest.Server

	mu          sync.Mutex
	pages       map[string]string
	statuses    map[string]int
	failures    map[string]failure
	moderated   []string
	pageSize    int
	edits       []Edit
	tokens      int
	requests    int
	userAgents  []string
	badPassword bool
}

// New starts a fake Reddit server. Call Close when done.
func New() *Server {
	s := &Server{
		pages:    make(map[string]string),
		statuses: make(map[string]int),
		failures: make(map[string]failure),
		pageSize: 100,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/v1/access_token", s.handleToken)
	mux.HandleFunc("GET /r/{sub}/wiki/config/automoderator", s.authed(s.handleRead))
	mux.HandleFunc("POST /r/{sub}/api/wiki/edit", s.authed(s.handleEdit))
	mux.HandleFunc("GET /subreddits/mine/moderator", s.authed(s.handleModerator))
	s.Server = httptest.NewServer(mux)

	return s
}

// TokenURL returns the URL of the fake token endpoint.
func (s *Server) TokenURL() string {
	return s.URL + "/api/v1/access_token"
}

// SetPage sets the AutoModerator config of sub.
func (s *Server) SetPage(sub, text string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pages[strings.ToLower(sub)] = text
}

// Page returns the AutoModerator config of sub.
func (s *Server) Page(sub string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pages[strings.ToLower(sub)]
}

// SetStatus makes every request about sub fail with code.
func (s *Server) SetStatus(sub string, code int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.statuses[strings.ToLower(sub)] = code
}

type failure struct {
	remaining int
	code      int
}

// FailNext makes the next n requests about sub fail with 503.
func (s *Server) FailNext(sub string, n int) {
	s.FailNextWith(sub, n, http.StatusServiceUnavailable)
}

// FailNextWith makes the next n requests about sub fail with code.
func (s *Server) FailNextWith(sub string, n, code int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures[strings.ToLower(sub)] = failure{remaining: n, code: code}
}

// SetModerated sets the moderated subreddit listing and its page size.
func (s *Server) SetModerated(pageSize int, subs ...string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.moderated = subs
	s.pageSize = pageSize
}

// RejectPassword makes the token endpoint refuse every grant.
func (s *Server) RejectPassword() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.badPassword = true
}

// Edits returns the wiki edits received so far.
func (s *Server) Edits() []Edit {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.edits)
}

// Pages returns a copy of every stored page.
func (s *Server) Pages() map[string]string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return maps.Clone(s.pages)
}

// TokenRequests returns how many tokens were issued.
func (s *Server) TokenRequests() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.tokens
}

// Requests returns how many authenticated API requests were received.
func (s *Server) Requests() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.requests
}

// UserAgents returns the User-Agent header of every request received.
func (s *Server) UserAgents() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.userAgents)
}

func (s *Server) handleToken(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.userAgents = append(s.userAgents, r.UserAgent())

	id, secret, ok := r.BasicAuth()
	if !ok || id != ClientID || secret != ClientSecret {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "invalid_client"})
		return
	}
	if err := r.ParseForm(); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid_request"})
		return
	}
	if s.badPassword || r.PostForm.Get("grant_type") != "password" ||
		r.PostForm.Get("username") != Username || r.PostForm.Get("password") != Password {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid_grant"})
		return
	}

	s.tokens++
	writeJSON(w, http.StatusOK, map[string]any{
		"access_token": AccessToken,
		"token_type":   "bearer",
		"expires_in":   3600,
		"scope":        "*",
	})
}

// authed checks the bearer token and applies injected failures before
// calling next with the server lock held.
func (s *Server) authed(next func(http.ResponseWriter, *http.Request)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		defer s.mu.Unlock()
		s.requests++
		s.userAgents = append(s.userAgents, r.UserAgent())

		if r.Header.Get("Authorization") != "Bearer "+AccessToken {
			writeJSON(w, http.StatusUnauthorized, map[string]string{"message": "Unauthorized", "error": "401"})
			return
		}

		sub := strings.ToLower(r.PathValue("sub"))
		if sub != "" {
			if f := s.failures[sub]; f.remaining > 0 {
				f.remaining--
				s.failures[sub] = f
				writeJSON(w, f.code, map[string]string{"message": http.StatusText(f.code)})
				return
			}
			if code := s.statuses[sub]; code != 0 {
				writeJSON(w, code, map[string]string{"message": http.StatusText(code), "error": strconv.Itoa(code)})
				return
			}
		}

		next(w, r)
	}
}

func (s *Server) handleRead(w http.ResponseWriter, r *http.Request) {
	sub := strings.ToLower(r.PathValue("sub"))
	text, ok := s.pages[sub]
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]string{"reason": "PAGE_NOT_CREATED", "message": "Not Found"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"kind": "wikipage",
		"data": map[string]any{
			"content_md": text,
			"may_revise": true,
		},
	})
}

func (s *Server) handleEdit(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"message": err.Error()})
		return
	}
	if page := r.PostForm.Get("page"); page != configPage {
		writeJSON(w, http.StatusBadRequest, map[string]string{"message": fmt.Sprintf("unexpected page %q", page)})
		return
	}

	sub := r.PathValue("sub")
	content := r.PostForm.Get("content")
	s.edits = append(s.edits, Edit{Subreddit: sub, Content: content, Reason: r.PostForm.Get("reason")})
	s.pages[strings.ToLower(sub)] = content
	writeJSON(w, http.StatusOK, map[string]any{})
}

func (s *Server) handleModerator(w http.ResponseWriter, r *http.Request) {
	start := 0
	if after := r.URL.Query().Get("after"); after != "" {
		for i, sub := range s.moderated {
			if fullname(sub) == after {
				start = i + 1
				break
			}
		}
	}
	end := min(start+s.pageSize, len(s.moderated))

	children := make([]map[string]any, 0, end-start)
	for _, sub := range s.moderated[start:end] {
		children = append(children, map[string]any{
			"kind": "t5",
			"data": map[string]any{"display_name": sub, "name": fullname(sub)},
		})
	}

	var after any
	if end < len(s.moderated) {
		after = fullname(s.moderated[end-1])
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"kind": "Listing",
		"data": map[string]any{"after": after, "children": children},
	})
}

func fullname(sub string) string {
	return "t5_" + strings.ToLower(sub)
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

package mockwiki

import (
	"crypto/subtle"
	"database/sql"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
)

// DefaultLimit is the page size used when the search request does not
// specify one.
const DefaultLimit = 25

// Server serves the mock wiki REST API.
type Server struct {
	store    *Store
	logger   *slog.Logger
	username string
	apiToken string
}

// New creates a mock wiki server. Requests must carry Basic auth
// matching username/apiToken; empty credentials disable the check.
func New(store *Store, username, apiToken string, logger *slog.Logger) *Server {
	return &Server{
		store:    store,
		logger:   logger.With("component", "mockwiki"),
		username: username,
		apiToken: apiToken,
	}
}

// Handler returns the chi router for the REST API.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(s.logRequests)
	r.Use(s.requireAuth)

	r.Get("/rest/api/search", s.handleSearch)
	r.Get("/rest/api/space", s.handleSpaces)

	r.Route("/rest/api/content", func(r chi.Router) {
		r.Post("/", s.handleCreate)
		r.Get("/{id}", s.handleGet)
		r.Put("/{id}", s.handleUpdate)
		r.Delete("/{id}", s.handleDelete)
	})

	return r
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		startTime := time.Now()
		next.ServeHTTP(w, r)
		s.logger.Debug("request", "method", r.Method, "path", r.URL.Path, "elapsed", time.Since(startTime))
	})
}

func (s *Server) requireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.username == "" {
			next.ServeHTTP(w, r)
			return
		}
		want := "Basic " + base64.StdEncoding.EncodeToString([]byte(s.username+":"+s.apiToken))
		got := r.Header.Get("Authorization")
		if subtle.ConstantTimeCompare([]byte(got), []byte(want)) != 1 {
			writeError(w, http.StatusUnauthorized, "basic authentication required")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// writeError writes a Confluence-style JSON error body.
func writeError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]any{
		"statusCode": status,
		"message":    message,
	})
}

// writeCQLError reports an unparsable query the way Confluence does,
// through an errorMessages list.
func writeCQLError(w http.ResponseWriter, err error) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusBadRequest)
	json.NewEncoder(w).Encode(map[string]any{
		"statusCode":    http.StatusBadRequest,
		"errorMessages": []string{err.Error()},
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// pageRecord is the wire shape of one search result or content
// response.
func pageRecord(p *Page) map[string]any {
	return map[string]any{
		"id":    p.ID,
		"type":  p.Type,
		"title": p.Title,
		"space": map[string]any{"key": p.Space},
		"body":  p.Body,
	}
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	cql := q.Get("cql")

	start, _ := strconv.Atoi(q.Get("start"))
	if start < 0 {
		start = 0
	}
	limit, err := strconv.Atoi(q.Get("limit"))
	if err != nil || limit <= 0 {
		limit = DefaultLimit
	}

	pages, total, err := s.store.SearchPages(r.Context(), cql, start, limit)
	if err != nil {
		writeCQLError(w, err)
		return
	}

	results := make([]map[string]any, 0, len(pages))
	for _, p := range pages {
		results = append(results, pageRecord(p))
	}

	links := map[string]any{
		"base": "http://" + r.Host,
		"self": r.URL.String(),
	}
	if start+limit < total {
		next := url.Values{}
		next.Set("cql", cql)
		next.Set("start", strconv.Itoa(start+limit))
		next.Set("limit", strconv.Itoa(limit))
		links["next"] = "/rest/api/search?" + next.Encode()
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"results":   results,
		"start":     start,
		"limit":     limit,
		"size":      len(results),
		"totalSize": total,
		"_links":    links,
	})
}

func (s *Server) handleSpaces(w http.ResponseWriter, r *http.Request) {
	spaces, err := s.store.Spaces(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	results := make([]map[string]any, 0, len(spaces))
	for _, key := range spaces {
		results = append(results, map[string]any{"key": key, "type": "global"})
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"results": results,
		"size":    len(results),
	})
}

// contentRequest is the decoded body for create and update calls.
type contentRequest struct {
	Type  string `json:"type"`
	Title string `json:"title"`
	Space struct {
		Key string `json:"key"`
	} `json:"space"`
	Body string `json:"body"`
}

func (cr *contentRequest) validate() map[string]string {
	problems := map[string]string{}
	if cr.Title == "" {
		problems["title"] = "title is required"
	}
	if cr.Space.Key == "" {
		problems["space"] = "space key is required"
	}
	return problems
}

// writeFieldErrors reports per-field validation failures through a
// Confluence-style errors mapping.
func writeFieldErrors(w http.ResponseWriter, problems map[string]string) {
	writeJSON(w, http.StatusBadRequest, map[string]any{
		"statusCode": http.StatusBadRequest,
		"errors":     problems,
	})
}

func (s *Server) handleCreate(w http.ResponseWriter, r *http.Request) {
	var req contentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "malformed request body")
		return
	}
	if problems := req.validate(); len(problems) > 0 {
		writeFieldErrors(w, problems)
		return
	}

	p := &Page{
		Type:  req.Type,
		Space: req.Space.Key,
		Title: req.Title,
		Body:  req.Body,
	}
	if err := s.store.CreatePage(r.Context(), p); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, pageRecord(p))
}

func (s *Server) handleGet(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	p, err := s.store.GetPage(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if p == nil {
		writeError(w, http.StatusNotFound, fmt.Sprintf("no content with id %q", id))
		return
	}
	writeJSON(w, http.StatusOK, pageRecord(p))
}

func (s *Server) handleUpdate(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	var req contentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "malformed request body")
		return
	}
	if problems := req.validate(); len(problems) > 0 {
		writeFieldErrors(w, problems)
		return
	}

	p := &Page{
		ID:    id,
		Type:  req.Type,
		Space: req.Space.Key,
		Title: req.Title,
		Body:  req.Body,
	}
	if p.Type == "" {
		p.Type = "page"
	}
	if err := s.store.UpdatePage(r.Context(), p); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			writeError(w, http.StatusNotFound, fmt.Sprintf("no content with id %q", id))
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, pageRecord(p))
}

func (s *Server) handleDelete(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := s.store.DeletePage(r.Context(), id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			writeError(w, http.StatusNotFound, fmt.Sprintf("no content with id %q", id))
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

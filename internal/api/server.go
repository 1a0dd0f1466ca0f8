// Package api implements the listing and keyword management HTTP API.
package api

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"reddit_watcher/internal/control"
	"reddit_watcher/internal/model"
	"reddit_watcher/internal/storage"
)

// Server serves the listing/management API. Keyword mutations fire a
// best-effort reload notify at the watcher's control endpoint.
type Server struct {
	store       storage.Storage
	controlAddr string
	user, pass  string
	notify      *http.Client
	log         *slog.Logger
}

// New creates a Server. Basic auth is disabled when user and pass are both
// empty.
func New(store storage.Storage, controlAddr, user, pass string, log *slog.Logger) *Server {
	return &Server{
		store:       store,
		controlAddr: controlAddr,
		user:        user,
		pass:        pass,
		notify:      &http.Client{Timeout: 2 * time.Second},
		log:         log,
	}
}

// Handler returns the router for the API.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Get("/health", s.handleHealth)

	r.Group(func(r chi.Router) {
		r.Use(s.basicAuth)
		r.Get("/keywords", s.handleListKeywords)
		r.Post("/keywords", s.handleAddKeyword)
		r.Delete("/keywords/{id}", s.handleDeleteKeyword)
		r.Get("/matches", s.handleListMatches)
		r.Get("/replies/{matchID}", s.handleListReplies)
		r.Get("/dashboard/keywords", s.handleKeywordStats)
	})
	return r
}

func (s *Server) basicAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.user == "" && s.pass == "" {
			next.ServeHTTP(w, r)
			return
		}
		user, pass, ok := r.BasicAuth()
		if !ok ||
			subtle.ConstantTimeCompare([]byte(user), []byte(s.user)) != 1 ||
			subtle.ConstantTimeCompare([]byte(pass), []byte(s.pass)) != 1 {
			w.Header().Set("WWW-Authenticate", `Basic realm="api"`)
			s.writeError(w, http.StatusUnauthorized, "unauthorized")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]any{"status": "ok", "time": time.Now().Unix()})
}

func (s *Server) handleListKeywords(w http.ResponseWriter, r *http.Request) {
	keywords, err := s.store.ListKeywords(r.Context(), r.URL.Query().Get("q"))
	if err != nil {
		s.log.Error("list keywords", "error", err)
		s.writeError(w, http.StatusInternalServerError, "list keywords failed")
		return
	}
	if keywords == nil {
		keywords = []model.Keyword{}
	}
	s.writeJSON(w, http.StatusOK, keywords)
}

func (s *Server) handleAddKeyword(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Keyword string `json:"keyword"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid body")
		return
	}
	kw := strings.TrimSpace(body.Keyword)
	if kw == "" {
		s.writeError(w, http.StatusBadRequest, "keyword is required")
		return
	}

	id, err := s.store.GetOrCreateKeyword(r.Context(), kw)
	if err != nil {
		s.log.Error("add keyword", "keyword", kw, "error", err)
		s.writeError(w, http.StatusInternalServerError, "insert keyword failed")
		return
	}

	s.notifyReload(r.Context())
	s.writeJSON(w, http.StatusCreated, map[string]any{"id": id, "keyword": kw})
}

func (s *Server) handleDeleteKeyword(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid keyword id")
		return
	}

	err = s.store.DeleteKeyword(r.Context(), id)
	if errors.Is(err, storage.ErrNotFound) {
		s.writeError(w, http.StatusNotFound, "keyword not found")
		return
	}
	if err != nil {
		s.log.Error("delete keyword", "id", id, "error", err)
		s.writeError(w, http.StatusInternalServerError, "delete keyword failed")
		return
	}

	s.notifyReload(r.Context())
	s.writeJSON(w, http.StatusOK, map[string]int64{"deleted": id})
}

func (s *Server) handleListMatches(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	f := storage.MatchFilter{
		Keyword:   q.Get("keyword"),
		Subreddit: q.Get("subreddit"),
		Page:      1,
		Size:      20,
	}
	if kind := q.Get("kind"); kind != "" {
		if kind != string(model.KindPost) && kind != string(model.KindComment) {
			s.writeError(w, http.StatusBadRequest, "kind must be post or comment")
			return
		}
		f.Kind = model.ContentKind(kind)
	}
	var err error
	if f.KeywordID, err = parseIntParam(q.Get("keyword_id")); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid keyword_id")
		return
	}
	if f.FromTS, err = parseIntParam(q.Get("from_ts")); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid from_ts")
		return
	}
	if f.ToTS, err = parseIntParam(q.Get("to_ts")); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid to_ts")
		return
	}
	if page, err := parseIntParam(q.Get("page")); err != nil || page < 0 {
		s.writeError(w, http.StatusBadRequest, "invalid page")
		return
	} else if page > 0 {
		f.Page = int(page)
	}
	if size, err := parseIntParam(q.Get("size")); err != nil || size < 0 || size > 100 {
		s.writeError(w, http.StatusBadRequest, "invalid size")
		return
	} else if size > 0 {
		f.Size = int(size)
	}

	matches, err := s.store.ListMatches(r.Context(), f)
	if err != nil {
		s.log.Error("list matches", "error", err)
		s.writeError(w, http.StatusInternalServerError, "list matches failed")
		return
	}
	if matches == nil {
		matches = []model.Match{}
	}
	s.writeJSON(w, http.StatusOK, map[string]any{
		"page":  f.Page,
		"size":  f.Size,
		"items": matches,
	})
}

func (s *Server) handleListReplies(w http.ResponseWriter, r *http.Request) {
	matchID, err := strconv.ParseInt(chi.URLParam(r, "matchID"), 10, 64)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid match id")
		return
	}
	replies, err := s.store.ListReplies(r.Context(), matchID)
	if err != nil {
		s.log.Error("list replies", "match_id", matchID, "error", err)
		s.writeError(w, http.StatusInternalServerError, "list replies failed")
		return
	}
	if replies == nil {
		replies = []model.Reply{}
	}
	s.writeJSON(w, http.StatusOK, replies)
}

func (s *Server) handleKeywordStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.store.KeywordStats(r.Context())
	if err != nil {
		s.log.Error("keyword stats", "error", err)
		s.writeError(w, http.StatusInternalServerError, "keyword stats failed")
		return
	}
	if stats == nil {
		stats = []model.KeywordStat{}
	}
	s.writeJSON(w, http.StatusOK, stats)
}

func (s *Server) notifyReload(ctx context.Context) {
	control.Notify(ctx, s.notify, s.controlAddr)
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.log.Error("write response", "error", err)
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, msg string) {
	s.writeJSON(w, status, map[string]string{"error": msg})
}

func parseIntParam(raw string) (int64, error) {
	if raw == "" {
		return 0, nil
	}
	return strconv.ParseInt(raw, 10, 64)
}

package api

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/agentflow/beads/internal/apierr"
	"github.com/agentflow/beads/internal/engine"
	"github.com/agentflow/beads/internal/query"
	"github.com/agentflow/beads/internal/types"
)

// HTTPServer serves the local HTTP dashboard API described in spec §6.
// It is local-bound (127.0.0.1) with no authentication, per spec §5: the
// system intentionally relies on local-OS isolation.
type HTTPServer struct {
	surface    *Surface
	httpServer *http.Server
	listener   net.Listener
}

// NewHTTPServer constructs the dashboard server bound to surface.
func NewHTTPServer(surface *Surface) *HTTPServer {
	h := &HTTPServer{surface: surface}
	mux := http.NewServeMux()
	h.registerRoutes(mux)
	h.httpServer = &http.Server{
		Handler:      mux,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}
	return h
}

func (h *HTTPServer) registerRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/healthz", h.handleHealthz)
	mux.HandleFunc("/api/issues", h.handleIssues)
	mux.HandleFunc("/api/issue/", h.handleIssue)
	mux.HandleFunc("/api/ready", h.handleReady)
	mux.HandleFunc("/api/blocked", h.handleBlocked)
	mux.HandleFunc("/api/critical-path", h.handleCriticalPath)
	mux.HandleFunc("/api/metrics", h.handleMetrics)
	mux.HandleFunc("/api/activity", h.handleActivity)
	mux.HandleFunc("/api/releases", h.handleReleases)
	mux.HandleFunc("/api/release/", h.handleReleaseTree)
	mux.HandleFunc("/api/search", h.handleSearch)
	mux.HandleFunc("/api/batch/close", h.handleBatchClose)
	mux.HandleFunc("/api/batch/update", h.handleBatchUpdate)
}

// Serve binds addr and blocks until ctx is cancelled, then gracefully
// shuts down.
func (h *HTTPServer) Serve(ctx context.Context, addr string) error {
	l, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("api: listening on %s: %w", addr, err)
	}
	h.listener = l

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = h.httpServer.Shutdown(shutdownCtx)
	}()

	err = h.httpServer.Serve(l)
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

// Addr returns the bound listener address, valid after Serve starts
// listening.
func (h *HTTPServer) Addr() string {
	if h.listener == nil {
		return ""
	}
	return h.listener.Addr().String()
}

// Handler returns the underlying mux, so server mode can mount several
// projects' handlers under distinct prefixes on one shared listener.
func (h *HTTPServer) Handler() http.Handler {
	return h.httpServer.Handler
}

func (h *HTTPServer) handleHealthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

func (h *HTTPServer) handleIssues(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	q := r.URL.Query()
	filter := ListFilter{
		StatusCategory: q.Get("status_category"),
		Status:         q.Get("status"),
		Type:           q.Get("type"),
	}
	if a := q.Get("assignee"); a != "" {
		filter.Assignee = &a
	}
	if p := q.Get("parent_id"); p != "" {
		filter.ParentID = &p
	}
	if l := q.Get("limit"); l != "" {
		if n, err := strconv.Atoi(l); err == nil {
			filter.Limit = n
		}
	}
	issues, err := h.surface.ListIssues(r.Context(), filter)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, issues)
}

// handleIssue serves GET/PATCH /api/issue/{id} and POST
// /api/issue/{id}/comments.
func (h *HTTPServer) handleIssue(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/api/issue/")
	if rest == "" {
		http.NotFound(w, r)
		return
	}
	if id, ok := strings.CutSuffix(rest, "/comments"); ok {
		h.handleComments(w, r, id)
		return
	}
	id := rest

	switch r.Method {
	case http.MethodGet:
		includeTransitions := r.URL.Query().Get("include_transitions") == "1"
		view, err := h.surface.GetIssue(r.Context(), id, GetIssueOptions{IncludeTransitions: includeTransitions})
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, view)
	case http.MethodPatch:
		var in engine.UpdateInput
		if err := decodeJSON(r, &in); err != nil {
			writeError(w, err)
			return
		}
		iss, err := h.surface.UpdateIssue(r.Context(), id, in)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, iss)
	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

func (h *HTTPServer) handleComments(w http.ResponseWriter, r *http.Request, id string) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var body struct {
		Author string `json:"author"`
		Text   string `json:"text"`
	}
	if err := decodeJSON(r, &body); err != nil {
		writeError(w, err)
		return
	}
	if err := h.surface.AddComment(r.Context(), id, body.Author, body.Text); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

func (h *HTTPServer) handleReady(w http.ResponseWriter, r *http.Request) {
	issues, err := h.surface.GetReady(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, issues)
}

func (h *HTTPServer) handleBlocked(w http.ResponseWriter, r *http.Request) {
	issues, err := h.surface.GetBlocked(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, issues)
}

func (h *HTTPServer) handleCriticalPath(w http.ResponseWriter, r *http.Request) {
	issues, err := h.surface.GetCriticalPath(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, issues)
}

func (h *HTTPServer) handleMetrics(w http.ResponseWriter, r *http.Request) {
	days := 30
	if d := r.URL.Query().Get("days"); d != "" {
		if n, err := strconv.Atoi(d); err == nil {
			days = n
		}
	}
	metrics, err := h.surface.GetFlowMetrics(r.Context(), days)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, metrics)
}

func (h *HTTPServer) handleActivity(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := query.ActivityFilter{
		Actor:     q.Get("actor"),
		EventType: types.EventType(q.Get("event_type")),
	}
	if since := q.Get("since"); since != "" {
		t, err := time.Parse(time.RFC3339, since)
		if err != nil {
			writeError(w, apierr.Validationf("invalid since timestamp: %v", err))
			return
		}
		filter.Since = t
	}
	events, err := h.surface.GetActivity(r.Context(), filter)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, events)
}

func (h *HTTPServer) handleReleases(w http.ResponseWriter, r *http.Request) {
	includeReleased := r.URL.Query().Get("include_released") == "1"
	releases, err := h.surface.ListReleases(r.Context(), includeReleased)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, releases)
}

func (h *HTTPServer) handleReleaseTree(w http.ResponseWriter, r *http.Request) {
	id, ok := strings.CutSuffix(strings.TrimPrefix(r.URL.Path, "/api/release/"), "/tree")
	if !ok || id == "" {
		http.NotFound(w, r)
		return
	}
	tree, err := h.surface.GetReleaseTree(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, tree)
}

func (h *HTTPServer) handleSearch(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	q := r.URL.Query().Get("q")
	issues, err := h.surface.Search(r.Context(), q)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, issues)
}

func (h *HTTPServer) handleBatchClose(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var body struct {
		IDs    []string `json:"ids"`
		Reason string   `json:"reason"`
		Actor  string   `json:"actor"`
	}
	if err := decodeJSON(r, &body); err != nil {
		writeError(w, err)
		return
	}
	result := h.surface.BatchClose(r.Context(), body.IDs, body.Reason, body.Actor)
	writeJSON(w, http.StatusOK, result)
}

func (h *HTTPServer) handleBatchUpdate(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var body struct {
		IDs    []string                    `json:"ids"`
		Fields map[string]types.FieldValue `json:"fields"`
		Actor  string                      `json:"actor"`
	}
	if err := decodeJSON(r, &body); err != nil {
		writeError(w, err)
		return
	}
	result := h.surface.BatchUpdate(r.Context(), body.IDs, body.Fields, body.Actor)
	writeJSON(w, http.StatusOK, result)
}

func decodeJSON(r *http.Request, v interface{}) error {
	body, err := io.ReadAll(io.LimitReader(r.Body, 10*1024*1024))
	if err != nil {
		return apierr.Validationf("reading request body: %v", err)
	}
	if len(body) == 0 {
		return nil
	}
	if err := json.Unmarshal(body, v); err != nil {
		return apierr.Validationf("decoding request body: %v", err)
	}
	return nil
}

package api_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/agentflow/beads/internal/api"
	"github.com/agentflow/beads/internal/engine"
	"github.com/agentflow/beads/internal/query"
	"github.com/agentflow/beads/internal/store"
	"github.com/agentflow/beads/internal/templates"
)

func newTestServer(t *testing.T) (*httptest.Server, *engine.Engine) {
	t.Helper()
	ctx := context.Background()
	s, err := store.Open(ctx, filepath.Join(t.TempDir(), "beads.db"), "bd")
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	reg := templates.New("")
	e := engine.New(s, reg)
	q := query.New(s, reg)
	surface := api.New(e, q, reg)
	h := api.NewHTTPServer(surface)
	return httptest.NewServer(h.Handler()), e
}

func TestHealthzReturnsOK(t *testing.T) {
	srv, _ := newTestServer(t)
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/healthz")
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()
	require.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestGetIssueNotFoundReturns404Envelope(t *testing.T) {
	srv, _ := newTestServer(t)
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/api/issue/bd-nope")
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()
	require.Equal(t, http.StatusNotFound, resp.StatusCode)

	var env api.ErrorEnvelope
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&env))
	require.Equal(t, "NOT_FOUND", env.Code)
}

func TestCreateThenGetIssueRoundTrip(t *testing.T) {
	ctx := context.Background()
	srv, e := newTestServer(t)
	defer srv.Close()

	iss, err := e.CreateIssue(ctx, engine.CreateInput{Title: "wire the HTTP layer", Type: "task", Priority: 1, Actor: "a"})
	require.NoError(t, err)

	resp, err := http.Get(srv.URL + "/api/issue/" + iss.ID)
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var view api.IssueView
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&view))
	require.Equal(t, "wire the HTTP layer", view.Issue.Title)
}

func TestListIssuesFiltersByType(t *testing.T) {
	ctx := context.Background()
	srv, e := newTestServer(t)
	defer srv.Close()

	_, err := e.CreateIssue(ctx, engine.CreateInput{Title: "a bug", Type: "bug", Priority: 2, Actor: "a"})
	require.NoError(t, err)
	_, err = e.CreateIssue(ctx, engine.CreateInput{Title: "a task", Type: "task", Priority: 2, Actor: "a"})
	require.NoError(t, err)

	resp, err := http.Get(srv.URL + "/api/issues?type=bug")
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var issues []map[string]interface{}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&issues))
	require.Len(t, issues, 1)
	require.Equal(t, "bug", issues[0]["Type"])
}

func TestHandleIssueRejectsWrongMethod(t *testing.T) {
	srv, _ := newTestServer(t)
	defer srv.Close()

	req, err := http.NewRequest(http.MethodDelete, srv.URL+"/api/issue/bd-1", nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()
	require.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
}

func TestBatchCloseEndpoint(t *testing.T) {
	ctx := context.Background()
	srv, e := newTestServer(t)
	defer srv.Close()

	iss, err := e.CreateIssue(ctx, engine.CreateInput{Title: "close me", Type: "task", Priority: 1, Actor: "a"})
	require.NoError(t, err)

	body, err := json.Marshal(map[string]interface{}{"ids": []string{iss.ID}, "reason": "done", "actor": "a"})
	require.NoError(t, err)
	resp, err := http.Post(srv.URL+"/api/batch/close", "application/json", bytes.NewReader(body))
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var result engine.BatchResult
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&result))
	require.Contains(t, result.Succeeded, iss.ID)
}

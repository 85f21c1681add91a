// Package api implements the APISurface: a small, orthogonal set of
// read/mutate operations consumed by the tool-call protocol bindings and
// the dashboard, per spec §4.8. Every operation is a thin call into
// IssueEngine/QueryService/TemplateRegistry — all logic lives there.
package api

import (
	"context"

	"github.com/agentflow/beads/internal/engine"
	"github.com/agentflow/beads/internal/query"
	"github.com/agentflow/beads/internal/templates"
	"github.com/agentflow/beads/internal/types"
)

// Surface is the handle type bundling the engine, query service, and
// registry one project's API operations are served from.
type Surface struct {
	Engine   *engine.Engine
	Query    *query.Service
	Registry *templates.Registry
}

// New constructs a Surface over an already-wired engine/query/registry
// triple.
func New(e *engine.Engine, q *query.Service, r *templates.Registry) *Surface {
	return &Surface{Engine: e, Query: q, Registry: r}
}

// IssueView is the GetIssue response shape: the issue plus, when
// requested, the valid transitions from its current state so session
// resumption doesn't need a second round-trip, per spec §4.8.
type IssueView struct {
	Issue            *types.Issue                 `json:"issue"`
	ValidTransitions []templates.TransitionOption `json:"valid_transitions,omitempty"`
}

// GetIssueOptions narrows what GetIssue embeds in its response.
type GetIssueOptions struct {
	IncludeTransitions bool
}

// GetIssue fetches one issue, optionally embedding its valid transitions.
func (s *Surface) GetIssue(ctx context.Context, id string, opts GetIssueOptions) (*IssueView, error) {
	iss, err := s.Engine.GetIssue(ctx, id)
	if err != nil {
		return nil, err
	}
	view := &IssueView{Issue: iss}
	if opts.IncludeTransitions {
		view.ValidTransitions = s.Registry.GetValidTransitions(iss.Type, iss.Status, iss.Fields)
	}
	return view, nil
}

// ListFilter mirrors engine.ListFilter, adding status_category as a
// first-class alias for Status so callers that think in categories and
// callers that think in literal state names share one filter shape, per
// spec §4.8.
type ListFilter struct {
	StatusCategory string
	Status         string
	Type           string
	Assignee       *string
	ParentID       *string
	Limit          int
}

func (f ListFilter) toEngineFilter() engine.ListFilter {
	status := f.Status
	if status == "" {
		status = f.StatusCategory
	}
	return engine.ListFilter{
		Status:   status,
		Type:     f.Type,
		Assignee: f.Assignee,
		ParentID: f.ParentID,
		Limit:    f.Limit,
	}
}

// ListIssues resolves filter and returns matching, fully hydrated issues.
func (s *Surface) ListIssues(ctx context.Context, filter ListFilter) ([]*types.Issue, error) {
	return s.Engine.ListIssues(ctx, filter.toEngineFilter())
}

func (s *Surface) GetReady(ctx context.Context) ([]*types.Issue, error) { return s.Engine.GetReady(ctx) }

func (s *Surface) GetBlocked(ctx context.Context) ([]*types.Issue, error) {
	return s.Engine.GetBlocked(ctx)
}

func (s *Surface) GetCriticalPath(ctx context.Context) ([]*types.Issue, error) {
	return s.Engine.GetCriticalPath(ctx)
}

func (s *Surface) Search(ctx context.Context, q string) ([]*types.Issue, error) {
	return s.Engine.SearchIssues(ctx, q)
}

func (s *Surface) GetFlowMetrics(ctx context.Context, days int) (*query.FlowMetrics, error) {
	return s.Query.GetFlowMetrics(ctx, days)
}

func (s *Surface) GetActivity(ctx context.Context, filter query.ActivityFilter) (interface{}, error) {
	return s.Query.GetActivity(ctx, filter)
}

func (s *Surface) ListReleases(ctx context.Context, includeReleased bool) (interface{}, error) {
	return s.Query.ListReleases(ctx, includeReleased)
}

func (s *Surface) GetReleaseTree(ctx context.Context, id string) (interface{}, error) {
	return s.Query.GetReleaseTree(ctx, id)
}

// CreateIssue, UpdateIssue, CloseIssue, claim/release, batch ops, and
// dependency ops pass straight through to the engine: the API surface
// adds no validation of its own, per spec §4.8.
func (s *Surface) CreateIssue(ctx context.Context, in engine.CreateInput) (*types.Issue, error) {
	return s.Engine.CreateIssue(ctx, in)
}

func (s *Surface) UpdateIssue(ctx context.Context, id string, in engine.UpdateInput) (*types.Issue, error) {
	return s.Engine.UpdateIssue(ctx, id, in)
}

func (s *Surface) CloseIssue(ctx context.Context, id string, in engine.CloseInput) (*types.Issue, error) {
	return s.Engine.CloseIssue(ctx, id, in)
}

func (s *Surface) ClaimIssue(ctx context.Context, id, assignee, actor string) (*types.Issue, error) {
	return s.Engine.ClaimIssue(ctx, id, assignee, actor)
}

func (s *Surface) ReleaseClaim(ctx context.Context, id, actor string) (*types.Issue, error) {
	return s.Engine.ReleaseClaim(ctx, id, actor)
}

func (s *Surface) ClaimNext(ctx context.Context, assignee string, filter engine.ClaimNextFilter, actor string) (*types.Issue, error) {
	return s.Engine.ClaimNext(ctx, assignee, filter, actor)
}

func (s *Surface) AddDependency(ctx context.Context, fromID, toID, actor string) error {
	return s.Engine.AddDependency(ctx, fromID, toID, actor)
}

func (s *Surface) RemoveDependency(ctx context.Context, fromID, toID, actor string) error {
	return s.Engine.RemoveDependency(ctx, fromID, toID, actor)
}

func (s *Surface) AddComment(ctx context.Context, issueID, author, text string) error {
	_, err := s.Engine.AddComment(ctx, issueID, author, text)
	return err
}

func (s *Surface) BatchClose(ctx context.Context, ids []string, reason, actor string) *engine.BatchResult {
	return s.Engine.BatchClose(ctx, ids, reason, actor)
}

func (s *Surface) BatchUpdate(ctx context.Context, ids []string, fields map[string]types.FieldValue, actor string) *engine.BatchResult {
	return s.Engine.BatchUpdate(ctx, ids, fields, actor)
}

package engine

import (
	"context"
	"fmt"

	"github.com/agentflow/beads/internal/store"
	"github.com/agentflow/beads/internal/types"
)

// ListFilter mirrors the spec §4.4 ListIssues filter set. Status may be
// a literal state name or one of "open"/"wip"/"done", which expands to
// the union of matching state names across all registered types.
type ListFilter struct {
	Status   string
	Type     string
	Assignee *string
	ParentID *string
	Limit    int
}

// ListIssues resolves filter.Status (expanding a category name to its
// state-name union) and returns the matching, fully hydrated issues.
func (e *Engine) ListIssues(ctx context.Context, filter ListFilter) ([]*types.Issue, error) {
	storeFilter := store.IssueFilter{
		Type:     filter.Type,
		Assignee: filter.Assignee,
		ParentID: filter.ParentID,
		Limit:    filter.Limit,
	}

	switch filter.Status {
	case "":
		// no status filter
	case "open", "wip", "done":
		states := e.statesInCategory(types.Category(filter.Status))
		if len(states) == 0 {
			return nil, nil // empty expansion: empty result, not malformed SQL
		}
		storeFilter.Statuses = states
	default:
		storeFilter.Statuses = []string{filter.Status}
	}

	records, err := e.store.ListIssues(ctx, storeFilter)
	if err != nil {
		return nil, fmt.Errorf("listing issues: %w", err)
	}
	return e.hydrateBatch(ctx, records)
}

// statesInCategory returns every state name across all registered types
// whose category matches c.
func (e *Engine) statesInCategory(c types.Category) []string {
	var set map[string]bool
	switch c {
	case types.CategoryOpen:
		set = e.registry.OpenStates()
	case types.CategoryDone:
		set = e.registry.DoneStates()
	default:
		// wip has no dedicated memoized set; derive by scanning types.
		set = map[string]bool{}
		for _, typeName := range e.registry.ListTypes() {
			for _, s := range e.registry.GetValidStates(typeName) {
				if s.Category == types.CategoryWIP {
					set[s.Name] = true
				}
			}
		}
	}
	out := make([]string, 0, len(set))
	for s := range set {
		out = append(out, s)
	}
	return out
}

// hydrateBatch assembles derived fields for a batch of issue rows using
// grouped queries rather than one round-trip per issue, per spec §4.4.
func (e *Engine) hydrateBatch(ctx context.Context, records []*store.IssueRecord) ([]*types.Issue, error) {
	if len(records) == 0 {
		return nil, nil
	}
	ids := make([]string, len(records))
	for i, r := range records {
		ids[i] = r.ID
	}

	labelsByIssue, err := e.store.LabelsForIssues(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("loading labels: %w", err)
	}
	edges, err := e.store.AllDependencyEdges(ctx)
	if err != nil {
		return nil, fmt.Errorf("loading dependency edges: %w", err)
	}
	blockedByOf := map[string][]string{}
	blocksOf := map[string][]string{}
	for _, ed := range edges {
		blockedByOf[ed.FromID] = append(blockedByOf[ed.FromID], ed.ToID)
		blocksOf[ed.ToID] = append(blocksOf[ed.ToID], ed.FromID)
	}

	statusByID := map[string]string{}
	for _, r := range records {
		statusByID[r.ID] = r.Status
	}
	// Blockers outside this batch (e.g. a parent issue list) need their
	// status looked up too.
	var missing []string
	for _, blockers := range blockedByOf {
		for _, b := range blockers {
			if _, ok := statusByID[b]; !ok {
				missing = append(missing, b)
			}
		}
	}
	if len(missing) > 0 {
		extra, err := e.store.ListIssuesByIDs(ctx, missing)
		if err != nil {
			return nil, fmt.Errorf("loading blocker statuses: %w", err)
		}
		for _, r := range extra {
			statusByID[r.ID] = r.Status
		}
	}

	done := e.registry.DoneStates()

	out := make([]*types.Issue, len(records))
	for i, r := range records {
		iss := recordToIssue(r, labelsByIssue[r.ID], blocksOf[r.ID], blockedByOf[r.ID], e.registry)
		iss.IsReady = computeIsReady(iss.StatusCategory, iss.BlockedBy, statusByID, done)
		out[i] = iss
	}
	return out, nil
}

func computeIsReady(category types.Category, blockedBy []string, statusByID map[string]string, done map[string]bool) bool {
	if category != types.CategoryOpen {
		return false
	}
	for _, b := range blockedBy {
		if !done[statusByID[b]] {
			return false
		}
	}
	return true
}

// GetReady returns every issue in an open-category state with no
// non-done blocker, per spec §4.4.
func (e *Engine) GetReady(ctx context.Context) ([]*types.Issue, error) {
	all, err := e.ListIssues(ctx, ListFilter{Status: "open"})
	if err != nil {
		return nil, err
	}
	out := make([]*types.Issue, 0, len(all))
	for _, iss := range all {
		if iss.IsReady {
			out = append(out, iss)
		}
	}
	return out, nil
}

// GetBlocked returns every issue in an open-category state with at least
// one non-done blocker.
func (e *Engine) GetBlocked(ctx context.Context) ([]*types.Issue, error) {
	all, err := e.ListIssues(ctx, ListFilter{Status: "open"})
	if err != nil {
		return nil, err
	}
	out := make([]*types.Issue, 0, len(all))
	for _, iss := range all {
		if !iss.IsReady && len(iss.BlockedBy) > 0 {
			out = append(out, iss)
		}
	}
	return out, nil
}

// SearchIssues runs a full-text search over title/description.
func (e *Engine) SearchIssues(ctx context.Context, query string) ([]*types.Issue, error) {
	records, err := e.store.SearchIssues(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("searching issues: %w", err)
	}
	return e.hydrateBatch(ctx, records)
}

package engine

import (
	"context"
	"fmt"
	"sort"

	"github.com/agentflow/beads/internal/store"
	"github.com/agentflow/beads/internal/types"
)

// GetCriticalPath computes the longest chain of dependencies among
// non-done issues using Kahn's topological sort with per-node distance
// and predecessor arrays, per spec §4.4/§9. Ties break by first-reached
// maximum for determinism.
func (e *Engine) GetCriticalPath(ctx context.Context) ([]*types.Issue, error) {
	all, err := e.store.ListIssues(ctx, store.IssueFilter{})
	if err != nil {
		return nil, fmt.Errorf("listing issues for critical path: %w", err)
	}
	done := e.registry.DoneStates()
	records := make([]*store.IssueRecord, 0, len(all))
	for _, r := range all {
		if !done[r.Status] {
			records = append(records, r)
		}
	}
	if len(records) == 0 {
		return nil, nil
	}

	idSet := make(map[string]bool, len(records))
	index := make(map[string]int, len(records))
	for i, r := range records {
		idSet[r.ID] = true
		index[r.ID] = i
	}

	edges, err := e.store.AllDependencyEdges(ctx)
	if err != nil {
		return nil, fmt.Errorf("loading dependency edges: %w", err)
	}

	// dependents[toID] = issues whose edge points to toID (i.e. toID must
	// finish before fromID); we walk blocker -> blocked, since the chain
	// grows from a dependency towards what depends on it.
	dependents := make(map[string][]string)
	inDegree := make(map[string]int, len(records))
	for _, r := range records {
		inDegree[r.ID] = 0
	}
	for _, ed := range edges {
		if !idSet[ed.FromID] || !idSet[ed.ToID] {
			continue // endpoint is done or outside this batch; excluded from the DAG
		}
		dependents[ed.ToID] = append(dependents[ed.ToID], ed.FromID)
		inDegree[ed.FromID]++
	}

	// Deterministic iteration order for the initial queue and each
	// dependents adjacency list.
	ids := make([]string, len(records))
	for i, r := range records {
		ids[i] = r.ID
	}
	sort.Strings(ids)
	for _, deps := range dependents {
		sort.Strings(deps)
	}

	queue := make([]string, 0, len(ids))
	for _, id := range ids {
		if inDegree[id] == 0 {
			queue = append(queue, id)
		}
	}

	dist := make(map[string]int, len(records))
	pred := make(map[string]string, len(records))
	remaining := make(map[string]int, len(records))
	for k, v := range inDegree {
		remaining[k] = v
	}

	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		for _, next := range dependents[cur] {
			if dist[cur]+1 > dist[next] {
				dist[next] = dist[cur] + 1
				pred[next] = cur
			}
			remaining[next]--
			if remaining[next] == 0 {
				queue = append(queue, next)
			}
		}
	}

	var tip string
	best := -1
	for _, id := range ids {
		if dist[id] > best {
			best = dist[id]
			tip = id
		}
	}
	if tip == "" {
		return nil, nil
	}

	var chainIDs []string
	for cur := tip; ; {
		chainIDs = append([]string{cur}, chainIDs...)
		p, ok := pred[cur]
		if !ok {
			break
		}
		cur = p
	}

	out := make([]*types.Issue, 0, len(chainIDs))
	for _, id := range chainIDs {
		iss, err := e.GetIssue(ctx, id)
		if err != nil {
			return nil, err
		}
		out = append(out, iss)
	}
	return out, nil
}

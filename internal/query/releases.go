package query

import (
	"context"
	"fmt"

	"github.com/agentflow/beads/internal/store"
	"github.com/agentflow/beads/internal/types"
)

// maxTreeDepth guards against pathological parent-id cycles, per spec
// §4.6.
const maxTreeDepth = 10

// ReleaseNode is one node in a release-progress tree: an issue plus its
// recursively-computed progress (fraction of leaf descendants in a
// done-category state).
type ReleaseNode struct {
	IssueID     string
	Title       string
	Status      string
	Progress    float64
	LeafCount   int
	DoneCount   int
	Children    []*ReleaseNode
}

// GetReleaseTree walks id's descendants and computes progress, per spec
// §4.6: non-leaves contribute only through their leaves, never double
// counted.
func (s *Service) GetReleaseTree(ctx context.Context, id string) (*ReleaseNode, error) {
	memo := map[string]*ReleaseNode{}
	return s.buildNode(ctx, id, 0, memo)
}

func (s *Service) buildNode(ctx context.Context, id string, depth int, memo map[string]*ReleaseNode) (*ReleaseNode, error) {
	if n, ok := memo[id]; ok {
		return n, nil
	}
	rec, err := s.store.GetIssue(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("loading release node %s: %w", id, err)
	}
	node := &ReleaseNode{IssueID: rec.ID, Title: rec.Title, Status: rec.Status}
	memo[id] = node

	if depth >= maxTreeDepth {
		node.LeafCount = 1
		node.DoneCount = boolToInt(s.isDone(rec))
		node.Progress = float64(node.DoneCount)
		return node, nil
	}

	childIDs, err := s.store.ListChildren(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("loading children of %s: %w", id, err)
	}
	if len(childIDs) == 0 {
		node.LeafCount = 1
		node.DoneCount = boolToInt(s.isDone(rec))
		node.Progress = float64(node.DoneCount)
		return node, nil
	}

	for _, cid := range childIDs {
		child, err := s.buildNode(ctx, cid, depth+1, memo)
		if err != nil {
			return nil, err
		}
		node.Children = append(node.Children, child)
		node.LeafCount += child.LeafCount
		node.DoneCount += child.DoneCount
	}
	if node.LeafCount > 0 {
		node.Progress = float64(node.DoneCount) / float64(node.LeafCount)
	}
	return node, nil
}

func (s *Service) isDone(rec *store.IssueRecord) bool {
	category, _ := s.registry.GetCategory(rec.IssueType, rec.Status)
	return category == types.CategoryDone
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// ListReleases returns every top-level issue (no parent) that has at
// least one child, optionally including already-released (fully done)
// trees.
func (s *Service) ListReleases(ctx context.Context, includeReleased bool) ([]*ReleaseNode, error) {
	all, err := s.store.ListIssues(ctx, store.IssueFilter{})
	if err != nil {
		return nil, fmt.Errorf("listing issues for releases: %w", err)
	}
	var out []*ReleaseNode
	memo := map[string]*ReleaseNode{}
	for _, r := range all {
		if r.ParentID != nil {
			continue
		}
		children, err := s.store.ListChildren(ctx, r.ID)
		if err != nil {
			return nil, err
		}
		if len(children) == 0 {
			continue
		}
		node, err := s.buildNode(ctx, r.ID, 0, memo)
		if err != nil {
			return nil, err
		}
		if !includeReleased && node.Progress >= 1 {
			continue
		}
		out = append(out, node)
	}
	return out, nil
}

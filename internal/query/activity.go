package query

import (
	"context"
	"fmt"
	"time"

	"github.com/agentflow/beads/internal/store"
	"github.com/agentflow/beads/internal/types"
)

// ActivityFilter narrows the activity feed.
type ActivityFilter struct {
	Since     time.Time
	Actor     string
	EventType types.EventType
	Limit     int
	Offset    int
}

// GetActivity returns events since filter.Since (inclusive), optionally
// filtered by actor and event type, paginated by Limit/Offset, per spec
// §4.6.
func (s *Service) GetActivity(ctx context.Context, filter ActivityFilter) ([]*store.EventRecord, error) {
	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	// RecentEvents is ordered newest-first; pull enough to cover the
	// requested window plus pagination offset, then filter in memory.
	// The activity feed is not expected to scan unbounded history since
	// Since narrows it, but we still cap the raw fetch to bound cost.
	raw, err := s.store.RecentEvents(ctx, (limit+filter.Offset)*4+200)
	if err != nil {
		return nil, fmt.Errorf("loading activity feed: %w", err)
	}

	var out []*store.EventRecord
	for _, e := range raw {
		if !filter.Since.IsZero() && e.CreatedAt.Before(filter.Since) {
			continue
		}
		if filter.Actor != "" && e.Actor != filter.Actor {
			continue
		}
		if filter.EventType != "" && e.EventType != filter.EventType {
			continue
		}
		out = append(out, e)
	}

	if filter.Offset >= len(out) {
		return nil, nil
	}
	out = out[filter.Offset:]
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

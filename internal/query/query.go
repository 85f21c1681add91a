// Package query implements the QueryService: flow metrics, the activity
// feed, and release-progress rollups, per spec §4.6. It reads through the
// Store directly (read-only, no write-mutex contention) and the
// TemplateRegistry for category resolution.
package query

import (
	"context"
	"fmt"
	"sort"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/agentflow/beads/internal/store"
	"github.com/agentflow/beads/internal/templates"
	"github.com/agentflow/beads/internal/types"
)

// Service is the handle type over one project's Store/Registry pair.
type Service struct {
	store    *store.Store
	registry *templates.Registry
}

// New constructs a Service bound to an already-open Store and Registry.
func New(s *store.Store, r *templates.Registry) *Service {
	return &Service{store: s, registry: r}
}

// FlowMetrics is the flow-metrics report over a trailing window, per
// spec §4.6.
type FlowMetrics struct {
	WindowDays       int
	Throughput       int
	CycleTimeMean    time.Duration
	CycleTimeMedian  time.Duration
	LeadTimeMean     time.Duration
	LeadTimeMedian   time.Duration
	ByType           map[string]*FlowMetrics
}

// GetFlowMetrics computes throughput, cycle time, and lead time over the
// trailing `days` window, plus a per-type breakdown, fanning these four
// computations out concurrently via errgroup.
func (s *Service) GetFlowMetrics(ctx context.Context, days int) (*FlowMetrics, error) {
	if days <= 0 {
		days = 30
	}
	cutoff := time.Now().UTC().Add(-time.Duration(days) * 24 * time.Hour)

	all, err := s.store.ListIssues(ctx, store.IssueFilter{})
	if err != nil {
		return nil, fmt.Errorf("listing issues for flow metrics: %w", err)
	}

	closed := make([]*store.IssueRecord, 0, len(all))
	for _, r := range all {
		if r.ClosedAt != nil && r.ClosedAt.After(cutoff) {
			closed = append(closed, r)
		}
	}

	var (
		throughput               int
		cycleMean, cycleMedian   time.Duration
		leadMean, leadMedian     time.Duration
		byType                   map[string]*FlowMetrics
	)

	g, _ := errgroup.WithContext(ctx)
	g.Go(func() error {
		throughput = len(closed)
		return nil
	})
	g.Go(func() error {
		cycleMean, cycleMedian = cycleTimeStats(ctx, s.store, s.registry, closed)
		return nil
	})
	g.Go(func() error {
		leadMean, leadMedian = leadTimeStats(closed)
		return nil
	})
	g.Go(func() error {
		byType = breakdownByType(ctx, s.store, s.registry, closed)
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	return &FlowMetrics{
		WindowDays:      days,
		Throughput:      throughput,
		CycleTimeMean:   cycleMean,
		CycleTimeMedian: cycleMedian,
		LeadTimeMean:    leadMean,
		LeadTimeMedian:  leadMedian,
		ByType:          byType,
	}, nil
}

func leadTimeStats(closed []*store.IssueRecord) (mean, median time.Duration) {
	durations := make([]time.Duration, 0, len(closed))
	for _, r := range closed {
		durations = append(durations, r.ClosedAt.Sub(r.CreatedAt))
	}
	return meanMedian(durations)
}

// cycleTimeStats approximates "time since first entering a wip-category
// state" using the earliest status_changed event whose new_value is a
// wip-category state; falls back to created_at if no such event exists
// (e.g. the issue was created already in-progress).
func cycleTimeStats(ctx context.Context, st *store.Store, reg *templates.Registry, closed []*store.IssueRecord) (mean, median time.Duration) {
	durations := make([]time.Duration, 0, len(closed))
	for _, r := range closed {
		start := firstWipTimestamp(ctx, st, reg, r)
		durations = append(durations, r.ClosedAt.Sub(start))
	}
	return meanMedian(durations)
}

// firstWipTimestamp finds the earliest status_changed event whose
// new_value is itself a wip-category state for the issue's type,
// per spec §4.6's "updated_at_at_first_wip". A multi-hop workflow
// (e.g. triage->confirmed->fixing) must skip the open-category hops
// and land on the first wip one; falls back to created_at if the issue
// never recorded such a transition (e.g. created already in-progress).
func firstWipTimestamp(ctx context.Context, st *store.Store, reg *templates.Registry, r *store.IssueRecord) time.Time {
	events, err := st.EventsForIssue(ctx, r.ID)
	if err != nil {
		return r.CreatedAt
	}
	for _, e := range events {
		if e.EventType != types.EventStatusChanged {
			continue
		}
		if category, ok := reg.GetCategory(r.IssueType, e.NewValue); ok && category == types.CategoryWIP {
			return e.CreatedAt
		}
	}
	return r.CreatedAt
}

func meanMedian(durations []time.Duration) (mean, median time.Duration) {
	if len(durations) == 0 {
		return 0, 0
	}
	var total time.Duration
	sorted := append([]time.Duration(nil), durations...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })
	for _, d := range sorted {
		total += d
	}
	mean = total / time.Duration(len(sorted))
	mid := len(sorted) / 2
	if len(sorted)%2 == 0 {
		median = (sorted[mid-1] + sorted[mid]) / 2
	} else {
		median = sorted[mid]
	}
	return mean, median
}

func breakdownByType(ctx context.Context, st *store.Store, reg *templates.Registry, closed []*store.IssueRecord) map[string]*FlowMetrics {
	byType := map[string][]*store.IssueRecord{}
	for _, r := range closed {
		byType[r.IssueType] = append(byType[r.IssueType], r)
	}
	out := make(map[string]*FlowMetrics, len(byType))
	for typ, recs := range byType {
		cycleMean, cycleMedian := cycleTimeStats(ctx, st, reg, recs)
		leadMean, leadMedian := leadTimeStats(recs)
		out[typ] = &FlowMetrics{
			Throughput:      len(recs),
			CycleTimeMean:   cycleMean,
			CycleTimeMedian: cycleMedian,
			LeadTimeMean:    leadMean,
			LeadTimeMedian:  leadMedian,
		}
	}
	return out
}

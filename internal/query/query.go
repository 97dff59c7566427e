// Package query translates structured filters into Arkiv predicate trees and
// layers client-side post-filters for predicates the store cannot express
// reliably over numeric-as-string attributes.
package query

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/dotgo-labs/dotgo-indexer/internal/arkiv"
	"github.com/dotgo-labs/dotgo-indexer/internal/event"
)

// DefaultLimit is used when a caller passes no limit. Callers should pass
// one explicitly: the limit caps the page fetched from the store before
// post-filtering, so a post-filtered result set can be smaller than the
// limit even when more matching records exist.
const DefaultLimit = 100

// Filters selects events. Zero values mean "no constraint".
type Filters struct {
	EventType event.Type
	ProjectID string
	Student   string
	Reviewer  string
	Skill     string
	Chain     event.Chain
	MinRating int   // rating >= MinRating, post-filtered
	StartTime int64 // inclusive ms bound, post-filtered
	EndTime   int64 // inclusive ms bound, post-filtered
	Limit     int
}

// Service is the read side of the pipeline. It shares the store handle with
// the write path but holds no state of its own.
type Service struct {
	store arkiv.Client
	log   *slog.Logger
}

// New builds a query service over the given store client.
func New(store arkiv.Client, log *slog.Logger) *Service {
	return &Service{store: store, log: log}
}

// Events runs the filter query. Equality predicates are pushed down to the
// store as one conjunction; the time range and rating threshold are applied
// here over the returned page. Store errors propagate, never masked as
// empty results.
func (s *Service) Events(ctx context.Context, f Filters) ([]event.Event, error) {
	var conds []arkiv.Predicate
	if f.EventType != "" {
		conds = append(conds, arkiv.Eq("eventType", string(f.EventType)))
	}
	if f.ProjectID != "" {
		conds = append(conds, arkiv.Eq("projectId", f.ProjectID))
	}
	if f.Student != "" {
		conds = append(conds, arkiv.Eq("student", f.Student))
	}
	if f.Reviewer != "" {
		conds = append(conds, arkiv.Eq("reviewer", f.Reviewer))
	}
	if f.Skill != "" {
		conds = append(conds, arkiv.Eq("skill", f.Skill))
	}
	if f.Chain != "" {
		conds = append(conds, arkiv.Eq("chain", string(f.Chain)))
	}

	limit := f.Limit
	if limit <= 0 {
		limit = DefaultLimit
	}

	entities, err := s.store.GetEntities(ctx, arkiv.Query{Where: arkiv.And(conds...), Limit: limit})
	if err != nil {
		return nil, fmt.Errorf("query events: %w", err)
	}

	out := make([]event.Event, 0, len(entities))
	for _, ent := range entities {
		if !matchesTimeRange(ent, f.StartTime, f.EndTime) {
			continue
		}
		if !matchesMinRating(ent, f.MinRating) {
			continue
		}
		var ev event.Event
		if err := json.Unmarshal(ent.Payload, &ev); err != nil {
			return nil, fmt.Errorf("decode stored event %s: %w", ent.Key, err)
		}
		out = append(out, ev)
	}
	return out, nil
}

func matchesTimeRange(ent arkiv.Entity, start, end int64) bool {
	if start == 0 && end == 0 {
		return true
	}
	raw, ok := ent.Attribute("timestamp")
	if !ok {
		return false
	}
	ts, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return false
	}
	if start != 0 && ts < start {
		return false
	}
	if end != 0 && ts > end {
		return false
	}
	return true
}

func matchesMinRating(ent arkiv.Entity, min int) bool {
	if min == 0 {
		return true
	}
	raw, ok := ent.Attribute("rating")
	if !ok {
		return false
	}
	rating, err := strconv.Atoi(raw)
	if err != nil {
		return false
	}
	return rating >= min
}

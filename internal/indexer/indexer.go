// Package indexer projects canonical events into Arkiv as immutable,
// attribute-indexed records with per-type retention.
package indexer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/dotgo-labs/dotgo-indexer/internal/arkiv"
	"github.com/dotgo-labs/dotgo-indexer/internal/event"
	"github.com/dotgo-labs/dotgo-indexer/internal/metrics"
)

// ErrStoreUnavailable wraps transport-level failures talking to the store.
// The indexer never retries; the caller decides.
var ErrStoreUnavailable = errors.New("arkiv store unavailable")

// Retention per event type, in seconds. Unlock records are operationally
// transient payment proof; project and review records are durable
// reputation data.
const (
	TTLProjectCreated  = 365 * 24 * 60 * 60
	TTLProjectUnlocked = 90 * 24 * 60 * 60
	TTLReviewSubmitted = 365 * 24 * 60 * 60
)

// Handle identifies a stored record.
type Handle struct {
	Key string
}

// BatchResult reports an all-or-nothing batch write.
type BatchResult struct {
	Count int
	Keys  []string
}

// Indexer turns canonical events into Arkiv creates and persists them.
type Indexer struct {
	store   arkiv.Client
	log     *slog.Logger
	mtr     *metrics.Metrics
	nowFunc func() time.Time
}

// New builds an indexer over the given store client. mtr may be nil.
func New(store arkiv.Client, log *slog.Logger, mtr *metrics.Metrics) *Indexer {
	return &Indexer{
		store:   store,
		log:     log,
		mtr:     mtr,
		nowFunc: time.Now,
	}
}

// IndexOne writes a single event as one record.
func (ix *Indexer) IndexOne(ctx context.Context, ev event.Event) (Handle, error) {
	create, err := ix.toCreate(ev)
	if err != nil {
		return Handle{}, err
	}

	res, err := ix.store.MutateEntities(ctx, []arkiv.Create{create})
	if err != nil {
		ix.mtr.IndexFailed()
		return Handle{}, fmt.Errorf("%w: index %s %s on %s: %v", ErrStoreUnavailable, ev.Type, ev.ProjectID, ev.Chain, err)
	}
	ix.mtr.EventIndexed()

	h := Handle{}
	if res != nil && len(res.Keys) > 0 {
		h.Key = res.Keys[0]
	}
	ix.log.Info("event indexed",
		"event_type", ev.Type, "project_id", ev.ProjectID, "chain", ev.Chain, "entity", h.Key)
	return h, nil
}

// IndexBatch writes all events in one store transaction. Partial failure is
// not possible: the whole batch fails as one. Callers needing per-event
// fault isolation should call IndexOne per event instead.
func (ix *Indexer) IndexBatch(ctx context.Context, evs []event.Event) (BatchResult, error) {
	if len(evs) == 0 {
		return BatchResult{}, nil
	}

	creates := make([]arkiv.Create, 0, len(evs))
	for _, ev := range evs {
		create, err := ix.toCreate(ev)
		if err != nil {
			return BatchResult{}, err
		}
		creates = append(creates, create)
	}

	res, err := ix.store.MutateEntities(ctx, creates)
	if err != nil {
		ix.mtr.IndexFailed()
		return BatchResult{}, fmt.Errorf("%w: batch of %d: %v", ErrStoreUnavailable, len(creates), err)
	}
	for range creates {
		ix.mtr.EventIndexed()
	}

	out := BatchResult{Count: len(creates)}
	if res != nil {
		out.Keys = res.Keys
	}
	ix.log.Info("batch indexed", "count", out.Count)
	return out, nil
}

func (ix *Indexer) toCreate(ev event.Event) (arkiv.Create, error) {
	// The only place indexedAt is assigned.
	ev.IndexedAt = ix.nowFunc().UnixMilli()

	payload, err := json.Marshal(ev)
	if err != nil {
		return arkiv.Create{}, fmt.Errorf("marshal event: %w", err)
	}

	return arkiv.Create{
		Payload:     payload,
		ContentType: "application/json",
		Attributes:  deriveAttributes(ev),
		ExpiresIn:   ttlSeconds(ev.Type),
	}, nil
}

// deriveAttributes is a deterministic function of the event. Skills fan out
// into one attribute per entry under the shared key "skill"; duplicates are
// preserved.
func deriveAttributes(ev event.Event) []arkiv.Attribute {
	attrs := []arkiv.Attribute{
		{Key: "eventType", Value: string(ev.Type)},
		{Key: "projectId", Value: ev.ProjectID},
	}

	switch ev.Type {
	case event.TypeProjectCreated:
		attrs = append(attrs,
			arkiv.Attribute{Key: "student", Value: ev.Student},
			arkiv.Attribute{Key: "chain", Value: string(ev.Chain)},
			arkiv.Attribute{Key: "title", Value: ev.Title},
		)
		for _, skill := range ev.Skills {
			attrs = append(attrs, arkiv.Attribute{Key: "skill", Value: skill})
		}
	case event.TypeProjectUnlocked:
		attrs = append(attrs,
			arkiv.Attribute{Key: "reviewer", Value: ev.Reviewer},
			arkiv.Attribute{Key: "student", Value: ev.Student},
			arkiv.Attribute{Key: "chain", Value: string(ev.Chain)},
			arkiv.Attribute{Key: "amount", Value: ev.Amount},
		)
	case event.TypeReviewSubmitted:
		attrs = append(attrs,
			arkiv.Attribute{Key: "reviewer", Value: ev.Reviewer},
			arkiv.Attribute{Key: "rating", Value: fmt.Sprintf("%d", ev.Rating)},
			arkiv.Attribute{Key: "chain", Value: string(ev.Chain)},
		)
	}

	attrs = append(attrs, arkiv.Attribute{Key: "timestamp", Value: fmt.Sprintf("%d", ev.Timestamp)})
	return attrs
}

func ttlSeconds(t event.Type) int64 {
	switch t {
	case event.TypeProjectUnlocked:
		return TTLProjectUnlocked
	case event.TypeReviewSubmitted:
		return TTLReviewSubmitted
	default:
		return TTLProjectCreated
	}
}

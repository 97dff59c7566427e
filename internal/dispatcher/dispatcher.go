// Package dispatcher wires chain watchers to the indexer. Each watcher
// delivers events through a synchronous handler, so per-chain order is
// preserved end to end; an event that fails to index is logged and dropped
// rather than blocking the stream behind it.
package dispatcher

import (
	"context"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/dotgo-labs/dotgo-indexer/internal/event"
	"github.com/dotgo-labs/dotgo-indexer/internal/indexer"
)

// Adapter is one chain subscription managed by the dispatcher.
type Adapter interface {
	Name() string
	Run(ctx context.Context) error
	Close() error
}

// Indexer captures the subset of the indexer the dispatcher calls.
type Indexer interface {
	IndexOne(ctx context.Context, ev event.Event) (indexer.Handle, error)
}

// Deduper remembers event keys that were already indexed. Optional.
type Deduper interface {
	IsSeen(ctx context.Context, key string, now time.Time) (bool, error)
	MarkSeen(ctx context.Context, key string, expiresAt time.Time) error
}

// Config controls dispatch behavior.
type Config struct {
	DedupeTTL    time.Duration // default 24h
	WriteTimeout time.Duration // per-event store budget, default 30s
}

// Dispatcher routes canonical events from adapters into the store.
type Dispatcher struct {
	ix      Indexer
	dedupe  Deduper
	cfg     Config
	log     *slog.Logger
	nowFunc func() time.Time
}

// New builds a dispatcher. A nil dedupe disables duplicate suppression;
// the store is append-only, so re-indexing is wasteful but harmless.
func New(ix Indexer, dedupe Deduper, cfg Config, log *slog.Logger) *Dispatcher {
	if cfg.DedupeTTL <= 0 {
		cfg.DedupeTTL = 24 * time.Hour
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = 30 * time.Second
	}
	return &Dispatcher{
		ix:      ix,
		dedupe:  dedupe,
		cfg:     cfg,
		log:     log,
		nowFunc: time.Now,
	}
}

// HandleEvent indexes one event. It is the handler passed to each watcher
// and runs on the watcher's goroutine: returning only after the write keeps
// that chain's events in order.
func (d *Dispatcher) HandleEvent(ev event.Event) {
	ctx, cancel := context.WithTimeout(context.Background(), d.cfg.WriteTimeout)
	defer cancel()

	if d.dedupe != nil {
		seen, err := d.dedupe.IsSeen(ctx, ev.Key(), d.nowFunc())
		if err != nil {
			d.log.Warn("dedupe check failed, indexing anyway", "dedupe_id", ev.Key(), "error", err)
		} else if seen {
			d.log.Debug("skipping already indexed event", "dedupe_id", ev.Key())
			return
		}
	}

	// Success metrics and logging happen in the indexer, once per write.
	if _, err := d.ix.IndexOne(ctx, ev); err != nil {
		d.log.Error("dropping event, store write failed",
			"event_type", ev.Type, "project_id", ev.ProjectID, "chain", ev.Chain, "error", err)
		return
	}

	if d.dedupe != nil {
		if err := d.dedupe.MarkSeen(ctx, ev.Key(), d.nowFunc().Add(d.cfg.DedupeTTL)); err != nil {
			d.log.Warn("dedupe mark failed", "dedupe_id", ev.Key(), "error", err)
		}
	}
}

// Run supervises the adapters until the context is canceled or one of them
// fails. A healthy adapter blocks in Run for the life of the process.
func (d *Dispatcher) Run(ctx context.Context, adapters ...Adapter) error {
	g, ctx := errgroup.WithContext(ctx)
	for _, a := range adapters {
		a := a
		g.Go(func() error {
			d.log.Info("starting chain watcher", "chain", a.Name())
			return a.Run(ctx)
		})
	}
	return g.Wait()
}

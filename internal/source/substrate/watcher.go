// Package substrate watches the portfolio contract on a Substrate chain
// (Polkadot) and emits canonical events. It holds a websocket subscription
// to contract event frames; each frame carries a pre-split system event
// record with the SCALE-encoded contract payload, which is decoded against
// the declared event schema. Substrate frames carry a block hash rather
// than an extrinsic hash, so the block hash fills the transaction hash slot.
package substrate

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/dotgo-labs/dotgo-indexer/internal/event"
	"github.com/dotgo-labs/dotgo-indexer/internal/metrics"
)

// SystemEvent is one record from the chain's system event stream.
type SystemEvent struct {
	Section     string
	Method      string
	Emitter     string
	Data        []byte
	BlockHash   string
	BlockNumber uint64
}

// Stream delivers system events in chain order.
type Stream interface {
	Next(ctx context.Context) (SystemEvent, error)
	Close() error
}

// Dialer opens a stream. The watcher redials through it after faults.
type Dialer func(ctx context.Context) (Stream, error)

// Handler receives each decoded canonical event, at least once, in chain order.
type Handler func(event.Event)

// Config controls a watcher.
type Config struct {
	Contract   string        // emitter address, hex
	Schema     Schema        // zero value means DefaultSchema
	RedialWait time.Duration // default 5s
	OnError    func(error)   // transport faults; default logs only
}

// Watcher subscribes to portfolio contract events on one Substrate chain.
type Watcher struct {
	dial     Dialer
	cfg      Config
	contract string // normalized for comparison
	onEvent  Handler
	log      *slog.Logger
	mtr      *metrics.Metrics

	mu        sync.Mutex
	cancel    context.CancelFunc
	done      chan struct{}
	closeOnce sync.Once
}

// NewWatcher builds a watcher that connects through dial.
func NewWatcher(dial Dialer, cfg Config, onEvent Handler, log *slog.Logger, mtr *metrics.Metrics) (*Watcher, error) {
	if dial == nil {
		return nil, fmt.Errorf("substrate watcher: dialer is required")
	}
	if onEvent == nil {
		return nil, fmt.Errorf("substrate watcher: onEvent handler is required")
	}
	if cfg.Contract == "" {
		return nil, fmt.Errorf("substrate watcher: contract address is required")
	}
	if len(cfg.Schema.Events) == 0 {
		cfg.Schema = DefaultSchema()
	}
	if cfg.RedialWait <= 0 {
		cfg.RedialWait = 5 * time.Second
	}
	return &Watcher{
		dial:     dial,
		cfg:      cfg,
		contract: normalizeAddr(cfg.Contract),
		onEvent:  onEvent,
		log:      log.With("chain", event.ChainPolkadot),
		mtr:      mtr,
		done:     make(chan struct{}),
	}, nil
}

// Name identifies the chain this watcher covers.
func (w *Watcher) Name() string { return string(event.ChainPolkadot) }

// Run consumes the stream until the context is canceled or Close is called.
// Transport faults are reported and the subscription is redialed; events
// emitted while disconnected are not replayed.
func (w *Watcher) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	w.mu.Lock()
	w.cancel = cancel
	w.mu.Unlock()
	defer close(w.done)

	for {
		stream, err := w.dial(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			w.reportError(fmt.Errorf("dial: %w", err))
			if err := sleep(ctx, w.cfg.RedialWait); err != nil {
				return err
			}
			continue
		}

		// A read blocked in Next does not observe ctx on its own; tearing
		// down the stream on cancellation forces it to return.
		stop := make(chan struct{})
		go func() {
			select {
			case <-ctx.Done():
				_ = stream.Close()
			case <-stop:
			}
		}()

		err = w.consume(ctx, stream)
		close(stop)
		_ = stream.Close()
		if ctx.Err() != nil {
			return ctx.Err()
		}
		w.reportError(err)
		if err := sleep(ctx, w.cfg.RedialWait); err != nil {
			return err
		}
	}
}

// Close stops the subscription. No onEvent callback fires after it returns.
func (w *Watcher) Close() error {
	w.closeOnce.Do(func() {
		w.mu.Lock()
		cancel := w.cancel
		w.mu.Unlock()
		if cancel == nil {
			return
		}
		cancel()
		<-w.done
	})
	return nil
}

func (w *Watcher) consume(ctx context.Context, stream Stream) error {
	for {
		rec, err := stream.Next(ctx)
		if err != nil {
			return fmt.Errorf("read event stream: %w", err)
		}
		w.deliver(rec)
	}
}

// deliver decodes one system event and forwards it. Records from other
// pallets or other contracts are silently skipped; a payload that matches
// the contract but fails to decode is logged and skipped.
func (w *Watcher) deliver(rec SystemEvent) {
	if rec.Section != "contracts" || rec.Method != "ContractEmitted" {
		return
	}
	if normalizeAddr(rec.Emitter) != w.contract {
		return
	}

	raw, err := w.cfg.Schema.Decode(rec.Data)
	if err != nil {
		w.mtr.DecodeFailed()
		w.log.Warn("dropping undecodable contract event", "block", rec.BlockHash, "error", err)
		return
	}
	raw.TxHash = rec.BlockHash
	raw.BlockNumber = rec.BlockNumber

	ev, err := event.Normalize(raw, event.ChainPolkadot)
	if err != nil {
		w.mtr.DecodeFailed()
		w.log.Warn("dropping invalid event", "name", raw.Name, "project_id", raw.ProjectID, "error", err)
		return
	}

	w.mtr.EventDecoded()
	w.onEvent(ev)
}

func (w *Watcher) reportError(err error) {
	w.log.Error("transport fault, redialing", "error", err)
	if w.cfg.OnError != nil {
		w.cfg.OnError(err)
	}
}

func normalizeAddr(addr string) string {
	return strings.ToLower(strings.TrimPrefix(addr, "0x"))
}

func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

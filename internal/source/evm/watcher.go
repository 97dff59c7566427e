// Package evm watches the portfolio contract on an EVM chain (Base) and
// emits canonical events. It polls the chain head and filters logs for the
// configured contract address; per-chain event order is preserved because
// each decoded event is handed to the callback before the next log is read.
package evm

import (
	"context"
	"fmt"
	"log/slog"
	"math/big"
	"sync"
	"time"

	ethereum "github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"

	"github.com/dotgo-labs/dotgo-indexer/internal/event"
	"github.com/dotgo-labs/dotgo-indexer/internal/metrics"
)

// BlockClient captures the subset of ethclient used by the watcher.
type BlockClient interface {
	HeaderByNumber(ctx context.Context, number *big.Int) (*types.Header, error)
	FilterLogs(ctx context.Context, q ethereum.FilterQuery) ([]types.Log, error)
}

// RPCClient is a thin wrapper over ethclient.Client that satisfies BlockClient.
type RPCClient struct {
	*ethclient.Client
}

// NewRPCClient builds an RPC client to an EVM node.
func NewRPCClient(rpcURL string) (*RPCClient, error) {
	c, err := ethclient.Dial(rpcURL)
	if err != nil {
		return nil, fmt.Errorf("dial evm rpc: %w", err)
	}
	return &RPCClient{Client: c}, nil
}

// Handler receives each decoded canonical event, at least once, in chain order.
type Handler func(event.Event)

// Config controls a watcher.
type Config struct {
	Contract      common.Address
	PollInterval  time.Duration // default 5s
	Confirmations uint64
	OnError       func(error) // transport faults; default logs only
}

// Watcher subscribes to portfolio contract events on one EVM chain.
type Watcher struct {
	client  BlockClient
	cfg     Config
	decoder *Decoder
	onEvent Handler
	log     *slog.Logger
	mtr     *metrics.Metrics

	// next block to scan; 0 means "anchor at head on the next poll".
	next uint64

	mu        sync.Mutex
	cancel    context.CancelFunc
	done      chan struct{}
	closeOnce sync.Once
}

// NewWatcher builds a watcher over the given client.
func NewWatcher(client BlockClient, cfg Config, onEvent Handler, log *slog.Logger, mtr *metrics.Metrics) (*Watcher, error) {
	if onEvent == nil {
		return nil, fmt.Errorf("evm watcher: onEvent handler is required")
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 5 * time.Second
	}
	dec, err := NewDecoder()
	if err != nil {
		return nil, err
	}
	return &Watcher{
		client:  client,
		cfg:     cfg,
		decoder: dec,
		onEvent: onEvent,
		log:     log.With("chain", event.ChainBase),
		mtr:     mtr,
		done:    make(chan struct{}),
	}, nil
}

// Name identifies the chain this watcher covers.
func (w *Watcher) Name() string { return string(event.ChainBase) }

// Run polls until the context is canceled or Close is called. Transport
// faults are reported and the subscription re-anchors at the current head:
// events emitted during the outage window are not replayed.
func (w *Watcher) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	w.mu.Lock()
	w.cancel = cancel
	w.mu.Unlock()
	defer close(w.done)

	ticker := time.NewTicker(w.cfg.PollInterval)
	defer ticker.Stop()

	for {
		if err := w.poll(ctx); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			w.reportError(err)
			w.next = 0 // resubscribe from "now", accepted data-loss window
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
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

func (w *Watcher) poll(ctx context.Context) error {
	latest, err := w.client.HeaderByNumber(ctx, nil)
	if err != nil {
		return fmt.Errorf("latest header: %w", err)
	}
	head := latest.Number.Uint64()
	if w.cfg.Confirmations > 0 {
		if head < w.cfg.Confirmations {
			return nil
		}
		head -= w.cfg.Confirmations
	}

	if w.next == 0 {
		w.next = head + 1
		return nil
	}
	if head < w.next {
		return nil
	}

	logs, err := w.client.FilterLogs(ctx, ethereum.FilterQuery{
		FromBlock: new(big.Int).SetUint64(w.next),
		ToBlock:   new(big.Int).SetUint64(head),
		Addresses: []common.Address{w.cfg.Contract},
	})
	if err != nil {
		return fmt.Errorf("filter logs %d..%d: %w", w.next, head, err)
	}

	for _, lg := range logs {
		w.deliver(lg)
	}
	w.next = head + 1
	return nil
}

// deliver decodes one log and forwards it. A malformed log is logged and
// skipped; it never blocks delivery of subsequent events.
func (w *Watcher) deliver(lg types.Log) {
	raw, ok, err := w.decoder.Decode(lg)
	if err != nil {
		w.mtr.DecodeFailed()
		w.log.Warn("dropping undecodable log", "block", lg.BlockNumber, "tx", lg.TxHash.Hex(), "error", err)
		return
	}
	if !ok {
		return
	}

	ev, err := event.Normalize(raw, event.ChainBase)
	if err != nil {
		w.mtr.DecodeFailed()
		w.log.Warn("dropping invalid event", "name", raw.Name, "project_id", raw.ProjectID, "error", err)
		return
	}

	w.mtr.EventDecoded()
	w.onEvent(ev)
}

func (w *Watcher) reportError(err error) {
	w.log.Error("transport fault, resubscribing", "error", err)
	if w.cfg.OnError != nil {
		w.cfg.OnError(err)
	}
}

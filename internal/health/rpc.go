package health

import (
	"context"
	"fmt"

	"github.com/dotgo-labs/dotgo-indexer/internal/source/evm"
)

// ChainChecker combines chain RPC health checks. Websocket chains are not
// probed here; a broken subscription surfaces through the watcher's own
// redial loop.
type ChainChecker struct {
	evmClients map[string]evm.BlockClient
}

// NewChainChecker creates a checker over the configured EVM clients.
func NewChainChecker(evmClients map[string]evm.BlockClient) *ChainChecker {
	return &ChainChecker{evmClients: evmClients}
}

// Ping checks all configured RPC endpoints.
func (c *ChainChecker) Ping(ctx context.Context) error {
	var lastErr error
	for id, cli := range c.evmClients {
		if _, err := cli.HeaderByNumber(ctx, nil); err != nil {
			lastErr = fmt.Errorf("chain %s: %w", id, err)
			continue
		}
	}
	return lastErr
}

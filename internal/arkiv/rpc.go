package arkiv

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/rpc"
)

// RPCClient talks to an Arkiv node over JSON-RPC. Mutations are attributed
// to the operator account derived from the configured private key.
type RPCClient struct {
	rpc     *rpc.Client
	account string
}

// Dial connects to an Arkiv endpoint. The private key is required: without
// it the node rejects mutations, so construction fails early rather than at
// the first write.
func Dial(ctx context.Context, url, privateKeyHex string) (*RPCClient, error) {
	if url == "" {
		return nil, errors.New("arkiv rpc url is required")
	}
	if privateKeyHex == "" {
		return nil, errors.New("arkiv private key is required")
	}

	key, err := crypto.HexToECDSA(strings.TrimPrefix(privateKeyHex, "0x"))
	if err != nil {
		return nil, fmt.Errorf("parse arkiv private key: %w", err)
	}

	c, err := rpc.DialContext(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("dial arkiv rpc: %w", err)
	}

	return &RPCClient{
		rpc:     c,
		account: crypto.PubkeyToAddress(key.PublicKey).Hex(),
	}, nil
}

// Account returns the operator address mutations are attributed to.
func (c *RPCClient) Account() string { return c.account }

// MutateEntities writes the creates in one transaction.
func (c *RPCClient) MutateEntities(ctx context.Context, creates []Create) (*MutateResult, error) {
	params := map[string]any{
		"owner":   c.account,
		"creates": creates,
	}
	var res MutateResult
	if err := c.rpc.CallContext(ctx, &res, "arkiv_mutateEntities", params); err != nil {
		return nil, fmt.Errorf("arkiv mutate: %w", err)
	}
	return &res, nil
}

// GetEntities runs a predicate query against the store.
func (c *RPCClient) GetEntities(ctx context.Context, q Query) ([]Entity, error) {
	var res []Entity
	if err := c.rpc.CallContext(ctx, &res, "arkiv_getEntities", q); err != nil {
		return nil, fmt.Errorf("arkiv query: %w", err)
	}
	return res, nil
}

// Ping checks endpoint reachability with a cheap call.
func (c *RPCClient) Ping(ctx context.Context) error {
	var id string
	if err := c.rpc.CallContext(ctx, &id, "eth_chainId"); err != nil {
		return fmt.Errorf("arkiv ping: %w", err)
	}
	return nil
}

// Close releases the underlying RPC connection.
func (c *RPCClient) Close() {
	c.rpc.Close()
}

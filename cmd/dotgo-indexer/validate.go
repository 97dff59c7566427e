package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"github.com/dotgo-labs/dotgo-indexer/internal/config"
	"github.com/dotgo-labs/dotgo-indexer/internal/source/substrate"
)

const defaultHTTPTimeout = 8 * time.Second

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate config and ping chain and Arkiv endpoints",
	RunE: func(cmd *cobra.Command, args []string) error {
		out := cmd.OutOrStdout()

		cfg, err := config.Load(cfgPath)
		if err != nil {
			return fmt.Errorf("config invalid: %w", err)
		}
		fmt.Fprintf(out, "config OK (version %d)\n", cfg.Version)

		client := &http.Client{Timeout: defaultHTTPTimeout}
		failures := 0

		if bc := cfg.Chains.Base; bc != nil {
			chainID, err := pingJSONRPC(cmd.Context(), client, bc.RPCURL)
			if err != nil {
				failures++
				fmt.Fprintf(out, "- chain base: ERROR %v\n", err)
			} else {
				fmt.Fprintf(out, "- chain base: chainId %s OK\n", chainID)
			}
		}

		if pc := cfg.Chains.Polkadot; pc != nil {
			if err := pingWS(cmd.Context(), pc.WSURL); err != nil {
				failures++
				fmt.Fprintf(out, "- chain polkadot: ERROR %v\n", err)
			} else {
				fmt.Fprintf(out, "- chain polkadot: subscription OK\n")
			}
		}

		chainID, err := pingJSONRPC(cmd.Context(), client, cfg.Arkiv.RPCURL)
		if err != nil {
			failures++
			fmt.Fprintf(out, "- arkiv: ERROR %v\n", err)
		} else {
			fmt.Fprintf(out, "- arkiv: chainId %s OK\n", chainID)
		}

		if failures > 0 {
			return fmt.Errorf("validate: %d endpoint(s) failed connectivity", failures)
		}

		fmt.Fprintln(out, "validate: success")
		return nil
	},
}

func pingJSONRPC(ctx context.Context, client *http.Client, url string) (string, error) {
	payload := map[string]any{
		"jsonrpc": "2.0",
		"id":      1,
		"method":  "eth_chainId",
		"params":  []any{},
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return "", fmt.Errorf("call eth_chainId: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return "", fmt.Errorf("rpc status %d", resp.StatusCode)
	}

	var rpcResp struct {
		Result string `json:"result"`
		Error  *struct {
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&rpcResp); err != nil {
		return "", fmt.Errorf("decode rpc response: %w", err)
	}

	if rpcResp.Error != nil {
		return "", fmt.Errorf("rpc error: %s", rpcResp.Error.Message)
	}
	if rpcResp.Result == "" {
		return "", fmt.Errorf("empty chainId result")
	}

	return rpcResp.Result, nil
}

func pingWS(ctx context.Context, url string) error {
	ctx, cancel := context.WithTimeout(ctx, defaultHTTPTimeout)
	defer cancel()

	stream, err := substrate.DialWS(ctx, url)
	if err != nil {
		return err
	}
	return stream.Close()
}

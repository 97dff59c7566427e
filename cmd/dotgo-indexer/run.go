package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/spf13/cobra"

	"github.com/dotgo-labs/dotgo-indexer/internal/arkiv"
	"github.com/dotgo-labs/dotgo-indexer/internal/config"
	"github.com/dotgo-labs/dotgo-indexer/internal/dispatcher"
	"github.com/dotgo-labs/dotgo-indexer/internal/health"
	"github.com/dotgo-labs/dotgo-indexer/internal/indexer"
	"github.com/dotgo-labs/dotgo-indexer/internal/logging"
	"github.com/dotgo-labs/dotgo-indexer/internal/metrics"
	"github.com/dotgo-labs/dotgo-indexer/internal/source/evm"
	"github.com/dotgo-labs/dotgo-indexer/internal/source/substrate"
	"github.com/dotgo-labs/dotgo-indexer/internal/storage"
)

var (
	flagHealth  string
	flagMetrics string
)

func init() {
	runCmd.Flags().StringVar(&flagHealth, "health", "", "Health check HTTP address (e.g., :8080)")
	runCmd.Flags().StringVar(&flagMetrics, "metrics", "", "Metrics HTTP address (e.g., :9090)")
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Watch configured chains and index events into Arkiv",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(cfgPath)
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}

		logLevel := cfg.Global.LogLevel
		if v := os.Getenv("LOG_LEVEL"); v != "" {
			logLevel = v
		}
		log := logging.NewWithLevel(logLevel)
		ctx := cmd.Context()

		store, err := arkiv.Dial(ctx, cfg.Arkiv.RPCURL, cfg.Arkiv.PrivateKey)
		if err != nil {
			return fmt.Errorf("connect arkiv: %w", err)
		}
		defer store.Close()
		log.Info("connected to arkiv", "account", store.Account())

		var mtr *metrics.Metrics
		if flagMetrics != "" {
			mtr = metrics.Init()
			log.Info("metrics enabled", "addr", flagMetrics)
		}

		var dedupe dispatcher.Deduper
		if cfg.Global.Dedupe.Enabled {
			db, err := storage.Open(cfg.Global.Dedupe.DBPath)
			if err != nil {
				return fmt.Errorf("open dedupe store: %w", err)
			}
			defer db.Close()
			dedupe = db
		}

		dedupeTTL, err := cfg.Global.Dedupe.ParseTTL()
		if err != nil {
			return err
		}
		ix := indexer.New(store, log, mtr)
		disp := dispatcher.New(ix, dedupe, dispatcher.Config{DedupeTTL: dedupeTTL}, log)

		var adapters []dispatcher.Adapter
		evmClients := map[string]evm.BlockClient{}

		if bc := cfg.Chains.Base; bc != nil {
			cli, err := evm.NewRPCClient(bc.RPCURL)
			if err != nil {
				return err
			}
			evmClients["base"] = cli
			interval, err := bc.ParsePollInterval()
			if err != nil {
				return err
			}
			w, err := evm.NewWatcher(cli, evm.Config{
				Contract:      common.HexToAddress(bc.Contract),
				PollInterval:  interval,
				Confirmations: bc.Confirmations,
			}, disp.HandleEvent, log, mtr)
			if err != nil {
				return err
			}
			adapters = append(adapters, w)
		}

		if pc := cfg.Chains.Polkadot; pc != nil {
			schema := substrate.DefaultSchema()
			if pc.SchemaPath != "" {
				schema, err = substrate.LoadSchema(pc.SchemaPath)
				if err != nil {
					return err
				}
			}
			dial := func(ctx context.Context) (substrate.Stream, error) {
				return substrate.DialWS(ctx, pc.WSURL)
			}
			w, err := substrate.NewWatcher(dial, substrate.Config{
				Contract: pc.Contract,
				Schema:   schema,
			}, disp.HandleEvent, log, mtr)
			if err != nil {
				return err
			}
			adapters = append(adapters, w)
		}

		if flagHealth != "" {
			chainChecker := health.NewChainChecker(evmClients)
			healthSrv := health.Serve(flagHealth, health.Checker{
				StorePing: store.Ping,
				ChainPing: chainChecker.Ping,
			})
			log.Info("health check enabled", "addr", flagHealth)
			defer func() {
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				_ = health.Shutdown(shutdownCtx, healthSrv)
			}()
		}

		if flagMetrics != "" {
			go func() {
				mux := http.NewServeMux()
				mux.Handle("/metrics", metrics.Handler())
				srv := &http.Server{Addr: flagMetrics, Handler: mux}
				if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					log.Error("metrics server error", "error", err)
				}
			}()
		}

		defer func() {
			for _, a := range adapters {
				_ = a.Close()
			}
		}()

		log.Info("indexer running", "chains", len(adapters))
		if err := disp.Run(ctx, adapters...); err != nil && err != context.Canceled {
			log.Error("run error", "error", err)
			return err
		}
		log.Info("shutdown complete")
		return nil
	},
}

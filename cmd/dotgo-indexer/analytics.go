package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/dotgo-labs/dotgo-indexer/internal/arkiv"
	"github.com/dotgo-labs/dotgo-indexer/internal/config"
	"github.com/dotgo-labs/dotgo-indexer/internal/logging"
	"github.com/dotgo-labs/dotgo-indexer/internal/query"
)

var analyticsCmd = &cobra.Command{
	Use:   "analytics <student-address>",
	Short: "Aggregate a student's indexed activity",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(cfgPath)
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}

		store, err := arkiv.Dial(cmd.Context(), cfg.Arkiv.RPCURL, cfg.Arkiv.PrivateKey)
		if err != nil {
			return fmt.Errorf("connect arkiv: %w", err)
		}
		defer store.Close()

		svc := query.New(store, logging.New())
		stats, err := svc.StudentAnalytics(cmd.Context(), args[0])
		if err != nil {
			return err
		}

		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(stats)
	},
}

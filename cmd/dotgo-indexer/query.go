package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/dotgo-labs/dotgo-indexer/internal/arkiv"
	"github.com/dotgo-labs/dotgo-indexer/internal/config"
	"github.com/dotgo-labs/dotgo-indexer/internal/event"
	"github.com/dotgo-labs/dotgo-indexer/internal/logging"
	"github.com/dotgo-labs/dotgo-indexer/internal/query"
)

var (
	flagEventType string
	flagProject   string
	flagStudent   string
	flagReviewer  string
	flagSkill     string
	flagChain     string
	flagMinRating int
	flagStart     int64
	flagEnd       int64
	flagLimit     int
)

func init() {
	queryCmd.Flags().StringVar(&flagEventType, "type", "", "Event type (ProjectCreated|ProjectUnlocked|ReviewSubmitted)")
	queryCmd.Flags().StringVar(&flagProject, "project", "", "Project id")
	queryCmd.Flags().StringVar(&flagStudent, "student", "", "Student address")
	queryCmd.Flags().StringVar(&flagReviewer, "reviewer", "", "Reviewer address")
	queryCmd.Flags().StringVar(&flagSkill, "skill", "", "Skill tag")
	queryCmd.Flags().StringVar(&flagChain, "chain", "", "Chain (base|polkadot)")
	queryCmd.Flags().IntVar(&flagMinRating, "min-rating", 0, "Minimum review rating (1-5)")
	queryCmd.Flags().Int64Var(&flagStart, "start", 0, "Start of time range, unix ms inclusive")
	queryCmd.Flags().Int64Var(&flagEnd, "end", 0, "End of time range, unix ms inclusive")
	queryCmd.Flags().IntVar(&flagLimit, "limit", 0, "Max entities fetched (default 100)")
}

var queryCmd = &cobra.Command{
	Use:   "query",
	Short: "Query indexed events by attribute",
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
		events, err := svc.Events(cmd.Context(), query.Filters{
			EventType: event.Type(flagEventType),
			ProjectID: flagProject,
			Student:   flagStudent,
			Reviewer:  flagReviewer,
			Skill:     flagSkill,
			Chain:     event.Chain(flagChain),
			MinRating: flagMinRating,
			StartTime: flagStart,
			EndTime:   flagEnd,
			Limit:     flagLimit,
		})
		if err != nil {
			return err
		}

		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(events)
	},
}

package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"github.com/upb/fact-history/services/history"
)

type purgeOptions struct {
	olderThan time.Duration
	space     string
	limit     int
	drain     bool
}

// purgeReport sums one or more purge batches
type purgeReport struct {
	Cutoff         int64 `json:"cutoff"`
	Batches        int   `json:"batches"`
	DeletedCount   int   `json:"deleted_count"`
	RemainingCount int   `json:"remaining_count"`
}

func newPurgeCommand(rt *runtime) *cobra.Command {
	opts := &purgeOptions{}

	cmd := &cobra.Command{
		Use:   "purge",
		Short: "Delete events older than a cutoff",
		Long: `Deletes at most --limit events older than now minus --older-than. With --drain
the command keeps issuing batches until nothing older than the cutoff is left.

Examples:
  fact-history purge --older-than 720h
  fact-history purge --older-than 2160h --space space-1 --limit 500 --drain`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if opts.olderThan <= 0 {
				return fmt.Errorf("--older-than must be positive")
			}
			if opts.limit < 0 {
				return fmt.Errorf("--limit must not be negative")
			}

			ctx := cmd.Context()
			deps, err := rt.dependencies(ctx)
			if err != nil {
				return err
			}
			defer deps.Close(ctx)

			report := purgeReport{Cutoff: time.Now().Add(-opts.olderThan).UnixMilli()}
			for {
				var res *history.PurgeResult
				res, err = deps.History.PurgeOlderThan(ctx, report.Cutoff, opts.space, opts.limit)
				if err != nil {
					return err
				}
				report.Batches++
				report.DeletedCount += res.DeletedCount
				report.RemainingCount = res.RemainingCount

				if !opts.drain || res.RemainingCount == 0 || res.DeletedCount == 0 {
					break
				}
			}

			return printJSON(cmd, report)
		},
	}

	cmd.Flags().DurationVar(&opts.olderThan, "older-than", 0, "purge events older than this age, e.g. 720h (required)")
	_ = cmd.MarkFlagRequired("older-than")
	cmd.Flags().StringVar(&opts.space, "space", "", "restrict the purge to one memory space")
	cmd.Flags().IntVar(&opts.limit, "limit", 0, "events per batch (0 uses PURGE_DEFAULT_LIMIT)")
	cmd.Flags().BoolVar(&opts.drain, "drain", false, "repeat batches until nothing is left")

	return cmd
}

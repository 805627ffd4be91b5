package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"github.com/upb/fact-history/services/history"
)

type eraseOptions struct {
	fact  string
	user  string
	space string
}

func newEraseCommand(rt *runtime) *cobra.Command {
	opts := &eraseOptions{}

	cmd := &cobra.Command{
		Use:   "erase",
		Short: "Erase every event of a fact, user or memory space",
		Long: `Removes all history events matching exactly one selector. Erasure is
idempotent: running it again reports a deleted count of zero.

Examples:
  fact-history erase --fact fact-123
  fact-history erase --user user-42`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			deps, err := rt.dependencies(ctx)
			if err != nil {
				return err
			}
			defer deps.Close(ctx)

			var (
				erase func(context.Context, string) (*history.EraseResult, error)
				key   string
			)
			switch {
			case opts.fact != "":
				erase, key = deps.History.EraseByFact, opts.fact
			case opts.user != "":
				erase, key = deps.History.EraseByUser, opts.user
			case opts.space != "":
				erase, key = deps.History.EraseByMemorySpace, opts.space
			default:
				return fmt.Errorf("one of --fact, --user or --space is required")
			}

			res, err := erase(ctx, key)
			if err != nil {
				return err
			}
			return printJSON(cmd, res)
		},
	}

	cmd.Flags().StringVar(&opts.fact, "fact", "", "erase the history of this fact")
	cmd.Flags().StringVar(&opts.user, "user", "", "erase every event attributed to this user")
	cmd.Flags().StringVar(&opts.space, "space", "", "erase every event of this memory space")
	cmd.MarkFlagsMutuallyExclusive("fact", "user", "space")

	return cmd
}

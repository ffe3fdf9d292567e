package main

import (
	"time"

	"github.com/spf13/cobra"

	"github.com/healthscope/healthscope/internal/portfolio"
)

func newSummaryCmd(state *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "summary",
		Short: "Print the portfolio health summary as JSON",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			env, err := state.openEnv(ctx)
			if err != nil {
				return err
			}
			defer env.Close()

			s, err := portfolio.Load(ctx, env.Store, time.Now())
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), s)
		},
	}
}

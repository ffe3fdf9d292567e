package main

import (
	"fmt"
	"sort"
	"time"

	"github.com/spf13/cobra"
)

func newRecomputeCmd(state *cli) *cobra.Command {
	var jsonOut bool

	cmd := &cobra.Command{
		Use:   "recompute",
		Short: "Record a fresh health snapshot for every stored account",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			env, err := state.openEnv(ctx)
			if err != nil {
				return err
			}
			defer env.Close()

			res, err := env.Recorder.RecomputePortfolio(ctx)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if jsonOut {
				return printJSON(out, map[string]any{
					"accounts_updated":         res.Updated,
					"errors":                   res.Errors,
					"computation_time_seconds": res.Elapsed.Seconds(),
				})
			}

			fmt.Fprintf(out, "Recomputed %d account(s) in %s, %d failed\n",
				res.Updated, res.Elapsed.Round(time.Millisecond), res.Failed())
			keys := make([]string, 0, len(res.Errors))
			for k := range res.Errors {
				keys = append(keys, k)
			}
			sort.Strings(keys)
			for _, k := range keys {
				fmt.Fprintf(out, "  %s: %s\n", k, res.Errors[k])
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&jsonOut, "json", false, "Print the result as JSON")

	return cmd
}

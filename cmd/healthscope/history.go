package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/healthscope/healthscope/internal/store"
	"github.com/healthscope/healthscope/pkg/account"
	"github.com/healthscope/healthscope/pkg/surface"
)

func newHistoryCmd(state *cli) *cobra.Command {
	var (
		limit     int
		outputFmt string
	)

	cmd := &cobra.Command{
		Use:   "history <account-id|name>",
		Short: "Show an account's health snapshots, most recent first",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			renderer, err := surface.ForFormat(outputFmt)
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			env, err := state.openEnv(ctx)
			if err != nil {
				return err
			}
			defer env.Close()

			a, err := findAccount(ctx, env.Store, args[0])
			if err != nil {
				return err
			}
			history, err := env.Store.History(ctx, a.ID, limit)
			if err != nil {
				return err
			}
			return renderer.RenderHistory(cmd.OutOrStdout(), a.Name, history)
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 30, "Maximum number of snapshots (0 for all)")
	cmd.Flags().StringVar(&outputFmt, "output", "text", "Output format: text, json or markdown")

	return cmd
}

func newExportCmd(state *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "export <account-id|name>",
		Short: "Write an account's full history to blob storage",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			env, err := state.openEnv(ctx)
			if err != nil {
				return err
			}
			defer env.Close()

			a, err := findAccount(ctx, env.Store, args[0])
			if err != nil {
				return err
			}
			key, err := env.Recorder.ExportHistory(ctx, a.ID)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), key)
			return nil
		},
	}
}

// findAccount resolves ref as an account ID, then as an account name.
func findAccount(ctx context.Context, st store.Store, ref string) (*account.Account, error) {
	a, err := st.GetAccount(ctx, ref)
	if errors.Is(err, store.ErrNotFound) {
		a, err = st.GetAccountByName(ctx, ref)
	}
	if errors.Is(err, store.ErrNotFound) {
		return nil, eris.Wrapf(store.ErrNotFound, "account %q", ref)
	}
	return a, err
}

// Package main provides the healthscope CLI entry point.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/healthscope/healthscope/internal/app"
	"github.com/healthscope/healthscope/internal/config"
)

var version = "dev"

// cli carries state shared by every subcommand once the root pre-run has
// loaded configuration.
type cli struct {
	configPath string
	cfg        *config.Config
}

// openEnv builds the shared components for commands that touch the store.
func (c *cli) openEnv(ctx context.Context) (*app.Env, error) {
	return app.Open(ctx, c.cfg)
}

func newRootCmd() *cobra.Command {
	state := &cli{}

	rootCmd := &cobra.Command{
		Use:   "healthscope",
		Short: "Explainable customer account health scoring",
		Long: `Healthscope scores customer accounts from adoption, engagement, support,
advocacy and process signals, keeps an append-only history of health
snapshots, and recommends playbooks for at-risk accounts.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(state.configPath)
			if err != nil {
				return eris.Wrap(err, "load config")
			}
			state.cfg = cfg

			if _, err := config.InitLogger(cfg.Log); err != nil {
				return eris.Wrap(err, "init logger")
			}
			return nil
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			_ = zap.L().Sync()
		},
	}
	rootCmd.PersistentFlags().StringVar(&state.configPath, "config", "", "Path to config file (default: healthscope.yaml in ., ./config or ~/.healthscope)")

	rootCmd.AddCommand(
		newScoreCmd(state),
		newIngestCmd(state),
		newRecomputeCmd(state),
		newHistoryCmd(state),
		newExportCmd(state),
		newMigrateCmd(state),
		newSummaryCmd(state),
	)
	return rootCmd
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

package main

import (
	"encoding/json"
	"io"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/healthscope/healthscope/pkg/account"
	"github.com/healthscope/healthscope/pkg/scoring"
	"github.com/healthscope/healthscope/pkg/surface"
)

func newScoreCmd(state *cli) *cobra.Command {
	var (
		file      string
		outputFmt string
	)

	cmd := &cobra.Command{
		Use:   "score",
		Short: "Score an account from a JSON file without storing it",
		Long: `Reads one account as JSON (use - for stdin), validates it, and prints the
health score, bucket, sub-score breakdown and ranked factors.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			weights, err := state.cfg.Weights()
			if err != nil {
				return err
			}
			return runScore(cmd.InOrStdin(), cmd.OutOrStdout(), scoreOpts{
				file:      file,
				outputFmt: outputFmt,
				engine:    scoring.NewEngine(scoring.WithWeights(weights)),
			})
		},
	}

	cmd.Flags().StringVarP(&file, "file", "f", "", "Account JSON file, or - for stdin (required)")
	cmd.Flags().StringVar(&outputFmt, "output", "text", "Output format: text, json or markdown")
	_ = cmd.MarkFlagRequired("file")

	return cmd
}

type scoreOpts struct {
	file      string
	outputFmt string
	engine    *scoring.Engine
}

func runScore(stdin io.Reader, out io.Writer, opts scoreOpts) error {
	renderer, err := surface.ForFormat(opts.outputFmt)
	if err != nil {
		return err
	}

	a, err := readAccount(stdin, opts.file)
	if err != nil {
		return err
	}
	if err := a.Validate(); err != nil {
		return err
	}

	res := opts.engine.Score(a)
	return renderer.Render(out, &surface.Report{Account: a.Name, Result: res})
}

func readAccount(stdin io.Reader, path string) (*account.Account, error) {
	var (
		data []byte
		err  error
	)
	if path == "-" {
		data, err = io.ReadAll(stdin)
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "read account %s", path)
	}

	var a account.Account
	if err := json.Unmarshal(data, &a); err != nil {
		return nil, eris.Wrapf(err, "parse account %s", path)
	}
	return &a, nil
}

package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
)

func newIngestCmd(state *cli) *cobra.Command {
	var file string

	cmd := &cobra.Command{
		Use:   "ingest",
		Short: "Import accounts from a CSV file and score them",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			env, err := state.openEnv(ctx)
			if err != nil {
				return err
			}
			defer env.Close()

			var in io.Reader = cmd.InOrStdin()
			if file != "-" {
				f, err := os.Open(file)
				if err != nil {
					return eris.Wrapf(err, "open %s", file)
				}
				defer f.Close()
				in = f
			}

			res, err := env.Ingestion.IngestCSV(ctx, in)
			if err != nil {
				return err
			}
			if err := printJSON(cmd.OutOrStdout(), res); err != nil {
				return err
			}
			if len(res.Errors) > 0 {
				fmt.Fprintf(cmd.ErrOrStderr(), "%d row(s) failed\n", len(res.Errors))
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&file, "file", "f", "", "CSV file, or - for stdin (required)")
	_ = cmd.MarkFlagRequired("file")

	return cmd
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

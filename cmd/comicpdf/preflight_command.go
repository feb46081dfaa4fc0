package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"comicpdf/internal/preflight"
)

func newPreflightCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "preflight",
		Short: "Check the worker, directories, and endpoints",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			results := preflight.RunAll(cmd.Context(), cfg)
			rows := make([][]string, 0, len(results))
			for _, r := range results {
				rows = append(rows, []string{r.Name, yesNo(r.Passed), r.Detail})
			}
			out := cmd.OutOrStdout()
			fmt.Fprintln(out, renderTable(out, []string{"Check", "OK", "Detail"}, rows, nil))
			if failed := preflight.Failed(results); len(failed) > 0 {
				return fmt.Errorf("%d preflight checks failed", len(failed))
			}
			return nil
		},
	}
}

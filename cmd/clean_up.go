package cmd

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"datawatch/internal/bootstrap/logging"
	"datawatch/internal/errs"
)

var cleanUpCmd = &cobra.Command{
	Use:   "clean-up",
	Short: "Delete results and executions of checks that are no longer registered",
	RunE: withApp(func(cmd *cobra.Command, deps *appDeps) error {
		ctx := logging.WithAttrs(cmd.Context(), slog.String("command", cmd.CommandPath()))

		resultSlugs, executionSlugs, err := deps.Service.CleanUp(ctx)
		if err != nil {
			return errs.Wrap(err, "clean up ghost rows")
		}

		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "%d ghost result slugs deleted\n", len(resultSlugs))
		for _, slug := range resultSlugs {
			fmt.Fprintf(out, "  %s\n", slug)
		}
		fmt.Fprintf(out, "%d ghost execution slugs deleted\n", len(executionSlugs))
		for _, slug := range executionSlugs {
			fmt.Fprintf(out, "  %s\n", slug)
		}
		return nil
	}),
}

func init() {
	rootCmd.AddCommand(cleanUpCmd)
}

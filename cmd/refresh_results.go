package cmd

import (
	"errors"
	"log/slog"

	"github.com/spf13/cobra"

	"datawatch/internal/bootstrap/logging"
	"datawatch/internal/errs"
)

var refreshResultsCmd = &cobra.Command{
	Use:   "refresh-results",
	Short: "Re-run checks against their stored results",
	RunE: withApp(func(cmd *cobra.Command, deps *appDeps) error {
		ctx := logging.WithAttrs(cmd.Context(), slog.String("command", cmd.CommandPath()))

		slug, _ := cmd.Flags().GetString("slug")
		identifier, _ := cmd.Flags().GetString("identifier")

		if identifier != "" {
			if slug == "" {
				return errors.New("--identifier requires --slug")
			}
			if err := deps.Service.ForceRefreshResult(ctx, slug, identifier, true); err != nil {
				return errs.Wrap(err, "force refresh result")
			}
			return nil
		}

		if slug != "" {
			if err := deps.Service.RefreshSlug(ctx, slug, true); err != nil {
				return errs.Wrap(err, "refresh check")
			}
			return nil
		}

		if err := deps.Service.RefreshAll(ctx, true); err != nil {
			return errs.Wrap(err, "refresh checks")
		}
		return nil
	}),
}

func init() {
	rootCmd.AddCommand(refreshResultsCmd)
	refreshResultsCmd.Flags().String("slug", "", "Slug of the check to refresh; all checks when omitted")
	refreshResultsCmd.Flags().String("identifier", "", "Force-refresh a single result, requires --slug")
}

package cmd

import (
	"log/slog"

	"github.com/spf13/cobra"

	"datawatch/internal/bootstrap/logging"
	"datawatch/internal/errs"
)

var runChecksCmd = &cobra.Command{
	Use:   "run-checks",
	Short: "Dispatch every periodic check that is due",
	RunE: withApp(func(cmd *cobra.Command, deps *appDeps) error {
		ctx := logging.WithAttrs(cmd.Context(), slog.String("command", cmd.CommandPath()))

		force, _ := cmd.Flags().GetBool("force")
		slug, _ := cmd.Flags().GetString("slug")

		if err := deps.Scheduler.RunChecks(ctx, force, slug); err != nil {
			return errs.Wrap(err, "run scheduler sweep")
		}
		return nil
	}),
}

func init() {
	rootCmd.AddCommand(runChecksCmd)
	runChecksCmd.Flags().Bool("force", false, "Dispatch every schedulable check regardless of its last execution")
	runChecksCmd.Flags().String("slug", "", "Only consider the check with this slug")
}

package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"datawatch/internal/errs"
)

var acknowledgeCmd = &cobra.Command{
	Use:   "acknowledge <slug> <identifier>",
	Short: "Silence a failing result for a number of days",
	Args:  cobra.ExactArgs(2),
	RunE: withApp(func(cmd *cobra.Command, deps *appDeps) error {
		args := cmd.Flags().Args()
		user, _ := cmd.Flags().GetString("user")
		days, _ := cmd.Flags().GetInt("days")
		reason, _ := cmd.Flags().GetString("reason")

		if err := deps.Service.Acknowledge(cmd.Context(), args[0], args[1], user, days, reason); err != nil {
			return errs.Wrap(err, "acknowledge result")
		}

		fmt.Fprintf(cmd.OutOrStdout(), "%s %s acknowledged for %d day(s)\n", args[0], args[1], days)
		return nil
	}),
}

func init() {
	rootCmd.AddCommand(acknowledgeCmd)
	acknowledgeCmd.Flags().String("user", "", "User acknowledging the result")
	acknowledgeCmd.Flags().Int("days", 1, "Days until the acknowledgement expires")
	acknowledgeCmd.Flags().String("reason", "", "Why the result is acknowledged")
	_ = acknowledgeCmd.MarkFlagRequired("user")
}

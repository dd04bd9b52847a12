package cmd

import (
	"fmt"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"datawatch/internal/domain/check"
	"datawatch/internal/errs"
	"datawatch/internal/ports"
)

var listResultsCmd = &cobra.Command{
	Use:   "list-results",
	Short: "List stored check results",
	RunE: withApp(func(cmd *cobra.Command, deps *appDeps) error {
		slug, _ := cmd.Flags().GetString("slug")
		failed, _ := cmd.Flags().GetBool("failed")
		ok, _ := cmd.Flags().GetBool("ok")
		unacknowledged, _ := cmd.Flags().GetBool("unacknowledged")

		results, err := deps.Service.ListResults(cmd.Context(), ports.ResultFilter{
			Slug:           slug,
			Failed:         failed,
			OK:             ok,
			Unacknowledged: unacknowledged,
		})
		if err != nil {
			return errs.Wrap(err, "list results")
		}

		out := cmd.OutOrStdout()
		for _, result := range results {
			fmt.Fprintf(out, "%s %s [%s] %s\n",
				result.Slug, result.Identifier, result.Status, result.PayloadDescription)
			if result.AcknowledgedUntil != nil {
				fmt.Fprintf(out, "  acknowledged by %s until %s: %s\n",
					result.AcknowledgedBy,
					result.AcknowledgedUntil.Format("2006-01-02"),
					result.AcknowledgedReason)
			}
			if rendered := renderResultData(deps, result); rendered != "" {
				fmt.Fprintf(out, "  %s\n", rendered)
			}
		}
		fmt.Fprintf(out, "%d results\n", len(results))
		return nil
	}),
}

// renderResultData lets the owning check format its own data bag; checks
// without a formatter get a plain key=value rendering.
func renderResultData(deps *appDeps, result ports.Result) string {
	data := result.Data
	if len(data) == 0 {
		return ""
	}

	chk, ok := deps.Registry.Check(result.Slug)
	if ok {
		if provider, ok := chk.(check.ContextDataProvider); ok {
			merged := make(map[string]any, len(data))
			for name, value := range data {
				merged[name] = value
			}
			for name, value := range provider.ContextData(data) {
				merged[name] = value
			}
			data = merged
		}
		if formatter, ok := chk.(check.ResultDataFormatter); ok {
			return formatter.FormatResultData(data)
		}
	}

	names := make([]string, 0, len(data))
	for name := range data {
		names = append(names, name)
	}
	sort.Strings(names)

	parts := make([]string, 0, len(names))
	for _, name := range names {
		parts = append(parts, fmt.Sprintf("%s=%v", name, data[name]))
	}
	return strings.Join(parts, " ")
}

func init() {
	rootCmd.AddCommand(listResultsCmd)
	listResultsCmd.Flags().String("slug", "", "Only results of the check with this slug")
	listResultsCmd.Flags().Bool("failed", false, "Only warning and critical results")
	listResultsCmd.Flags().Bool("ok", false, "Only ok results")
	listResultsCmd.Flags().Bool("unacknowledged", false, "Exclude results with a live acknowledgement")
}

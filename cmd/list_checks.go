package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/invopop/jsonschema"
	"github.com/spf13/cobra"

	"datawatch/internal/domain/check"
	"datawatch/internal/errs"
)

var listChecksCmd = &cobra.Command{
	Use:   "list-checks",
	Short: "List every registered check slug",
	RunE: withApp(func(cmd *cobra.Command, deps *appDeps) error {
		verbose, _ := cmd.Flags().GetBool("verbose")
		out := cmd.OutOrStdout()

		for _, slug := range deps.Registry.AllSlugs() {
			if _, err := fmt.Fprintln(out, slug); err != nil {
				return errs.Wrap(err, "write check slug")
			}
			if !verbose {
				continue
			}

			chk, _ := deps.Registry.Check(slug)
			meta := chk.Meta()
			fmt.Fprintf(out, "  title: %s\n", meta.Title)
			if meta.RunEvery != "" {
				fmt.Fprintf(out, "  run every: %s\n", meta.RunEvery)
			}
			if meta.Queue != "" {
				fmt.Fprintf(out, "  queue: %s\n", meta.Queue)
			}

			provider, ok := chk.(check.ConfigSchemaProvider)
			if !ok {
				continue
			}
			schema := jsonschema.Reflect(provider.ConfigPrototype())
			encoded, err := json.MarshalIndent(schema, "  ", "  ")
			if err != nil {
				return errs.Wrapf(err, "render config schema for %s", slug)
			}
			fmt.Fprintf(out, "  config schema: %s\n", encoded)
		}
		return nil
	}),
}

func init() {
	rootCmd.AddCommand(listChecksCmd)
	listChecksCmd.Flags().BoolP("verbose", "v", false, "Include title, schedule, queue and config schema")
}

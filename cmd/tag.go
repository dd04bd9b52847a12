package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"datawatch/internal/errs"
	"datawatch/internal/ports"
)

var tagCmd = &cobra.Command{
	Use:   "tag",
	Short: "Manage operator tags on stored results",
}

var tagAddCmd = &cobra.Command{
	Use:   "add <slug> <identifier> <text>",
	Short: "Attach a tag to a result",
	Args:  cobra.ExactArgs(3),
	RunE: withApp(func(cmd *cobra.Command, deps *appDeps) error {
		args := cmd.Flags().Args()
		author, _ := cmd.Flags().GetString("author")
		categoryName, _ := cmd.Flags().GetString("category")

		category, err := parseTagCategory(categoryName)
		if err != nil {
			return err
		}

		tag, err := deps.Service.AddTag(cmd.Context(), args[0], args[1], author, args[2], category)
		if err != nil {
			return errs.Wrap(err, "add tag")
		}
		fmt.Fprintf(cmd.OutOrStdout(), "tagged %s %s: %s\n", args[0], args[1], tag.Text)
		return nil
	}),
}

var tagRemoveCmd = &cobra.Command{
	Use:   "remove <slug> <identifier> <text>",
	Short: "Remove a tag from a result",
	Args:  cobra.ExactArgs(3),
	RunE: withApp(func(cmd *cobra.Command, deps *appDeps) error {
		args := cmd.Flags().Args()
		if err := deps.Service.RemoveTag(cmd.Context(), args[0], args[1], args[2]); err != nil {
			return errs.Wrap(err, "remove tag")
		}
		fmt.Fprintf(cmd.OutOrStdout(), "removed tag %q from %s %s\n", args[2], args[0], args[1])
		return nil
	}),
}

var tagListCmd = &cobra.Command{
	Use:   "list <slug> <identifier>",
	Short: "List the tags of a result",
	Args:  cobra.ExactArgs(2),
	RunE: withApp(func(cmd *cobra.Command, deps *appDeps) error {
		args := cmd.Flags().Args()
		tags, err := deps.Service.ListTags(cmd.Context(), args[0], args[1])
		if err != nil {
			return errs.Wrap(err, "list tags")
		}

		out := cmd.OutOrStdout()
		for _, tag := range tags {
			fmt.Fprintf(out, "%s (%s, by %s)\n", tag.Text, tagCategoryName(tag.Category), tag.Author)
		}
		fmt.Fprintf(out, "%d tags\n", len(tags))
		return nil
	}),
}

func parseTagCategory(name string) (ports.TagCategory, error) {
	switch strings.ToLower(name) {
	case "", "default":
		return ports.TagCategoryDefault, nil
	case "info":
		return ports.TagCategoryInfo, nil
	case "success":
		return ports.TagCategorySuccess, nil
	case "warning":
		return ports.TagCategoryWarning, nil
	case "danger":
		return ports.TagCategoryDanger, nil
	default:
		return ports.TagCategoryDefault, fmt.Errorf("unknown tag category %q", name)
	}
}

func tagCategoryName(category ports.TagCategory) string {
	switch category {
	case ports.TagCategoryInfo:
		return "info"
	case ports.TagCategorySuccess:
		return "success"
	case ports.TagCategoryWarning:
		return "warning"
	case ports.TagCategoryDanger:
		return "danger"
	default:
		return "default"
	}
}

func init() {
	rootCmd.AddCommand(tagCmd)
	tagCmd.AddCommand(tagAddCmd)
	tagCmd.AddCommand(tagRemoveCmd)
	tagCmd.AddCommand(tagListCmd)
	tagAddCmd.Flags().String("author", "", "Author of the tag")
	tagAddCmd.Flags().String("category", "default", "Tag category: default, info, success, warning or danger")
}

package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/stagecoach-io/stagecoach/internal/resolver"
	"github.com/stagecoach-io/stagecoach/internal/validator"
	"github.com/stagecoach-io/stagecoach/pkg/adapters/file"
)

var validateCmd = &cobra.Command{
	Use:   "validate [team...]",
	Short: "Check workflow definitions for consistency",
	Long: `Resolves inheritance and fragments, then validates each team's workflow:
status-to-stage references, transition endpoints, terminal-stage edges and
complexity/rule references. Advisory findings are reported but do not fail.

Documents are checked without being activated, so validate works on a broken
config tree.`,
	Run: func(cmd *cobra.Command, args []string) {
		if err := runValidate(cmd, args); err != nil {
			fmt.Printf("Validation failed: %v\n", err)
			os.Exit(1)
		}
	},
}

func init() {
	rootCmd.AddCommand(validateCmd)
}

func runValidate(cmd *cobra.Command, args []string) error {
	settings, err := loadSettings(cmd)
	if err != nil {
		return err
	}

	source, err := file.NewSource(settings.ConfigDir)
	if err != nil {
		return err
	}
	res := resolver.New(source)

	ctx := context.Background()
	teams := args
	if len(teams) == 0 {
		if teams, err = source.Teams(ctx); err != nil {
			return err
		}
	}

	failed := false
	for _, team := range teams {
		doc, err := res.Resolve(ctx, team)
		if err != nil {
			failed = true
			fmt.Printf("  [ERROR] %s: %v\n", team, err)
			continue
		}

		issues := validator.Validate(doc)
		for _, issue := range issues {
			marker := "ERROR"
			if issue.Advisory {
				marker = "WARN"
			}
			fmt.Printf("  [%s] %s: %s (%s)\n", marker, team, issue.Detail, issue.Element)
		}
		if validator.Error(issues) != nil {
			failed = true
			continue
		}
		fmt.Printf("Team %q is valid ✅\n", team)
	}

	if failed {
		return fmt.Errorf("one or more teams have fatal findings")
	}
	return nil
}

package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/stagecoach-io/stagecoach/internal/cli"
	"github.com/stagecoach-io/stagecoach/internal/logging"
)

var reportCmd = &cobra.Command{
	Use:   "report <team>",
	Short: "Render a flow report for a team",
	Long: `Shows the team's active workflow shape and flow metrics (cycle time,
loop-back rate). Rendered with terminal styling when stdout is a TTY,
plain markdown otherwise.`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		settings, err := loadSettings(cmd)
		if err != nil {
			fmt.Printf("Error loading settings: %v\n", err)
			os.Exit(1)
		}
		logger := logging.New(settings.Level())

		eng, cleanup, err := cli.BuildEngine(settings, logger)
		if err != nil {
			fmt.Printf("Error initializing engine: %v\n", err)
			os.Exit(1)
		}
		defer cleanup()

		if err := cli.RenderReport(os.Stdout, eng, args[0]); err != nil {
			fmt.Printf("Report failed: %v\n", err)
			os.Exit(1)
		}
	},
}

func init() {
	rootCmd.AddCommand(reportCmd)
	reportCmd.Flags().String("redis-addr", "", "Redis address for persistent items")
}

package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"github.com/stagecoach-io/stagecoach"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number of stagecoach",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("stagecoach version %s\n", strings.TrimSpace(stagecoach.Version))
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}

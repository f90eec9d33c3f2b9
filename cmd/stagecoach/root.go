package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"github.com/stagecoach-io/stagecoach/internal/cli"
)

var rootCmd = &cobra.Command{
	Use:   "stagecoach",
	Short: "Stagecoach is a configurable lifecycle workflow engine",
	Long: `Stagecoach compiles per-team workflow definitions (stages, statuses,
transitions, complexity levels and automation rules) and moves work items
along them under approval gates and exit criteria.`,
}

// Execute adds all child commands to the root command and sets flags
// appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().String("config-dir", "", "Directory containing team and fragment documents")
	rootCmd.PersistentFlags().String("log-level", "", "Log level (debug, info, warn, error)")
}

// loadSettings builds settings from the config file, environment and flags.
func loadSettings(cmd *cobra.Command) (*cli.Settings, error) {
	v := cli.NewViper()
	bindFlag(v, cmd, "config_dir", "config-dir")
	bindFlag(v, cmd, "log_level", "log-level")
	bindFlag(v, cmd, "addr", "addr")
	bindFlag(v, cmd, "watch", "watch")
	bindFlag(v, cmd, "webhook_url", "webhook-url")
	bindFlag(v, cmd, "redis.addr", "redis-addr")
	return cli.LoadSettings(v)
}

func bindFlag(v *viper.Viper, cmd *cobra.Command, key, flag string) {
	if f := cmd.Flags().Lookup(flag); f != nil && f.Changed {
		v.Set(key, f.Value.String())
	}
}

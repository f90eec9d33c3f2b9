package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/stagecoach-io/stagecoach/internal/cli"
	"github.com/stagecoach-io/stagecoach/internal/logging"
	"github.com/stagecoach-io/stagecoach/pkg/adapters/mcp"
)

// mcpCmd represents the mcp command
var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Run the Model Context Protocol (MCP) server",
	Long: `Starts the engine as an MCP server so agent tooling can create items,
request transitions, record signoffs and emit events as tools.

Supported Transports:
- stdio (default): Uses Standard Input/Output. Ideal for local process integration.
- sse: Uses Server-Sent Events over HTTP. Ideal for remote agents or debuggers.`,
	Run: func(cmd *cobra.Command, args []string) {
		transport, _ := cmd.Flags().GetString("transport")
		port, _ := cmd.Flags().GetInt("port")

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

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		go eng.Run(ctx)

		srv := mcp.NewServer(eng, eng.Registry(), eng.Automation())

		switch transport {
		case "stdio":
			// Keep logs off Stdout so they don't corrupt JSON-RPC.
			log.SetOutput(os.Stderr)
			slog.SetDefault(logger)
			logger.Info("starting MCP server (stdio)")
			if err := srv.ServeStdio(); err != nil {
				logger.Error("MCP server execution failed", "err", err)
				os.Exit(1)
			}

		case "sse":
			go func() {
				shutdown := make(chan os.Signal, 1)
				signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)
				<-shutdown
				cancel()
			}()
			logger.Info("starting MCP server (SSE)", "port", port)
			if err := srv.ServeSSE(ctx, port); err != nil {
				logger.Error("MCP server execution failed", "err", err)
				os.Exit(1)
			}

		default:
			fmt.Printf("Unknown transport %q (want stdio or sse)\n", transport)
			os.Exit(1)
		}
	},
}

func init() {
	rootCmd.AddCommand(mcpCmd)
	mcpCmd.Flags().String("transport", "stdio", "Transport to use (stdio or sse)")
	mcpCmd.Flags().Int("port", 8765, "Port for the SSE transport")
	mcpCmd.Flags().String("redis-addr", "", "Redis address for persistent items")
}

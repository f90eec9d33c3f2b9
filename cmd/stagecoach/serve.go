package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	httpAdapter "github.com/stagecoach-io/stagecoach/internal/adapters/http"
	"github.com/stagecoach-io/stagecoach/internal/cli"
	"github.com/stagecoach-io/stagecoach/internal/logging"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API server",
	Long: `Starts the engine in server mode: compiles every team's workflow,
exposes the JSON API and Prometheus metrics, and runs the deferred-watch
evaluator in the background.`,
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

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		go eng.Run(ctx)

		if settings.Watch {
			go func() {
				if err := cli.WatchConfig(ctx, eng, logger); err != nil {
					logger.Error("config watcher stopped", "err", err)
				}
			}()
		}

		server := httpAdapter.NewServer(eng, eng.Registry(),
			httpAdapter.WithLogger(logger),
			httpAdapter.WithEventSink(eng.Automation()),
			httpAdapter.WithCollector(eng.Collector()),
			httpAdapter.WithGatherer(eng.Gatherer()),
		)

		srv := &http.Server{
			Addr:    settings.Addr,
			Handler: server.Handler(),
		}

		serverErrors := make(chan error, 1)
		go func() {
			fmt.Printf("Starting Stagecoach Server on %s\n", srv.Addr)
			fmt.Printf("Serving workflows from: %s\n", settings.ConfigDir)
			serverErrors <- srv.ListenAndServe()
		}()

		shutdown := make(chan os.Signal, 1)
		signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

		select {
		case err := <-serverErrors:
			fmt.Printf("Server error: %v\n", err)
			os.Exit(1)

		case sig := <-shutdown:
			fmt.Printf("\nStart shutdown... Signal: %v\n", sig)
			cancel()

			shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer shutdownCancel()

			if err := srv.Shutdown(shutdownCtx); err != nil {
				fmt.Printf("Graceful shutdown did not complete in %v: %v\n", 5*time.Second, err)
				if err := srv.Close(); err != nil {
					fmt.Printf("Error killing server: %v\n", err)
				}
			}
			fmt.Println("Stagecoach Server stopped gracefully")
		}
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().String("addr", "", "Address to listen on (default :8080)")
	serveCmd.Flags().Bool("watch", false, "Hot-reload configs on file change")
	serveCmd.Flags().String("webhook-url", "", "Webhook endpoint for notify actions")
	serveCmd.Flags().String("redis-addr", "", "Redis address for persistent items and distributed locks")
}

// Package logging builds the slog loggers shared by the engine, the API
// server and the CLI commands.
package logging

import (
	"io"
	"log/slog"
	"os"
)

// New creates the application logger. It writes to stderr so that stdout
// stays free for rendered reports and the MCP stdio transport, and rewrites
// the "error" key to "err" for consistent log queries.
func New(level slog.Level) *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
		ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
			if a.Key == "error" {
				a.Key = "err"
			}
			return a
		},
	}))
}

// NewNop returns a logger that discards everything, the default for embedded
// engines that do not pass WithLogger.
func NewNop() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

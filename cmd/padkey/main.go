// Package main provides the padkey binary. `padkey serve` runs the pool
// server: it loads configuration, prepares the data directory and SQLite
// ledger, makes sure the current pool exists, rotates daily pools at UTC
// midnight, and serves the HTTP API. The encode, decode, and info
// subcommands are clients of a running server.
package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "padkey",
		Short:         "Turn files into keys against a disposable random byte pool",
		SilenceUsage:  true,
	}
	root.PersistentFlags().String("server", envOr("PADKEY_SERVER", "http://localhost:3000"), "padkey server URL (client commands)")
	root.AddCommand(newServeCmd(), newEncodeCmd(), newDecodeCmd(), newInfoCmd())
	return root
}

func envOr(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

// newLogger builds the process logger for the configured format and level.
func newLogger(w io.Writer, format string, level slog.Level) *slog.Logger {
	opts := &slog.HandlerOptions{Level: level}
	switch format {
	case "json":
		return slog.New(slog.NewJSONHandler(w, opts))
	case "text", "":
		return slog.New(slog.NewTextHandler(w, opts))
	default:
		panic(fmt.Sprintf("unknown log format %q", format))
	}
}

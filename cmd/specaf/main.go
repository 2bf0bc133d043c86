package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/antflydb/specaf/logging"
	"go.uber.org/zap"
)

var version = "0.1.0"

var (
	logLevel string
	logStyle string
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "specaf",
	Short: "Specaf - queryable OpenAPI index for agent retrieval",
	Long: `Specaf ingests an OpenAPI specification once and serves fine-grained
retrieval over it: endpoint search with category and method filters,
schema resolution with bounded reference expansion, category catalogs,
and generated request examples.

Typical flow:

  # Build the index
  specaf ingest --source openapi.json --out ./ads-index

  # Serve it to MCP clients over stdio
  specaf serve --dir ./ads-index`,
	Version: version,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "Log level: debug, info, warn, error")
	rootCmd.PersistentFlags().StringVar(&logStyle, "log-style", "terminal", "Log style: terminal, json, noop")

	rootCmd.AddCommand(ingestCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(validateCmd)
}

func newLogger() (*zap.Logger, error) {
	return logging.NewLogger(logging.Config{
		Style: logging.Style(logStyle),
		Level: logLevel,
	})
}

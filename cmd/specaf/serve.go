package main

import (
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/antflydb/specaf"
	"github.com/antflydb/specaf/render"
	"github.com/antflydb/specaf/search"
	"github.com/antflydb/specaf/server"
	"github.com/antflydb/specaf/store"
)

var (
	serveDir        string
	serveHealthPort int
	serveTimeout    time.Duration
	serveReadPool   int
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve a store's retrieval methods to MCP clients over stdio",
	Long: `Open an ingested store and serve searchEndpoints, getSchema,
getExample, and getEndpointCategories as MCP tools over stdio.

Examples:

  specaf serve --dir ./ads-index

  # With a health/metrics sidecar for probes
  specaf serve --dir ./ads-index --health-port 8080`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().StringVarP(&serveDir, "dir", "d", "", "Store directory to serve (required)")
	serveCmd.Flags().IntVar(&serveHealthPort, "health-port", 0, "Port for /healthz, /readyz, /metrics (0 disables)")
	serveCmd.Flags().DurationVar(&serveTimeout, "timeout", 30*time.Second, "Per-request timeout")
	serveCmd.Flags().IntVar(&serveReadPool, "read-pool", 5, "Read connection pool size")
	_ = serveCmd.MarkFlagRequired("dir")
}

func runServe(cmd *cobra.Command, args []string) error {
	logger, err := newLogger()
	if err != nil {
		return err
	}
	defer logger.Sync() //nolint:errcheck

	st, err := specaf.Open(serveDir, store.Options{
		ReadPool: serveReadPool,
		Logger:   logger,
	})
	if err != nil {
		return err
	}
	defer st.Close()

	handler := server.NewHandler(
		search.New(st, search.Config{}, logger),
		render.New(st),
		server.Config{Timeout: serveTimeout, Logger: logger},
	)

	if serveHealthPort > 0 {
		server.StartHealth(logger, serveHealthPort, func() bool {
			_, err := st.ActiveAPI(cmd.Context())
			return err == nil
		})
	}

	logger.Info("serving store over stdio", zap.String("dir", serveDir))
	return server.ServeStdio(server.NewMCP(handler, version))
}

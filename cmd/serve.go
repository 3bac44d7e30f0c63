package cmd

import (
	"context"
	"time"

	"github.com/huangsam/reposcan/internal/server"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// shutdownTimeout bounds how long in-flight requests get after a signal.
const shutdownTimeout = 30 * time.Second

// serveCmd starts the HTTP API.
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve scans and estimates over HTTP",
	Long: `Start an HTTP API for scanning repositories.

Endpoints:
  POST /api/v1/scans      run a scan and return its summary
  POST /api/v1/estimates  estimate a repository and return the plan
  GET  /health            liveness probe
  GET  /metrics           Prometheus metrics

Request body:
  {"repository_url": "...", "branch": "...", "scan_level": "fast", "sample_budget": 500, "timeout": "10m"}

Examples:
  reposcan serve --addr 0.0.0.0:8080
  curl -X POST localhost:8080/api/v1/scans -d '{"repository_url":"https://github.com/acme/widgets"}'`,
	Args:    cobra.NoArgs,
	PreRunE: sharedSetupWrapper,
	RunE: func(_ *cobra.Command, _ []string) error {
		srv, err := server.NewServer(cfg, rt, logger.Named("server"),
			server.WithMaxConcurrentScans(viper.GetInt("max-concurrent-scans")))
		if err != nil {
			return err
		}

		errCh := make(chan error, 1)
		go func() { errCh <- srv.Start(cfg.ServeAddr) }()

		select {
		case err := <-errCh:
			return err
		case <-rootCtx.Done():
		}

		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(ctx)
	},
}

package main

import (
	"context"
	"net/http"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/cuemby/haumaru/internal/engine"
	"github.com/cuemby/haumaru/internal/log"
	"github.com/cuemby/haumaru/internal/metrics"

	"github.com/prometheus/client_golang/prometheus"
)

var metricsAddr string

var backupCmd = &cobra.Command{
	Use:   "backup",
	Short: "Run the backup engine: an initial full pass, then continuous watch-driven passes",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}

		registry := prometheus.DefaultRegisterer
		m := metrics.New(registry)
		e, err := engine.New(cfg, m)
		if err != nil {
			return err
		}
		defer e.Close()

		ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		if metricsAddr != "" {
			mux := http.NewServeMux()
			mux.Handle("/metrics", metrics.Handler(prometheus.DefaultGatherer))
			srv := &http.Server{Addr: metricsAddr, Handler: mux}
			go func() {
				if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					log.WithComponent("metrics").Warn().Err(err).Msg("metrics server stopped")
				}
			}()
			go func() {
				<-ctx.Done()
				srv.Close()
			}()
		}

		return e.Run(ctx)
	},
}

func init() {
	addPathFlags(backupCmd)
	backupCmd.Flags().StringVar(&metricsAddr, "metrics-addr", ":9090", "address to serve /metrics on (empty to disable)")
}

package cli

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/majedsharif/corti-scribe/internal/config"
	"github.com/majedsharif/corti-scribe/internal/corti"
	"github.com/majedsharif/corti-scribe/internal/logging"
	"github.com/majedsharif/corti-scribe/internal/metrics"
	"github.com/majedsharif/corti-scribe/internal/server"
	"github.com/majedsharif/corti-scribe/internal/store"
)

func newServeCmd() *cobra.Command {
	var (
		port int
		bind string
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the gateway server",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(cfgFile)
			if err != nil {
				return err
			}
			if port != 0 {
				cfg.Server.Port = port
			}
			if bind != "" {
				cfg.Server.Bind = bind
			}
			log = logging.New(nil, cfg.Logging.Level, cfg.Logging.Style)
			if logLevel != "" {
				log = logging.New(nil, logLevel, cfg.Logging.Style)
			}

			issues := config.Validate(&cfg)
			if len(issues) > 0 {
				for _, issue := range issues {
					log.Error().Str("path", issue.Path).Msg(issue.Message)
				}
				return fmt.Errorf("config validation failed with %d issue(s)", len(issues))
			}

			client, err := corti.New(cfg.Corti, log)
			if err != nil {
				return err
			}

			registry := prometheus.NewRegistry()
			registry.MustRegister(collectors.NewGoCollector())
			mtr := metrics.New(registry)
			metricsHandler := promhttp.HandlerFor(registry, promhttp.HandlerOpts{})

			opts := []server.Option{
				server.WithMetrics(mtr, metricsHandler),
			}

			if cfg.Store.Path != "" {
				db, err := store.Open(cfg.Store.Path, log)
				if err != nil {
					return fmt.Errorf("opening encounter archive: %w", err)
				}
				defer db.Close()
				opts = append(opts, server.WithStore(db))
			} else {
				log.Info().Msg("encounter archive disabled (store.path is empty)")
			}

			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			srv := server.New(cfg, client, log, opts...)
			return srv.Start(ctx)
		},
	}

	cmd.Flags().IntVar(&port, "port", 0, "override server port")
	cmd.Flags().StringVar(&bind, "bind", "", "override bind mode (loopback, lan, custom)")

	return cmd
}

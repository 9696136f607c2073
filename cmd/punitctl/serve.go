package main

import (
	"context"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/sawpanic/punit/internal/report"
)

// serveCmd runs PUnit's read-only dashboard: Prometheus metrics, the latest
// verdict per use case, and a websocket feed of live sample outcomes. A
// host integration publishes to it via report.MetricsRegistry/Stream from
// within its own process; this command is useful standalone chiefly for
// local smoke-testing the dashboard routes.
func serveCmd(ctx context.Context) *cobra.Command {
	var (
		host string
		port int
	)
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the PUnit dashboard server (metrics, verdicts, live sample stream)",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := report.DefaultServerConfig()
			if host != "" {
				cfg.Host = host
			}
			if port != 0 {
				cfg.Port = port
			}

			metrics := report.NewMetricsRegistry()
			stream := report.NewStream()
			server, err := report.NewServer(cfg, metrics, stream)
			if err != nil {
				return err
			}

			log.Info().Str("addr", cfg.Host).Int("port", cfg.Port).Msg("punitctl: dashboard server listening")
			return server.ListenAndServe(cmd.Context())
		},
	}
	cmd.Flags().StringVar(&host, "host", "", "override the dashboard's listen host")
	cmd.Flags().IntVar(&port, "port", 0, "override the dashboard's listen port")
	return cmd
}

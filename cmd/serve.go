package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/huntwise/regwatch/internal/api"
	"github.com/huntwise/regwatch/internal/telemetry"
)

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Runs the HTTP API",
		Long: `Starts the operator API: trigger crawls, inspect backoff state,
compute the crawl schedule, and compile digests over HTTP. Prometheus
metrics are exposed on /metrics.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			container, err := resolveApp(cmd.Context())
			if err != nil {
				return err
			}
			log := container.Logger

			tp, err := telemetry.InitTracerProvider(cmd.Context(), "regwatch")
			if err != nil {
				return fmt.Errorf("init tracing: %w", err)
			}
			defer func() {
				if err := tp.Shutdown(context.Background()); err != nil {
					log.Warn("tracer shutdown failed", zap.Error(err))
				}
			}()

			server := api.NewServer(
				container.Runner,
				container.Provider,
				container.Backoffs,
				container.Alerts,
				container.Pub,
				container.Clock,
				log.Named("api"),
				container.Cfg.PubSub.TopicName,
			)

			srv := &http.Server{
				Addr:              fmt.Sprintf(":%d", container.Cfg.Server.Port),
				Handler:           server.Handler(),
				ReadHeaderTimeout: 5 * time.Second,
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			go func() {
				log.Info("http server started", zap.Int("port", container.Cfg.Server.Port))
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					log.Error("http server error", zap.Error(err))
					stop()
				}
			}()

			<-ctx.Done()
			log.Info("shutdown initiated")

			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			if err := srv.Shutdown(shutdownCtx); err != nil {
				return fmt.Errorf("server shutdown: %w", err)
			}
			log.Info("shutdown complete")
			return nil
		},
	}
}

// Package cmd defines and implements the CLI commands for the regwatch
// executable.
package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/huntwise/regwatch/internal/app"
	"github.com/huntwise/regwatch/internal/config"
	"github.com/huntwise/regwatch/internal/logging"
	"github.com/huntwise/regwatch/internal/metrics"
)

var cfgFile string

// appKeyType is the key for storing the App in the context.
type appKeyType string

const appKey appKeyType = "app"

// newApp is the application factory; a variable so tests can swap in a
// container built on in-memory backends.
var newApp = func(ctx context.Context, cfg config.Config, logger *zap.Logger) (*app.App, error) {
	return app.New(ctx, cfg, logger)
}

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "regwatch",
		Short: "Keeps hunting regulation data fresh and trustworthy.",
		Long: `regwatch crawls state wildlife agency pages on a deadline-aware
schedule, validates every extracted value before it can displace published
data, and falls back to the last known good snapshot when a source breaks.`,

		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(cfgFile)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			logger, err := logging.New(cfg.Logging.Development)
			if err != nil {
				return fmt.Errorf("init logger: %w", err)
			}
			zap.ReplaceGlobals(logger)
			metrics.Init()

			container, err := newApp(cmd.Context(), cfg, logger)
			if err != nil {
				return fmt.Errorf("initialize application services: %w", err)
			}
			cmd.SetContext(context.WithValue(cmd.Context(), appKey, container))
			return nil
		},

		PersistentPostRun: func(cmd *cobra.Command, _ []string) {
			if container, ok := cmd.Context().Value(appKey).(*app.App); ok && container != nil {
				container.Close()
			}
		},
	}

	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is regwatch.yaml in the working directory)")

	cmd.AddCommand(newCrawlCmd())
	cmd.AddCommand(newScheduleCmd())
	cmd.AddCommand(newDigestCmd())
	cmd.AddCommand(newServeCmd())

	return cmd
}

func resolveApp(ctx context.Context) (*app.App, error) {
	container, ok := ctx.Value(appKey).(*app.App)
	if !ok || container == nil {
		return nil, errors.New("application services not initialized")
	}
	return container, nil
}

// Execute is the main entry point.
func Execute() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "regwatch: %v\n", err)
		os.Exit(1)
	}
}

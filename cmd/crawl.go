package cmd

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/huntwise/regwatch/internal/pipeline"
	"github.com/huntwise/regwatch/internal/regdata"
)

func newCrawlCmd() *cobra.Command {
	var (
		sourceID string
		category string
	)
	cmd := &cobra.Command{
		Use:   "crawl",
		Short: "Crawls configured sources through the validation pipeline",
		Long: `Runs the full crawl pipeline for every configured source, or for a
single source and category when --source is given. Each crawl fetches the
agency page, validates structure and values, quarantines anomalies, and
replaces the last known good snapshot only when everything passes.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			container, err := resolveApp(cmd.Context())
			if err != nil {
				return err
			}
			log := container.Logger

			contexts, err := container.Provider.Contexts(cmd.Context())
			if err != nil {
				return fmt.Errorf("load source contexts: %w", err)
			}

			ran := 0
			for _, src := range contexts {
				if sourceID != "" && src.SourceID != sourceID {
					continue
				}
				for _, cat := range src.Categories {
					if category != "" && cat != regdata.Category(category) {
						continue
					}
					result, err := container.Runner.RunSource(cmd.Context(), src, cat)
					switch {
					case errors.Is(err, pipeline.ErrBackoffActive), errors.Is(err, pipeline.ErrSourcePaused):
						log.Info("skipping source", zap.String("source", src.SourceID), zap.String("reason", err.Error()))
						continue
					case err != nil:
						return fmt.Errorf("crawl %s/%s: %w", src.SourceID, cat, err)
					}
					ran++
					log.Info("crawl finished",
						zap.String("source", src.SourceID),
						zap.String("category", string(cat)),
						zap.String("status", string(result.Status)),
						zap.Int("alerts", len(result.Alerts)),
					)
				}
			}
			if sourceID != "" && ran == 0 {
				return fmt.Errorf("source %q not found or produced no crawls", sourceID)
			}
			log.Info("crawl command finished", zap.Int("crawls", ran))
			return nil
		},
	}
	cmd.Flags().StringVar(&sourceID, "source", "", "crawl a single source id")
	cmd.Flags().StringVar(&category, "category", "", "restrict to one category (deadlines, fees, regulations, draw_odds)")
	return cmd
}

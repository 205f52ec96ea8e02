package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/huntwise/regwatch/internal/digest"
	"github.com/huntwise/regwatch/internal/metrics"
)

func newDigestCmd() *cobra.Command {
	var publish bool
	cmd := &cobra.Command{
		Use:   "digest",
		Short: "Compiles the weekly health digest",
		Long: `Assembles the trailing week's verified updates, quarantined
anomalies, and failing crawlers into one report with an overall health
score, and optionally publishes it to the operations topic.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			container, err := resolveApp(cmd.Context())
			if err != nil {
				return err
			}
			report, err := digest.Gather(cmd.Context(), container.Alerts, container.Backoffs, nil, container.Clock.Now())
			if err != nil {
				return fmt.Errorf("compile digest: %w", err)
			}
			metrics.SetHealthScore(report.HealthScore)

			if publish {
				topic := container.Cfg.PubSub.TopicName
				if _, err := container.Pub.Publish(cmd.Context(), topic, report); err != nil {
					return fmt.Errorf("publish digest: %w", err)
				}
				container.Logger.Info("digest published", zap.String("topic", topic), zap.Int("health", report.HealthScore))
			}

			out, err := json.MarshalIndent(report, "", "  ")
			if err != nil {
				return fmt.Errorf("encode digest: %w", err)
			}
			cmd.Println(string(out))
			return nil
		},
	}
	cmd.Flags().BoolVar(&publish, "publish", false, "publish the digest to the operations topic")
	return cmd
}

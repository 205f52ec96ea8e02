package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/huntwise/regwatch/internal/schedule"
)

func newScheduleCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "schedule",
		Short: "Prints the optimal crawl schedule as JSON",
		Long: `Computes the deadline-aware crawl plan for every configured source
and prints it. Sources near a draw deadline are checked as often as every
six hours; closed windows drop to weekly.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			container, err := resolveApp(cmd.Context())
			if err != nil {
				return err
			}
			contexts, err := container.Provider.Contexts(cmd.Context())
			if err != nil {
				return fmt.Errorf("load source contexts: %w", err)
			}
			plan := schedule.Build(contexts, container.Clock.Now())

			out, err := json.MarshalIndent(plan, "", "  ")
			if err != nil {
				return fmt.Errorf("encode schedule: %w", err)
			}
			cmd.Println(string(out))
			return nil
		},
	}
}

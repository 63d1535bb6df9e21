package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/tenderflow-systems/tenderflow-ingest/pkg/uploader"
)

var healthCmd = &cobra.Command{
	Use:   "health",
	Short: "Check ingestion service health",
	RunE: func(cmd *cobra.Command, args []string) error {
		baseURL, _ := cmd.Flags().GetString("url")
		token, _ := cmd.Flags().GetString("token")

		client := uploader.New(baseURL, token)
		health, err := client.Health(cmd.Context())
		if err != nil {
			return fmt.Errorf("health check failed: %w", err)
		}

		fmt.Printf("Status: %s\n", health.Status)
		for name, ok := range health.Services {
			state := "up"
			if !ok {
				state = "down"
			}
			fmt.Printf("  %s: %s\n", name, state)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(healthCmd)
}

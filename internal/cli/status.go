package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/tenderflow-systems/tenderflow-ingest/pkg/uploader"
)

var statusCmd = &cobra.Command{
	Use:     "status <upload-id>",
	Short:   "Check the status of an upload",
	Example: `  tenderflow status 7f3c2a9e-... --token $TOKEN`,
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		token, _ := cmd.Flags().GetString("token")
		if token == "" {
			return fmt.Errorf("a scraper token is required (use --token)")
		}
		baseURL, _ := cmd.Flags().GetString("url")

		client := uploader.New(baseURL, token)
		status, err := client.Status(cmd.Context(), args[0])
		if err != nil {
			return err
		}

		fmt.Printf("Upload %s: %s (%d/%d records processed)\n",
			status.UploadID, status.Status, status.Processed, status.Total)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(statusCmd)
}

package cli

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/tenderflow-systems/tenderflow-ingest/internal/models"
	"github.com/tenderflow-systems/tenderflow-ingest/pkg/uploader"
)

var uploadCmd = &cobra.Command{
	Use:   "upload <records.json>",
	Short: "Upload a batch of tender records",
	Long:  "Read a JSON array of tender records from a file and submit it as one batch",
	Example: `  tenderflow upload tenders.json --token $TOKEN
  tenderflow upload tenders.json --scraper goszakup-daily --url https://ingest.example.com`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		token, _ := cmd.Flags().GetString("token")
		if token == "" {
			return fmt.Errorf("a scraper token is required (use --token or create one with 'tenderflow token create')")
		}
		baseURL, _ := cmd.Flags().GetString("url")
		scraperID, _ := cmd.Flags().GetString("scraper")

		data, err := os.ReadFile(args[0])
		if err != nil {
			return fmt.Errorf("failed to read records file: %w", err)
		}

		var records []models.TenderRecord
		if err := json.Unmarshal(data, &records); err != nil {
			return fmt.Errorf("records file is not a valid JSON array: %w", err)
		}

		client := uploader.New(baseURL, token)
		result, err := client.Upload(cmd.Context(), scraperID, records)
		if err != nil {
			return fmt.Errorf("upload failed: %w", err)
		}

		fmt.Printf("Upload %s: %s (%d processed, %d skipped)\n",
			result.UploadID, result.Status, result.Processed, result.Skipped)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(uploadCmd)

	uploadCmd.Flags().String("scraper", "tenderflow-cli", "Scraper identity to report in batch metadata")
}

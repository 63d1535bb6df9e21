// Package cli implements the tenderflow command-line interface.
package cli

import (
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "tenderflow",
	Short: "TenderFlow ingestion CLI",
	Long: `tenderflow is the command-line interface for the TenderFlow
ingestion service.

Upload scraped tender batches, poll upload status, mint scraper tokens,
and check service health from your terminal.`,
	Version: "0.1.0",
}

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().String("url", "http://localhost:8080", "Ingestion service URL")
	rootCmd.PersistentFlags().StringP("token", "t", "", "Scraper bearer token")
}

package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/tenderflow-systems/tenderflow-ingest/pkg/tokens"
)

var tokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Scraper token commands",
}

var tokenCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Mint a scraper bearer token",
	Long:  "Sign a scraper-typed JWT for a tenant and scraper identity using the shared secret",
	Example: `  tenderflow token create --tenant acme --scraper goszakup-daily --secret $INGEST_AUTH_JWT_SECRET
  tenderflow token create --tenant acme --scraper goszakup-daily --secret $SECRET --ttl 168h`,
	RunE: func(cmd *cobra.Command, args []string) error {
		tenantID, _ := cmd.Flags().GetString("tenant")
		scraperID, _ := cmd.Flags().GetString("scraper")
		secret, _ := cmd.Flags().GetString("secret")
		issuer, _ := cmd.Flags().GetString("issuer")
		ttl, _ := cmd.Flags().GetDuration("ttl")

		if tenantID == "" || scraperID == "" {
			return fmt.Errorf("--tenant and --scraper are required")
		}
		if secret == "" {
			return fmt.Errorf("--secret is required (must match the service's auth.jwt_secret)")
		}

		tg := tokens.NewTokenGenerator(secret, issuer, ttl)
		token, err := tg.GenerateScraperToken(tenantID, scraperID)
		if err != nil {
			return fmt.Errorf("failed to sign token: %w", err)
		}

		fmt.Println(token)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(tokenCmd)
	tokenCmd.AddCommand(tokenCreateCmd)

	tokenCreateCmd.Flags().String("tenant", "", "Tenant ID the token is scoped to")
	tokenCreateCmd.Flags().String("scraper", "", "Scraper identity embedded in the token")
	tokenCreateCmd.Flags().String("secret", "", "HMAC signing secret")
	tokenCreateCmd.Flags().String("issuer", "tenderflow-ingest", "Token issuer claim")
	tokenCreateCmd.Flags().Duration("ttl", 30*24*time.Hour, "Token lifetime")
}

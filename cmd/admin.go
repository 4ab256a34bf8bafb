package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/thaohienhomes/phochat-payments/internal/auth"
	"github.com/thaohienhomes/phochat-payments/internal/paymentgateway"
	"github.com/thaohienhomes/phochat-payments/pkg/logger"
)

var adminCmd = &cobra.Command{
	Use:   "admin",
	Short: "Operator utilities",
}

var hashTokenCmd = &cobra.Command{
	Use:   "hash-token [token]",
	Short: "Print the bcrypt hash to store in security.admin_token_hash",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		hash, err := auth.HashAdminToken(args[0])
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), hash)
		return nil
	},
}

var webhookURL string

var confirmWebhookCmd = &cobra.Command{
	Use:   "confirm-webhook",
	Short: "Register the webhook URL with the payment provider",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(configPath)
		if err != nil {
			return err
		}
		initLogger(cfg)

		url := webhookURL
		if url == "" {
			url = cfg.Server.BaseURL + "/api/v1/payos/webhook"
		}

		client := paymentgateway.NewClient(paymentgateway.Config{
			APIURL:      cfg.Payment.APIURL,
			ClientID:    cfg.Payment.ClientID,
			APIKey:      cfg.Payment.APIKey,
			ChecksumKey: cfg.Payment.ChecksumKey,
			Timeout:     cfg.Payment.Timeout,
		}, logger.LoggerWrapper())

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := client.ConfirmWebhook(ctx, url); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "webhook confirmed: %s\n", url)
		return nil
	},
}

func init() {
	confirmWebhookCmd.Flags().StringVar(&webhookURL, "url", "", "public webhook URL (defaults to base_url + /api/v1/payos/webhook)")

	adminCmd.AddCommand(hashTokenCmd)
	adminCmd.AddCommand(confirmWebhookCmd)

	rootCmd.AddCommand(adminCmd)
}

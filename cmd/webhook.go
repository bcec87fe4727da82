package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/frahmantamala/upi-sandbox/pkg/logger"
	"github.com/spf13/cobra"
)

var webhookCmd = &cobra.Command{
	Use:   "webhook",
	Short: "Webhook commands",
	Long:  `Send test notifications to the sandbox webhook sink`,
}

var publishWebhookCmd = &cobra.Command{
	Use:   "publish [event]",
	Short: "Publish a test webhook",
	Long:  `POST a webhook notification to the running sandbox for testing and debugging`,
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return publishTestWebhook(cmd, args[0])
	},
}

var webhookData string

func publishTestWebhook(cmd *cobra.Command, event string) error {
	cfg, err := setup()
	if err != nil {
		return err
	}
	log := logger.LoggerWrapper()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	var payload json.RawMessage
	if webhookData != "" {
		payload = json.RawMessage(webhookData)
	}

	log.Info("publishing test webhook", "event", event, "base_url", cfg.Client.BaseURL)

	ack, err := newClient(cfg).SendWebhook(ctx, event, payload)
	if err != nil {
		log.Error("failed to publish webhook", "error", err)
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "received=%t timestamp=%s\n", ack.Received, ack.Timestamp.Format(time.RFC3339))
	return nil
}

func init() {
	publishWebhookCmd.Flags().StringVar(&webhookData, "data", `{"source":"cli-command"}`, "JSON payload")

	webhookCmd.AddCommand(publishWebhookCmd)

	rootCmd.AddCommand(webhookCmd)
}

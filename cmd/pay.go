package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/frahmantamala/upi-sandbox/internal"
	"github.com/frahmantamala/upi-sandbox/internal/upiclient"
	"github.com/frahmantamala/upi-sandbox/pkg/logger"
	"github.com/jonboulle/clockwork"
	"github.com/spf13/cobra"
)

var (
	payAmount  float64
	payVPAs    []string
	payReceipt string
	payWorkers int
)

var payCmd = &cobra.Command{
	Use:   "pay",
	Short: "Run the order, payment and polling flow against the sandbox",
	Long:  `Create an order, initiate a UPI payment for each --vpa and poll until it is captured or failed. Several VPAs run as a batch.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := setup()
		if err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		client := newClient(cfg)
		results := runPayments(ctx, client, payAmount, payVPAs, payReceipt, payWorkers)

		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		if err := enc.Encode(results); err != nil {
			return err
		}

		failed := 0
		for _, r := range results {
			if !r.Success {
				failed++
			}
		}
		fmt.Fprintf(cmd.ErrOrStderr(), "%d of %d payments of %s succeeded\n",
			len(results)-failed, len(results), upiclient.FormatINR(payAmount))
		return nil
	},
}

func newClient(cfg *internal.Config) *upiclient.Client {
	return upiclient.NewClient(upiclient.Config{
		BaseURL:        cfg.Client.BaseURL,
		RequestTimeout: cfg.Client.RequestTimeout,
		MaxAttempts:    cfg.Client.MaxAttempts,
		PollInterval:   cfg.Client.PollInterval,
	}, clockwork.NewRealClock(), logger.LoggerWrapper())
}

func runPayments(ctx context.Context, client *upiclient.Client, amount float64, vpas []string, receipt string, workers int) []upiclient.PaymentResult {
	if len(vpas) == 1 {
		return []upiclient.PaymentResult{client.ProcessPayment(ctx, amount, vpas[0], receipt)}
	}

	intents := make([]upiclient.PaymentIntent, len(vpas))
	for i, vpa := range vpas {
		intents[i] = upiclient.PaymentIntent{Amount: amount, VPA: vpa}
		if receipt != "" {
			intents[i].Receipt = fmt.Sprintf("%s_%d", receipt, i+1)
		}
	}
	return client.ProcessBatch(ctx, intents, workers)
}

func init() {
	payCmd.Flags().Float64VarP(&payAmount, "amount", "a", 100, "amount in rupees")
	payCmd.Flags().StringArrayVar(&payVPAs, "vpa", []string{"success@razorpay"}, "payer VPA, repeat for a batch")
	payCmd.Flags().StringVar(&payReceipt, "receipt", "", "order receipt, generated when empty")
	payCmd.Flags().IntVarP(&payWorkers, "workers", "w", 4, "concurrent payments in a batch")
}

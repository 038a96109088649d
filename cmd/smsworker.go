package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/citizone/authserver/config"
	"github.com/citizone/authserver/internal/mq"
	"github.com/citizone/authserver/internal/sms"
	"github.com/spf13/cobra"
)

// smsworkerCmd consumes queued OTP messages and hands them to a delivery
// provider. The in-repo provider logs instead of calling a gateway.
var smsworkerCmd = &cobra.Command{
	Use:   "smsworker",
	Short: "Consume outbound OTP SMS messages",
	Run: func(cmd *cobra.Command, args []string) {
		cfg := config.LoadConfig()

		queue, err := mq.Open(cmd.Context(), cfg.MQ)
		if err != nil {
			fmt.Fprintf(os.Stderr, "failed to connect to broker: %v\n", err)
			os.Exit(1)
		}
		defer queue.Close()

		err = sms.Consume(cmd.Context(), queue, cfg.MQ.SMSChannel, sms.LogProvider{})
		if err != nil && !errors.Is(err, context.Canceled) {
			fmt.Fprintf(os.Stderr, "worker error: %v\n", err)
			os.Exit(1)
		}
	},
}

func init() {
	rootCmd.AddCommand(smsworkerCmd)
}

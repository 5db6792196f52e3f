package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"prefixhider/internal/notify"
)

var notifyCmd = &cobra.Command{
	Use:   "notify",
	Short: "Tell running engines to re-read the prefix list",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()

		n, err := notify.Broadcast(ctx, cfg.Notify.RunDir, cfg.GetNotifyTimeout())
		if err != nil {
			return err
		}
		logger.Debug("broadcast done", zap.Int("notified", n))
		fmt.Fprintln(cmd.OutOrStdout(), notifiedSummary(n))
		return nil
	},
}

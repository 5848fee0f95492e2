package main

import (
	"encoding/hex"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"notify/internal/notify"
	"notify/internal/notify/bridge"
	"notify/internal/notify/transport"
)

var publishCmd = &cobra.Command{
	Use:   "publish (tx|block) <hash> <raw-hex>",
	Short: "Forward a single transaction or block through the bridge",
	Long: `Open the transport, forward one event and close it again.

PUB sockets drop messages for subscribers that have not finished
connecting, so publish waits --wait before sending to let listeners attach.`,
	Args: cobra.ExactArgs(3),
	RunE: runPublish,
}

func init() {
	publishCmd.Flags().Duration("wait", time.Second, "delay between binding and sending")
	publishCmd.Flags().Bool("validate", false, "reject malformed events instead of forwarding them, overrides NOTIFY_VALIDATE_EVENTS")
}

func runPublish(cmd *cobra.Command, args []string) error {
	kind, hash := args[0], args[1]
	raw, err := hex.DecodeString(args[2])
	if err != nil {
		return fmt.Errorf("raw payload is not hex: %w", err)
	}
	wait, _ := cmd.Flags().GetDuration("wait")

	ctx := cmd.Context()
	publisher, err := transport.Open(ctx, cfg.Transport, logger)
	if err != nil {
		return err
	}

	b, err := bridge.New(publisher, logger, cfg.Bridge)
	if err != nil {
		_ = publisher.Close()
		return err
	}
	defer b.Close()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(wait):
	}

	switch kind {
	case "tx", bridge.KindTransaction:
		err = b.ForwardTransaction(ctx, notify.TransactionEvent{Hash: hash, Raw: raw})
	case bridge.KindBlock:
		err = b.ForwardBlock(ctx, notify.BlockEvent{Hash: hash, Raw: raw})
	default:
		return fmt.Errorf("unknown event kind %q, want tx or block", kind)
	}
	if err != nil {
		return err
	}

	logger.Info("forwarded event", zap.String("kind", kind), zap.String("hash", hash), zap.Int("size", len(raw)))
	fmt.Fprintf(cmd.OutOrStdout(), "forwarded %s %s (%d bytes)\n", kind, hash, len(raw))
	return nil
}

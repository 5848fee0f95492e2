package main

import (
	"context"
	"encoding/hex"
	"fmt"
	"io"
	"os"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/term"

	"notify/internal/notify"
	"notify/internal/notify/metrics"
	"notify/internal/notify/subscriber"
	"notify/internal/notify/transport"
)

const previewBytes = 32

var listenCmd = &cobra.Command{
	Use:   "listen",
	Short: "Print notifications as they arrive",
	Long: `Subscribe to the bridge endpoint and print each notification.

Hash topics are printed as-is, raw topics as hex (truncated unless --full).
With --count the command exits after that many notifications and shows a
progress bar instead of lines when stdout is a terminal.`,
	Args: cobra.NoArgs,
	RunE: runListen,
}

func init() {
	listenCmd.Flags().StringSlice("topic", nil, "topics to subscribe to (default all)")
	listenCmd.Flags().Int("count", 0, "exit after this many notifications")
	listenCmd.Flags().Bool("full", false, "print raw payloads in full")
}

func runListen(cmd *cobra.Command, args []string) error {
	names, _ := cmd.Flags().GetStringSlice("topic")
	count, _ := cmd.Flags().GetInt("count")
	full, _ := cmd.Flags().GetBool("full")

	topics := make([]notify.Topic, 0, len(names))
	for _, name := range names {
		t, err := notify.ParseTopic(name)
		if err != nil {
			return err
		}
		topics = append(topics, t)
	}

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	sub, err := transport.Dial(ctx, cfg.Transport, topics...)
	if err != nil {
		return err
	}

	consumer, err := newConsumer(sub, logger.Named("listen"), metrics.NewRegistry())
	if err != nil {
		return err
	}
	defer consumer.Close()

	out := cmd.OutOrStdout()
	var bar *progressbar.ProgressBar
	if count > 0 && isTerminal(out) {
		bar = progressbar.Default(int64(count), "notifications")
	}

	var received int
	err = consumer.Run(ctx, func(_ context.Context, n notify.Notification) error {
		received++
		if bar != nil {
			_ = bar.Add(1)
		} else {
			fmt.Fprintln(out, format(n, full))
		}
		if count > 0 && received >= count {
			cancel()
		}
		return nil
	})
	if err != nil {
		return err
	}

	for topic, missed := range consumer.Missed() {
		fmt.Fprintf(cmd.ErrOrStderr(), "%s: %d notifications missed\n", topic, missed)
	}
	return nil
}

// newConsumer wraps sub, closing it if the consumer cannot be built.
func newConsumer(sub notify.Subscriber, logger *zap.Logger, registry *metrics.Registry) (*subscriber.Consumer, error) {
	c, err := subscriber.NewConsumer(sub, logger, registry)
	if err != nil {
		_ = sub.Close()
		return nil, err
	}
	return c, nil
}

func format(n notify.Notification, full bool) string {
	switch n.Topic {
	case notify.TopicHashTx, notify.TopicHashBlock:
		return fmt.Sprintf("%-9s seq=%-8d %s", n.Topic, n.Sequence, n.Body)
	}

	body := n.Body
	suffix := ""
	if !full && len(body) > previewBytes {
		body = body[:previewBytes]
		suffix = "..."
	}
	return fmt.Sprintf("%-9s seq=%-8d %s%s (%d bytes)", n.Topic, n.Sequence, hex.EncodeToString(body), suffix, len(n.Body))
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

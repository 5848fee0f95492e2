package bridge

import (
	"context"
	"errors"
	"time"

	"notify/internal/notify"
	"notify/internal/notify/metrics"
)

// MetricsNotifier wraps a notify.Notifier with metrics collection
type MetricsNotifier struct {
	notifier notify.Notifier
	registry *metrics.Registry
}

// NewMetricsNotifier creates a new instrumented notifier
func NewMetricsNotifier(notifier notify.Notifier, registry *metrics.Registry) notify.Notifier {
	return &MetricsNotifier{
		notifier: notifier,
		registry: registry,
	}
}

// ForwardTransaction implements notify.Notifier.ForwardTransaction with metrics collection
func (n *MetricsNotifier) ForwardTransaction(ctx context.Context, ev notify.TransactionEvent) error {
	start := time.Now()

	err := n.notifier.ForwardTransaction(ctx, ev)
	n.registry.RecordForward(KindTransaction, status(err), time.Since(start))

	return err
}

// ForwardBlock implements notify.Notifier.ForwardBlock with metrics collection
func (n *MetricsNotifier) ForwardBlock(ctx context.Context, ev notify.BlockEvent) error {
	start := time.Now()

	err := n.notifier.ForwardBlock(ctx, ev)
	n.registry.RecordForward(KindBlock, status(err), time.Since(start))

	return err
}

func status(err error) string {
	switch {
	case err == nil:
		return metrics.StatusSuccess
	case errors.Is(err, ErrNotReady), errors.Is(err, ErrClosed):
		return metrics.StatusNotReady
	case errors.Is(err, notify.ErrMalformedEvent):
		return metrics.StatusRejected
	default:
		return metrics.StatusError
	}
}

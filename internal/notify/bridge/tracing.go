package bridge

import (
	"context"

	"go.opentelemetry.io/otel/codes"

	"notify/internal/notify"
	"notify/internal/notify/tracing"
)

// TracedNotifier wraps a notify.Notifier with distributed tracing
// Layer order: TracedNotifier -> MetricsNotifier -> Bridge (real thing)
type TracedNotifier struct {
	notifier notify.Notifier
	tracer   *tracing.Tracer
}

// NewTracedNotifier creates a new traced notifier that wraps a metrics notifier
func NewTracedNotifier(notifier notify.Notifier, tracer *tracing.Tracer) notify.Notifier {
	return &TracedNotifier{
		notifier: notifier,
		tracer:   tracer,
	}
}

// ForwardTransaction implements notify.Notifier.ForwardTransaction with distributed tracing
func (n *TracedNotifier) ForwardTransaction(ctx context.Context, ev notify.TransactionEvent) error {
	ctx, span := n.tracer.StartSpan(ctx, "bridge.forward_transaction")
	defer span.End()

	span.SetAttributes(n.tracer.ForwardAttributes(KindTransaction, ev.Hash, len(ev.Raw))...)

	err := n.notifier.ForwardTransaction(ctx, ev)
	n.finish(ctx, err)

	return err
}

// ForwardBlock implements notify.Notifier.ForwardBlock with distributed tracing
func (n *TracedNotifier) ForwardBlock(ctx context.Context, ev notify.BlockEvent) error {
	ctx, span := n.tracer.StartSpan(ctx, "bridge.forward_block")
	defer span.End()

	span.SetAttributes(n.tracer.ForwardAttributes(KindBlock, ev.Hash, len(ev.Raw))...)

	err := n.notifier.ForwardBlock(ctx, ev)
	n.finish(ctx, err)

	return err
}

func (n *TracedNotifier) finish(ctx context.Context, err error) {
	span := n.tracer.SpanFromContext(ctx)
	if err != nil {
		n.tracer.RecordError(ctx, err)
	} else {
		span.SetStatus(codes.Ok, "")
	}
	span.SetAttributes(n.tracer.ErrorAttributes(err)...)
}

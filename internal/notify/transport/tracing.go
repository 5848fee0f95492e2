package transport

import (
	"context"

	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"notify/internal/notify"
	"notify/internal/notify/tracing"
)

// TracedPublisher wraps a notify.Publisher with distributed tracing
// Layer order: TracedPublisher -> MetricsPublisher -> transport publisher
type TracedPublisher struct {
	publisher notify.Publisher
	tracer    *tracing.Tracer
}

// NewTracedPublisher creates a new traced publisher
func NewTracedPublisher(publisher notify.Publisher, tracer *tracing.Tracer) notify.Publisher {
	return &TracedPublisher{
		publisher: publisher,
		tracer:    tracer,
	}
}

// Publish implements notify.Publisher.Publish with distributed tracing
func (p *TracedPublisher) Publish(ctx context.Context, topic notify.Topic, body []byte) error {
	ctx, span := p.tracer.StartSpan(ctx, "transport.publish "+topic.String(), trace.WithSpanKind(trace.SpanKindProducer))
	defer span.End()

	span.SetAttributes(p.tracer.TopicAttributes(topic.String(), len(body))...)

	err := p.publisher.Publish(ctx, topic, body)
	if err != nil {
		p.tracer.RecordError(ctx, err)
	} else {
		span.SetStatus(codes.Ok, "")
	}

	span.SetAttributes(p.tracer.ErrorAttributes(err)...)

	return err
}

func (p *TracedPublisher) Close() error {
	return p.publisher.Close()
}

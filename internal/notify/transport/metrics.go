package transport

import (
	"context"
	"time"

	"notify/internal/notify"
	"notify/internal/notify/metrics"
)

// MetricsPublisher wraps a notify.Publisher with metrics collection
type MetricsPublisher struct {
	publisher notify.Publisher
	registry  *metrics.Registry
}

// NewMetricsPublisher creates a new instrumented publisher
func NewMetricsPublisher(publisher notify.Publisher, registry *metrics.Registry) notify.Publisher {
	return &MetricsPublisher{
		publisher: publisher,
		registry:  registry,
	}
}

// Publish implements notify.Publisher.Publish with metrics collection
func (p *MetricsPublisher) Publish(ctx context.Context, topic notify.Topic, body []byte) error {
	start := time.Now()

	err := p.publisher.Publish(ctx, topic, body)
	duration := time.Since(start)

	p.registry.RecordPublish(topic.String(), len(body), duration, err)

	return err
}

func (p *MetricsPublisher) Close() error {
	return p.publisher.Close()
}

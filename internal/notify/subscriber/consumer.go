// Package subscriber consumes notifications and tracks per-topic
// sequence numbers so dropped messages become visible.
package subscriber

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"notify/internal/notify"
	"notify/internal/notify/metrics"
	"notify/internal/validator"
)

// Handler processes one notification. Returning an error stops Run.
type Handler func(ctx context.Context, n notify.Notification) error

// Consumer reads from a notify.Subscriber.
type Consumer struct {
	subscriber notify.Subscriber
	logger     *zap.Logger
	registry   *metrics.Registry

	mu     sync.Mutex
	last   map[notify.Topic]uint32
	counts map[notify.Topic]int
	missed map[notify.Topic]uint64
}

func NewConsumer(subscriber notify.Subscriber, logger *zap.Logger, registry *metrics.Registry) (*Consumer, error) {
	c := Consumer{
		subscriber: subscriber,
		logger:     logger,
		registry:   registry,
		last:       make(map[notify.Topic]uint32),
		counts:     make(map[notify.Topic]int),
		missed:     make(map[notify.Topic]uint64),
	}

	if err := validator.Validate("consumer", c.subscriber, c.logger, c.registry); err != nil {
		return nil, fmt.Errorf("failed to validate consumer deps: %w", err)
	}

	return &c, nil
}

// Run hands every notification to handler until ctx is done, the
// subscriber fails, or handler returns an error. A done ctx is not an
// error.
func (c *Consumer) Run(ctx context.Context, handler Handler) error {
	for {
		n, err := c.Next(ctx)
		switch {
		case err == nil:
		case ctx.Err() != nil && errors.Is(err, ctx.Err()):
			return nil
		default:
			return fmt.Errorf("failed to receive notification: %w", err)
		}

		if err := handler(ctx, n); err != nil {
			return err
		}
	}
}

// Next receives a single notification and records it.
func (c *Consumer) Next(ctx context.Context) (notify.Notification, error) {
	n, err := c.subscriber.Receive(ctx)
	if err != nil {
		return notify.Notification{}, err
	}

	missed := c.track(n)
	c.registry.RecordReceived(n.Topic.String(), missed)
	if missed > 0 {
		c.logger.Warn("notification sequence gap",
			zap.String("topic", n.Topic.String()),
			zap.Uint32("sequence", n.Sequence),
			zap.Uint32("missed", missed),
		)
	}

	return n, nil
}

func (c *Consumer) track(n notify.Notification) uint32 {
	c.mu.Lock()
	defer c.mu.Unlock()

	prev, seen := c.last[n.Topic]
	c.last[n.Topic] = n.Sequence
	c.counts[n.Topic]++

	if !seen || n.Sequence == prev+1 {
		return 0
	}
	if n.Sequence <= prev {
		// publisher restarted and its counters began again
		c.logger.Info("notification sequence reset", zap.String("topic", n.Topic.String()), zap.Uint32("sequence", n.Sequence))
		return 0
	}

	missed := n.Sequence - prev - 1
	c.missed[n.Topic] += uint64(missed)
	return missed
}

// Counts returns how many notifications arrived per topic.
func (c *Consumer) Counts() map[notify.Topic]int {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make(map[notify.Topic]int, len(c.counts))
	for t, n := range c.counts {
		out[t] = n
	}
	return out
}

// Missed returns the number of messages skipped per topic.
func (c *Consumer) Missed() map[notify.Topic]uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make(map[notify.Topic]uint64, len(c.missed))
	for t, n := range c.missed {
		out[t] = n
	}
	return out
}

// Close closes the underlying subscriber.
func (c *Consumer) Close() error {
	return c.subscriber.Close()
}

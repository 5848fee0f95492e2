package transport

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"notify/internal/natsbus"
	"notify/internal/notify"
)

const flushTimeout = 2 * time.Second

type natsPublisher struct {
	pub    *natsbus.Publisher
	prefix string
	seq    *sequences
}

func (p *natsPublisher) Publish(ctx context.Context, topic notify.Topic, body []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	return p.pub.Publish(notify.Subject(p.prefix, topic), body, p.seq.Next(topic))
}

// Close pushes out what the client still buffers, then closes. A failed
// flush means buffered notifications were lost and is returned.
func (p *natsPublisher) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), flushTimeout)
	defer cancel()

	var flushErr error
	if err := p.pub.Flush(ctx); err != nil {
		flushErr = fmt.Errorf("notifications buffered at close may be lost: %w", err)
	}

	return errors.Join(flushErr, p.pub.Close())
}

type natsSubscriber struct {
	sub    *natsbus.Subscriber
	prefix string
}

func (s *natsSubscriber) Receive(ctx context.Context) (notify.Notification, error) {
	m, err := s.sub.Recv(ctx)
	if err != nil {
		return notify.Notification{}, err
	}

	name := m.Subject
	if s.prefix != "" {
		name = strings.TrimPrefix(name, s.prefix+".")
	}
	topic, err := notify.ParseTopic(name)
	if err != nil {
		return notify.Notification{}, fmt.Errorf("failed to decode notification: %w", err)
	}

	return notify.Notification{Topic: topic, Body: m.Body, Sequence: m.Sequence}, nil
}

func (s *natsSubscriber) Close() error {
	return s.sub.Close()
}

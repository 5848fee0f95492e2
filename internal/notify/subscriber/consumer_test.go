package subscriber

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"notify/internal/notify"
	"notify/internal/notify/metrics"
)

// scriptedSubscriber replays a fixed list and then blocks until ctx is done.
type scriptedSubscriber struct {
	queue  []notify.Notification
	err    error
	closed bool
}

func (s *scriptedSubscriber) Receive(ctx context.Context) (notify.Notification, error) {
	if len(s.queue) == 0 {
		if s.err != nil {
			return notify.Notification{}, s.err
		}
		<-ctx.Done()
		return notify.Notification{}, ctx.Err()
	}
	n := s.queue[0]
	s.queue = s.queue[1:]
	return n, nil
}

func (s *scriptedSubscriber) Close() error {
	s.closed = true
	return nil
}

func note(topic notify.Topic, seq uint32) notify.Notification {
	return notify.Notification{Topic: topic, Body: []byte("x"), Sequence: seq}
}

func TestConsumer_TracksGaps(t *testing.T) {
	sub := &scriptedSubscriber{queue: []notify.Notification{
		note(notify.TopicHashTx, 0),
		note(notify.TopicRawTx, 0),
		note(notify.TopicHashTx, 1),
		note(notify.TopicRawTx, 4),
		note(notify.TopicHashTx, 0), // restart
	}}
	c, err := NewConsumer(sub, zap.NewNop(), metrics.NewRegistry())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	var received int
	err = c.Run(ctx, func(_ context.Context, _ notify.Notification) error {
		received++
		if received == 5 {
			cancel()
		}
		return nil
	})
	require.NoError(t, err)

	assert.Equal(t, map[notify.Topic]int{notify.TopicHashTx: 3, notify.TopicRawTx: 2}, c.Counts())
	assert.Equal(t, map[notify.Topic]uint64{notify.TopicRawTx: 3}, c.Missed())

	require.NoError(t, c.Close())
	assert.True(t, sub.closed)
}

func TestConsumer_HandlerErrorStopsRun(t *testing.T) {
	sub := &scriptedSubscriber{queue: []notify.Notification{note(notify.TopicRawBlock, 0), note(notify.TopicRawBlock, 1)}}
	c, err := NewConsumer(sub, zap.NewNop(), metrics.NewRegistry())
	require.NoError(t, err)

	stop := errors.New("enough")
	err = c.Run(context.Background(), func(context.Context, notify.Notification) error { return stop })
	assert.ErrorIs(t, err, stop)
	assert.Equal(t, 1, c.Counts()[notify.TopicRawBlock])
}

func TestConsumer_SubscriberError(t *testing.T) {
	sub := &scriptedSubscriber{err: errors.New("socket closed")}
	c, err := NewConsumer(sub, zap.NewNop(), metrics.NewRegistry())
	require.NoError(t, err)

	err = c.Run(context.Background(), func(context.Context, notify.Notification) error { return nil })
	assert.ErrorContains(t, err, "socket closed")
}

func TestNewConsumer_RequiresDeps(t *testing.T) {
	_, err := NewConsumer(nil, zap.NewNop(), metrics.NewRegistry())
	assert.Error(t, err)
}

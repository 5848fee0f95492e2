package transport

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"notify/internal/notify"
	"notify/internal/zmq"
)

// zmqPublisher stamps each message with its topic sequence number.
type zmqPublisher struct {
	pub *zmq.Publisher
	seq *sequences
}

func (p *zmqPublisher) Publish(ctx context.Context, topic notify.Topic, body []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	return p.pub.Send(topic.String(), body, p.seq.Next(topic))
}

func (p *zmqPublisher) Close() error {
	return p.pub.Close()
}

type zmqResult struct {
	msg zmq.Message
	err error
}

// zmqSubscriber pumps the blocking SUB socket into a channel so Receive
// can honour ctx.
type zmqSubscriber struct {
	sub  *zmq.Subscriber
	out  chan zmqResult
	done chan struct{}
	once sync.Once
}

func newZMQSubscriber(sub *zmq.Subscriber) *zmqSubscriber {
	s := &zmqSubscriber{
		sub:  sub,
		out:  make(chan zmqResult),
		done: make(chan struct{}),
	}
	go s.pump()
	return s
}

func (s *zmqSubscriber) pump() {
	for {
		m, err := s.sub.Recv()
		if err != nil && errors.Is(err, zmq.ErrShortMessage) {
			// not one of ours, skip it
			continue
		}
		select {
		case s.out <- zmqResult{msg: m, err: err}:
		case <-s.done:
			return
		}
		if err != nil {
			return
		}
	}
}

func (s *zmqSubscriber) Receive(ctx context.Context) (notify.Notification, error) {
	select {
	case <-ctx.Done():
		return notify.Notification{}, ctx.Err()
	case <-s.done:
		return notify.Notification{}, errors.New("subscriber closed")
	case r := <-s.out:
		if r.err != nil {
			return notify.Notification{}, r.err
		}
		topic, err := notify.ParseTopic(r.msg.Topic)
		if err != nil {
			return notify.Notification{}, fmt.Errorf("failed to decode notification: %w", err)
		}
		return notify.Notification{Topic: topic, Body: r.msg.Body, Sequence: r.msg.Sequence}, nil
	}
}

func (s *zmqSubscriber) Close() error {
	var err error
	s.once.Do(func() {
		close(s.done)
		err = s.sub.Close()
	})
	return err
}

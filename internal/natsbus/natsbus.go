// Package natsbus publishes and receives raw notification bodies over
// NATS core subjects.
package natsbus

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/nats-io/nats.go"
)

const (
	// SequenceHeader carries the per-topic sequence number.
	SequenceHeader = "Notify-Sequence"

	// DefaultFlushTimeout bounds Flush when the caller sets no deadline.
	DefaultFlushTimeout = 2 * time.Second
)

// Msg is a received message.
type Msg struct {
	Subject  string
	Body     []byte
	Sequence uint32
}

// Publisher publishes raw bodies to NATS subjects.
type Publisher struct {
	conn *nats.Conn
}

// NewPublisher connects to url. The connection reconnects forever;
// messages published while disconnected go to the client's reconnect
// buffer and are dropped when it is full.
func NewPublisher(url string, opts ...nats.Option) (*Publisher, error) {
	defaults := []nats.Option{
		nats.Name("notify-bridge"),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(time.Second),
	}
	nc, err := nats.Connect(url, append(defaults, opts...)...)
	if err != nil {
		return nil, fmt.Errorf("connecting to NATS at %s: %w", url, err)
	}

	return &Publisher{conn: nc}, nil
}

// Publish sends body on subject with seq in the sequence header.
func (p *Publisher) Publish(subject string, body []byte, seq uint32) error {
	msg := nats.NewMsg(subject)
	msg.Data = body
	msg.Header.Set(SequenceHeader, strconv.FormatUint(uint64(seq), 10))

	if err := p.conn.PublishMsg(msg); err != nil {
		return fmt.Errorf("publishing to %s: %w", subject, err)
	}

	return nil
}

// Flush waits until the server has processed everything published so far.
// A ctx without a deadline is bounded by DefaultFlushTimeout.
func (p *Publisher) Flush(ctx context.Context) error {
	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, DefaultFlushTimeout)
		defer cancel()
	}

	if err := p.conn.FlushWithContext(ctx); err != nil {
		return fmt.Errorf("flushing NATS connection: %w", err)
	}
	return nil
}

func (p *Publisher) Close() error {
	p.conn.Close()
	return nil
}

// Subscriber receives messages from NATS subjects.
type Subscriber struct {
	conn *nats.Conn
	subs []*nats.Subscription
	ch   chan *nats.Msg
}

// NewSubscriber connects to url and subscribes to subjects. Messages are
// dropped by the client once the buffer fills (slow consumer).
func NewSubscriber(url string, subjects []string, opts ...nats.Option) (*Subscriber, error) {
	defaults := []nats.Option{
		nats.MaxReconnects(-1),
		nats.ReconnectWait(time.Second),
	}
	nc, err := nats.Connect(url, append(defaults, opts...)...)
	if err != nil {
		return nil, fmt.Errorf("connecting to NATS at %s: %w", url, err)
	}

	s := &Subscriber{
		conn: nc,
		ch:   make(chan *nats.Msg, 256),
	}
	for _, subject := range subjects {
		sub, err := nc.ChanSubscribe(subject, s.ch)
		if err != nil {
			nc.Close()
			return nil, fmt.Errorf("subscribing to %s: %w", subject, err)
		}
		s.subs = append(s.subs, sub)
	}
	// Flush ensures the subscriptions are registered on the server before
	// returning.
	if err := nc.Flush(); err != nil {
		nc.Close()
		return nil, fmt.Errorf("flushing subscription: %w", err)
	}

	return s, nil
}

// Recv blocks until a message arrives or ctx is done.
func (s *Subscriber) Recv(ctx context.Context) (Msg, error) {
	select {
	case <-ctx.Done():
		return Msg{}, ctx.Err()
	case m, ok := <-s.ch:
		if !ok {
			return Msg{}, nats.ErrConnectionClosed
		}
		out := Msg{Subject: m.Subject, Body: m.Data}
		if v := m.Header.Get(SequenceHeader); v != "" {
			n, err := strconv.ParseUint(v, 10, 32)
			if err != nil {
				return Msg{}, fmt.Errorf("bad %s header %q: %w", SequenceHeader, v, err)
			}
			out.Sequence = uint32(n)
		}
		return out, nil
	}
}

func (s *Subscriber) Close() error {
	for _, sub := range s.subs {
		_ = sub.Unsubscribe()
	}
	s.conn.Close()
	return nil
}

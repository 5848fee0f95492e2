// Package zmq provides a thin layer over the go-zeromq PUB and SUB
// sockets using the three-frame layout Bitcoin Core popularised:
// topic, body, and a 4-byte little endian sequence number.
package zmq

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-zeromq/zmq4"
)

// ErrShortMessage is returned when a received message lacks a body frame.
var ErrShortMessage = errors.New("zmq message has fewer than two frames")

// Message is a decoded notification frame set.
type Message struct {
	Topic    string
	Body     []byte
	Sequence uint32
}

// Publisher is a PUB socket bound to a single endpoint. It is not safe
// for concurrent use.
type Publisher struct {
	sock     zmq4.Socket
	endpoint string
}

// NewPublisher binds a PUB socket to endpoint. The socket lives until
// Close is called or ctx is done. sendTimeout bounds a single Send.
func NewPublisher(ctx context.Context, endpoint string, sendTimeout time.Duration) (*Publisher, error) {
	if endpoint == "" {
		return nil, errors.New("zmq endpoint must not be empty")
	}

	opts := []zmq4.Option{}
	if sendTimeout > 0 {
		opts = append(opts, zmq4.WithTimeout(sendTimeout))
	}

	sock := zmq4.NewPub(ctx, opts...)
	if err := sock.Listen(endpoint); err != nil {
		_ = sock.Close()
		return nil, fmt.Errorf("failed to bind PUB socket to %s: %w", endpoint, err)
	}

	return &Publisher{
		sock:     sock,
		endpoint: resolve(endpoint, sock),
	}, nil
}

// Send publishes one multipart message.
func (p *Publisher) Send(topic string, body []byte, seq uint32) error {
	var s [4]byte
	binary.LittleEndian.PutUint32(s[:], seq)

	if err := p.sock.SendMulti(zmq4.NewMsgFrom([]byte(topic), body, s[:])); err != nil {
		return fmt.Errorf("failed to send %s: %w", topic, err)
	}

	return nil
}

// Endpoint returns the bound endpoint with any wildcard port resolved.
func (p *Publisher) Endpoint() string {
	return p.endpoint
}

// Close closes the socket.
func (p *Publisher) Close() error {
	return p.sock.Close()
}

// Subscriber is a SUB socket connected to a single endpoint.
type Subscriber struct {
	sock zmq4.Socket
}

// NewSubscriber connects to endpoint and subscribes to topics. No topics
// means every topic. The dialer keeps retrying until the publisher is up.
func NewSubscriber(ctx context.Context, endpoint string, topics ...string) (*Subscriber, error) {
	sock := zmq4.NewSub(ctx, zmq4.WithDialerRetry(250*time.Millisecond), zmq4.WithAutomaticReconnect(true))
	if err := sock.Dial(endpoint); err != nil {
		_ = sock.Close()
		return nil, fmt.Errorf("failed to connect SUB socket to %s: %w", endpoint, err)
	}

	if len(topics) == 0 {
		topics = []string{""}
	}
	for _, t := range topics {
		if err := sock.SetOption(zmq4.OptionSubscribe, t); err != nil {
			_ = sock.Close()
			return nil, fmt.Errorf("failed to subscribe to %q: %w", t, err)
		}
	}

	return &Subscriber{sock: sock}, nil
}

// Recv blocks until a message arrives or the socket is closed.
func (s *Subscriber) Recv() (Message, error) {
	msg, err := s.sock.Recv()
	if err != nil {
		return Message{}, fmt.Errorf("failed to receive: %w", err)
	}

	return decode(msg.Frames)
}

// Close closes the socket, unblocking any pending Recv.
func (s *Subscriber) Close() error {
	return s.sock.Close()
}

func decode(frames [][]byte) (Message, error) {
	if len(frames) < 2 {
		return Message{}, ErrShortMessage
	}

	m := Message{
		Topic: string(frames[0]),
		Body:  frames[1],
	}
	if len(frames) > 2 && len(frames[2]) == 4 {
		m.Sequence = binary.LittleEndian.Uint32(frames[2])
	}

	return m, nil
}

func resolve(endpoint string, sock zmq4.Socket) string {
	if !strings.HasPrefix(endpoint, "tcp://") {
		return endpoint
	}

	addr := sock.Addr()
	if addr == nil {
		return endpoint
	}

	return "tcp://" + addr.String()
}

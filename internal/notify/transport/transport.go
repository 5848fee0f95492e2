// Package transport opens the publish socket the bridge owns and the
// subscriber sockets its consumers use. The endpoint scheme picks the
// backend: tcp://, ipc:// and inproc:// bind a ZeroMQ PUB socket, nats://
// connects to a NATS server.
package transport

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"notify/internal/natsbus"
	"notify/internal/notify"
	"notify/internal/zmq"
)

// DefaultEndpoint is the well-known local address used when none is configured.
const DefaultEndpoint = "tcp://127.0.0.1:28332"

// ErrUnsupportedScheme is returned for endpoints no backend understands.
var ErrUnsupportedScheme = errors.New("unsupported endpoint scheme")

// Config selects and tunes the transport.
type Config struct {
	Endpoint      string        `env:"NOTIFY_ENDPOINT" envDefault:"tcp://127.0.0.1:28332"`
	SendTimeout   time.Duration `env:"NOTIFY_SEND_TIMEOUT" envDefault:"1s"`
	SubjectPrefix string        `env:"NOTIFY_NATS_SUBJECT_PREFIX" envDefault:"notify"`
}

type backend int

const (
	backendZMQ backend = iota
	backendNATS
)

func backendFor(endpoint string) (backend, error) {
	scheme, _, ok := strings.Cut(endpoint, "://")
	if !ok {
		return 0, fmt.Errorf("endpoint %q has no scheme: %w", endpoint, ErrUnsupportedScheme)
	}

	switch scheme {
	case "tcp", "ipc", "inproc":
		return backendZMQ, nil
	case "nats", "tls":
		return backendNATS, nil
	default:
		return 0, fmt.Errorf("endpoint %q: %w", endpoint, ErrUnsupportedScheme)
	}
}

// Open establishes the publish socket. It is called once at startup and
// its error is fatal to the caller; there is no retry or degraded mode.
func Open(ctx context.Context, cfg Config, logger *zap.Logger) (notify.Publisher, error) {
	if cfg.Endpoint == "" {
		cfg.Endpoint = DefaultEndpoint
	}

	b, err := backendFor(cfg.Endpoint)
	if err != nil {
		return nil, err
	}

	logger = logger.Named("transport")

	switch b {
	case backendNATS:
		p, err := natsbus.NewPublisher(cfg.Endpoint)
		if err != nil {
			return nil, fmt.Errorf("failed to open NATS publisher: %w", err)
		}
		logger.Info("publishing to NATS", zap.String("endpoint", cfg.Endpoint), zap.String("prefix", cfg.SubjectPrefix))
		return &natsPublisher{pub: p, prefix: cfg.SubjectPrefix, seq: newSequences()}, nil
	default:
		p, err := zmq.NewPublisher(ctx, cfg.Endpoint, cfg.SendTimeout)
		if err != nil {
			return nil, fmt.Errorf("failed to open ZMQ publisher: %w", err)
		}
		logger.Info("bound ZMQ PUB socket", zap.String("endpoint", p.Endpoint()))
		return &zmqPublisher{pub: p, seq: newSequences()}, nil
	}
}

// Dial opens a subscriber for topics on the endpoint a publisher was
// opened with. No topics subscribes to all of them.
func Dial(ctx context.Context, cfg Config, topics ...notify.Topic) (notify.Subscriber, error) {
	if cfg.Endpoint == "" {
		cfg.Endpoint = DefaultEndpoint
	}

	b, err := backendFor(cfg.Endpoint)
	if err != nil {
		return nil, err
	}
	if len(topics) == 0 {
		topics = notify.Topics()
	}

	switch b {
	case backendNATS:
		subjects := make([]string, 0, len(topics))
		for _, t := range topics {
			subjects = append(subjects, notify.Subject(cfg.SubjectPrefix, t))
		}
		s, err := natsbus.NewSubscriber(cfg.Endpoint, subjects)
		if err != nil {
			return nil, fmt.Errorf("failed to open NATS subscriber: %w", err)
		}
		return &natsSubscriber{sub: s, prefix: cfg.SubjectPrefix}, nil
	default:
		names := make([]string, 0, len(topics))
		for _, t := range topics {
			names = append(names, t.String())
		}
		s, err := zmq.NewSubscriber(ctx, cfg.Endpoint, names...)
		if err != nil {
			return nil, fmt.Errorf("failed to open ZMQ subscriber: %w", err)
		}
		return newZMQSubscriber(s), nil
	}
}

// sequences hands out per-topic counters starting at zero.
type sequences struct {
	mu   sync.Mutex
	next map[notify.Topic]uint32
}

func newSequences() *sequences {
	return &sequences{next: make(map[notify.Topic]uint32)}
}

func (s *sequences) Next(topic notify.Topic) uint32 {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := s.next[topic]
	s.next[topic] = n + 1
	return n
}

// Package bridge republishes source events on the notification topics.
//
// A Bridge owns the publish socket handed to New. Every forward call sends
// two messages, the hex hash then the raw payload, under one lock so that
// concurrent callers never interleave their pairs on the shared socket.
// Delivery is fire-and-forget: a failed send is logged and counted, never
// retried, and never reported as a failure of the caller's event.
package bridge

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"notify/internal/notify"
	"notify/internal/validator"
)

var (
	// ErrNotReady is returned when forwarding through a Bridge that was
	// not created with New.
	ErrNotReady = errors.New("bridge not initialized")
	// ErrClosed is returned when forwarding after Close.
	ErrClosed = errors.New("bridge closed")
)

// Event kinds, used in logs, metrics and spans.
const (
	KindTransaction = "transaction"
	KindBlock       = "block"
)

// Config tunes bridge behaviour.
type Config struct {
	// ValidateEvents drops events whose hash is not 64 hex characters or
	// whose payload is empty. Off by default: malformed events are
	// forwarded as-is.
	ValidateEvents bool `env:"NOTIFY_VALIDATE_EVENTS" envDefault:"false"`
}

// Bridge is the notification bridge. The zero value is uninitialized and
// refuses to forward.
type Bridge struct {
	mu        sync.Mutex
	publisher notify.Publisher
	logger    *zap.Logger
	validate  bool
	closed    bool
}

var _ notify.Notifier = (*Bridge)(nil)

// New returns a ready Bridge that takes ownership of publisher.
func New(publisher notify.Publisher, logger *zap.Logger, cfg Config) (*Bridge, error) {
	if err := validator.Validate("bridge", publisher, logger); err != nil {
		return nil, fmt.Errorf("failed to validate bridge deps: %w", err)
	}

	return &Bridge{
		publisher: publisher,
		logger:    logger.Named("bridge"),
		validate:  cfg.ValidateEvents,
	}, nil
}

// ForwardTransaction publishes ev.Hash on hashtx and ev.Raw on rawtx.
// Only ErrNotReady, ErrClosed and, in validating mode, a malformed event
// are returned; transport failures are logged and swallowed.
func (b *Bridge) ForwardTransaction(ctx context.Context, ev notify.TransactionEvent) error {
	if b.validate {
		if err := ev.Validate(); err != nil {
			b.logger.Warn("dropping malformed transaction", zap.String("hash", ev.Hash), zap.Error(err))
			return err
		}
	}

	return b.forward(ctx, KindTransaction, ev.Hash, ev.Raw, notify.TopicHashTx, notify.TopicRawTx)
}

// ForwardBlock publishes ev.Hash on hashblock and ev.Raw on rawblock.
// Error semantics match ForwardTransaction.
func (b *Bridge) ForwardBlock(ctx context.Context, ev notify.BlockEvent) error {
	if b.validate {
		if err := ev.Validate(); err != nil {
			b.logger.Warn("dropping malformed block", zap.String("hash", ev.Hash), zap.Error(err))
			return err
		}
	}

	return b.forward(ctx, KindBlock, ev.Hash, ev.Raw, notify.TopicHashBlock, notify.TopicRawBlock)
}

func (b *Bridge) forward(ctx context.Context, kind, hash string, raw []byte, hashTopic, rawTopic notify.Topic) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if err := b.readyLocked(); err != nil {
		return err
	}

	// Both sends are attempted; a failed hash message does not suppress
	// the payload.
	b.send(ctx, kind, hash, hashTopic, []byte(hash))
	b.send(ctx, kind, hash, rawTopic, raw)

	return nil
}

func (b *Bridge) send(ctx context.Context, kind, hash string, topic notify.Topic, body []byte) {
	if err := b.publisher.Publish(ctx, topic, body); err != nil {
		b.logger.Error("failed to publish notification",
			zap.String("kind", kind),
			zap.String("topic", topic.String()),
			zap.String("hash", hash),
			zap.Int("size", len(body)),
			zap.Error(err),
		)
	}
}

// Ready reports ErrNotReady or ErrClosed when the bridge cannot forward.
func (b *Bridge) Ready() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.readyLocked()
}

func (b *Bridge) readyLocked() error {
	switch {
	case b.publisher == nil:
		return ErrNotReady
	case b.closed:
		return ErrClosed
	}
	return nil
}

// Close releases the publish socket. It is safe to call more than once.
func (b *Bridge) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.publisher == nil || b.closed {
		return nil
	}
	b.closed = true

	if err := b.publisher.Close(); err != nil {
		return fmt.Errorf("failed to close publisher: %w", err)
	}

	b.logger.Info("bridge closed")
	return nil
}

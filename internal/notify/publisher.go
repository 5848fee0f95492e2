package notify

import "context"

// Publisher defines the one-way send primitive of a pub/sub transport.
// A Publisher owns a single socket or connection bound to one endpoint.
type Publisher interface {
	// Publish sends body on topic. Delivery is best effort: a message
	// published while no subscriber is attached is dropped by the
	// transport, never queued. Implementations are not required to be
	// safe for concurrent use.
	Publish(ctx context.Context, topic Topic, body []byte) error

	// Close releases the underlying socket. Publish must not be called
	// after Close.
	Close() error
}

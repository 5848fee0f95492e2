package notify

import "context"

// Notification is a single message as seen by a subscriber.
type Notification struct {
	Topic Topic
	Body  []byte
	// Sequence counts messages per topic as stamped by the publishing
	// transport. A jump means the subscriber missed messages.
	Sequence uint32
}

// Subscriber receives notifications from a transport.
type Subscriber interface {
	// Receive blocks until a notification arrives or ctx is done.
	Receive(ctx context.Context) (Notification, error)

	// Close detaches from the transport.
	Close() error
}

package notify

import "context"

// Notifier forwards source events to subscribers. Each call publishes two
// messages, the hex hash first and the raw payload second.
type Notifier interface {
	// ForwardTransaction publishes a mempool transaction on hashtx and rawtx.
	ForwardTransaction(ctx context.Context, ev TransactionEvent) error

	// ForwardBlock publishes a committed block on hashblock and rawblock.
	// Callers must only invoke it once the block is durably committed.
	ForwardBlock(ctx context.Context, ev BlockEvent) error
}

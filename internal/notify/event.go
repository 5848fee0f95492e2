package notify

import (
	"encoding/hex"
	"errors"
	"fmt"
)

// ErrMalformedEvent is returned by Validate for events that cannot be a
// real transaction or block.
var ErrMalformedEvent = errors.New("malformed event")

// TransactionEvent is emitted once per transaction accepted into the
// mempool. Hash is the hex encoded transaction id and Raw the serialized
// transaction. Neither is retained after forwarding.
type TransactionEvent struct {
	Hash string
	Raw  []byte
}

// BlockEvent is emitted once per block, after it is committed.
type BlockEvent struct {
	Hash string
	Raw  []byte
}

// Validate checks the shape of the event. It does not check that Hash is
// the hash of Raw.
func (e TransactionEvent) Validate() error {
	if err := validateHash(e.Hash); err != nil {
		return fmt.Errorf("transaction: %w", err)
	}
	if len(e.Raw) == 0 {
		return fmt.Errorf("transaction %s: empty payload: %w", e.Hash, ErrMalformedEvent)
	}

	return nil
}

// Validate checks the shape of the event. A block is never empty.
func (e BlockEvent) Validate() error {
	if err := validateHash(e.Hash); err != nil {
		return fmt.Errorf("block: %w", err)
	}
	if len(e.Raw) == 0 {
		return fmt.Errorf("block %s: empty payload: %w", e.Hash, ErrMalformedEvent)
	}

	return nil
}

func validateHash(h string) error {
	if len(h) != HashHexLen {
		return fmt.Errorf("hash length %d, want %d: %w", len(h), HashHexLen, ErrMalformedEvent)
	}
	if _, err := hex.DecodeString(h); err != nil {
		return fmt.Errorf("hash is not hex: %v: %w", err, ErrMalformedEvent)
	}

	return nil
}

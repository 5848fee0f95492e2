// Package notify defines the value types and interfaces shared by the
// notification bridge, its transports and its subscribers.
package notify

import "fmt"

// Topic is the wire name of a notification channel.
type Topic string

// Wire topics. Names follow the Bitcoin Core ZMQ convention so existing
// indexers can subscribe without changes.
const (
	TopicHashTx    Topic = "hashtx"    // transaction-hash
	TopicRawTx     Topic = "rawtx"     // raw-transaction
	TopicHashBlock Topic = "hashblock" // block-hash
	TopicRawBlock  Topic = "rawblock"  // raw-block
)

// HashHexLen is the length of a hex-encoded 32-byte hash.
const HashHexLen = 64

// Topics returns every topic the bridge publishes on, in forwarding order.
func Topics() []Topic {
	return []Topic{TopicHashTx, TopicRawTx, TopicHashBlock, TopicRawBlock}
}

// ParseTopic maps a wire name back to its Topic.
func ParseTopic(s string) (Topic, error) {
	for _, t := range Topics() {
		if string(t) == s {
			return t, nil
		}
	}

	return "", fmt.Errorf("unknown topic %q", s)
}

func (t Topic) String() string {
	return string(t)
}

// Subject returns the NATS subject a topic is published under.
func Subject(prefix string, topic Topic) string {
	if prefix == "" {
		return string(topic)
	}

	return fmt.Sprintf("%s.%s", prefix, topic)
}

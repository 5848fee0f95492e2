package zmq

import (
	"context"
	"encoding/binary"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecode(t *testing.T) {
	seq := make([]byte, 4)
	binary.LittleEndian.PutUint32(seq, 42)

	tests := []struct {
		name    string
		frames  [][]byte
		want    Message
		wantErr error
	}{
		{
			name:   "full frame set",
			frames: [][]byte{[]byte("rawblock"), {0x01, 0x02}, seq},
			want:   Message{Topic: "rawblock", Body: []byte{0x01, 0x02}, Sequence: 42},
		},
		{
			name:   "no sequence frame",
			frames: [][]byte{[]byte("hashtx"), []byte("ab")},
			want:   Message{Topic: "hashtx", Body: []byte("ab")},
		},
		{
			name:    "topic only",
			frames:  [][]byte{[]byte("hashtx")},
			wantErr: ErrShortMessage,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := decode(tt.frames)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestNewPublisher_InvalidEndpoint(t *testing.T) {
	for _, ep := range []string{"", "carrier-pigeon://loft"} {
		_, err := NewPublisher(context.Background(), ep, time.Second)
		assert.Error(t, err, ep)
	}
}

func TestPublisher_ResolvesWildcardPort(t *testing.T) {
	pub, err := NewPublisher(context.Background(), "tcp://127.0.0.1:0", time.Second)
	require.NoError(t, err)
	defer pub.Close()

	assert.True(t, strings.HasPrefix(pub.Endpoint(), "tcp://127.0.0.1:"))
	assert.NotEqual(t, "tcp://127.0.0.1:0", pub.Endpoint())
}

func TestPublisher_SubscriberFiltersByTopic(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pub, err := NewPublisher(ctx, "tcp://127.0.0.1:0", time.Second)
	require.NoError(t, err)
	defer pub.Close()

	sub, err := NewSubscriber(ctx, pub.Endpoint(), "hashtx")
	require.NoError(t, err)
	defer sub.Close()

	got := make(chan Message, 1)
	go func() {
		m, err := sub.Recv()
		if err == nil {
			got <- m
		}
	}()

	hash := strings.Repeat("ab", 32)
	tick := time.NewTicker(20 * time.Millisecond)
	defer tick.Stop()
	deadline := time.After(5 * time.Second)

	// PUB drops everything until the subscription has propagated, so keep
	// publishing until the subscriber sees something.
	for {
		select {
		case m := <-got:
			assert.Equal(t, "hashtx", m.Topic)
			assert.Equal(t, hash, string(m.Body))
			assert.Equal(t, uint32(7), m.Sequence)
			return
		case <-tick.C:
			require.NoError(t, pub.Send("rawtx", []byte{0xde, 0xad}, 7))
			require.NoError(t, pub.Send("hashtx", []byte(hash), 7))
		case <-deadline:
			t.Fatal("timed out waiting for hashtx")
		}
	}
}

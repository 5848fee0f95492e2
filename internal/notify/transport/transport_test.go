package transport

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	natsserver "github.com/nats-io/nats-server/v2/server"
	"github.com/nats-io/nats.go"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.uber.org/zap"

	"notify/internal/notify"
	"notify/internal/notify/metrics"
	"notify/internal/notify/tracing"
)

type stubPublisher struct {
	err    error
	topics []notify.Topic
	closed bool
}

func (s *stubPublisher) Publish(_ context.Context, topic notify.Topic, _ []byte) error {
	s.topics = append(s.topics, topic)
	return s.err
}

func (s *stubPublisher) Close() error {
	s.closed = true
	return nil
}

func startTestNATS(t *testing.T) string {
	t.Helper()
	srv, err := natsserver.NewServer(&natsserver.Options{Host: "127.0.0.1", Port: -1})
	require.NoError(t, err, "starting embedded NATS")
	srv.Start()
	t.Cleanup(srv.Shutdown)
	if !srv.ReadyForConnections(5 * time.Second) {
		t.Fatal("embedded NATS not ready")
	}
	return srv.ClientURL()
}

func TestBackendFor(t *testing.T) {
	tests := []struct {
		endpoint string
		want     backend
		wantErr  bool
	}{
		{endpoint: "tcp://127.0.0.1:28332", want: backendZMQ},
		{endpoint: "ipc:///tmp/notify.sock", want: backendZMQ},
		{endpoint: "inproc://notify", want: backendZMQ},
		{endpoint: "nats://127.0.0.1:4222", want: backendNATS},
		{endpoint: "127.0.0.1:28332", wantErr: true},
		{endpoint: "udp://127.0.0.1:28332", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.endpoint, func(t *testing.T) {
			got, err := backendFor(tt.endpoint)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrUnsupportedScheme)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestOpen_Errors(t *testing.T) {
	_, err := Open(context.Background(), Config{Endpoint: "udp://127.0.0.1:1"}, zap.NewNop())
	assert.ErrorIs(t, err, ErrUnsupportedScheme)

	_, err = Open(context.Background(), Config{Endpoint: "nats://127.0.0.1:1"}, zap.NewNop())
	assert.Error(t, err)
}

func TestSequences_PerTopic(t *testing.T) {
	s := newSequences()

	assert.Equal(t, uint32(0), s.Next(notify.TopicHashTx))
	assert.Equal(t, uint32(1), s.Next(notify.TopicHashTx))
	assert.Equal(t, uint32(0), s.Next(notify.TopicRawBlock))
	assert.Equal(t, uint32(2), s.Next(notify.TopicHashTx))
}

func TestOpen_ZMQRoundTrip(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pub, err := Open(ctx, Config{Endpoint: "tcp://127.0.0.1:0", SendTimeout: time.Second}, zap.NewNop())
	require.NoError(t, err)
	defer pub.Close()

	endpoint := pub.(*zmqPublisher).pub.Endpoint()
	sub, err := Dial(ctx, Config{Endpoint: endpoint}, notify.TopicHashBlock)
	require.NoError(t, err)
	defer sub.Close()

	hash := strings.Repeat("cd", 32)
	deadline := time.Now().Add(5 * time.Second)
	for {
		require.NoError(t, pub.Publish(ctx, notify.TopicHashBlock, []byte(hash)))

		rctx, rcancel := context.WithTimeout(ctx, 50*time.Millisecond)
		n, err := sub.Receive(rctx)
		rcancel()
		if err == nil {
			assert.Equal(t, notify.TopicHashBlock, n.Topic)
			assert.Equal(t, hash, string(n.Body))
			return
		}
		require.ErrorIs(t, err, context.DeadlineExceeded)
		if time.Now().After(deadline) {
			t.Fatal("timed out waiting for hashblock")
		}
	}
}

func TestOpen_NATSRoundTrip(t *testing.T) {
	url := startTestNATS(t)
	ctx := context.Background()
	cfg := Config{Endpoint: url, SubjectPrefix: "poic"}

	sub, err := Dial(ctx, cfg)
	require.NoError(t, err)
	defer sub.Close()

	pub, err := Open(ctx, cfg, zap.NewNop())
	require.NoError(t, err)
	defer pub.Close()

	require.NoError(t, pub.Publish(ctx, notify.TopicHashTx, []byte("first")))
	require.NoError(t, pub.Publish(ctx, notify.TopicHashTx, []byte("second")))
	require.NoError(t, pub.(*natsPublisher).pub.Flush(ctx))

	rctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	for i, want := range []string{"first", "second"} {
		n, err := sub.Receive(rctx)
		require.NoError(t, err)
		assert.Equal(t, notify.TopicHashTx, n.Topic)
		assert.Equal(t, want, string(n.Body))
		assert.Equal(t, uint32(i), n.Sequence)
	}
}

func TestNATSPublisher_CloseReportsFlushFailure(t *testing.T) {
	url := startTestNATS(t)
	ctx := context.Background()

	pub, err := Open(ctx, Config{Endpoint: url, SubjectPrefix: "notify"}, zap.NewNop())
	require.NoError(t, err)
	require.NoError(t, pub.Publish(ctx, notify.TopicRawTx, []byte{0x01}))

	// the connection is already gone, so nothing buffered can be flushed
	require.NoError(t, pub.(*natsPublisher).pub.Close())

	err = pub.Close()
	require.Error(t, err)
	assert.ErrorIs(t, err, nats.ErrConnectionClosed)
	assert.Contains(t, err.Error(), "may be lost")
}

func TestMetricsPublisher(t *testing.T) {
	registry := metrics.NewRegistry()
	inner := &stubPublisher{err: errors.New("socket gone")}
	pub := NewMetricsPublisher(inner, registry)

	err := pub.Publish(context.Background(), notify.TopicRawTx, []byte{1, 2, 3})
	assert.Error(t, err)
	require.NoError(t, pub.Close())
	assert.True(t, inner.closed)

	count, err := testutil.GatherAndCount(registry.Gatherer(), "notify_transport_publish_total")
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestTracedPublisher(t *testing.T) {
	recorder := tracetest.NewSpanRecorder()
	tracer := tracing.NewTracerFromProvider(sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder)), "test")
	pub := NewTracedPublisher(&stubPublisher{}, tracer)

	require.NoError(t, pub.Publish(context.Background(), notify.TopicRawBlock, make([]byte, 500)))

	spans := recorder.Ended()
	require.Len(t, spans, 1)
	assert.Equal(t, "transport.publish rawblock", spans[0].Name())
	assert.Equal(t, codes.Ok, spans[0].Status().Code)
}

package main

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/caarlos0/env/v11"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"notify/internal/logging"
	"notify/internal/notify"
	"notify/internal/notify/bridge"
	"notify/internal/notify/metrics"
	"notify/internal/notify/subscriber"
	"notify/internal/notify/tracing"
	"notify/internal/notify/transport"
)

type Config struct {
	Transport transport.Config
	Bridge    bridge.Config
	Metrics   metrics.ServerConfig
	Tracing   tracing.Config

	LogLevel            string        `env:"LOG_LEVEL" envDefault:"info"`
	TxPerRound          int           `env:"TX_PER_ROUND" envDefault:"100"`
	PublishRounds       int           `env:"PUBLISH_ROUNDS" envDefault:"5"`
	PublishInterval     time.Duration `env:"PUBLISH_INTERVAL" envDefault:"1s"`
	Subscribers         int           `env:"SUBSCRIBERS" envDefault:"3"`
	SubscriberWarmup    time.Duration `env:"SUBSCRIBER_WARMUP" envDefault:"1s"`
	ConsumerIdleTimeout time.Duration `env:"CONSUMER_IDLE_TIMEOUT" envDefault:"2s"`
	TxSize              int           `env:"TX_SIZE" envDefault:"250"`
}

func main() {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		log.Fatalf("failed to parse environment variables: %v", err)
	}

	logger, err := logging.New(cfg.LogLevel)
	if err != nil {
		log.Fatalf("failed to initialize logger: %v", err)
	}
	defer logger.Sync()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	metricsRegistry := metrics.NewRegistry()
	metricsRegistry.SetSystemInfo("e2e", cfg.Transport.Endpoint)

	tracer, tracingCleanup, err := tracing.NewTracer(cfg.Tracing)
	if err != nil {
		log.Fatalf("failed to initialize tracing: %v", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := tracingCleanup(shutdownCtx); err != nil {
			logger.Error("failed to cleanup tracing", zap.Error(err))
		}
	}()

	basePublisher, err := transport.Open(ctx, cfg.Transport, logger)
	if err != nil {
		logger.Fatal("failed to open transport", zap.String("endpoint", cfg.Transport.Endpoint), zap.Error(err))
	}
	metricsPublisher := transport.NewMetricsPublisher(basePublisher, metricsRegistry)
	publisher := transport.NewTracedPublisher(metricsPublisher, tracer)

	baseBridge, err := bridge.New(publisher, logger, cfg.Bridge)
	if err != nil {
		logger.Fatal("failed to create bridge", zap.Error(err))
	}
	defer baseBridge.Close()

	if cfg.Metrics.Enabled {
		metricsServer := metrics.NewServer(cfg.Metrics, metricsRegistry, logger)
		metricsServer.AddReadinessCheck("bridge", baseBridge.Ready)
		go func() {
			if err := metricsServer.Start(ctx); err != nil {
				logger.Error("metrics server failed", zap.Error(err))
			}
		}()
		logger.Info("metrics server started",
			zap.String("endpoint", fmt.Sprintf("http://localhost:%d/metrics", cfg.Metrics.Port)),
		)
	}

	metricsNotifier := bridge.NewMetricsNotifier(baseBridge, metricsRegistry)
	notifier := bridge.NewTracedNotifier(metricsNotifier, tracer)

	consumers := make([]*subscriber.Consumer, 0, cfg.Subscribers)
	for i := 0; i < cfg.Subscribers; i++ {
		sub, err := transport.Dial(ctx, cfg.Transport)
		if err != nil {
			logger.Fatal("failed to dial subscriber", zap.Int("subscriber", i), zap.Error(err))
		}
		c, err := subscriber.NewConsumer(sub, logger.With(zap.Int("subscriber", i)), metricsRegistry)
		if err != nil {
			logger.Fatal("failed to create consumer", zap.Error(err))
		}
		defer c.Close()
		consumers = append(consumers, c)
	}

	now := time.Now()
	published := make(chan struct{})
	var txSent, blocksSent int

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		defer close(published)

		// subscriptions only take effect once the SUB sockets have connected
		select {
		case <-gctx.Done():
			return gctx.Err()
		case <-time.After(cfg.SubscriberWarmup):
		}

		ticker := time.NewTicker(cfg.PublishInterval)
		defer ticker.Stop()

		for round := 0; round < cfg.PublishRounds; round++ {
			for i := 0; i < cfg.TxPerRound; i++ {
				if err := notifier.ForwardTransaction(gctx, transactionEvent(cfg.TxSize)); err != nil {
					return fmt.Errorf("failed to forward transaction: %w", err)
				}
				txSent++
			}

			if err := notifier.ForwardBlock(gctx, blockEvent(cfg.TxPerRound*cfg.TxSize)); err != nil {
				return fmt.Errorf("failed to forward block: %w", err)
			}
			blocksSent++

			logger.Info("published round", zap.Int("round", round+1), zap.Int("transactions", cfg.TxPerRound))

			select {
			case <-gctx.Done():
				return gctx.Err()
			case <-ticker.C:
			}
		}

		logger.Info("publish rounds complete, stopping producer")
		return nil
	})

	for _, c := range consumers {
		g.Go(func() error {
			return consume(gctx, c, cfg.ConsumerIdleTimeout, published)
		})
	}

	if err := g.Wait(); err != nil {
		logger.Error("error in goroutine", zap.Error(err))
	}

	ok := true
	want := map[notify.Topic]int{
		notify.TopicHashTx:    txSent,
		notify.TopicRawTx:     txSent,
		notify.TopicHashBlock: blocksSent,
		notify.TopicRawBlock:  blocksSent,
	}
	for i, c := range consumers {
		got := c.Counts()
		for topic, n := range want {
			if got[topic] != n {
				ok = false
				logger.Error("subscriber count mismatch",
					zap.Int("subscriber", i),
					zap.String("topic", topic.String()),
					zap.Int("want", n),
					zap.Int("got", got[topic]),
				)
			}
		}
	}

	fmt.Printf("\n\n TEST COMPLETE IN %.2f seconds: %d transactions, %d blocks, ok=%t\n", time.Since(now).Seconds(), txSent, blocksSent, ok)
	if !ok {
		_ = logger.Sync()
		os.Exit(1)
	}
}

// consume drains c until it has been idle for idle after publishing ended.
func consume(ctx context.Context, c *subscriber.Consumer, idle time.Duration, published <-chan struct{}) error {
	for {
		nctx, cancel := context.WithTimeout(ctx, idle)
		_, err := c.Next(nctx)
		cancel()

		switch {
		case err == nil:
		case ctx.Err() != nil:
			return ctx.Err()
		case errors.Is(err, context.DeadlineExceeded):
			select {
			case <-published:
				return nil
			default:
			}
		default:
			return fmt.Errorf("failed to receive notification: %w", err)
		}
	}
}

func transactionEvent(size int) notify.TransactionEvent {
	raw := randomBytes(size)
	return notify.TransactionEvent{Hash: hash(raw), Raw: raw}
}

func blockEvent(size int) notify.BlockEvent {
	raw := randomBytes(size)
	return notify.BlockEvent{Hash: hash(raw), Raw: raw}
}

func randomBytes(n int) []byte {
	b := make([]byte, max(n, 1))
	_, _ = rand.Read(b)
	return b
}

// hash is the double SHA-256 id used by bitcoin-style chains.
func hash(raw []byte) string {
	first := sha256.Sum256(raw)
	second := sha256.Sum256(first[:])
	return hex.EncodeToString(second[:])
}

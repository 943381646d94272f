package redis

import (
	"context"
	"fmt"
	"log"
	"time"

	"wavescan/internal/model"

	goredis "github.com/go-redis/redis/v8"
)

const (
	signalStreamMaxLen = 10000
	defaultLatestTTL   = 30 * time.Minute

	breakerMaxFailures  = 5
	breakerResetTimeout = 10 * time.Second
)

// WriterConfig configures the Redis writer.
type WriterConfig struct {
	Addr     string // Redis address, e.g. "localhost:6379"
	Password string
	DB       int
}

// Writer publishes trade signals to Redis. Implements model.SignalPublisher.
// Publishes go through a circuit breaker so a dead Redis fails fast instead
// of stalling the scan loop on every signal.
type Writer struct {
	client  *goredis.Client
	breaker *CircuitBreaker
}

var _ model.SignalPublisher = (*Writer)(nil)

// Client returns the underlying Redis client for health checks.
func (w *Writer) Client() *goredis.Client { return w.client }

// New creates a new Redis Writer and pings the server.
func New(cfg WriterConfig) (*Writer, error) {
	client := goredis.NewClient(&goredis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis ping: %w", err)
	}

	breaker := NewCircuitBreaker(breakerMaxFailures, breakerResetTimeout)
	breaker.OnStateChange = func(from, to State) {
		log.Printf("[redis] publish breaker %s -> %s", from, to)
	}

	log.Printf("[redis] connected to %s", cfg.Addr)
	return &Writer{client: client, breaker: breaker}, nil
}

// SignalStream returns the stream key carrying signals for an instrument.
func SignalStream(tf int, exchange, token string) string {
	return fmt.Sprintf("signal:%ds:%s:%s", tf, exchange, token)
}

// PublishSignal writes one signal as XADD + SET latest + PUBLISH in a
// single pipeline.
func (w *Writer) PublishSignal(ctx context.Context, sig model.Signal) error {
	streamKey := SignalStream(sig.TF, sig.Exchange, sig.Token)
	latestKey := fmt.Sprintf("signal:%ds:latest:%s:%s", sig.TF, sig.Exchange, sig.Token)
	pubsubCh := fmt.Sprintf("pub:signal:%ds:%s:%s", sig.TF, sig.Exchange, sig.Token)
	jsonData := string(sig.JSON())

	pipe := w.client.Pipeline()

	pipe.XAdd(ctx, &goredis.XAddArgs{
		Stream: streamKey,
		MaxLen: signalStreamMaxLen,
		Approx: true,
		Values: map[string]interface{}{
			"data": jsonData,
		},
	})
	pipe.Set(ctx, latestKey, jsonData, defaultLatestTTL)
	pipe.Publish(ctx, pubsubCh, jsonData)

	err := w.breaker.Execute(func() error {
		_, err := pipe.Exec(ctx)
		return err
	})
	if err != nil {
		log.Printf("[redis] signal pipeline error for %s: %v", sig.Key(), err)
		return err
	}
	return nil
}

// Run reads signals from sigCh and publishes them until ctx is cancelled
// or the channel is closed.
func (w *Writer) Run(ctx context.Context, sigCh <-chan model.Signal) {
	for {
		select {
		case <-ctx.Done():
			return
		case sig, ok := <-sigCh:
			if !ok {
				return
			}
			w.PublishSignal(ctx, sig)
		}
	}
}

// Close closes the Redis client.
func (w *Writer) Close() error {
	return w.client.Close()
}

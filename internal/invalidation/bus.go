// Package invalidation subscribes to the tenant change-notification channel
// and evicts cache entries when tenant metadata changes, including changes
// made by another process. A listener outage degrades invalidation latency,
// never request-serving availability: the gateway keeps serving cached
// entries while the bus reconnects in the background.
package invalidation

import (
	"context"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	"schemagate/internal/platform/metrics"
)

// Channel is the pub/sub channel carrying tenant-changed notifications. The
// payload is a database id; FlushAllPayload flushes everything.
const Channel = "schema:update"

// FlushAllPayload is the reserved payload for a full flush.
const FlushAllPayload = "*"

// Evictor is the cache surface the bus drives.
type Evictor interface {
	EvictDatabase(databaseID string) int
	FlushAll()
}

// stream is one live subscription. Receive blocks for the next payload.
type stream interface {
	Receive(ctx context.Context) (string, error)
	Close() error
}

type dialFunc func(ctx context.Context) (stream, error)

// Bus supervises the subscription and applies evictions. The listen loop
// never touches the cache directly; evictions flow through an internal
// channel to the apply loop so cache mutation discipline stays uniform.
type Bus struct {
	dial    dialFunc
	pub     func(ctx context.Context, payload string) error
	cache   Evictor
	logger  *slog.Logger
	metrics *metrics.Metrics

	minBackoff time.Duration
	maxBackoff time.Duration

	events chan string
}

type Option func(b *Bus)

func WithLogger(logger *slog.Logger) Option {
	return func(b *Bus) {
		b.logger = logger
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(b *Bus) {
		b.metrics = m
	}
}

// WithBackoff bounds the reconnect delay between min and max.
func WithBackoff(min, max time.Duration) Option {
	return func(b *Bus) {
		b.minBackoff = min
		b.maxBackoff = max
	}
}

// New creates the bus over a Redis client.
func New(client *redis.Client, cache Evictor, opts ...Option) *Bus {
	b := newBus(cache, opts...)
	b.dial = func(ctx context.Context) (stream, error) {
		ps := client.Subscribe(ctx, Channel)
		// Wait for the subscription ack so dial failures surface here,
		// not on the first Receive.
		if _, err := ps.Receive(ctx); err != nil {
			ps.Close() //nolint:errcheck
			return nil, err
		}
		return &redisStream{ps: ps}, nil
	}
	b.pub = func(ctx context.Context, payload string) error {
		return client.Publish(ctx, Channel, payload).Err()
	}
	return b
}

func newBus(cache Evictor, opts ...Option) *Bus {
	b := &Bus{
		cache:      cache,
		logger:     slog.Default(),
		minBackoff: 500 * time.Millisecond,
		maxBackoff: 30 * time.Second,
		events:     make(chan string, 64),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Run drives the listen and apply loops until ctx is canceled. It only
// returns the context error; subscription failures are retried forever.
func (b *Bus) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return b.listen(ctx) })
	g.Go(func() error { return b.apply(ctx) })
	return g.Wait()
}

// Publish sends a tenant-changed notification so every listening process
// evicts, not just this one. Used by the administrative flush.
func (b *Bus) Publish(ctx context.Context, databaseID string) error {
	if databaseID == "" {
		databaseID = FlushAllPayload
	}
	return b.pub(ctx, databaseID)
}

// listen is the supervised subscription loop:
// Disconnected -> Connecting -> Listening, with bounded-backoff retries.
func (b *Bus) listen(ctx context.Context) error {
	backoff := b.minBackoff

	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		b.logger.Info("invalidation bus connecting", "channel", Channel)
		s, err := b.dial(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if b.metrics != nil {
				b.metrics.BusReconnects.Inc()
			}
			b.logger.Warn("invalidation bus subscribe failed, retrying",
				"error", err,
				"backoff", backoff.String(),
			)
			if !sleep(ctx, backoff) {
				return ctx.Err()
			}
			backoff = nextBackoff(backoff, b.maxBackoff)
			continue
		}

		b.logger.Info("invalidation bus listening", "channel", Channel)
		backoff = b.minBackoff

		if err := b.receiveLoop(ctx, s); err != nil {
			s.Close() //nolint:errcheck
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if b.metrics != nil {
				b.metrics.BusReconnects.Inc()
			}
			b.logger.Warn("invalidation bus disconnected", "error", err)
		}
	}
}

func (b *Bus) receiveLoop(ctx context.Context, s stream) error {
	for {
		payload, err := s.Receive(ctx)
		if err != nil {
			return err
		}
		select {
		case b.events <- payload:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// apply consumes eviction events and mutates the cache.
func (b *Bus) apply(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case payload := <-b.events:
			b.applyOne(payload)
		}
	}
}

func (b *Bus) applyOne(payload string) {
	if b.metrics != nil {
		b.metrics.InvalidationsProcessed.Inc()
	}

	if payload == "" || payload == FlushAllPayload {
		b.cache.FlushAll()
		b.logger.Info("flushed all cache entries")
		return
	}

	n := b.cache.EvictDatabase(payload)
	b.logger.Info("evicted tenant cache entries",
		"database_id", payload,
		"entries", n,
	)
}

type redisStream struct {
	ps *redis.PubSub
}

func (s *redisStream) Receive(ctx context.Context) (string, error) {
	msg, err := s.ps.ReceiveMessage(ctx)
	if err != nil {
		return "", err
	}
	return msg.Payload, nil
}

func (s *redisStream) Close() error {
	return s.ps.Close()
}

func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return true
	case <-ctx.Done():
		return false
	}
}

func nextBackoff(cur, max time.Duration) time.Duration {
	next := cur * 2
	if next > max {
		return max
	}
	return next
}

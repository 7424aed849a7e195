package invalidation

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// recordingEvictor tracks evictions applied by the bus.
type recordingEvictor struct {
	mu        sync.Mutex
	evicted   []string
	flushAlls int
}

func (e *recordingEvictor) EvictDatabase(databaseID string) int {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.evicted = append(e.evicted, databaseID)
	return 1
}

func (e *recordingEvictor) FlushAll() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.flushAlls++
}

func (e *recordingEvictor) snapshot() ([]string, int) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]string(nil), e.evicted...), e.flushAlls
}

// scriptedStream replays payloads, then fails with failErr.
type scriptedStream struct {
	payloads chan string
	failErr  error
	closed   atomic.Bool
}

func (s *scriptedStream) Receive(ctx context.Context) (string, error) {
	select {
	case p, ok := <-s.payloads:
		if !ok {
			return "", s.failErr
		}
		return p, nil
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

func (s *scriptedStream) Close() error {
	s.closed.Store(true)
	return nil
}

func runBus(t *testing.T, b *Bus) (cancel func()) {
	t.Helper()
	ctx, stop := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = b.Run(ctx)
	}()
	return func() {
		stop()
		select {
		case <-done:
		case <-time.After(2 * time.Second):
			t.Fatal("bus did not stop")
		}
	}
}

func TestBusAppliesNotifications(t *testing.T) {
	evictor := &recordingEvictor{}
	scripted := &scriptedStream{payloads: make(chan string, 4), failErr: errors.New("gone")}
	scripted.payloads <- "db-1"
	scripted.payloads <- "db-2"
	scripted.payloads <- FlushAllPayload

	b := newBus(evictor)
	b.dial = func(ctx context.Context) (stream, error) { return scripted, nil }

	stop := runBus(t, b)
	defer stop()

	require.Eventually(t, func() bool {
		evicted, flushes := evictor.snapshot()
		return len(evicted) == 2 && flushes == 1
	}, 2*time.Second, 5*time.Millisecond)

	evicted, _ := evictor.snapshot()
	assert.Equal(t, []string{"db-1", "db-2"}, evicted)
}

func TestBusResubscribesAfterDisconnect(t *testing.T) {
	evictor := &recordingEvictor{}

	first := &scriptedStream{payloads: make(chan string, 1), failErr: errors.New("connection reset")}
	first.payloads <- "db-1"
	close(first.payloads)

	second := &scriptedStream{payloads: make(chan string, 1), failErr: errors.New("gone")}
	second.payloads <- "db-2"

	var dials atomic.Int32
	b := newBus(evictor, WithBackoff(time.Millisecond, 5*time.Millisecond))
	b.dial = func(ctx context.Context) (stream, error) {
		switch dials.Add(1) {
		case 1:
			return first, nil
		default:
			return second, nil
		}
	}

	stop := runBus(t, b)
	defer stop()

	require.Eventually(t, func() bool {
		evicted, _ := evictor.snapshot()
		return len(evicted) == 2
	}, 2*time.Second, 5*time.Millisecond)

	assert.True(t, first.closed.Load(), "failed stream must be closed before redialing")
	assert.GreaterOrEqual(t, dials.Load(), int32(2))
}

func TestBusRetriesFailedSubscribes(t *testing.T) {
	evictor := &recordingEvictor{}
	working := &scriptedStream{payloads: make(chan string, 1), failErr: errors.New("gone")}
	working.payloads <- "db-1"

	var dials atomic.Int32
	b := newBus(evictor, WithBackoff(time.Millisecond, 5*time.Millisecond))
	b.dial = func(ctx context.Context) (stream, error) {
		if dials.Add(1) < 3 {
			return nil, errors.New("connection refused")
		}
		return working, nil
	}

	stop := runBus(t, b)
	defer stop()

	require.Eventually(t, func() bool {
		evicted, _ := evictor.snapshot()
		return len(evicted) == 1
	}, 2*time.Second, 5*time.Millisecond)
	assert.GreaterOrEqual(t, dials.Load(), int32(3))
}

func TestBusEmptyPayloadFlushesAll(t *testing.T) {
	evictor := &recordingEvictor{}
	b := newBus(evictor)

	b.applyOne("")
	b.applyOne(FlushAllPayload)
	b.applyOne("db-9")

	evicted, flushes := evictor.snapshot()
	assert.Equal(t, 2, flushes)
	assert.Equal(t, []string{"db-9"}, evicted)
}

func TestNextBackoffDoublesToCap(t *testing.T) {
	max := 30 * time.Second
	cur := 500 * time.Millisecond
	var seen []time.Duration
	for i := 0; i < 8; i++ {
		cur = nextBackoff(cur, max)
		seen = append(seen, cur)
	}
	assert.Equal(t, time.Second, seen[0])
	assert.Equal(t, max, seen[len(seen)-1])
	for i := 1; i < len(seen); i++ {
		assert.LessOrEqual(t, seen[i-1], seen[i])
	}
}

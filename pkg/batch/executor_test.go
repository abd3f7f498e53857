package batch

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/Gobusters/ectologger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() ectologger.Logger {
	return ectologger.NewEctoLogger(func(_ ectologger.EctoLogMessage) {})
}

type recordingSleep struct {
	mu     sync.Mutex
	delays []time.Duration
}

func (r *recordingSleep) sleep(ctx context.Context, d time.Duration) error {
	r.mu.Lock()
	r.delays = append(r.delays, d)
	r.mu.Unlock()
	return ctx.Err()
}

func TestExecutor_PreservesOrderAndCounts(t *testing.T) {
	sleeper := &recordingSleep{}
	exec := NewExecutor[int, string](testLogger(), DefaultConfig()).WithSleep(sleeper.sleep)

	items := make([]int, 25)
	for i := range items {
		items[i] = i
	}

	result := exec.Execute(context.Background(), items, func(_ context.Context, n int) (string, error) {
		if n%5 == 0 {
			return "", fmt.Errorf("item %d failed", n)
		}
		return fmt.Sprintf("item-%d", n), nil
	})

	assert.Equal(t, 25, result.TotalItems)
	assert.Equal(t, 3, result.Batches)
	assert.Equal(t, 20, result.SuccessCount)
	assert.Equal(t, 5, result.FailureCount)
	assert.Equal(t, result.TotalItems, result.SuccessCount+result.FailureCount)

	for i, item := range result.Items {
		assert.Equal(t, i, item.Index)
		if i%5 == 0 {
			assert.EqualError(t, item.Err, fmt.Sprintf("item %d failed", i))
		} else {
			assert.NoError(t, item.Err)
			assert.Equal(t, fmt.Sprintf("item-%d", i), item.Value)
		}
	}

	// pause between batches, never after the last
	assert.Equal(t, []time.Duration{time.Second, time.Second}, sleeper.delays)
}

func TestExecutor_BoundsConcurrency(t *testing.T) {
	exec := NewExecutor[int, int](testLogger(), Config{BatchSize: 10, Delay: time.Millisecond})

	var inFlight, peak atomic.Int32
	items := make([]int, 35)

	result := exec.Execute(context.Background(), items, func(_ context.Context, n int) (int, error) {
		current := inFlight.Add(1)
		defer inFlight.Add(-1)
		for {
			p := peak.Load()
			if current <= p || peak.CompareAndSwap(p, current) {
				break
			}
		}
		time.Sleep(5 * time.Millisecond)
		return n, nil
	})

	assert.Equal(t, 35, result.SuccessCount)
	assert.LessOrEqual(t, peak.Load(), int32(10))
	assert.Greater(t, peak.Load(), int32(1))
}

func TestExecutor_BatchesRunSequentially(t *testing.T) {
	exec := NewExecutor[int, int](testLogger(), Config{BatchSize: 3}).WithSleep(func(context.Context, time.Duration) error { return nil })

	var mu sync.Mutex
	var finished []int
	started := make(map[int]int)

	items := []int{0, 1, 2, 3, 4, 5, 6}
	exec.Execute(context.Background(), items, func(_ context.Context, n int) (int, error) {
		mu.Lock()
		started[n] = len(finished)
		mu.Unlock()

		time.Sleep(time.Millisecond)

		mu.Lock()
		finished = append(finished, n)
		mu.Unlock()
		return n, nil
	})

	// every item of the second batch starts after the whole first batch finished
	for _, n := range []int{3, 4, 5} {
		assert.GreaterOrEqual(t, started[n], 3)
	}
	assert.GreaterOrEqual(t, started[6], 6)
}

func TestExecutor_RecoversPanics(t *testing.T) {
	exec := NewExecutor[string, int](testLogger(), DefaultConfig())

	result := exec.Execute(context.Background(), []string{"ok", "boom", "ok"}, func(_ context.Context, s string) (int, error) {
		if s == "boom" {
			panic("exploded")
		}
		return len(s), nil
	})

	assert.Equal(t, 2, result.SuccessCount)
	assert.Equal(t, 1, result.FailureCount)
	require.Error(t, result.Items[1].Err)
	assert.Contains(t, result.Items[1].Err.Error(), "exploded")
	assert.Equal(t, 2, result.Items[2].Value)
}

func TestExecutor_EmptyInput(t *testing.T) {
	called := false
	exec := NewExecutor[int, int](testLogger(), DefaultConfig()).WithSleep(func(context.Context, time.Duration) error {
		called = true
		return nil
	})

	result := exec.Execute(context.Background(), nil, func(_ context.Context, n int) (int, error) { return n, nil })
	assert.Equal(t, 0, result.TotalItems)
	assert.Equal(t, 0, result.Batches)
	assert.Empty(t, result.Items)
	assert.False(t, called)
}

func TestExecutor_CancelledBetweenBatches(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	exec := NewExecutor[int, int](testLogger(), Config{BatchSize: 2, Delay: time.Second}).
		WithSleep(func(ctx context.Context, _ time.Duration) error {
			cancel()
			return ctx.Err()
		})

	var calls atomic.Int32
	result := exec.Execute(ctx, []int{1, 2, 3, 4, 5}, func(_ context.Context, n int) (int, error) {
		calls.Add(1)
		return n, nil
	})

	assert.Equal(t, int32(2), calls.Load())
	assert.Equal(t, 1, result.Batches)
	assert.Equal(t, 2, result.SuccessCount)
	assert.Equal(t, 3, result.FailureCount)
	for _, item := range result.Items[2:] {
		assert.True(t, errors.Is(item.Err, context.Canceled))
	}
}

func TestNewExecutor_Defaults(t *testing.T) {
	exec := NewExecutor[int, int](testLogger(), Config{BatchSize: -1, Delay: -time.Second})
	assert.Equal(t, DefaultBatchSize, exec.config.BatchSize)
	assert.Equal(t, time.Duration(0), exec.config.Delay)
}

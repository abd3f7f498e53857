// Package batch runs work in fixed-size concurrent batches with a pause between batches
package batch

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/Gobusters/ectologger"
)

const (
	// DefaultBatchSize is the default number of items run concurrently
	DefaultBatchSize = 10

	// DefaultDelay is the default pause between batches
	DefaultDelay = time.Second
)

// Config controls batch size and pacing
type Config struct {
	BatchSize int
	Delay     time.Duration
}

// DefaultConfig returns default batch configuration
func DefaultConfig() Config {
	return Config{
		BatchSize: DefaultBatchSize,
		Delay:     DefaultDelay,
	}
}

// SleepFunc waits for d or until ctx is done
type SleepFunc func(ctx context.Context, d time.Duration) error

// ItemResult is the outcome of one item, in input order
type ItemResult[R any] struct {
	Index int
	Value R
	Err   error
}

// Result holds the results of a batch execution
type Result[R any] struct {
	Items        []ItemResult[R]
	TotalItems   int
	SuccessCount int
	FailureCount int
	Batches      int
}

// Executor applies a function to every item, batch by batch
type Executor[T, R any] struct {
	logger ectologger.Logger
	config Config
	sleep  SleepFunc
}

// NewExecutor creates a new batch executor
func NewExecutor[T, R any](logger ectologger.Logger, config Config) *Executor[T, R] {
	if config.BatchSize <= 0 {
		config.BatchSize = DefaultBatchSize
	}
	if config.Delay < 0 {
		config.Delay = 0
	}
	return &Executor[T, R]{
		logger: logger,
		config: config,
		sleep:  sleepContext,
	}
}

// WithSleep replaces the pause between batches
func (e *Executor[T, R]) WithSleep(sleep SleepFunc) *Executor[T, R] {
	e.sleep = sleep
	return e
}

// Execute runs fn over items. Items within a batch run concurrently and a batch finishes completely
// before the next one starts. A failing item never stops the others. Once ctx is done the remaining
// items are not started and fail with the context error.
func (e *Executor[T, R]) Execute(ctx context.Context, items []T, fn func(context.Context, T) (R, error)) *Result[R] {
	result := &Result[R]{
		Items:      make([]ItemResult[R], len(items)),
		TotalItems: len(items),
	}
	if len(items) == 0 {
		return result
	}

	size := e.config.BatchSize
	batches := (len(items) + size - 1) / size
	e.logger.WithContext(ctx).Debugf("Executing %d items in %d batches of up to %d", len(items), batches, size)

	next := 0
	for start := 0; start < len(items); start += size {
		if start > 0 {
			if err := e.sleep(ctx, e.config.Delay); err != nil {
				break
			}
		}
		if ctx.Err() != nil {
			break
		}

		end := min(start+size, len(items))
		e.runBatch(ctx, items, start, end, fn, result.Items)
		result.Batches++
		next = end
	}

	for i := next; i < len(items); i++ {
		err := ctx.Err()
		if err == nil {
			err = context.Canceled
		}
		result.Items[i] = ItemResult[R]{Index: i, Err: err}
	}

	for _, item := range result.Items {
		if item.Err != nil {
			result.FailureCount++
		} else {
			result.SuccessCount++
		}
	}

	if next < len(items) {
		e.logger.WithContext(ctx).Warnf("Batch execution stopped after %d of %d items", next, len(items))
	}

	return result
}

func (e *Executor[T, R]) runBatch(
	ctx context.Context,
	items []T,
	start, end int,
	fn func(context.Context, T) (R, error),
	out []ItemResult[R],
) {
	var wg sync.WaitGroup
	for i := start; i < end; i++ {
		wg.Add(1)
		go func(index int) {
			defer wg.Done()
			defer func() {
				if r := recover(); r != nil {
					out[index] = ItemResult[R]{Index: index, Err: fmt.Errorf("panic: %v", r)}
				}
			}()

			value, err := fn(ctx, items[index])
			out[index] = ItemResult[R]{Index: index, Value: value, Err: err}
		}(i)
	}
	wg.Wait()
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

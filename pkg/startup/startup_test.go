package startup

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/Gobusters/ectologger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() ectologger.Logger {
	return ectologger.NewEctoLogger(func(_ ectologger.EctoLogMessage) {})
}

func TestStartup_OrderAndStop(t *testing.T) {
	var started, stopped []string
	dep := func(name string, needs ...string) Func {
		return Func{
			Name:    name,
			Needs:   needs,
			StartFn: func(context.Context) error { started = append(started, name); return nil },
			StopFn:  func(context.Context) error { stopped = append(stopped, name); return nil },
		}
	}

	s := NewStartup(testLogger(), 3)
	s.AddDependency(dep("http", "postgres", "redis"))
	s.AddDependency(dep("postgres"))
	s.AddDependency(dep("redis"))
	s.AddDependency(dep("kafka"))

	require.NoError(t, s.Start(context.Background()))
	assert.Equal(t, []string{"postgres", "redis", "http", "kafka"}, started)
	assert.Equal(t, StatusStarted, s.Status("http"))

	require.NoError(t, s.Stop(context.Background()))
	assert.Equal(t, []string{"kafka", "http", "redis", "postgres"}, stopped)
	assert.Equal(t, StatusStopped, s.Status("postgres"))
}

func TestStartup_FibonacciRetry(t *testing.T) {
	var waits []time.Duration
	failures := 3
	postgresStarts := 0
	redisStarts := 0

	s := NewStartup(testLogger(), 5).WithWait(func(_ context.Context, d time.Duration) error {
		waits = append(waits, d)
		return nil
	})
	s.AddDependency(Func{Name: "redis", StartFn: func(context.Context) error { redisStarts++; return nil }})
	s.AddDependency(Func{Name: "postgres", StartFn: func(context.Context) error {
		postgresStarts++
		if postgresStarts <= failures {
			return errors.New("connection refused")
		}
		return nil
	}})

	require.NoError(t, s.Start(context.Background()))
	assert.Equal(t, []time.Duration{time.Second, time.Second, 2 * time.Second}, waits)
	assert.Equal(t, 4, postgresStarts)
	assert.Equal(t, 1, redisStarts, "started dependencies are not restarted")
}

func TestStartup_GivesUp(t *testing.T) {
	s := NewStartup(testLogger(), 2).WithWait(func(context.Context, time.Duration) error { return nil })
	s.AddDependency(Func{Name: "kafka", StartFn: func(context.Context) error { return errors.New("no brokers") }})

	err := s.Start(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "startup failed after 2 attempts")
	assert.Contains(t, err.Error(), "no brokers")
	assert.Equal(t, StatusFailed, s.Status("kafka"))
}

func TestStartup_CancelledDuringBackoff(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	s := NewStartup(testLogger(), 3)
	s.AddDependency(Func{Name: "redis", StartFn: func(context.Context) error { return errors.New("refused") }})

	assert.ErrorIs(t, s.Start(ctx), context.Canceled)
}

func TestStartup_UnknownAndCyclicDependencies(t *testing.T) {
	noop := func(context.Context) error { return nil }

	s := NewStartup(testLogger(), 1)
	s.AddDependency(Func{Name: "http", Needs: []string{"postgres"}, StartFn: noop})
	err := s.Start(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown dependency 'postgres'")

	s = NewStartup(testLogger(), 1)
	s.AddDependency(Func{Name: "a", Needs: []string{"b"}, StartFn: noop})
	s.AddDependency(Func{Name: "b", Needs: []string{"a"}, StartFn: noop})
	err = s.Start(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "dependency cycle")
}

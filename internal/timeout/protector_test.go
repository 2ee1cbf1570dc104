package timeout

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arbelos/keel/internal/bus"
	"github.com/arbelos/keel/internal/model"
)

func testConfig() model.TimeoutConfig {
	return model.TimeoutConfig{
		DefaultTimeout:   time.Second,
		DefaultRetries:   0,
		FailureThreshold: 3,
		Cooldown:         50 * time.Millisecond,
		WarningFraction:  0.8,
	}
}

func TestProtector_FastWorkSingleAttempt(t *testing.T) {
	p := NewProtector(testConfig(), bus.New(), nil)

	result := p.Execute(context.Background(), "gen", func(ctx context.Context) (string, error) {
		return "ok", nil
	}, Options{Timeout: 60 * time.Second})

	require.True(t, result.Success)
	assert.Equal(t, "ok", result.Output)
	assert.Equal(t, 1, result.Attempts)
	assert.False(t, result.FallbackUsed)
	assert.False(t, result.TimedOut)
}

func TestProtector_TimeoutNoFallback(t *testing.T) {
	p := NewProtector(testConfig(), bus.New(), nil)

	result := p.Execute(context.Background(), "slow", func(ctx context.Context) (string, error) {
		<-ctx.Done()
		return "", ctx.Err()
	}, Options{Timeout: 50 * time.Millisecond, Retries: 0})

	assert.False(t, result.Success)
	assert.True(t, result.TimedOut)
	assert.Contains(t, result.Error, "timed out")
}

func TestProtector_TimeoutWithFallback(t *testing.T) {
	p := NewProtector(testConfig(), bus.New(), nil)
	p.RegisterFallback(NewDegradedProvider())

	result := p.Execute(context.Background(), "slow", func(ctx context.Context) (string, error) {
		<-ctx.Done()
		return "", ctx.Err()
	}, Options{Timeout: 50 * time.Millisecond})

	require.True(t, result.Success)
	assert.True(t, result.FallbackUsed)
	assert.Equal(t, "graceful-degradation", result.FallbackName)
	assert.True(t, result.TimedOut)
	assert.NotEmpty(t, result.Output)
}

func TestProtector_CallerCancellationIsNotATimeout(t *testing.T) {
	p := NewProtector(testConfig(), bus.New(), nil)
	p.RegisterFallback(NewDegradedProvider())

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	result := p.Execute(ctx, "abandoned", func(ctx context.Context) (string, error) {
		<-ctx.Done()
		return "", ctx.Err()
	}, Options{Timeout: 10 * time.Second, Retries: 2})

	assert.False(t, result.Success)
	assert.False(t, result.TimedOut)
	assert.False(t, result.FallbackUsed, "an abandoned request should not be served by a fallback")
	assert.Contains(t, result.Error, "context canceled")
	assert.Equal(t, 1, result.Attempts)

	// The breaker must not charge failures to a caller that gave up
	stats := p.Stats()["abandoned"]
	assert.Equal(t, 0, stats.Failures)
}

func TestProtector_RetriesOnError(t *testing.T) {
	p := NewProtector(testConfig(), bus.New(), nil)

	var calls int32
	result := p.Execute(context.Background(), "flaky", func(ctx context.Context) (string, error) {
		if atomic.AddInt32(&calls, 1) < 3 {
			return "", errors.New("transient")
		}
		return "recovered", nil
	}, Options{Timeout: 5 * time.Second, Retries: 2})

	require.True(t, result.Success)
	assert.Equal(t, "recovered", result.Output)
	assert.Equal(t, 3, result.Attempts)
}

func TestProtector_BreakerOpensAndFailsFast(t *testing.T) {
	cfg := testConfig()
	cfg.Cooldown = time.Hour // keep it open for the whole test
	p := NewProtector(cfg, bus.New(), nil)

	failing := func(ctx context.Context) (string, error) {
		return "", errors.New("boom")
	}

	for i := 0; i < cfg.FailureThreshold; i++ {
		p.Execute(context.Background(), "dying", failing, Options{Timeout: time.Second})
	}
	require.Equal(t, 1, p.OpenBreakers())

	// Open breaker must fail fast without invoking the work
	var invoked int32
	start := time.Now()
	result := p.Execute(context.Background(), "dying", func(ctx context.Context) (string, error) {
		atomic.AddInt32(&invoked, 1)
		return "never", nil
	}, Options{Timeout: time.Second})

	assert.False(t, result.Success)
	assert.Zero(t, atomic.LoadInt32(&invoked))
	assert.Less(t, time.Since(start), 100*time.Millisecond)
	assert.Contains(t, result.Error, "circuit breaker open")
}

func TestProtector_CircuitOpenUsesFallbackImmediately(t *testing.T) {
	cfg := testConfig()
	cfg.Cooldown = time.Hour
	p := NewProtector(cfg, bus.New(), nil)
	p.RegisterFallback(NewDegradedProvider())

	failing := func(ctx context.Context) (string, error) {
		return "", errors.New("boom")
	}
	for i := 0; i < cfg.FailureThreshold; i++ {
		p.Execute(context.Background(), "dying", failing, Options{Timeout: time.Second})
	}

	result := p.Execute(context.Background(), "dying", failing, Options{Timeout: time.Second})
	require.True(t, result.Success)
	assert.True(t, result.FallbackUsed)
	assert.Zero(t, result.Attempts)
}

func TestProtector_HalfOpenTrialClosesBreaker(t *testing.T) {
	cfg := testConfig()
	cfg.Cooldown = 20 * time.Millisecond
	p := NewProtector(cfg, bus.New(), nil)

	failing := func(ctx context.Context) (string, error) {
		return "", errors.New("boom")
	}
	for i := 0; i < cfg.FailureThreshold; i++ {
		p.Execute(context.Background(), "mending", failing, Options{Timeout: time.Second})
	}
	require.Equal(t, 1, p.OpenBreakers())

	time.Sleep(cfg.Cooldown + 10*time.Millisecond)

	// Cooldown elapsed: the trial execution succeeds and closes the breaker
	result := p.Execute(context.Background(), "mending", func(ctx context.Context) (string, error) {
		return "healed", nil
	}, Options{Timeout: time.Second})

	require.True(t, result.Success)
	assert.Equal(t, 0, p.OpenBreakers())
	assert.Equal(t, StateClosed, p.Stats()["mending"].State)
}

func TestProtector_HalfOpenTrialFailureReopens(t *testing.T) {
	cfg := testConfig()
	cfg.Cooldown = 20 * time.Millisecond
	p := NewProtector(cfg, bus.New(), nil)

	failing := func(ctx context.Context) (string, error) {
		return "", errors.New("boom")
	}
	for i := 0; i < cfg.FailureThreshold; i++ {
		p.Execute(context.Background(), "relapsing", failing, Options{Timeout: time.Second})
	}

	time.Sleep(cfg.Cooldown + 10*time.Millisecond)

	p.Execute(context.Background(), "relapsing", failing, Options{Timeout: time.Second})
	assert.Equal(t, StateOpen, p.Stats()["relapsing"].State)
}

func TestProtector_CachedResponseFallback(t *testing.T) {
	p := NewProtector(testConfig(), bus.New(), nil)
	cached := NewCachedResponseProvider(time.Minute)
	p.RegisterFallback(cached)

	// A successful run seeds the cache
	result := p.Execute(context.Background(), "gen", func(ctx context.Context) (string, error) {
		return "good answer", nil
	}, Options{Timeout: time.Second})
	require.True(t, result.Success)

	// A later failure replays the last good response
	result = p.Execute(context.Background(), "gen", func(ctx context.Context) (string, error) {
		return "", errors.New("boom")
	}, Options{Timeout: time.Second})

	require.True(t, result.Success)
	assert.True(t, result.FallbackUsed)
	assert.Equal(t, "cached-response", result.FallbackName)
	assert.Equal(t, "good answer", result.Output)
}

func TestProtector_TimeoutEventPublished(t *testing.T) {
	b := bus.New()
	var events int32
	b.Subscribe(bus.TopicTimeout, func(bus.Event) {
		atomic.AddInt32(&events, 1)
	})

	p := NewProtector(testConfig(), b, nil)
	p.Execute(context.Background(), "slow", func(ctx context.Context) (string, error) {
		<-ctx.Done()
		return "", ctx.Err()
	}, Options{Timeout: 30 * time.Millisecond})

	assert.Equal(t, int32(1), atomic.LoadInt32(&events))
}

func TestBreaker_AbandonedTrialReleasesHalfOpen(t *testing.T) {
	br := newBreaker(1, 10*time.Millisecond)
	br.recordFailure()
	time.Sleep(20 * time.Millisecond)

	proceed, trial := br.allow()
	require.True(t, proceed)
	require.True(t, trial)

	// The trial ends without a verdict; the next call must get a new trial
	br.abandonTrial()
	proceed, trial = br.allow()
	assert.True(t, proceed)
	assert.True(t, trial)
}

func TestBreaker_SuccessDecrementsFailures(t *testing.T) {
	br := newBreaker(5, time.Minute)
	br.recordFailure()
	br.recordFailure()
	br.recordSuccess()

	stats := br.snapshot()
	assert.Equal(t, StateClosed, stats.State)
	assert.Equal(t, 1, stats.Failures)
}

package timeout

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/arbelos/keel/internal/bus"
	"github.com/arbelos/keel/internal/model"
)

// Work is the protected unit of work. The context is cancelled when the
// deadline fires; non-cooperative work is abandoned, not preempted.
type Work func(ctx context.Context) (string, error)

// UseDefaultRetries selects the configured default retry count
const UseDefaultRetries = -1

// Options tunes one protected execution. A negative Retries falls back to
// the configured default; zero disables retrying.
type Options struct {
	Timeout  time.Duration
	Retries  int
	Metadata map[string]string
}

// Protector races work against a deadline, retries, walks the fallback
// chain, and keeps a circuit breaker per operation name.
type Protector struct {
	cfg    model.TimeoutConfig
	bus    *bus.Bus
	logger *zap.Logger

	mu        sync.Mutex
	breakers  map[string]*breaker
	fallbacks []FallbackProvider
}

// NewProtector creates a timeout protector
func NewProtector(cfg model.TimeoutConfig, b *bus.Bus, logger *zap.Logger) *Protector {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.DefaultTimeout <= 0 {
		cfg.DefaultTimeout = 60 * time.Second
	}
	if cfg.WarningFraction <= 0 || cfg.WarningFraction >= 1 {
		cfg.WarningFraction = 0.8
	}
	return &Protector{
		cfg:      cfg,
		bus:      b,
		logger:   logger,
		breakers: make(map[string]*breaker),
	}
}

// RegisterFallback appends a provider to the fallback chain
func (p *Protector) RegisterFallback(fp FallbackProvider) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.fallbacks = append(p.fallbacks, fp)
}

// Execute runs work under the configured deadline. The returned result is
// always populated; failures are reported in it, never panicked.
func (p *Protector) Execute(ctx context.Context, operation string, work Work, opts Options) model.ExecutionResult {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = p.cfg.DefaultTimeout
	}
	retries := opts.Retries
	if retries < 0 {
		retries = p.cfg.DefaultRetries
	}

	start := time.Now()
	br := p.breakerFor(operation)

	proceed, trial := br.allow()
	if !proceed {
		p.logger.Warn("circuit open, failing fast",
			zap.String("operation", operation))
		p.publish(bus.TopicCircuitOpen, operation, nil)
		return p.fallbackOrFail(ctx, operation, opts, ErrCircuitOpen, start, 0)
	}
	if trial {
		p.logger.Debug("half-open trial execution",
			zap.String("operation", operation))
	}

	// One budget covers every attempt; retries never extend the deadline.
	deadline := time.Now().Add(timeout)
	execCtx, cancel := context.WithDeadline(ctx, deadline)
	defer cancel()

	warnAt := time.Duration(float64(timeout) * p.cfg.WarningFraction)

	var lastErr error
	attempts := 0
	for attempt := 0; attempt <= retries; attempt++ {
		if time.Now().After(deadline) {
			break
		}
		attempts++

		output, err := p.runOnce(execCtx, work, warnAt, operation)
		if err == nil {
			br.recordSuccess()
			p.remember(operation, output)
			return model.ExecutionResult{
				Success:  true,
				Output:   output,
				Attempts: attempts,
				Elapsed:  time.Since(start),
			}
		}
		lastErr = err

		// Our own deadline is a timeout; the caller cancelling is not
		timedOut := errors.Is(execCtx.Err(), context.DeadlineExceeded)
		if execCtx.Err() != nil && !timedOut {
			if trial {
				br.abandonTrial()
			}
			return model.ExecutionResult{
				Success:  false,
				Error:    lastErr.Error(),
				Attempts: attempts,
				Elapsed:  time.Since(start),
			}
		}
		if timedOut {
			lastErr = fmt.Errorf("%w after %v", ErrTimeout, timeout)
			p.publish(bus.TopicTimeout, operation, timeout)
		}
		if br.recordFailure() {
			p.logger.Warn("circuit breaker opened",
				zap.String("operation", operation),
				zap.Error(lastErr))
			p.publish(bus.TopicCircuitOpen, operation, nil)
		}
		if timedOut {
			// The budget is gone, retrying is pointless
			break
		}
		p.logger.Debug("attempt failed",
			zap.String("operation", operation),
			zap.Int("attempt", attempts),
			zap.Error(err))
	}

	if lastErr == nil {
		lastErr = fmt.Errorf("%w before first attempt", ErrTimeout)
	}
	result := p.fallbackOrFail(ctx, operation, opts, lastErr, start, attempts)
	result.TimedOut = errors.Is(execCtx.Err(), context.DeadlineExceeded)
	return result
}

// runOnce races a single invocation against the shared deadline
func (p *Protector) runOnce(ctx context.Context, work Work, warnAt time.Duration, operation string) (string, error) {
	type outcome struct {
		output string
		err    error
	}
	done := make(chan outcome, 1)
	started := time.Now()

	go func() {
		out, err := work(ctx)
		done <- outcome{output: out, err: err}
	}()

	var warn <-chan time.Time
	if warnAt > 0 {
		timer := time.NewTimer(warnAt)
		defer timer.Stop()
		warn = timer.C
	}

	for {
		select {
		case o := <-done:
			return o.output, o.err
		case <-warn:
			warn = nil
			p.logger.Warn("execution approaching deadline",
				zap.String("operation", operation),
				zap.Duration("elapsed", time.Since(started)))
			p.publish(bus.TopicTimeoutWarning, operation, time.Since(started))
		case <-ctx.Done():
			// The work goroutine may still be running; its result is discarded
			return "", ctx.Err()
		}
	}
}

// fallbackOrFail walks the provider chain in registration order
func (p *Protector) fallbackOrFail(ctx context.Context, operation string, opts Options, cause error, start time.Time, attempts int) model.ExecutionResult {
	p.mu.Lock()
	providers := make([]FallbackProvider, len(p.fallbacks))
	copy(providers, p.fallbacks)
	p.mu.Unlock()

	fc := FallbackContext{
		Operation: operation,
		LastError: cause,
		Metadata:  opts.Metadata,
	}
	if opts.Metadata != nil {
		fc.Input = opts.Metadata["input"]
	}

	for _, provider := range providers {
		if !provider.CanHandle(operation) {
			continue
		}
		output, err := provider.Provide(ctx, fc)
		if err != nil {
			p.logger.Debug("fallback provider failed",
				zap.String("provider", provider.Name()),
				zap.Error(err))
			continue
		}
		p.logger.Info("fallback provider served result",
			zap.String("operation", operation),
			zap.String("provider", provider.Name()))
		return model.ExecutionResult{
			Success:      true,
			Output:       output,
			Error:        cause.Error(),
			Attempts:     attempts,
			FallbackUsed: true,
			FallbackName: provider.Name(),
			Elapsed:      time.Since(start),
		}
	}

	if len(providers) > 0 {
		cause = fmt.Errorf("%w: %v", ErrFallbackExhausted, cause)
	}
	return model.ExecutionResult{
		Success:  false,
		Error:    cause.Error(),
		Attempts: attempts,
		Elapsed:  time.Since(start),
	}
}

// remember feeds good results to providers that replay them
func (p *Protector) remember(operation, output string) {
	p.mu.Lock()
	providers := make([]FallbackProvider, len(p.fallbacks))
	copy(providers, p.fallbacks)
	p.mu.Unlock()

	for _, provider := range providers {
		if r, ok := provider.(rememberer); ok {
			r.Remember(operation, output)
		}
	}
}

func (p *Protector) breakerFor(operation string) *breaker {
	p.mu.Lock()
	defer p.mu.Unlock()
	br, ok := p.breakers[operation]
	if !ok {
		br = newBreaker(p.cfg.FailureThreshold, p.cfg.Cooldown)
		p.breakers[operation] = br
	}
	return br
}

func (p *Protector) publish(topic bus.Topic, operation string, payload interface{}) {
	if p.bus == nil {
		return
	}
	p.bus.Publish(topic, "", map[string]interface{}{
		"operation": operation,
		"detail":    payload,
	})
}

// Stats reports every breaker's state for health checks
func (p *Protector) Stats() map[string]BreakerStats {
	p.mu.Lock()
	defer p.mu.Unlock()
	stats := make(map[string]BreakerStats, len(p.breakers))
	for op, br := range p.breakers {
		stats[op] = br.snapshot()
	}
	return stats
}

// OpenBreakers counts breakers currently open
func (p *Protector) OpenBreakers() int {
	count := 0
	for _, s := range p.Stats() {
		if s.State == StateOpen {
			count++
		}
	}
	return count
}

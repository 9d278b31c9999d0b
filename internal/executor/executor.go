// Package executor wraps every remote call with token-bucket
// throttling, bounded retry with jittered exponential backoff, and a
// per-endpoint-class circuit breaker. Callers must not bypass it for
// any remote call: the executor, not the caller, is the single arbiter
// of outbound call rate.
package executor

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/custodia-labs/drivesearch-cli/internal/core/domain"
	"github.com/custodia-labs/drivesearch-cli/internal/logger"
)

// EndpointClass identifies a logical remote endpoint for rate limiting
// and circuit breaking purposes.
type EndpointClass string

const (
	// ClassList covers content source listing calls.
	ClassList EndpointClass = "list"
	// ClassFetch covers content source export/download calls.
	ClassFetch EndpointClass = "fetch"
	// ClassUpsert covers batch write and delete calls to the stores.
	ClassUpsert EndpointClass = "upsert"
	// ClassQuery covers store query calls.
	ClassQuery EndpointClass = "query"
	// ClassRerank covers reranking calls.
	ClassRerank EndpointClass = "rerank"
)

// RateConfig holds throttling configuration for one endpoint class.
type RateConfig struct {
	// RequestsPerSecond is the sustained rate limit.
	RequestsPerSecond float64
	// BurstSize is the maximum burst size.
	BurstSize int
}

// DefaultRates match the external services' documented quotas, held
// conservatively below them.
var DefaultRates = map[EndpointClass]RateConfig{
	ClassList:   {RequestsPerSecond: 8.0, BurstSize: 10}, // Drive allows 10/sec/user
	ClassFetch:  {RequestsPerSecond: 8.0, BurstSize: 10},
	ClassUpsert: {RequestsPerSecond: 16.0, BurstSize: 16}, // store allows 1000/min
	ClassQuery:  {RequestsPerSecond: 16.0, BurstSize: 16},
	ClassRerank: {RequestsPerSecond: 1.5, BurstSize: 2}, // rerank quota is 100/min
}

// Retry discipline defaults.
const (
	// DefaultMaxAttempts caps retries per call, first attempt included.
	DefaultMaxAttempts = 3

	// DefaultBaseBackoff is the first retry delay.
	DefaultBaseBackoff = 500 * time.Millisecond

	// DefaultMaxBackoff caps a single retry delay.
	DefaultMaxBackoff = 8 * time.Second
)

// Config configures an Executor.
type Config struct {
	// Rates overrides DefaultRates per endpoint class.
	Rates map[EndpointClass]RateConfig

	// MaxAttempts caps attempts per call (default 3).
	MaxAttempts int

	// BaseBackoff is the first retry delay (default 500ms).
	BaseBackoff time.Duration

	// MaxBackoff caps a single retry delay (default 8s).
	MaxBackoff time.Duration

	// BreakerThreshold is the consecutive-failure count that opens an
	// endpoint's breaker (default 5).
	BreakerThreshold int

	// BreakerCooldown is how long an open breaker fails fast before
	// allowing a probe (default 30s).
	BreakerCooldown time.Duration
}

// Executor serialises remote calls against per-endpoint token buckets
// and applies the retry and circuit-breaking discipline.
type Executor struct {
	mu       sync.Mutex
	limiters map[EndpointClass]*rate.Limiter
	breakers map[EndpointClass]*breaker
	rates    map[EndpointClass]RateConfig

	maxAttempts int
	baseBackoff time.Duration
	maxBackoff  time.Duration

	breakerThreshold int
	breakerCooldown  time.Duration

	// sleep is replaceable for tests.
	sleep func(ctx context.Context, d time.Duration) error
}

// New creates an executor with the given configuration.
func New(cfg Config) *Executor {
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = DefaultMaxAttempts
	}
	if cfg.BaseBackoff <= 0 {
		cfg.BaseBackoff = DefaultBaseBackoff
	}
	if cfg.MaxBackoff <= 0 {
		cfg.MaxBackoff = DefaultMaxBackoff
	}
	if cfg.BreakerThreshold <= 0 {
		cfg.BreakerThreshold = 5
	}
	if cfg.BreakerCooldown <= 0 {
		cfg.BreakerCooldown = 30 * time.Second
	}
	if cfg.Rates == nil {
		cfg.Rates = DefaultRates
	}

	return &Executor{
		limiters:         make(map[EndpointClass]*rate.Limiter),
		breakers:         make(map[EndpointClass]*breaker),
		rates:            cfg.Rates,
		maxAttempts:      cfg.MaxAttempts,
		baseBackoff:      cfg.BaseBackoff,
		maxBackoff:       cfg.MaxBackoff,
		breakerThreshold: cfg.BreakerThreshold,
		breakerCooldown:  cfg.BreakerCooldown,
		sleep:            sleepCtx,
	}
}

// Execute runs fn under class's token bucket and breaker. Transient
// failures are retried with jittered exponential backoff up to the
// attempt ceiling; permanent failures surface immediately.
func (e *Executor) Execute(ctx context.Context, class EndpointClass, fn func(ctx context.Context) error) error {
	br := e.breakerFor(class)

	var err error
	for attempt := 1; attempt <= e.maxAttempts; attempt++ {
		if !br.allow() {
			return fmt.Errorf("%s: %w", class, domain.ErrCircuitOpen)
		}

		if err = e.limiterFor(class).Wait(ctx); err != nil {
			return err
		}

		err = fn(ctx)
		if err == nil {
			br.recordSuccess()
			return nil
		}
		br.recordFailure()

		if ctx.Err() != nil {
			return err
		}
		if !domain.IsTransient(err) {
			return err
		}
		if attempt == e.maxAttempts {
			break
		}

		delay := e.backoff(attempt)
		logger.Debug("Retrying %s after %v (attempt %d/%d): %v", class, delay, attempt, e.maxAttempts, err)
		if sleepErr := e.sleep(ctx, delay); sleepErr != nil {
			return sleepErr
		}
	}

	return fmt.Errorf("%s: retries exhausted: %w", class, err)
}

// backoff computes the delay before the next attempt: exponential in
// the attempt number with up to 25% random jitter, capped.
func (e *Executor) backoff(attempt int) time.Duration {
	delay := e.baseBackoff << (attempt - 1)
	if delay > e.maxBackoff {
		delay = e.maxBackoff
	}
	jitter := time.Duration(rand.Int63n(int64(delay)/4 + 1))
	return delay + jitter
}

func (e *Executor) limiterFor(class EndpointClass) *rate.Limiter {
	e.mu.Lock()
	defer e.mu.Unlock()

	if l, ok := e.limiters[class]; ok {
		return l
	}

	cfg, ok := e.rates[class]
	if !ok {
		cfg = RateConfig{RequestsPerSecond: 5.0, BurstSize: 5}
	}
	l := rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), cfg.BurstSize)
	e.limiters[class] = l
	return l
}

func (e *Executor) breakerFor(class EndpointClass) *breaker {
	e.mu.Lock()
	defer e.mu.Unlock()

	if b, ok := e.breakers[class]; ok {
		return b
	}
	b := newBreaker(e.breakerThreshold, e.breakerCooldown)
	e.breakers[class] = b
	return b
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(d):
		return nil
	}
}

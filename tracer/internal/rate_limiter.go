package internal

import (
	"fmt"
	"sync"
	"time"

	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
)

const defaultLimiterInterval = time.Second

// RateLimiter grants at most capacity acquisitions per interval. The bucket is
// refilled lazily on TryAcquire; there is no background goroutine.
type RateLimiter struct {
	// Tokens granted per interval.
	capacity int64

	// Tokens left in the current interval.
	tokens int64

	interval time.Duration

	// Start of the current interval.
	lastRefill time.Time

	clock Clock
	mu    sync.Mutex
}

// NewRateLimiter returns a limiter granting capacity acquisitions per interval.
// A non-positive interval means one second. It panics on a negative capacity.
func NewRateLimiter(capacity int64, interval time.Duration, clock Clock) *RateLimiter {
	if capacity < 0 {
		panic(fmt.Sprintf("rate limiter: capacity must not be negative, got %d", capacity))
	}
	if interval <= 0 {
		interval = defaultLimiterInterval
	}
	clock = clockOrDefault(clock)
	return &RateLimiter{
		capacity:   capacity,
		tokens:     capacity,
		interval:   interval,
		lastRefill: clock.Now(),
		clock:      clock,
	}
}

// TryAcquire takes one token if any remains in the current interval.
func (r *RateLimiter) TryAcquire() bool {
	now := r.clock.Now()

	r.mu.Lock()
	defer r.mu.Unlock()

	if now.Sub(r.lastRefill) >= r.interval {
		r.tokens = r.capacity
		r.lastRefill = now
	}

	if r.tokens > 0 {
		r.tokens--
		return true
	}
	return false
}

// Capacity returns the number of tokens granted per interval.
func (r *RateLimiter) Capacity() int64 {
	return r.capacity
}

// rateLimitingSampler samples up to a fixed number of traces per second and
// drops everything else.
type rateLimitingSampler struct {
	limiter *RateLimiter
}

// Compile time assertion that rateLimitingSampler implements the Sampler interface.
var _ sdktrace.Sampler = (*rateLimitingSampler)(nil)

// NewRateLimitingSampler returns a sampler recording at most perSecond traces
// every second.
func NewRateLimitingSampler(perSecond int64, clock Clock) sdktrace.Sampler {
	return &rateLimitingSampler{limiter: NewRateLimiter(perSecond, time.Second, clock)}
}

func (s *rateLimitingSampler) ShouldSample(p sdktrace.SamplingParameters) sdktrace.SamplingResult {
	decision := sdktrace.Drop
	if s.limiter.TryAcquire() {
		decision = sdktrace.RecordAndSample
	}
	return sdktrace.SamplingResult{
		Decision:   decision,
		Tracestate: trace.SpanContextFromContext(p.ParentContext).TraceState(),
	}
}

func (s *rateLimitingSampler) Description() string {
	return fmt.Sprintf("RateLimitingSampler{%d req/sec}", s.limiter.Capacity())
}

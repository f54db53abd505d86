package internal

import (
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
)

type mockClock struct {
	mu  sync.Mutex
	now time.Time
}

func newMockClock() *mockClock {
	return &mockClock{now: time.Unix(1700000000, 0)}
}

func (c *mockClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *mockClock) advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// sampledTraceID is sampled by every ratio sampler with a positive fraction.
var sampledTraceID = trace.TraceID{0x01}

// droppedTraceID is dropped by every ratio sampler with a fraction below one.
var droppedTraceID = trace.TraceID{
	0x01, 0x01, 0x01, 0x01, 0x01, 0x01, 0x01, 0x01,
	0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff,
}

func samplingParams(id trace.TraceID, attrs ...attribute.KeyValue) sdktrace.SamplingParameters {
	return sdktrace.SamplingParameters{
		ParentContext: context.Background(),
		TraceID:       id,
		Name:          "test",
		Kind:          trace.SpanKindServer,
		Attributes:    attrs,
	}
}

// spySampler counts its calls and answers with a fixed decision.
type spySampler struct {
	mu       sync.Mutex
	calls    int
	decision sdktrace.SamplingDecision
}

func (s *spySampler) ShouldSample(sdktrace.SamplingParameters) sdktrace.SamplingResult {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	return sdktrace.SamplingResult{Decision: s.decision}
}

func (s *spySampler) Description() string {
	return "spy"
}

func (s *spySampler) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

func int64Ptr(v int64) *int64 {
	return &v
}

func float64Ptr(v float64) *float64 {
	return &v
}

func strPtr(v string) *string {
	return &v
}

package tracer

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.opentelemetry.io/otel/trace"
)

func TestServerSamplesWithRemoteSampler(t *testing.T) {
	client := &fakeClient{rules: []SamplingRule{
		rule("health", 1, 0, 0, "/health"),
		rule("all", 10, 0, 1, "*"),
	}}
	rs, err := NewRemoteSampler(context.Background(), WithClient(client), WithFallbackSampler(&spySampler{}))
	require.NoError(t, err)

	exporter := tracetest.NewInMemoryExporter()
	s := New(
		WithName("test"),
		WithSampler(rs),
		WithExporter(exporter),
		WithProviderResource(resource.NewSchemaless(attribute.String("service.name", "checkout"))),
	)

	_, health := s.Tracer.Start(context.Background(), "GET /health",
		trace.WithAttributes(attribute.String("http.target", "/health")))
	assert.False(t, health.IsRecording())
	health.End()

	ctx, parent := s.Tracer.Start(context.Background(), "GET /orders",
		trace.WithAttributes(attribute.String("http.target", "/orders")))
	assert.True(t, parent.SpanContext().IsSampled())

	// Children follow their sampled parent even when a rule would drop them.
	_, child := s.Tracer.Start(ctx, "GET /health",
		trace.WithAttributes(attribute.String("http.target", "/health")))
	assert.True(t, child.SpanContext().IsSampled())
	child.End()
	parent.End()

	tp, ok := s.TracerProvider.(*sdktrace.TracerProvider)
	require.True(t, ok)
	require.NoError(t, tp.ForceFlush(context.Background()))
	assert.Len(t, exporter.GetSpans(), 2)

	require.NoError(t, s.Stop(context.Background()))

	select {
	case <-rs.done:
	default:
		t.Fatal("sampler pollers still running after Stop")
	}
}

func TestServerDefaults(t *testing.T) {
	s := New()
	assert.NotNil(t, s.TracerProvider)
	assert.NotNil(t, s.Tracer)
	assert.ElementsMatch(t, []string{"traceparent", "tracestate", "baggage"}, s.Propagators.Fields())
	assert.NoError(t, s.Stop(context.Background()))
}

func TestServerWithProvider(t *testing.T) {
	tp := sdktrace.NewTracerProvider()
	s := New(WithProvider(tp), WithSampler(NewFallbackSampler()))
	assert.Same(t, tp, s.TracerProvider)
	assert.NoError(t, s.Stop(context.Background()))

	// A provider passed in is not shut down by Stop.
	_, span := tp.Tracer("t").Start(context.Background(), "op")
	assert.True(t, span.SpanContext().IsValid())
	span.End()
	require.NoError(t, tp.Shutdown(context.Background()))
}

func TestVersion(t *testing.T) {
	assert.Equal(t, "semver:"+Version(), SemVersion())
}

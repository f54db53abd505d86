package tracer

import (
	"context"
	"errors"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	otelBaggage "go.opentelemetry.io/otel/baggage"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	"go.opentelemetry.io/otel/sdk/trace"
	otelTrace "go.opentelemetry.io/otel/trace"
)

// Server bundles the tracer provider, propagators and tracer of a process.
type Server struct {
	TracerProvider otelTrace.TracerProvider
	Propagators    propagation.TextMapPropagator
	Tracer         otelTrace.Tracer

	tracerName string
	sampler    trace.Sampler
	exporter   trace.SpanExporter
	resource   *resource.Resource

	// ownsProvider is true when New built TracerProvider itself.
	ownsProvider bool
}

// New returns *tracer.Server. Unless a provider is given, it builds one
// sampling with ParentBased(sampler) when a sampler is set.
func New(opts ...Option) *Server {
	cfg := &Server{
		tracerName: "Service",
	}
	for _, opt := range opts {
		opt.apply(cfg)
	}
	if cfg.TracerProvider == nil {
		if cfg.sampler != nil || cfg.exporter != nil {
			cfg.TracerProvider = cfg.newTracerProvider()
			cfg.ownsProvider = true
		} else {
			cfg.TracerProvider = otel.GetTracerProvider()
		}
	}
	cfg.Tracer = cfg.TracerProvider.Tracer(
		cfg.tracerName,
		otelTrace.WithInstrumentationVersion(SemVersion()),
	)
	if cfg.Propagators == nil {
		cfg.Propagators = propagation.NewCompositeTextMapPropagator(propagation.TraceContext{}, propagation.Baggage{})
	}
	return cfg
}

func (s *Server) newTracerProvider() *trace.TracerProvider {
	var opts []trace.TracerProviderOption
	if s.sampler != nil {
		opts = append(opts, trace.WithSampler(trace.ParentBased(s.sampler)))
	}
	if s.exporter != nil {
		opts = append(opts, trace.WithBatcher(s.exporter))
	}
	if s.resource != nil {
		opts = append(opts, trace.WithResource(s.resource))
	}
	return trace.NewTracerProvider(opts...)
}

// Stop shuts down the provider built by New and the sampler, if it has a
// Shutdown method.
func (s *Server) Stop(ctx context.Context) error {
	var errs []error
	if tp, ok := s.TracerProvider.(*trace.TracerProvider); ok && s.ownsProvider {
		errs = append(errs, tp.Shutdown(ctx))
	}
	if sd, ok := s.sampler.(interface{ Shutdown(context.Context) error }); ok {
		errs = append(errs, sd.Shutdown(ctx))
	}
	return errors.Join(errs...)
}

func (s *Server) SpanFromContext(ctx context.Context) otelTrace.Span {
	return otelTrace.SpanFromContext(ctx)
}
func (s *Server) FromContext(ctx context.Context) otelBaggage.Baggage {
	return otelBaggage.FromContext(ctx)
}

// WithAttributes adds the attributes related to a span life-cycle event.
// These attributes are used to describe the work a Span represents when this
// option is provided to a Span's start or end events.
func (s *Server) WithAttributes(attributes ...attribute.KeyValue) otelTrace.SpanStartEventOption {
	return otelTrace.WithAttributes(attributes...)
}

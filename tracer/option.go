package tracer

import (
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	"go.opentelemetry.io/otel/sdk/trace"
	otelTrace "go.opentelemetry.io/otel/trace"
)

// Option applies a configuration to the given Server.
type Option interface {
	apply(*Server)
}

type optionFunc func(*Server)

func (o optionFunc) apply(s *Server) {
	o(s)
}

// WithName sets the tracer name.
func WithName(name string) Option {
	return optionFunc(func(s *Server) {
		s.tracerName = name
	})
}

// WithProvider uses an existing provider. Sampler, exporter and resource
// options are ignored.
func WithProvider(provider otelTrace.TracerProvider) Option {
	return optionFunc(func(s *Server) {
		s.TracerProvider = provider
	})
}

// WithPropagators sets the propagators. The default is W3C trace context plus
// baggage.
func WithPropagators(propagators propagation.TextMapPropagator) Option {
	return optionFunc(func(s *Server) {
		s.Propagators = propagators
	})
}

// WithSampler sets the root sampler, typically a RemoteSampler. It is wrapped
// in ParentBased so sampled parents keep their children.
func WithSampler(sampler trace.Sampler) Option {
	return optionFunc(func(s *Server) {
		s.sampler = sampler
	})
}

// WithExporter sets the span exporter, batched.
func WithExporter(exporter trace.SpanExporter) Option {
	return optionFunc(func(s *Server) {
		s.exporter = exporter
	})
}

// WithProviderResource sets the resource spans are attributed to.
func WithProviderResource(res *resource.Resource) Option {
	return optionFunc(func(s *Server) {
		s.resource = res
	})
}

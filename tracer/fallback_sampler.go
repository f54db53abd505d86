package tracer

import (
	"github.com/donetkit/contrib-xray/tracer/internal"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

const (
	fallbackReservoirPerSecond = 1
	fallbackFixedRate          = 0.05
)

// FallbackSampler samples one request per second and 5% of the remaining
// requests. It is used while no sampling rules are known.
type FallbackSampler struct {
	reservoir sdktrace.Sampler
	fixedRate sdktrace.Sampler
}

// Compile time assertion that FallbackSampler implements the Sampler interface.
var _ sdktrace.Sampler = (*FallbackSampler)(nil)

// NewFallbackSampler returns a FallbackSampler reading the wall clock.
func NewFallbackSampler() *FallbackSampler {
	return newFallbackSampler(internal.DefaultClock())
}

func newFallbackSampler(clock internal.Clock) *FallbackSampler {
	return &FallbackSampler{
		reservoir: internal.NewRateLimitingSampler(fallbackReservoirPerSecond, clock),
		fixedRate: sdktrace.TraceIDRatioBased(fallbackFixedRate),
	}
}

// ShouldSample implements the reservoir-then-ratio logic without keeping
// statistics.
func (fs *FallbackSampler) ShouldSample(parameters sdktrace.SamplingParameters) sdktrace.SamplingResult {
	res := fs.reservoir.ShouldSample(parameters)
	if res.Decision != sdktrace.Drop {
		return res
	}
	return fs.fixedRate.ShouldSample(parameters)
}

// Description returns description of the sampler being used.
func (fs *FallbackSampler) Description() string {
	return "FallbackSampler{fallback sampling with sampling config of 1 req/sec and 5% of additional requests}"
}

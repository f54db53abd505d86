package tracer

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const instrumentationName = "github.com/donetkit/contrib-xray/tracer"

const (
	pathRules    = "rules"
	pathFallback = "fallback"

	kindRules   = "rules"
	kindTargets = "targets"
)

// samplerMetrics counts decisions on the hot path and poll outcomes on the
// background path. Attribute sets are built once.
type samplerMetrics struct {
	decisions metric.Int64Counter
	refreshes metric.Int64Counter

	decisionAttrs map[string][2]metric.AddOption
}

func newSamplerMetrics(mp metric.MeterProvider) (*samplerMetrics, error) {
	meter := mp.Meter(instrumentationName, metric.WithInstrumentationVersion(Version()))

	decisions, err := meter.Int64Counter("xray.sampler.decisions",
		metric.WithDescription("Sampling decisions by decision path"),
		metric.WithUnit("{decision}"))
	if err != nil {
		return nil, err
	}
	refreshes, err := meter.Int64Counter("xray.sampler.refreshes",
		metric.WithDescription("Rule and target refreshes by outcome"),
		metric.WithUnit("{refresh}"))
	if err != nil {
		return nil, err
	}

	m := &samplerMetrics{
		decisions:     decisions,
		refreshes:     refreshes,
		decisionAttrs: make(map[string][2]metric.AddOption, 2),
	}
	for _, path := range []string{pathRules, pathFallback} {
		m.decisionAttrs[path] = [2]metric.AddOption{
			metric.WithAttributeSet(attribute.NewSet(attribute.String("path", path), attribute.Bool("sampled", false))),
			metric.WithAttributeSet(attribute.NewSet(attribute.String("path", path), attribute.Bool("sampled", true))),
		}
	}
	return m, nil
}

func (m *samplerMetrics) decision(path string, sampled bool) {
	idx := 0
	if sampled {
		idx = 1
	}
	m.decisions.Add(context.Background(), 1, m.decisionAttrs[path][idx])
}

func (m *samplerMetrics) refresh(ctx context.Context, kind string, err error) {
	outcome := "success"
	if err != nil {
		outcome = "failure"
	}
	m.refreshes.Add(ctx, 1, metric.WithAttributes(
		attribute.String("kind", kind),
		attribute.String("outcome", outcome),
	))
}

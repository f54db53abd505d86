package tracer

import (
	"fmt"
	"math"
	"net/url"
	"time"

	"github.com/donetkit/contrib-log/glog"
	"github.com/donetkit/contrib-xray/tracer/internal"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

const (
	defaultPollingInterval = 60 * time.Second
	minPollingInterval     = 10 * time.Second

	rulesPollingJitter   = 5 * time.Second
	targetsPollingJitter = 100 * time.Millisecond
)

type config struct {
	endpoint                     url.URL
	samplingRulesPollingInterval time.Duration
	logger                       glog.ILogger
	client                       Client
	resource                     *resource.Resource
	fallbackSampler              sdktrace.Sampler
	meterProvider                metric.MeterProvider
	clock                        internal.Clock
}

// RemoteSamplerOption sets configuration on the sampler.
type RemoteSamplerOption interface {
	apply(*config) *config
}

type optionRemoteSamplerFunc func(*config) *config

func (f optionRemoteSamplerFunc) apply(cfg *config) *config {
	return f(cfg)
}

// WithEndpoint sets custom proxy endpoint.
// If this option is not provided the default endpoint used will be http://127.0.0.1:2000.
func WithEndpoint(endpoint url.URL) RemoteSamplerOption {
	return optionRemoteSamplerFunc(func(cfg *config) *config {
		cfg.endpoint = endpoint
		return cfg
	})
}

// WithSamplingRulesPollingInterval sets polling interval for sampling rules.
// If this option is not provided the default samplingRulesPollingInterval used will be 60 seconds.
// Intervals below 10 seconds are replaced by the default.
func WithSamplingRulesPollingInterval(polingInterval time.Duration) RemoteSamplerOption {
	return optionRemoteSamplerFunc(func(cfg *config) *config {
		cfg.samplingRulesPollingInterval = polingInterval
		return cfg
	})
}

// WithLogger sets custom logging for remote sampling implementation.
// If this option is not provided the default logger used will be glog.New().
func WithLogger(l glog.ILogger) RemoteSamplerOption {
	return optionRemoteSamplerFunc(func(cfg *config) *config {
		cfg.logger = l
		return cfg
	})
}

// WithClient replaces the X-Ray proxy client. The endpoint option is ignored
// when a client is set.
func WithClient(c Client) RemoteSamplerOption {
	return optionRemoteSamplerFunc(func(cfg *config) *config {
		cfg.client = c
		return cfg
	})
}

// WithResource sets the resource rules are matched against.
func WithResource(res *resource.Resource) RemoteSamplerOption {
	return optionRemoteSamplerFunc(func(cfg *config) *config {
		cfg.resource = res
		return cfg
	})
}

// WithFallbackSampler replaces the sampler used when no rule matches or the
// rules have expired. The default is NewFallbackSampler().
func WithFallbackSampler(s sdktrace.Sampler) RemoteSamplerOption {
	return optionRemoteSamplerFunc(func(cfg *config) *config {
		cfg.fallbackSampler = s
		return cfg
	})
}

// WithMeterProvider sets the provider for the sampler's counters. Metrics are
// disabled by default.
func WithMeterProvider(mp metric.MeterProvider) RemoteSamplerOption {
	return optionRemoteSamplerFunc(func(cfg *config) *config {
		cfg.meterProvider = mp
		return cfg
	})
}

func withClock(c internal.Clock) RemoteSamplerOption {
	return optionRemoteSamplerFunc(func(cfg *config) *config {
		cfg.clock = c
		return cfg
	})
}

func newConfig(opts ...RemoteSamplerOption) (*config, error) {
	defaultProxyEndpoint, err := url.Parse("http://127.0.0.1:2000")
	if err != nil {
		return nil, err
	}

	cfg := &config{
		endpoint:                     *defaultProxyEndpoint,
		samplingRulesPollingInterval: defaultPollingInterval,
	}

	for _, option := range opts {
		option.apply(cfg)
	}

	if math.Signbit(float64(cfg.samplingRulesPollingInterval)) {
		return nil, fmt.Errorf("config validation error: samplingRulesPollingInterval should be positive number")
	}

	if cfg.logger == nil {
		cfg.logger = glog.New()
	}
	if cfg.samplingRulesPollingInterval < minPollingInterval {
		cfg.logger.WithField("RemoteSampler", "RemoteSampler").Warnf(
			"samplingRulesPollingInterval %s is below %s, using %s",
			cfg.samplingRulesPollingInterval, minPollingInterval, defaultPollingInterval)
		cfg.samplingRulesPollingInterval = defaultPollingInterval
	}
	if cfg.meterProvider == nil {
		cfg.meterProvider = noop.NewMeterProvider()
	}
	if cfg.clock == nil {
		cfg.clock = internal.DefaultClock()
	}
	if cfg.fallbackSampler == nil {
		cfg.fallbackSampler = newFallbackSampler(cfg.clock)
	}

	return cfg, nil
}

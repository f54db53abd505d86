package tracer

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/donetkit/contrib-log/glog"
	"github.com/donetkit/contrib-xray/tracer/internal"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"golang.org/x/sync/errgroup"
)

// RemoteSampler is a sampler for AWS X-Ray which polls sampling rules and sampling targets
// to make a sampling decision based on rules set by users on AWS X-Ray console.
type RemoteSampler struct {
	// rulesCache is the list of known centralized sampling rules.
	rulesCache *internal.RulesCache

	fallbackSampler sdktrace.Sampler

	client Client

	samplingRulesPollingInterval time.Duration

	clock   internal.Clock
	metrics *samplerMetrics

	// logger for logging.
	logger glog.ILoggerEntry

	mu sync.Mutex

	// pollerStarted, if true represents rule and target pollers are started.
	pollerStarted bool
	cancel        context.CancelFunc
	done          chan struct{}
}

// Compile time assertion that RemoteSampler implements the Sampler interface.
var _ sdktrace.Sampler = (*RemoteSampler)(nil)

// NewRemoteSampler returns a sampler which decides to sample a given request or not
// based on the sampling rules set by users on AWS X-Ray console. Rules are fetched once
// before it returns; a failed first fetch is logged and sampling falls back until a
// later poll succeeds. Sampler also periodically polls sampling rules and sampling
// targets until ctx is done or Shutdown is called.
func NewRemoteSampler(ctx context.Context, opts ...RemoteSamplerOption) (*RemoteSampler, error) {
	// Create new config based on options or set to default values.
	cfg, err := newConfig(opts...)
	if err != nil {
		return nil, err
	}

	client := cfg.client
	if client == nil {
		xc, err := internal.NewXrayClient(cfg.endpoint)
		if err != nil {
			return nil, fmt.Errorf("create xray client: %w", err)
		}
		client = xc
	}

	metrics, err := newSamplerMetrics(cfg.meterProvider)
	if err != nil {
		return nil, fmt.Errorf("create sampler metrics: %w", err)
	}

	rs := &RemoteSampler{
		rulesCache:                   internal.NewRulesCache(newClientID(), cfg.resource, cfg.fallbackSampler, cfg.clock),
		fallbackSampler:              cfg.fallbackSampler,
		client:                       client,
		samplingRulesPollingInterval: cfg.samplingRulesPollingInterval,
		clock:                        cfg.clock,
		metrics:                      metrics,
		logger:                       cfg.logger.WithField("RemoteSampler", "RemoteSampler"),
	}

	if err := rs.refreshRules(ctx); err != nil {
		rs.logger.Error(err, "initial sampling rules fetch failed, using fallback sampler")
	}

	rs.start(ctx)

	return rs, nil
}

// ShouldSample matches span attributes with retrieved sampling rules and returns a sampling result.
// If the sampling parameters do not match or the rules are expired then the fallback sampler is used.
func (rs *RemoteSampler) ShouldSample(parameters sdktrace.SamplingParameters) sdktrace.SamplingResult {
	if !rs.rulesCache.Expired() {
		if res, ok := rs.rulesCache.Match(parameters); ok {
			rs.metrics.decision(pathRules, res.Decision == sdktrace.RecordAndSample)
			return res
		}
	}

	res := rs.fallbackSampler.ShouldSample(parameters)
	rs.metrics.decision(pathFallback, res.Decision == sdktrace.RecordAndSample)
	return res
}

// Description returns description of the sampler being used.
func (rs *RemoteSampler) Description() string {
	return "AwsXrayRemoteSampler{" + rs.fallbackSampler.Description() + "}"
}

// ClientID returns the identifier this process reports statistics under.
func (rs *RemoteSampler) ClientID() string {
	return rs.rulesCache.ClientID()
}

// Shutdown stops the pollers and waits for them to return, or for ctx to be
// done. It is safe to call more than once.
func (rs *RemoteSampler) Shutdown(ctx context.Context) error {
	rs.mu.Lock()
	started, cancel, done := rs.pollerStarted, rs.cancel, rs.done
	rs.mu.Unlock()

	if !started {
		return nil
	}
	cancel()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (rs *RemoteSampler) start(ctx context.Context) {
	rs.mu.Lock()
	defer rs.mu.Unlock()
	if rs.pollerStarted {
		return
	}
	rs.pollerStarted = true

	ctx, rs.cancel = context.WithCancel(ctx)
	rs.done = make(chan struct{})

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		rs.rulesPoller(ctx)
		return nil
	})
	g.Go(func() error {
		rs.targetsPoller(ctx)
		return nil
	})

	go func() {
		_ = g.Wait()
		close(rs.done)
	}()
}

// rulesPoller refreshes the rules every polling interval.
func (rs *RemoteSampler) rulesPoller(ctx context.Context) {
	// jitter = 5s, default duration 60 seconds.
	rulesTicker := newTicker(rs.samplingRulesPollingInterval, rulesPollingJitter)
	defer rulesTicker.stop()
	for {
		select {
		case <-rulesTicker.c():
			if err := rs.refreshRules(ctx); err != nil {
				rs.logger.Error(err, "error occurred while refreshing sampling rules")
			}
		case <-ctx.Done():
			return
		}
	}
}

// targetsPoller reports statistics whenever the earliest rule asks for it.
func (rs *RemoteSampler) targetsPoller(ctx context.Context) {
	// jitter = 100ms, default duration 10 seconds.
	targetTimer := newTimer(rs.nextTargetFetchDelay(), targetsPollingJitter)
	defer targetTimer.stop()
	for {
		select {
		case <-targetTimer.c():
			if err := rs.refreshTargets(ctx); err != nil {
				rs.logger.Error(err, "error occurred while refreshing sampling targets")
			}
			targetTimer.reset(rs.nextTargetFetchDelay())
		case <-ctx.Done():
			return
		}
	}
}

func (rs *RemoteSampler) nextTargetFetchDelay() time.Duration {
	delay := rs.rulesCache.NextTargetFetchTime().Sub(rs.clock.Now())
	if delay <= 0 {
		return internal.DefaultTargetInterval
	}
	return delay
}

// refreshRules replaces the cached rules with the ones fetched from the client.
// The cache is left untouched on failure.
func (rs *RemoteSampler) refreshRules(ctx context.Context) error {
	rules, err := rs.client.FetchRules(ctx)
	rs.metrics.refresh(ctx, kindRules, err)
	if err != nil {
		return fmt.Errorf("refresh sampling rules: %w", err)
	}

	rs.rulesCache.UpdateRules(rules)
	rs.logger.Debugf("successfully fetched %d sampling rules", len(rules))
	return nil
}

// refreshTargets reports the rule statistics and applies the returned targets.
func (rs *RemoteSampler) refreshTargets(ctx context.Context) error {
	statistics := rs.rulesCache.Snapshots()
	if len(statistics) == 0 {
		rs.logger.Debug("no statistics to report")
		return nil
	}

	out, err := rs.client.FetchTargets(ctx, statistics)
	rs.metrics.refresh(ctx, kindTargets, err)
	if err != nil {
		return fmt.Errorf("refresh sampling targets: %w", err)
	}
	if out == nil {
		rs.logger.Debug("no sampling targets returned")
		return nil
	}

	rs.rulesCache.UpdateTargets(out.Targets)
	rs.logger.Debug("successfully fetched sampling targets")

	refresh := !out.LastRuleModification.IsZero() && out.LastRuleModification.After(rs.rulesCache.UpdatedAt())
	for _, u := range out.UnprocessedStatistics {
		switch {
		case strings.HasPrefix(u.ErrorCode, "4"):
			rs.logger.Debugf("statistics for rule %s rejected (%s): %s", u.RuleName, u.ErrorCode, u.Message)
			refresh = true
		case strings.HasPrefix(u.ErrorCode, "5"):
			rs.logger.Errorf("statistics for rule %s failed (%s): %s", u.RuleName, u.ErrorCode, u.Message)
		default:
			rs.logger.Debugf("statistics for rule %s unprocessed (%s): %s", u.RuleName, u.ErrorCode, u.Message)
		}
	}

	if refresh {
		return rs.refreshRules(ctx)
	}
	return nil
}

package internal

import (
	"math"
	"net/url"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.24.0"
)

const defaultTargetInterval = 10 * time.Second

// Span attribute keys read for matching. Both the legacy and the current HTTP
// conventions are accepted.
const (
	httpTargetKey           = attribute.Key("http.target")
	httpURLKey              = attribute.Key("http.url")
	httpMethodKey           = attribute.Key("http.method")
	httpHostKey             = attribute.Key("http.host")
	urlPathKey              = attribute.Key("url.path")
	urlFullKey              = attribute.Key("url.full")
	httpRequestMethodKey    = attribute.Key("http.request.method")
	httpRequestMethodOrigin = attribute.Key("http.request.method_original")
	serverAddressKey        = attribute.Key("server.address")
	faasIDKey               = attribute.Key("faas.id")
)

// maxTime stands for "no reservoir expiry".
var maxTime = time.Unix(1<<62, 0)

// resourceInfo holds the resource attributes rules are matched against.
type resourceInfo struct {
	serviceName  string
	serviceType  string
	containerARN string
	faasID       *string
}

func newResourceInfo(res *resource.Resource) resourceInfo {
	var info resourceInfo
	if res == nil {
		return info
	}
	set := res.Set()
	if v, ok := set.Value(semconv.ServiceNameKey); ok {
		info.serviceName = v.Emit()
	}
	if v, ok := set.Value(semconv.CloudPlatformKey); ok {
		info.serviceType = cloudPlatformToServiceType(v.Emit())
	}
	if v, ok := set.Value(semconv.AWSECSContainerARNKey); ok {
		info.containerARN = v.Emit()
	}
	if v, ok := set.Value(faasIDKey); ok {
		id := v.Emit()
		info.faasID = &id
	}
	return info
}

// samplingRuleApplier makes sampling decisions for one rule. Appliers are
// replaced, never mutated, when the rule or its target changes; the
// statistics pointer is carried over so no counts are lost.
type samplingRuleApplier struct {
	clientID string
	rule     *SamplingRule

	// reservoirSampler is consulted first while now < reservoirEndTime.
	reservoirSampler sdktrace.Sampler
	fixedRateSampler sdktrace.Sampler

	// borrowing is true until the first target is applied.
	borrowing bool

	// targeted is set once a target has replaced the rule's own samplers.
	targeted bool

	statistics *samplingStatistics

	reservoirEndTime time.Time
	nextSnapshotTime time.Time

	clock Clock
}

func newSamplingRuleApplier(clientID string, rule *SamplingRule, clock Clock) *samplingRuleApplier {
	clock = clockOrDefault(clock)
	a := &samplingRuleApplier{
		clientID:         clientID,
		rule:             rule,
		fixedRateSampler: sdktrace.TraceIDRatioBased(rule.FixedRate),
		statistics:       &samplingStatistics{},
		reservoirEndTime: maxTime,
		nextSnapshotTime: clock.Now(),
		clock:            clock,
	}
	if rule.ReservoirSize > 0 {
		a.reservoirSampler = NewRateLimitingSampler(rule.ReservoirSize, clock)
		a.borrowing = true
	} else {
		a.reservoirSampler = sdktrace.NeverSample()
	}
	return a
}

func (a *samplingRuleApplier) ruleName() string {
	return a.rule.RuleName
}

// matches reports whether the request and resource satisfy every predicate of
// the rule.
func (a *samplingRuleApplier) matches(attrs attributeMap, res resourceInfo) bool {
	arn := res.containerARN
	if arn == "" && res.serviceType == lambdaServiceType {
		if id := res.faasID; id != nil {
			arn = *id
		} else if id := attrs.str(faasIDKey); id != nil {
			arn = *id
		}
	}

	r := a.rule
	return attributeMatch(attrs, r.Attributes) &&
		wildcardMatch(httpTarget(attrs), r.URLPath) &&
		wildcardMatch(httpMethod(attrs), r.HTTPMethod) &&
		wildcardMatch(httpHost(attrs), r.Host) &&
		wildcardMatch(&res.serviceName, r.ServiceName) &&
		wildcardMatch(&res.serviceType, r.ServiceType) &&
		wildcardMatch(&arn, r.ResourceARN)
}

func httpTarget(attrs attributeMap) *string {
	if t := attrs.str(httpTargetKey); t != nil {
		return t
	}
	if t := attrs.str(urlPathKey); t != nil {
		return t
	}
	full := attrs.str(httpURLKey)
	if full == nil {
		full = attrs.str(urlFullKey)
	}
	if full == nil {
		return nil
	}
	u, err := url.Parse(*full)
	if err != nil || u.Path == "" {
		return nil
	}
	return &u.Path
}

func httpMethod(attrs attributeMap) *string {
	if m := attrs.str(httpMethodKey); m != nil {
		return m
	}
	m := attrs.str(httpRequestMethodKey)
	if m != nil && *m == "_OTHER" {
		return attrs.str(httpRequestMethodOrigin)
	}
	return m
}

func httpHost(attrs attributeMap) *string {
	if h := attrs.str(httpHostKey); h != nil {
		return h
	}
	return attrs.str(serverAddressKey)
}

// ShouldSample consults the reservoir, then the fixed rate, and records the
// outcome in the rule statistics.
func (a *samplingRuleApplier) ShouldSample(p sdktrace.SamplingParameters) sdktrace.SamplingResult {
	if a.clock.Now().Before(a.reservoirEndTime) {
		res := a.reservoirSampler.ShouldSample(p)
		if res.Decision != sdktrace.Drop {
			a.statistics.record(true, a.borrowing)
			return res
		}
	}

	res := a.fixedRateSampler.ShouldSample(p)
	a.statistics.record(res.Decision != sdktrace.Drop, false)
	return res
}

func (a *samplingRuleApplier) Description() string {
	return "SamplingRuleApplier{" + a.rule.RuleName + "}"
}

// snapshot returns the statistics accumulated since the previous snapshot and
// resets them.
func (a *samplingRuleApplier) snapshot(now time.Time) SamplingStatisticsDocument {
	requests, sampled, borrowed := a.statistics.snapshotAndReset()
	return SamplingStatisticsDocument{
		ClientID:     a.clientID,
		RuleName:     a.rule.RuleName,
		RequestCount: requests,
		SampleCount:  sampled,
		BorrowCount:  borrowed,
		Timestamp:    now.UnixMilli(),
	}
}

// withRule returns a copy of a pointing at rule, keeping its statistics.
// Until a target is applied, samplers follow the rule's fixed rate and
// reservoir size.
func (a *samplingRuleApplier) withRule(rule *SamplingRule) *samplingRuleApplier {
	n := *a
	n.rule = rule
	if a.targeted {
		return &n
	}

	if rule.FixedRate != a.rule.FixedRate {
		n.fixedRateSampler = sdktrace.TraceIDRatioBased(rule.FixedRate)
	}
	if rule.ReservoirSize != a.rule.ReservoirSize {
		if rule.ReservoirSize > 0 {
			n.reservoirSampler = NewRateLimitingSampler(rule.ReservoirSize, a.clock)
			n.borrowing = true
		} else {
			n.reservoirSampler = sdktrace.NeverSample()
			n.borrowing = false
		}
	}
	return &n
}

// withTarget returns a copy of a with the target applied.
func (a *samplingRuleApplier) withTarget(t SamplingTargetDocument, now time.Time) *samplingRuleApplier {
	n := *a

	if t.FixedRate != nil {
		n.fixedRateSampler = sdktrace.TraceIDRatioBased(*t.FixedRate)
	}

	n.reservoirEndTime = maxTime
	if t.ReservoirQuota != nil && t.ReservoirQuotaTTL != nil {
		if quota := *t.ReservoirQuota; quota > 0 {
			n.reservoirSampler = NewRateLimitingSampler(quota, a.clock)
		} else {
			n.reservoirSampler = sdktrace.NeverSample()
		}
		if ttl := math.Floor(*t.ReservoirQuotaTTL); ttl > 0 {
			n.reservoirEndTime = time.Unix(int64(ttl), 0)
		}
	} else {
		n.reservoirSampler = sdktrace.NeverSample()
	}

	n.borrowing = false
	n.targeted = true

	interval := defaultTargetInterval
	if t.Interval != nil && *t.Interval > 0 {
		interval = time.Duration(*t.Interval) * time.Second
	}
	n.nextSnapshotTime = now.Add(interval)

	return &n
}

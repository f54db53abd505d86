package internal

import (
	"sort"
	"sync"
	"time"

	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

// cacheTTL is how long rules stay usable without a successful refresh.
const cacheTTL = time.Hour

// DefaultTargetInterval is the statistics reporting interval used when no
// rule asks for a specific one.
const DefaultTargetInterval = defaultTargetInterval

// RulesCache holds the priority-ordered appliers of the current rule set and
// routes every sampling decision to the first matching one.
type RulesCache struct {
	clientID string
	resource resourceInfo
	fallback sdktrace.Sampler
	clock    Clock

	mu        sync.RWMutex
	appliers  []*samplingRuleApplier
	updatedAt time.Time
}

// Compile time assertion that RulesCache implements the Sampler interface.
var _ sdktrace.Sampler = (*RulesCache)(nil)

// NewRulesCache returns an empty cache. Requests matching no rule are handed
// to fallback.
func NewRulesCache(clientID string, res *resource.Resource, fallback sdktrace.Sampler, clock Clock) *RulesCache {
	clock = clockOrDefault(clock)
	return &RulesCache{
		clientID:  clientID,
		resource:  newResourceInfo(res),
		fallback:  fallback,
		clock:     clock,
		updatedAt: clock.Now(),
	}
}

// ClientID returns the identifier reported with every statistics document.
func (c *RulesCache) ClientID() string {
	return c.clientID
}

// Expired returns true if the rules have not been successfully refreshed in
// the last hour.
func (c *RulesCache) Expired() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.clock.Now().After(c.updatedAt.Add(cacheTTL))
}

// UpdatedAt returns the time of the last successful rule refresh.
func (c *RulesCache) UpdatedAt() time.Time {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.updatedAt
}

// UpdateRules replaces the rule set. Appliers of rules whose name is unchanged
// keep their samplers and statistics.
func (c *RulesCache) UpdateRules(rules []SamplingRule) {
	sorted := make(samplingRuleSlice, len(rules))
	copy(sorted, rules)
	sort.Stable(sorted)

	c.mu.Lock()
	defer c.mu.Unlock()

	existing := make(map[string]*samplingRuleApplier, len(c.appliers))
	for _, a := range c.appliers {
		if _, ok := existing[a.ruleName()]; !ok {
			existing[a.ruleName()] = a
		}
	}

	appliers := make([]*samplingRuleApplier, 0, len(sorted))
	for i := range sorted {
		rule := &sorted[i]
		if a, ok := existing[rule.RuleName]; ok {
			appliers = append(appliers, a.withRule(rule))
			continue
		}
		appliers = append(appliers, newSamplingRuleApplier(c.clientID, rule, c.clock))
	}

	c.appliers = appliers
	c.updatedAt = c.clock.Now()
}

// UpdateTargets applies targets to the appliers of the rules they name.
func (c *RulesCache) UpdateTargets(targets map[string]SamplingTargetDocument) {
	if len(targets) == 0 {
		return
	}
	now := c.clock.Now()

	c.mu.Lock()
	defer c.mu.Unlock()

	appliers := make([]*samplingRuleApplier, len(c.appliers))
	for i, a := range c.appliers {
		if t, ok := targets[a.ruleName()]; ok {
			appliers[i] = a.withTarget(t, now)
			continue
		}
		appliers[i] = a
	}
	c.appliers = appliers
}

// Snapshots takes a snapshot of sampling statistics from all rules, resetting
// statistics counters in the process.
func (c *RulesCache) Snapshots() []SamplingStatisticsDocument {
	now := c.clock.Now()
	appliers := c.current()

	statistics := make([]SamplingStatisticsDocument, 0, len(appliers))
	for _, a := range appliers {
		statistics = append(statistics, a.snapshot(now))
	}
	return statistics
}

// NextTargetFetchTime returns the earliest time a rule asked to report its
// statistics, or ten seconds from now if that is already past.
func (c *RulesCache) NextTargetFetchTime() time.Time {
	now := c.clock.Now()
	defaultTime := now.Add(defaultTargetInterval)

	appliers := c.current()
	if len(appliers) == 0 {
		return defaultTime
	}

	next := appliers[0].nextSnapshotTime
	for _, a := range appliers[1:] {
		if a.nextSnapshotTime.Before(next) {
			next = a.nextSnapshotTime
		}
	}
	if next.Before(now) {
		return defaultTime
	}
	return next
}

// RuleNames returns the rule names in evaluation order.
func (c *RulesCache) RuleNames() []string {
	appliers := c.current()
	names := make([]string, len(appliers))
	for i, a := range appliers {
		names[i] = a.ruleName()
	}
	return names
}

// ShouldSample delegates to the first applier matching the request, or to the
// fallback sampler.
func (c *RulesCache) ShouldSample(p sdktrace.SamplingParameters) sdktrace.SamplingResult {
	if res, ok := c.Match(p); ok {
		return res
	}
	return c.fallback.ShouldSample(p)
}

// Match delegates to the first applier matching the request. It reports false
// without deciding when no rule matches.
func (c *RulesCache) Match(p sdktrace.SamplingParameters) (sdktrace.SamplingResult, bool) {
	attrs := newAttributeMap(p.Attributes)
	for _, a := range c.current() {
		if a.matches(attrs, c.resource) {
			return a.ShouldSample(p), true
		}
	}
	return sdktrace.SamplingResult{}, false
}

func (c *RulesCache) Description() string {
	return "RulesCache{" + c.fallback.Description() + "}"
}

func (c *RulesCache) current() []*samplingRuleApplier {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.appliers
}

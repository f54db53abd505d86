package internal

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

func newTestCache(clock Clock, fallback sdktrace.Sampler) *RulesCache {
	return NewRulesCache("client", nil, fallback, clock)
}

func TestRulesCacheOrdering(t *testing.T) {
	c := newTestCache(newMockClock(), &spySampler{})

	c.UpdateRules([]SamplingRule{
		*newRule("b", 5, 1, 0),
		*newRule("a", 1, 1, 0),
		*newRule("a", 5, 1, 0),
	})

	c.mu.RLock()
	defer c.mu.RUnlock()
	require.Len(t, c.appliers, 3)
	assert.Equal(t, "a", c.appliers[0].rule.RuleName)
	assert.Equal(t, int64(1), c.appliers[0].rule.Priority)
	assert.Equal(t, "a", c.appliers[1].rule.RuleName)
	assert.Equal(t, int64(5), c.appliers[1].rule.Priority)
	assert.Equal(t, "b", c.appliers[2].rule.RuleName)
}

func TestRulesCacheUpdateRulesDoesNotMutateInput(t *testing.T) {
	c := newTestCache(newMockClock(), &spySampler{})
	rules := []SamplingRule{*newRule("b", 2, 1, 0), *newRule("a", 1, 1, 0)}

	c.UpdateRules(rules)

	assert.Equal(t, "b", rules[0].RuleName)
	assert.Equal(t, []string{"a", "b"}, c.RuleNames())
}

func TestRulesCacheUpdateRulesKeepsStatistics(t *testing.T) {
	clock := newMockClock()
	c := newTestCache(clock, &spySampler{})
	c.UpdateRules([]SamplingRule{*newRule("keep", 1, 1, 0), *newRule("drop", 2, 1, 0)})

	c.ShouldSample(samplingParams(sampledTraceID))
	c.ShouldSample(samplingParams(sampledTraceID))

	c.UpdateRules([]SamplingRule{*newRule("keep", 3, 1, 0), *newRule("new", 1, 1, 0)})
	assert.Equal(t, []string{"new", "keep"}, c.RuleNames())

	snapshots := c.Snapshots()
	require.Len(t, snapshots, 2)
	assert.Equal(t, "new", snapshots[0].RuleName)
	assert.Equal(t, int64(0), snapshots[0].RequestCount)
	assert.Equal(t, "keep", snapshots[1].RuleName)
	assert.Equal(t, int64(2), snapshots[1].RequestCount)
	assert.Equal(t, int64(1), snapshots[1].SampleCount)
}

func TestRulesCacheUpdateRulesAppliesEditedRates(t *testing.T) {
	clock := newMockClock()
	c := newTestCache(clock, &spySampler{})

	c.UpdateRules([]SamplingRule{*newRule("r", 1, 0, 0)})
	assert.Equal(t, sdktrace.Drop, c.ShouldSample(samplingParams(sampledTraceID)).Decision)

	c.UpdateRules([]SamplingRule{*newRule("r", 1, 0, 1)})
	assert.Equal(t, sdktrace.RecordAndSample, c.ShouldSample(samplingParams(droppedTraceID)).Decision)

	c.UpdateRules([]SamplingRule{*newRule("r", 1, 1, 0)})
	assert.Equal(t, sdktrace.RecordAndSample, c.ShouldSample(samplingParams(droppedTraceID)).Decision)
	assert.Equal(t, sdktrace.Drop, c.ShouldSample(samplingParams(droppedTraceID)).Decision)

	snapshots := c.Snapshots()
	require.Len(t, snapshots, 1)
	assert.Equal(t, int64(4), snapshots[0].RequestCount)
	assert.Equal(t, int64(2), snapshots[0].SampleCount)
	assert.Equal(t, int64(1), snapshots[0].BorrowCount)
}

func TestRulesCacheUpdateRulesKeepsTargetedSamplers(t *testing.T) {
	c := newTestCache(newMockClock(), &spySampler{})
	c.UpdateRules([]SamplingRule{*newRule("r", 1, 0, 0)})
	c.UpdateTargets(map[string]SamplingTargetDocument{
		"r": {RuleName: "r", FixedRate: float64Ptr(1)},
	})

	c.UpdateRules([]SamplingRule{*newRule("r", 1, 0, 0.5)})
	assert.Equal(t, sdktrace.RecordAndSample, c.ShouldSample(samplingParams(droppedTraceID)).Decision)
}

func TestRulesCacheFallbackOnNoMatch(t *testing.T) {
	spy := &spySampler{decision: sdktrace.RecordAndSample}
	c := newTestCache(newMockClock(), spy)

	rule := newRule("api", 1, 1, 0)
	rule.URLPath = "/api/*"
	c.UpdateRules([]SamplingRule{*rule})

	res := c.ShouldSample(samplingParams(sampledTraceID, attribute.String("http.target", "/other")))

	assert.Equal(t, sdktrace.RecordAndSample, res.Decision)
	assert.Equal(t, 1, spy.count())
}

func TestRulesCacheMatch(t *testing.T) {
	spy := &spySampler{}
	c := newTestCache(newMockClock(), spy)

	_, ok := c.Match(samplingParams(sampledTraceID))
	assert.False(t, ok)

	c.UpdateRules([]SamplingRule{*newRule("all", 1, 0, 1)})
	res, ok := c.Match(samplingParams(sampledTraceID))
	assert.True(t, ok)
	assert.Equal(t, sdktrace.RecordAndSample, res.Decision)
	assert.Equal(t, 0, spy.count())
}

func TestRulesCacheFirstMatchWins(t *testing.T) {
	spy := &spySampler{}
	c := newTestCache(newMockClock(), spy)

	deny := newRule("deny", 1, 0, 0)
	deny.URLPath = "/health"
	c.UpdateRules([]SamplingRule{*newRule("all", 10, 0, 1), *deny})

	res := c.ShouldSample(samplingParams(sampledTraceID, attribute.String("http.target", "/health")))
	assert.Equal(t, sdktrace.Drop, res.Decision)

	res = c.ShouldSample(samplingParams(sampledTraceID, attribute.String("http.target", "/orders")))
	assert.Equal(t, sdktrace.RecordAndSample, res.Decision)
	assert.Equal(t, 0, spy.count())
}

func TestRulesCacheExpired(t *testing.T) {
	clock := newMockClock()
	c := newTestCache(clock, &spySampler{})
	c.UpdateRules([]SamplingRule{*newRule("r", 1, 1, 0)})
	assert.Equal(t, clock.Now(), c.UpdatedAt())

	clock.advance(time.Hour)
	assert.False(t, c.Expired())

	clock.advance(time.Millisecond)
	assert.True(t, c.Expired())

	c.UpdateRules([]SamplingRule{*newRule("r", 1, 1, 0)})
	assert.False(t, c.Expired())
}

func TestRulesCacheUpdateTargets(t *testing.T) {
	clock := newMockClock()
	c := newTestCache(clock, &spySampler{})
	c.UpdateRules([]SamplingRule{*newRule("a", 1, 1, 0), *newRule("b", 2, 1, 0)})

	c.mu.RLock()
	before := append([]*samplingRuleApplier(nil), c.appliers...)
	c.mu.RUnlock()

	c.UpdateTargets(map[string]SamplingTargetDocument{
		"b":       {RuleName: "b", FixedRate: float64Ptr(1), Interval: int64Ptr(30)},
		"missing": {RuleName: "missing", FixedRate: float64Ptr(1)},
	})

	c.mu.RLock()
	after := append([]*samplingRuleApplier(nil), c.appliers...)
	c.mu.RUnlock()

	require.Len(t, after, 2)
	assert.Same(t, before[0], after[0])
	assert.NotSame(t, before[1], after[1])
	assert.True(t, after[0].borrowing)
	assert.False(t, after[1].borrowing)
	assert.Equal(t, clock.Now().Add(30*time.Second), after[1].nextSnapshotTime)

	c.UpdateTargets(nil)
	c.mu.RLock()
	assert.Same(t, after[1], c.appliers[1])
	c.mu.RUnlock()
}

func TestRulesCacheNextTargetFetchTime(t *testing.T) {
	clock := newMockClock()
	c := newTestCache(clock, &spySampler{})

	assert.Equal(t, clock.Now().Add(10*time.Second), c.NextTargetFetchTime())

	c.UpdateRules([]SamplingRule{*newRule("a", 1, 1, 0), *newRule("b", 2, 1, 0)})
	c.UpdateTargets(map[string]SamplingTargetDocument{
		"a": {RuleName: "a", Interval: int64Ptr(30)},
		"b": {RuleName: "b", Interval: int64Ptr(15)},
	})
	assert.Equal(t, clock.Now().Add(15*time.Second), c.NextTargetFetchTime())

	clock.advance(20 * time.Second)
	assert.Equal(t, clock.Now().Add(10*time.Second), c.NextTargetFetchTime())
}

func TestRulesCacheSnapshots(t *testing.T) {
	clock := newMockClock()
	c := newTestCache(clock, &spySampler{})
	c.UpdateRules([]SamplingRule{*newRule("a", 1, 1, 0)})

	for i := 0; i < 4; i++ {
		c.ShouldSample(samplingParams(sampledTraceID))
	}

	snapshots := c.Snapshots()
	require.Len(t, snapshots, 1)
	assert.Equal(t, SamplingStatisticsDocument{
		ClientID:     "client",
		RuleName:     "a",
		RequestCount: 4,
		SampleCount:  1,
		BorrowCount:  1,
		Timestamp:    clock.Now().UnixMilli(),
	}, snapshots[0])

	snapshots = c.Snapshots()
	assert.Equal(t, int64(0), snapshots[0].RequestCount)
}

func TestRulesCacheConcurrentAccess(t *testing.T) {
	c := newTestCache(newMockClock(), &spySampler{})
	c.UpdateRules([]SamplingRule{*newRule("a", 1, 100, 0.5)})

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 250; j++ {
				c.ShouldSample(samplingParams(sampledTraceID))
			}
		}()
	}
	wg.Add(1)
	go func() {
		defer wg.Done()
		for j := 0; j < 50; j++ {
			c.UpdateRules([]SamplingRule{*newRule("a", 1, 100, 0.5)})
			c.UpdateTargets(map[string]SamplingTargetDocument{"a": {RuleName: "a"}})
		}
	}()
	wg.Wait()

	assert.Equal(t, int64(2000), c.Snapshots()[0].RequestCount)
}

func TestRulesCacheEndToEnd(t *testing.T) {
	clock := newMockClock()
	spy := &spySampler{}
	c := newTestCache(clock, spy)

	api := newRule("api", 1, 1, 0.1)
	api.URLPath = "/api/*"
	c.UpdateRules([]SamplingRule{*api})

	items := attribute.String("http.target", "/api/items")

	res := c.ShouldSample(samplingParams(droppedTraceID, items))
	assert.Equal(t, sdktrace.RecordAndSample, res.Decision)

	c.mu.RLock()
	requests, sampled, borrowed := statisticsOf(c.appliers[0])
	c.mu.RUnlock()
	assert.Equal(t, []int64{1, 1, 1}, []int64{requests, sampled, borrowed})

	res = c.ShouldSample(samplingParams(droppedTraceID, items))
	assert.Equal(t, sdktrace.Drop, res.Decision)
	res = c.ShouldSample(samplingParams(sampledTraceID, items))
	assert.Equal(t, sdktrace.RecordAndSample, res.Decision)
	assert.Equal(t, 0, spy.count())

	c.ShouldSample(samplingParams(sampledTraceID, attribute.String("http.target", "/other")))
	assert.Equal(t, 1, spy.count())
}

func TestRulesCacheDescription(t *testing.T) {
	c := newTestCache(newMockClock(), &spySampler{})
	assert.Equal(t, "RulesCache{spy}", c.Description())
	assert.Equal(t, "client", c.ClientID())
}

package tracer

import (
	"context"

	"github.com/donetkit/contrib-xray/tracer/internal"
)

type (
	// SamplingRule is one centralized sampling rule.
	SamplingRule = internal.SamplingRule

	// SamplingTargetDocument is a remote update to the quota and rate of a rule.
	SamplingTargetDocument = internal.SamplingTargetDocument

	// SamplingStatisticsDocument reports the usage of one rule.
	SamplingStatisticsDocument = internal.SamplingStatisticsDocument

	// SamplingTargetsOutput is the answer to a statistics report.
	SamplingTargetsOutput = internal.SamplingTargetsOutput

	// UnprocessedStatistics is a statistics document the service rejected.
	UnprocessedStatistics = internal.UnprocessedStatistics
)

// Client is the control plane the RemoteSampler polls. The default talks to
// the X-Ray proxy over HTTP.
type Client interface {
	// FetchRules returns the complete current rule set.
	FetchRules(ctx context.Context) ([]SamplingRule, error)

	// FetchTargets reports statistics and returns updated targets.
	FetchTargets(ctx context.Context, statistics []SamplingStatisticsDocument) (*SamplingTargetsOutput, error)
}

// Compile time assertion that the X-Ray client implements Client.
var _ Client = (*internal.XrayClient)(nil)

package internal

import "time"

// SamplingRule is one centralized sampling rule as returned by the
// GetSamplingRules API.
// https://docs.aws.amazon.com/xray/latest/api/API_SamplingRule.html
type SamplingRule struct {
	RuleName string

	// Lower values are evaluated first.
	Priority int64

	// Fraction of matching requests sampled once the reservoir is exhausted.
	FixedRate float64

	// Matching requests sampled per second before FixedRate applies.
	ReservoirSize int64

	// Wildcard patterns.
	Host        string
	HTTPMethod  string
	ResourceARN string
	ServiceName string
	ServiceType string
	URLPath     string

	Version int64

	// Exact-match span attributes.
	Attributes map[string]string
}

// less orders rules by priority, then by name.
func (r *SamplingRule) less(o *SamplingRule) bool {
	if r.Priority == o.Priority {
		return r.RuleName < o.RuleName
	}
	return r.Priority < o.Priority
}

type samplingRuleSlice []SamplingRule

func (s samplingRuleSlice) Len() int           { return len(s) }
func (s samplingRuleSlice) Less(i, j int) bool { return s[i].less(&s[j]) }
func (s samplingRuleSlice) Swap(i, j int)      { s[i], s[j] = s[j], s[i] }

// SamplingTargetDocument is a remote update to the live quota and rate of one
// rule. Nil fields were absent from the response.
// https://docs.aws.amazon.com/xray/latest/api/API_SamplingTargetDocument.html
type SamplingTargetDocument struct {
	RuleName string `json:"RuleName"`

	FixedRate *float64 `json:"FixedRate"`

	// Requests per second assigned to this client.
	ReservoirQuota *int64 `json:"ReservoirQuota"`

	// Unix seconds at which ReservoirQuota expires.
	ReservoirQuotaTTL *float64 `json:"ReservoirQuotaTTL"`

	// Seconds to wait before reporting statistics for the rule again.
	Interval *int64 `json:"Interval"`
}

// SamplingStatisticsDocument reports the usage of one rule since the previous
// report.
type SamplingStatisticsDocument struct {
	ClientID     string
	RuleName     string
	RequestCount int64
	SampleCount  int64
	BorrowCount  int64

	// Unix milliseconds at which the snapshot was taken.
	Timestamp int64
}

// UnprocessedStatistics is a statistics document the remote service rejected.
type UnprocessedStatistics struct {
	RuleName  string
	ErrorCode string
	Message   string
}

// SamplingTargetsOutput is the decoded answer to a statistics report.
type SamplingTargetsOutput struct {
	// Targets keyed by rule name.
	Targets map[string]SamplingTargetDocument

	// Last time a rule was changed remotely; zero when unknown.
	LastRuleModification time.Time

	UnprocessedStatistics []UnprocessedStatistics
}

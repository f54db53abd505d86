package internal

import (
	"bytes"
	"context"
	"io"
	"math"
	"net/http"
	"net/url"
	"time"

	"github.com/goccy/go-json"
	"github.com/pkg/errors"
)

// maxErrorBody bounds how much of a failed response ends up in the error.
const maxErrorBody = 256

// XrayClient talks to the X-Ray sampling API, usually through the local
// collector proxy.
type XrayClient struct {
	// HTTP client for sending sampling requests to the collector.
	httpClient *http.Client

	// Resolved URL to call getSamplingRules API.
	samplingRulesURL string

	// Resolved URL to call getSamplingTargets API.
	samplingTargetsURL string
}

// NewXrayClient returns a client for the proxy listening at endpoint.
func NewXrayClient(endpoint url.URL) (*XrayClient, error) {
	if endpoint.Scheme == "" || endpoint.Host == "" {
		return nil, errors.Errorf("invalid xray endpoint %q", endpoint.String())
	}
	rulesURL := endpoint
	rulesURL.Path = "/GetSamplingRules"
	targetsURL := endpoint
	targetsURL.Path = "/SamplingTargets"

	return &XrayClient{
		httpClient:         &http.Client{Timeout: 2 * time.Second},
		samplingRulesURL:   rulesURL.String(),
		samplingTargetsURL: targetsURL.String(),
	}, nil
}

// ruleProperties is the base set of properties that define a sampling rule.
type ruleProperties struct {
	RuleName      string            `json:"RuleName"`
	ServiceType   string            `json:"ServiceType"`
	ResourceARN   string            `json:"ResourceARN"`
	Attributes    map[string]string `json:"Attributes"`
	ServiceName   string            `json:"ServiceName"`
	Host          string            `json:"Host"`
	HTTPMethod    string            `json:"HTTPMethod"`
	URLPath       string            `json:"URLPath"`
	ReservoirSize float64           `json:"ReservoirSize"`
	FixedRate     float64           `json:"FixedRate"`
	Priority      int64             `json:"Priority"`
	Version       int64             `json:"Version"`
}

// UnmarshalJSON fills the fields absent from the document with their
// defaults.
func (p *ruleProperties) UnmarshalJSON(data []byte) error {
	type plain ruleProperties
	v := plain{
		ServiceType: "*",
		ResourceARN: "*",
		ServiceName: "*",
		Host:        "*",
		HTTPMethod:  "*",
		URLPath:     "*",
		Version:     1,
	}
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	*p = ruleProperties(v)
	return nil
}

func (p *ruleProperties) toRule() SamplingRule {
	attributes := p.Attributes
	if attributes == nil {
		attributes = map[string]string{}
	}
	return SamplingRule{
		RuleName:      p.RuleName,
		Priority:      p.Priority,
		FixedRate:     p.FixedRate,
		ReservoirSize: int64(p.ReservoirSize),
		Host:          p.Host,
		HTTPMethod:    p.HTTPMethod,
		ResourceARN:   p.ResourceARN,
		ServiceName:   p.ServiceName,
		ServiceType:   p.ServiceType,
		URLPath:       p.URLPath,
		Version:       p.Version,
		Attributes:    attributes,
	}
}

type samplingRuleRecord struct {
	SamplingRule *ruleProperties `json:"SamplingRule"`
	CreatedAt    float64         `json:"CreatedAt"`
	ModifiedAt   float64         `json:"ModifiedAt"`
}

type getSamplingRulesInput struct {
	NextToken *string `json:"NextToken,omitempty"`
}

type getSamplingRulesOutput struct {
	NextToken           *string              `json:"NextToken"`
	SamplingRuleRecords []samplingRuleRecord `json:"SamplingRuleRecords"`
}

type samplingStatisticsDocument struct {
	ClientID     string  `json:"ClientID"`
	RuleName     string  `json:"RuleName"`
	RequestCount int64   `json:"RequestCount"`
	SampledCount int64   `json:"SampledCount"`
	BorrowCount  int64   `json:"BorrowCount"`
	Timestamp    float64 `json:"Timestamp"`
}

type getSamplingTargetsInput struct {
	SamplingStatisticsDocuments []samplingStatisticsDocument `json:"SamplingStatisticsDocuments"`
}

type unprocessedStatistic struct {
	RuleName  string `json:"RuleName"`
	ErrorCode string `json:"ErrorCode"`
	Message   string `json:"Message"`
}

type getSamplingTargetsOutput struct {
	LastRuleModification    *float64                 `json:"LastRuleModification"`
	SamplingTargetDocuments []SamplingTargetDocument `json:"SamplingTargetDocuments"`
	UnprocessedStatistics   []unprocessedStatistic   `json:"UnprocessedStatistics"`
}

// DecodeSamplingRules decodes a GetSamplingRules document. Records without a
// name or with an unsupported version are skipped.
func DecodeSamplingRules(data []byte) ([]SamplingRule, error) {
	out, err := decodeRulesPage(data)
	if err != nil {
		return nil, err
	}
	return out.rules(), nil
}

func decodeRulesPage(data []byte) (*getSamplingRulesOutput, error) {
	out := &getSamplingRulesOutput{}
	if err := json.Unmarshal(data, out); err != nil {
		return nil, errors.Wrap(err, "decode sampling rules error")
	}
	return out, nil
}

func (o *getSamplingRulesOutput) rules() []SamplingRule {
	rules := make([]SamplingRule, 0, len(o.SamplingRuleRecords))
	for _, record := range o.SamplingRuleRecords {
		p := record.SamplingRule
		if p == nil || p.RuleName == "" || p.Version != 1 {
			continue
		}
		rules = append(rules, p.toRule())
	}
	return rules
}

// FetchRules returns every sampling rule, following pagination.
func (c *XrayClient) FetchRules(ctx context.Context) ([]SamplingRule, error) {
	var (
		rules []SamplingRule
		input getSamplingRulesInput
	)
	for {
		body, err := json.Marshal(input)
		if err != nil {
			return nil, errors.Wrap(err, "encode sampling rules request error")
		}
		data, err := c.post(ctx, c.samplingRulesURL, body)
		if err != nil {
			return nil, errors.Wrap(err, "get sampling rules error")
		}
		out, err := decodeRulesPage(data)
		if err != nil {
			return nil, err
		}
		rules = append(rules, out.rules()...)

		if out.NextToken == nil || *out.NextToken == "" {
			return rules, nil
		}
		input.NextToken = out.NextToken
	}
}

// FetchTargets reports statistics and returns the targets computed for them.
func (c *XrayClient) FetchTargets(ctx context.Context, statistics []SamplingStatisticsDocument) (*SamplingTargetsOutput, error) {
	input := getSamplingTargetsInput{
		SamplingStatisticsDocuments: make([]samplingStatisticsDocument, 0, len(statistics)),
	}
	for _, s := range statistics {
		input.SamplingStatisticsDocuments = append(input.SamplingStatisticsDocuments, samplingStatisticsDocument{
			ClientID:     s.ClientID,
			RuleName:     s.RuleName,
			RequestCount: s.RequestCount,
			SampledCount: s.SampleCount,
			BorrowCount:  s.BorrowCount,
			Timestamp:    float64(s.Timestamp) / 1000,
		})
	}

	body, err := json.Marshal(input)
	if err != nil {
		return nil, errors.Wrap(err, "encode sampling targets request error")
	}
	data, err := c.post(ctx, c.samplingTargetsURL, body)
	if err != nil {
		return nil, errors.Wrap(err, "get sampling targets error")
	}

	out := getSamplingTargetsOutput{}
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, errors.Wrap(err, "decode sampling targets error")
	}
	return out.toOutput(), nil
}

func (o *getSamplingTargetsOutput) toOutput() *SamplingTargetsOutput {
	result := &SamplingTargetsOutput{
		Targets: make(map[string]SamplingTargetDocument, len(o.SamplingTargetDocuments)),
	}
	for _, t := range o.SamplingTargetDocuments {
		if t.RuleName == "" {
			continue
		}
		result.Targets[t.RuleName] = t
	}
	if o.LastRuleModification != nil && *o.LastRuleModification > 0 {
		sec, frac := math.Modf(*o.LastRuleModification)
		result.LastRuleModification = time.Unix(int64(sec), int64(frac*float64(time.Second)))
	}
	for _, u := range o.UnprocessedStatistics {
		result.UnprocessedStatistics = append(result.UnprocessedStatistics, UnprocessedStatistics(u))
	}
	return result
}

func (c *XrayClient) post(ctx context.Context, reqURL string, body []byte) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, reqURL, bytes.NewBuffer(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		// If the context has been canceled, the context's error is probably more useful.
		select {
		case <-ctx.Done():
			err = ctx.Err()
		default:
		}
		return nil, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errors.Wrap(err, "read response body error")
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		if len(data) > maxErrorBody {
			data = data[:maxErrorBody]
		}
		return nil, errors.Errorf("unexpected status code %d: %s", resp.StatusCode, data)
	}
	return data, nil
}

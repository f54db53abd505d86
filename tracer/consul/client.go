// Package consul serves sampling rules from the Consul key/value store, for
// deployments without an X-Ray proxy.
package consul

import (
	"context"
	"path"

	"github.com/donetkit/contrib-log/glog"
	"github.com/donetkit/contrib-xray/tracer/internal"
	"github.com/goccy/go-json"
	consulApi "github.com/hashicorp/consul/api"
	"github.com/pkg/errors"
)

// RulesClient reads the rule set from a single key and publishes statistics
// under StatisticsPrefix/<clientID>/<ruleName>. It never returns targets, so
// every rule keeps sampling with its own reservoir.
type RulesClient struct {
	kv      *consulApi.KV
	options *Config
}

type statisticsRecord struct {
	ClientID     string  `json:"ClientID"`
	RuleName     string  `json:"RuleName"`
	RequestCount int64   `json:"RequestCount"`
	SampledCount int64   `json:"SampledCount"`
	BorrowCount  int64   `json:"BorrowCount"`
	Timestamp    float64 `json:"Timestamp"`
}

// New returns a RulesClient for the consul agent at Config.Address.
func New(opts ...Option) (*RulesClient, error) {
	cfg := &Config{
		Address:          "127.0.0.1:8500",
		Key:              "xray/sampling-rules",
		StatisticsPrefix: "xray/sampling-statistics",
	}
	for _, opt := range opts {
		opt(cfg)
	}
	if cfg.Logger == nil {
		cfg.Logger = glog.New().WithField("ConsulRules", "ConsulRules")
	}
	if cfg.Key == "" {
		return nil, errors.New("sampling rules key must not be empty")
	}

	consulCli, err := consulApi.NewClient(&consulApi.Config{
		Address:    cfg.Address,
		Token:      cfg.Token,
		Datacenter: cfg.Datacenter,
	})
	if err != nil {
		return nil, errors.Wrap(err, "create consul client error")
	}
	return &RulesClient{
		kv:      consulCli.KV(),
		options: cfg,
	}, nil
}

// FetchRules decodes the rules document stored under the configured key.
func (c *RulesClient) FetchRules(ctx context.Context) ([]internal.SamplingRule, error) {
	pair, _, err := c.kv.Get(c.options.Key, (&consulApi.QueryOptions{}).WithContext(ctx))
	if err != nil {
		return nil, errors.Wrapf(err, "get sampling rules error[key=%s]", c.options.Key)
	}
	if pair == nil {
		return nil, errors.Errorf("sampling rules not found[key=%s]", c.options.Key)
	}
	return internal.DecodeSamplingRules(pair.Value)
}

// FetchTargets publishes the statistics and returns no targets.
func (c *RulesClient) FetchTargets(ctx context.Context, statistics []internal.SamplingStatisticsDocument) (*internal.SamplingTargetsOutput, error) {
	out := &internal.SamplingTargetsOutput{Targets: map[string]internal.SamplingTargetDocument{}}
	if c.options.StatisticsPrefix == "" {
		return out, nil
	}

	wo := (&consulApi.WriteOptions{}).WithContext(ctx)
	for _, s := range statistics {
		value, err := json.Marshal(statisticsRecord{
			ClientID:     s.ClientID,
			RuleName:     s.RuleName,
			RequestCount: s.RequestCount,
			SampledCount: s.SampleCount,
			BorrowCount:  s.BorrowCount,
			Timestamp:    float64(s.Timestamp) / 1000,
		})
		if err != nil {
			return nil, errors.Wrap(err, "encode sampling statistics error")
		}
		key := path.Join(c.options.StatisticsPrefix, s.ClientID, s.RuleName)
		if _, err := c.kv.Put(&consulApi.KVPair{Key: key, Value: value}, wo); err != nil {
			return nil, errors.Wrapf(err, "put sampling statistics error[key=%s]", key)
		}
	}
	c.options.Logger.Debugf("published %d sampling statistics documents", len(statistics))
	return out, nil
}

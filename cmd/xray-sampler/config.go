package main

import (
	"net/url"
	"os"
	"time"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

const endpointEnv = "XRAY_SAMPLER_ENDPOINT"

// Config is the on-disk configuration of the sampler host.
type Config struct {
	ServiceName          string        `yaml:"service_name"`
	Endpoint             string        `yaml:"endpoint"`
	RulesPollingInterval time.Duration `yaml:"rules_polling_interval"`
	ListenAddress        string        `yaml:"listen_address"`
	Consul               *ConsulConfig `yaml:"consul"`
}

// ConsulConfig switches rule fetching from the X-Ray proxy to Consul KV.
type ConsulConfig struct {
	Address          string `yaml:"address"`
	Key              string `yaml:"key"`
	StatisticsPrefix string `yaml:"statistics_prefix"`
}

func defaultConfig() *Config {
	return &Config{
		ServiceName:          "xray-sampler",
		Endpoint:             "http://127.0.0.1:2000",
		RulesPollingInterval: 60 * time.Second,
		ListenAddress:        ":7777",
	}
}

// LoadConfig reads path over the defaults. An empty path yields the defaults.
// XRAY_SAMPLER_ENDPOINT overrides the endpoint from the file.
func LoadConfig(path string) (*Config, error) {
	cfg := defaultConfig()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, errors.Wrapf(err, "read config error[path=%s]", path)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, errors.Wrapf(err, "parse config error[path=%s]", path)
		}
	}
	if v := os.Getenv(endpointEnv); v != "" {
		cfg.Endpoint = v
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if c.Consul == nil {
		if _, err := c.endpointURL(); err != nil {
			return err
		}
	}
	if c.RulesPollingInterval < 0 {
		return errors.Errorf("rules_polling_interval must not be negative, got %s", c.RulesPollingInterval)
	}
	return nil
}

func (c *Config) endpointURL() (*url.URL, error) {
	u, err := url.Parse(c.Endpoint)
	if err != nil {
		return nil, errors.Wrapf(err, "invalid endpoint %q", c.Endpoint)
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, errors.Errorf("invalid endpoint %q", c.Endpoint)
	}
	return u, nil
}

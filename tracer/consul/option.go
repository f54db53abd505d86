package consul

import (
	"github.com/donetkit/contrib-log/glog"
)

// Config for the consul rules client
type Config struct {
	// Address of the consul agent, host:port or a URL.
	Address    string
	Token      string
	Datacenter string

	// Key holding the GetSamplingRules document.
	Key string

	// StatisticsPrefix is where statistics are published. Empty disables
	// publishing.
	StatisticsPrefix string

	Logger glog.ILoggerEntry
}

// Option for consul rules client
type Option func(*Config)

// WithAddress set address function
func WithAddress(address string) Option {
	return func(c *Config) {
		c.Address = address
	}
}

// WithToken set ACL token function
func WithToken(token string) Option {
	return func(c *Config) {
		c.Token = token
	}
}

// WithDatacenter set datacenter function
func WithDatacenter(datacenter string) Option {
	return func(c *Config) {
		c.Datacenter = datacenter
	}
}

// WithKey set rules key function
func WithKey(key string) Option {
	return func(c *Config) {
		c.Key = key
	}
}

// WithStatisticsPrefix set statistics prefix function
func WithStatisticsPrefix(prefix string) Option {
	return func(c *Config) {
		c.StatisticsPrefix = prefix
	}
}

// WithLogger set logger function
func WithLogger(logger glog.ILogger) Option {
	return func(c *Config) {
		c.Logger = logger.WithField("ConsulRules", "ConsulRules")
	}
}

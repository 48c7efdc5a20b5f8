package jobstore

import (
	"fmt"
	"time"
)

// Config holds job store configuration.
type Config struct {
	// TTL is the retention window for job records. Expired jobs read as
	// not found.
	TTL time.Duration `yaml:"ttl" mapstructure:"ttl"`
}

// ApplyDefaults sets the default retention window.
func (c *Config) ApplyDefaults() {
	if c.TTL == 0 {
		c.TTL = DefaultTTL
	}
}

// Validate checks the configuration for invalid values.
func (c *Config) Validate() error {
	if c.TTL < 0 {
		return fmt.Errorf("jobstore.ttl must be non-negative (got: %s)", c.TTL)
	}
	return nil
}

package kadence

import (
	"fmt"
	"time"

	"gopkg.in/yaml.v3"
)

// Config defines node configuration. Zero values are replaced with the
// protocol defaults when the node is constructed.
type Config struct {
	// NodeID is the hex identity; auto-generated when empty.
	NodeID string `yaml:"node_id"`

	// Address is the opaque transport address announced in the local
	// contact.
	Address string `yaml:"address"`

	// Protocol settings.
	BucketSize int `yaml:"bucket_size"` // K
	Alpha      int `yaml:"alpha"`       // lookup parallelism

	// Maintenance intervals.
	RefreshInterval   time.Duration `yaml:"refresh_interval"`
	ReplicateInterval time.Duration `yaml:"replicate_interval"`
	RepublishInterval time.Duration `yaml:"republish_interval"`
	ExpireInterval    time.Duration `yaml:"expire_interval"`

	// MaxJitter is the upper bound of the random extra delay applied to
	// every timer firing. Negative disables the jitter entirely.
	MaxJitter time.Duration `yaml:"max_jitter"`

	// PingCacheTTL is how long a successful head probe shields a bucket
	// head from re-probing.
	PingCacheTTL time.Duration `yaml:"ping_cache_ttl"`

	// MaxUnimprovedRefreshes stops a refresh pass after this many
	// consecutive lookups that discovered nothing new.
	MaxUnimprovedRefreshes int `yaml:"max_unimproved_refreshes"`
}

// DefaultConfig returns a configuration with every protocol default set.
func DefaultConfig() Config {
	cfg := Config{}
	cfg.normalize()
	return cfg
}

// ConfigFromYAML parses a YAML document into a Config.
func ConfigFromYAML(raw []byte) (Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return Config{}, fmt.Errorf("parsing config: %w", err)
	}
	return cfg, nil
}

func (c *Config) normalize() {
	if c.BucketSize <= 0 {
		c.BucketSize = K
	}
	if c.Alpha <= 0 {
		c.Alpha = Alpha
	}
	if c.RefreshInterval <= 0 {
		c.RefreshInterval = DefaultRefreshInterval
	}
	if c.ReplicateInterval <= 0 {
		c.ReplicateInterval = DefaultReplicateInterval
	}
	if c.RepublishInterval <= 0 {
		c.RepublishInterval = DefaultRepublishInterval
	}
	if c.ExpireInterval <= 0 {
		c.ExpireInterval = DefaultExpireInterval
	}
	if c.MaxJitter < 0 {
		c.MaxJitter = 0
	} else if c.MaxJitter == 0 {
		c.MaxJitter = DefaultMaxJitter
	}
	if c.PingCacheTTL <= 0 {
		c.PingCacheTTL = DefaultPingCacheTTL
	}
	if c.MaxUnimprovedRefreshes <= 0 {
		c.MaxUnimprovedRefreshes = DefaultMaxUnimprovedRefreshes
	}
}

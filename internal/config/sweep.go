package config

import "time"

// SweepConfig defines the background removal of expired objects.
// Only the memory backend needs it; mongo relies on its TTL index.
type SweepConfig struct {
	Enabled         bool          `mapstructure:"enabled"`
	Interval        time.Duration `mapstructure:"interval"`          // how often to run the background check
	SamplesPerCheck int           `mapstructure:"samples_per_check"` // how many keys to check per shard and loop
	MatchThreshold  float64       `mapstructure:"match_threshold"`   // 0.0-1.0. if expired/scanned > threshold, repeat immediately
}

func DefaultSweepConfig() SweepConfig {
	return SweepConfig{
		Enabled:         true,
		Interval:        100 * time.Millisecond,
		SamplesPerCheck: 20,
		MatchThreshold:  0.25,
	}
}

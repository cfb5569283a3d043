package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Store backends
const (
	BackendMemory = "memory"
	BackendMongo  = "mongo"
)

// Config represents the root configuration structure for the application
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Store    StoreConfig    `mapstructure:"store"`
	Cache    CacheConfig    `mapstructure:"cache"`
	Sweep    SweepConfig    `mapstructure:"sweep"`
	Log      LogConfig      `mapstructure:"log"`
	Metrics  MetricsConfig  `mapstructure:"metrics"`
	Snapshot SnapshotConfig `mapstructure:"snapshot"`
}

// ServerConfig holds the network settings
type ServerConfig struct {
	Host string `mapstructure:"host"`
	Port string `mapstructure:"port"`
}

// StoreConfig selects and configures the collection objects are kept in
type StoreConfig struct {
	Backend string      `mapstructure:"backend"` // memory, mongo
	Shards  uint        `mapstructure:"shards"`  // memory backend only
	Mongo   MongoConfig `mapstructure:"mongo"`
}

// MongoConfig locates the objects collection of the mongo backend
type MongoConfig struct {
	URI            string        `mapstructure:"uri"`
	Database       string        `mapstructure:"database"`
	Collection     string        `mapstructure:"collection"`
	ConnectTimeout time.Duration `mapstructure:"connect_timeout"`
}

// CacheConfig sizes the in-process object cache
type CacheConfig struct {
	Enabled bool `mapstructure:"enabled"`
	Size    int  `mapstructure:"size"`
}

// LogConfig defines logging verbosity and output style
type LogConfig struct {
	Level  string `mapstructure:"level"`  // debug, info, warn, error
	Format string `mapstructure:"format"` // json, console
}

// MetricsConfig exposes Prometheus metrics over HTTP
type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Addr    string `mapstructure:"addr"`
}

// SnapshotConfig defines periodic snapshots of the memory backend
type SnapshotConfig struct {
	Enabled  bool          `mapstructure:"enabled"`
	Filename string        `mapstructure:"filename"`
	Interval time.Duration `mapstructure:"interval"` // zero disables the periodic save
}

// Load reads the configuration from a file and overrides it with environment variables
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(path)
	v.AddConfigPath(".")

	v.SetEnvPrefix("OBJECTDB")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var configFileNotFoundError viper.ConfigFileNotFoundError
		if !errors.As(err, &configFileNotFoundError) {
			return nil, err
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate rejects settings the server cannot start with
func (c *Config) Validate() error {
	switch c.Store.Backend {
	case BackendMemory:
	case BackendMongo:
		if c.Store.Mongo.URI == "" {
			return errors.New("store.mongo.uri is required for the mongo backend")
		}
	default:
		return fmt.Errorf("unknown store.backend %q", c.Store.Backend)
	}

	if c.Cache.Enabled && c.Cache.Size <= 0 {
		return fmt.Errorf("cache.size must be positive, got %d", c.Cache.Size)
	}

	if c.Sweep.Enabled {
		if c.Sweep.Interval <= 0 {
			return errors.New("sweep.interval must be positive")
		}
		if c.Sweep.MatchThreshold < 0 || c.Sweep.MatchThreshold > 1 {
			return fmt.Errorf("sweep.match_threshold must be within [0, 1], got %v", c.Sweep.MatchThreshold)
		}
	}

	if c.Snapshot.Enabled && c.Snapshot.Filename == "" {
		return errors.New("snapshot.filename is required")
	}

	return nil
}

// setDefaults populates viper with fallback values if they are not provided via file or ENV
func setDefaults(v *viper.Viper) {
	// Server
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", "6380")

	// Store
	v.SetDefault("store.backend", BackendMemory)
	v.SetDefault("store.shards", 32)
	v.SetDefault("store.mongo.uri", "")
	v.SetDefault("store.mongo.database", "objectdb")
	v.SetDefault("store.mongo.collection", "objects")
	v.SetDefault("store.mongo.connect_timeout", "10s")

	// Cache
	v.SetDefault("cache.enabled", true)
	v.SetDefault("cache.size", 40000)

	// Sweep
	sweep := DefaultSweepConfig()
	v.SetDefault("sweep.enabled", sweep.Enabled)
	v.SetDefault("sweep.interval", sweep.Interval)
	v.SetDefault("sweep.samples_per_check", sweep.SamplesPerCheck)
	v.SetDefault("sweep.match_threshold", sweep.MatchThreshold)

	// Logger
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	// Metrics
	v.SetDefault("metrics.enabled", true)
	v.SetDefault("metrics.addr", ":9121")

	// Snapshot
	v.SetDefault("snapshot.enabled", true)
	v.SetDefault("snapshot.filename", "objects.snapshot")
	v.SetDefault("snapshot.interval", "5m")
}

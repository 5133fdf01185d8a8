// Package config provides viper-backed configuration loading for the
// semgate CLI and its in-process pipeline.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/viper"
)

// Config holds the application configuration.
type Config struct {
	Guards   GuardsConfig   `mapstructure:"guards"`
	Cache    CacheConfig    `mapstructure:"cache"`
	Sources  []SourceConfig `mapstructure:"sources"`
	Logging  LoggingConfig  `mapstructure:"logging"`
	Bootstrap string        `mapstructure:"bootstrap"`
}

// GuardsConfig holds the request-shape limits the pipeline's first step
// enforces before any compilation work begins.
type GuardsConfig struct {
	DimensionsMax  int           `mapstructure:"dimensionsMax"`
	MetricsMax     int           `mapstructure:"metricsMax"`
	FilterDepthMax int           `mapstructure:"filterDepthMax"`
	RowMax         int           `mapstructure:"rowMax"`
	GlobalTimeout  time.Duration `mapstructure:"globalTimeout"`
	HealthTimeout  time.Duration `mapstructure:"healthTimeout"`
	CacheValueMax  int           `mapstructure:"cacheValueMax"`
}

// CacheConfig selects and tunes the C5 cache backend.
type CacheConfig struct {
	Backend      string        `mapstructure:"backend"` // "redis" or "in-process"
	RedisAddr    string        `mapstructure:"redisAddr"`
	LockTTL      time.Duration `mapstructure:"lockTTL"`
	WaitTimeout  time.Duration `mapstructure:"waitTimeout"`
	PollInterval time.Duration `mapstructure:"pollInterval"`
	FallbackPolicy string      `mapstructure:"fallbackPolicy"` // "promote" or "fail"
}

// SourceConfig is one entry of the declarative source list the bootstrap
// loader feeds into the adapter registry.
type SourceConfig struct {
	SourceID string            `mapstructure:"sourceId"`
	Engine   string            `mapstructure:"engine"`
	DSN      string            `mapstructure:"dsn"`
	Project  string            `mapstructure:"project"`
	Dataset  string            `mapstructure:"dataset"`
	Extra    map[string]string `mapstructure:"extra"`
}

// LoggingConfig selects the observability sink.
type LoggingConfig struct {
	Sink   string `mapstructure:"sink"` // "json" or "noop"; any other value logs JSON to stdout
	Target string `mapstructure:"target"`
}

// DefaultConfig returns a configuration with sane defaults for local
// development against an in-memory DuckDB source.
func DefaultConfig() *Config {
	return &Config{
		Guards: GuardsConfig{
			DimensionsMax:  20,
			MetricsMax:     20,
			FilterDepthMax: 8,
			RowMax:         100_000,
			GlobalTimeout:  30 * time.Second,
			HealthTimeout:  2 * time.Second,
			CacheValueMax:  8 << 20,
		},
		Cache: CacheConfig{
			Backend:        "in-process",
			LockTTL:        30 * time.Second,
			WaitTimeout:    10 * time.Second,
			PollInterval:   50 * time.Millisecond,
			FallbackPolicy: "promote",
		},
		Sources: []SourceConfig{
			{SourceID: "local", Engine: "duckdb", DSN: ":memory:"},
		},
		Logging: LoggingConfig{Sink: "json", Target: "stdout"},
	}
}

// Load loads configuration from a file (if given, else default search
// paths) and environment variables prefixed SEMGATE_.
func Load(configPath string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		home, err := os.UserHomeDir()
		if err == nil {
			v.AddConfigPath(filepath.Join(home, ".semgate"))
		}
		v.AddConfigPath(".")
		v.SetConfigName("config")
		v.SetConfigType("yaml")
	}

	v.SetEnvPrefix("SEMGATE")
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config: %w", err)
		}
	}

	cfg := DefaultConfig()
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("error parsing config: %w", err)
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	d := DefaultConfig()
	v.SetDefault("guards.dimensionsMax", d.Guards.DimensionsMax)
	v.SetDefault("guards.metricsMax", d.Guards.MetricsMax)
	v.SetDefault("guards.filterDepthMax", d.Guards.FilterDepthMax)
	v.SetDefault("guards.rowMax", d.Guards.RowMax)
	v.SetDefault("guards.globalTimeout", d.Guards.GlobalTimeout)
	v.SetDefault("guards.healthTimeout", d.Guards.HealthTimeout)
	v.SetDefault("guards.cacheValueMax", d.Guards.CacheValueMax)
	v.SetDefault("cache.backend", d.Cache.Backend)
	v.SetDefault("cache.lockTTL", d.Cache.LockTTL)
	v.SetDefault("cache.waitTimeout", d.Cache.WaitTimeout)
	v.SetDefault("cache.pollInterval", d.Cache.PollInterval)
	v.SetDefault("cache.fallbackPolicy", d.Cache.FallbackPolicy)
	v.SetDefault("logging.sink", d.Logging.Sink)
	v.SetDefault("logging.target", d.Logging.Target)
}

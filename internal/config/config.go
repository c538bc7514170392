// Package config loads and validates harvester configuration via Viper.
package config

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"
)

var validWriteModes = map[string]struct{}{
	"csv":      {},
	"json":     {},
	"postgres": {},
	"mongo":    {},
}

// Config captures all run configuration loaded via Viper.
type Config struct {
	// Targets lists account ids to harvest. Mutually exclusive with
	// TargetFile, which doubles as the resume ledger.
	Targets    []string `mapstructure:"targets"`
	TargetFile string   `mapstructure:"target_file"`

	// SinceDate is either an absolute yyyy-mm-dd date or an integer "N
	// days ago".
	SinceDate string `mapstructure:"since_date"`

	// Filter excludes retweets from the harvest.
	Filter bool `mapstructure:"filter"`

	Cookie     string   `mapstructure:"cookie"`
	OutputDir  string   `mapstructure:"output_dir"`
	WriteModes []string `mapstructure:"write_modes"`

	Download DownloadConfig `mapstructure:"download"`
	Feed     FeedConfig     `mapstructure:"feed"`
	Postgres PostgresConfig `mapstructure:"postgres"`
	Mongo    MongoConfig    `mapstructure:"mongo"`
	Logging  LoggingConfig  `mapstructure:"logging"`
	Metrics  MetricsConfig  `mapstructure:"metrics"`
}

// DownloadConfig toggles media downloads per post side and media type.
type DownloadConfig struct {
	OriginalImages bool `mapstructure:"original_images"`
	OriginalVideos bool `mapstructure:"original_videos"`
	RetweetImages  bool `mapstructure:"retweet_images"`
	RetweetVideos  bool `mapstructure:"retweet_videos"`
}

// FeedConfig controls the upstream API client.
type FeedConfig struct {
	BaseURL           string  `mapstructure:"base_url"`
	UserAgent         string  `mapstructure:"user_agent"`
	TimeoutSeconds    int     `mapstructure:"timeout_seconds"`
	RequestsPerSecond float64 `mapstructure:"requests_per_second"`
	Burst             int     `mapstructure:"burst"`
}

// PostgresConfig controls the relational sink.
type PostgresConfig struct {
	DSN      string `mapstructure:"dsn"`
	MaxConns int32  `mapstructure:"max_conns"`
	MinConns int32  `mapstructure:"min_conns"`
}

// MongoConfig controls the document-store sink.
type MongoConfig struct {
	URI      string `mapstructure:"uri"`
	Database string `mapstructure:"database"`
}

// LoggingConfig toggles zap development features. Level overrides the
// mode's default verbosity when set (debug, info, warn, error).
type LoggingConfig struct {
	Development bool   `mapstructure:"development"`
	Level       string `mapstructure:"level"`
}

// MetricsConfig exposes /metrics when Addr is set.
type MetricsConfig struct {
	Addr string `mapstructure:"addr"`
}

// Load builds a Config from disk/environment.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("WEIBO")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("since_date", "30")
	v.SetDefault("filter", false)
	v.SetDefault("output_dir", "weibo-objectdata")
	v.SetDefault("write_modes", []string{"csv"})
	v.SetDefault("feed.timeout_seconds", 15)
	v.SetDefault("feed.requests_per_second", 2)
	v.SetDefault("feed.burst", 5)
	v.SetDefault("logging.development", true)
	v.SetDefault("mongo.database", "weibo")
}

// Validate enforces required values before any network activity.
func (c Config) Validate() error {
	if len(c.Targets) == 0 && c.TargetFile == "" {
		return fmt.Errorf("either targets or target_file must be set")
	}
	if len(c.Targets) > 0 && c.TargetFile != "" {
		return fmt.Errorf("targets and target_file are mutually exclusive")
	}
	if _, err := sinceDate(c.SinceDate, time.Now()); err != nil {
		return err
	}
	if len(c.WriteModes) == 0 {
		return fmt.Errorf("write_modes must not be empty")
	}
	for _, mode := range c.WriteModes {
		if _, ok := validWriteModes[mode]; !ok {
			return fmt.Errorf("unknown write mode %q", mode)
		}
	}
	if c.HasWriteMode("postgres") && c.Postgres.DSN == "" {
		return fmt.Errorf("postgres.dsn must be set when the postgres sink is enabled")
	}
	if c.HasWriteMode("mongo") && c.Mongo.URI == "" {
		return fmt.Errorf("mongo.uri must be set when the mongo sink is enabled")
	}
	if c.Feed.TimeoutSeconds <= 0 {
		return fmt.Errorf("feed.timeout_seconds must be > 0")
	}
	return nil
}

// HasWriteMode reports whether mode is configured.
func (c Config) HasWriteMode(mode string) bool {
	for _, m := range c.WriteModes {
		if m == mode {
			return true
		}
	}
	return false
}

// Since resolves the configured since-date relative to now.
func (c Config) Since(now time.Time) (time.Time, error) {
	return sinceDate(c.SinceDate, now)
}

// FeedTimeout converts the timeout config into a duration.
func (c Config) FeedTimeout() time.Duration {
	return time.Duration(c.Feed.TimeoutSeconds) * time.Second
}

func sinceDate(raw string, now time.Time) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, fmt.Errorf("since_date must be set")
	}
	if days, err := strconv.Atoi(raw); err == nil {
		if days < 0 {
			return time.Time{}, fmt.Errorf("since_date days must be >= 0")
		}
		t := now.UTC().AddDate(0, 0, -days)
		return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC), nil
	}
	t, err := time.Parse("2006-01-02", raw)
	if err != nil {
		return time.Time{}, fmt.Errorf("since_date must be yyyy-mm-dd or an integer day count")
	}
	return t, nil
}

// Package config provides configuration loading from YAML files.
package config

import (
	"os"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"github.com/samber/lo"
	"gopkg.in/yaml.v3"
)

// Config represents the application configuration.
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Source   SourceConfig   `yaml:"source"`
	Playback PlaybackConfig `yaml:"playback"`
	Media    MediaConfig    `yaml:"media"`
}

// ServerConfig represents server configuration.
type ServerConfig struct {
	Addr  string `yaml:"addr" default:":8080"`
	Token string `yaml:"token"` // Required for command RPCs when set
}

// SourceConfig selects the track fetch service.
type SourceConfig struct {
	Type     string         `yaml:"type" validate:"required,oneof=http file"`
	Settings map[string]any `yaml:"settings"`
}

// PlaybackConfig represents playback control configuration.
type PlaybackConfig struct {
	SampleIntervalMs   int  `yaml:"sample_interval_ms" default:"200" validate:"gte=50,lte=5000"`
	ResubscribeDelayMs *int `yaml:"resubscribe_delay_ms" default:"1000" validate:"omitempty,gte=0,lte=10000"` // 0 disables the delay
	FetchTimeoutMs     int  `yaml:"fetch_timeout_ms" default:"15000" validate:"gte=1000,lte=120000"`
	Autoplay           bool `yaml:"autoplay"`
	QueueSize          int  `yaml:"queue_size" default:"64" validate:"gte=1,lte=4096"`
}

// MediaConfig represents audio decoding and output configuration.
type MediaConfig struct {
	SampleRate      int `yaml:"sample_rate" default:"44100" validate:"oneof=22050 44100 48000"`
	BufferMs        int `yaml:"buffer_ms" default:"100" validate:"gte=10,lte=1000"`
	ResampleQuality int `yaml:"resample_quality" default:"4" validate:"gte=1,lte=6"`
	HTTPTimeoutMs   int `yaml:"http_timeout_ms" default:"30000" validate:"gte=0"`
}

// Load loads configuration from a YAML file.
// Environment variables take precedence over file values for sensitive fields.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "failed to read config file")
	}
	return Parse(data)
}

// Parse parses configuration from YAML bytes.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, errors.Wrap(err, "failed to parse config file")
	}

	// Override with environment variables
	cfg.overrideFromEnv()

	// Set defaults using creasty/defaults
	if err := defaults.Set(&cfg); err != nil {
		return nil, errors.Wrap(err, "failed to set defaults")
	}

	// Validate configuration
	if err := cfg.Validate(); err != nil {
		return nil, errors.Wrap(err, "config validation failed")
	}

	return &cfg, nil
}

// overrideFromEnv overrides config values with environment variables.
func (c *Config) overrideFromEnv() {
	if v := os.Getenv("LYRICBOX_API_TOKEN"); v != "" {
		c.Server.Token = v
	}
	if v := os.Getenv("LYRICBOX_SOURCE_URL"); v != "" && c.Source.Type == "http" {
		if c.Source.Settings == nil {
			c.Source.Settings = make(map[string]any)
		}
		c.Source.Settings["base_url"] = v
	}
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	validate := validator.New()
	if err := validate.Struct(c); err != nil {
		return errors.Wrap(err, "struct validation failed")
	}
	return nil
}

// SampleInterval returns the playback progress sampling cadence.
func (p PlaybackConfig) SampleInterval() time.Duration {
	return time.Duration(p.SampleIntervalMs) * time.Millisecond
}

// ResubscribeDelay returns the delay before the first honored sample after a drag.
func (p PlaybackConfig) ResubscribeDelay() time.Duration {
	return time.Duration(lo.FromPtr(p.ResubscribeDelayMs)) * time.Millisecond
}

// FetchTimeout returns the upper bound for one track fetch.
func (p PlaybackConfig) FetchTimeout() time.Duration {
	return time.Duration(p.FetchTimeoutMs) * time.Millisecond
}

// Buffer returns the output buffer length.
func (m MediaConfig) Buffer() time.Duration {
	return time.Duration(m.BufferMs) * time.Millisecond
}

// HTTPTimeout returns the media download timeout.
func (m MediaConfig) HTTPTimeout() time.Duration {
	return time.Duration(m.HTTPTimeoutMs) * time.Millisecond
}

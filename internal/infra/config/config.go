// Package config provides configuration loading from YAML files.
package config

import (
	"os"
	"strconv"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	zlog "github.com/rs/zerolog/log"
	"gopkg.in/yaml.v3"
)

// Config represents the application configuration.
type Config struct {
	Player  PlayerConfig            `yaml:"player"`
	Output  OutputConfig            `yaml:"output"`
	Filters map[string]FilterConfig `yaml:"filters"`
	Log     LogConfig               `yaml:"log"`
}

// PlayerConfig represents playback engine configuration.
type PlayerConfig struct {
	InitialVolume  *float64 `yaml:"initial_volume" default:"1.0" validate:"required,gte=0,lte=1"`
	SeekStepSec    int      `yaml:"seek_step_sec" default:"5" validate:"gte=1,lte=600"`
	TickIntervalMs int      `yaml:"tick_interval_ms" default:"5" validate:"gte=1,lte=1000"`
	CommandBuffer  int      `yaml:"command_buffer" default:"64" validate:"gte=1"`
	EventBuffer    int      `yaml:"event_buffer" default:"32" validate:"gte=1"`
	StopTimeoutMs  int      `yaml:"stop_timeout_ms" default:"2000" validate:"gte=10,lte=60000"`
}

// Volume returns the initial volume.
func (c PlayerConfig) Volume() float64 {
	if c.InitialVolume == nil {
		return 1.0
	}
	return *c.InitialVolume
}

// TickInterval returns the output hook interval.
func (c PlayerConfig) TickInterval() time.Duration {
	return time.Duration(c.TickIntervalMs) * time.Millisecond
}

// StopTimeout returns how long to wait for the output to acknowledge a stop.
func (c PlayerConfig) StopTimeout() time.Duration {
	return time.Duration(c.StopTimeoutMs) * time.Millisecond
}

// OutputConfig selects the audio output. Settings are decoded by the output itself.
type OutputConfig struct {
	Type     string         `yaml:"type" default:"speaker" validate:"oneof=speaker null"`
	Settings map[string]any `yaml:"settings,omitempty"`
}

// FilterConfig represents a filter's configuration.
type FilterConfig struct {
	Enabled  bool           `yaml:"enabled"`
	Settings map[string]any `yaml:"settings,omitempty"`
}

// LogConfig represents logging configuration.
type LogConfig struct {
	Level  string `yaml:"level" default:"info" validate:"oneof=debug info warn warning error"`
	Output string `yaml:"output" default:"stderr" validate:"oneof=stdout stderr file"`
	File   string `yaml:"file" validate:"required_if=Output file"`
}

// Load loads configuration from a YAML file.
// Environment variables take precedence over file values.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "failed to read config file")
	}
	return parse(data)
}

// LoadDefault loads path if it exists and falls back to the defaults otherwise.
func LoadDefault(path string) (*Config, error) {
	if path != "" {
		if _, err := os.Stat(path); err == nil {
			return Load(path)
		}
		zlog.Debug().Msgf("config file %s not found, using defaults", path)
	}
	return parse(nil)
}

func parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, errors.Wrap(err, "failed to parse config file")
	}

	// Override with environment variables
	if err := cfg.overrideFromEnv(); err != nil {
		return nil, err
	}

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
func (c *Config) overrideFromEnv() error {
	if v := os.Getenv("CUEBOX_OUTPUT"); v != "" {
		c.Output.Type = v
	}
	if v := os.Getenv("CUEBOX_LOG_LEVEL"); v != "" {
		c.Log.Level = v
	}
	if v := os.Getenv("CUEBOX_INITIAL_VOLUME"); v != "" {
		volume, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return errors.Wrapf(err, "invalid CUEBOX_INITIAL_VOLUME %q", v)
		}
		c.Player.InitialVolume = &volume
	}
	return nil
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	validate := validator.New()
	if err := validate.Struct(c); err != nil {
		return errors.Wrap(err, "struct validation failed")
	}
	return nil
}

// IsFilterEnabled checks if a filter is enabled.
func (c *Config) IsFilterEnabled(filterName string) bool {
	if f, ok := c.Filters[filterName]; ok {
		return f.Enabled
	}
	return false
}

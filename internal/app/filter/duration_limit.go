package filter

import (
	"context"
	"time"

	"github.com/cockroachdb/errors"
	zlog "github.com/rs/zerolog/log"
)

const DurationLimitFilterName = "duration_limit_filter"

// DurationLimitConfig represents the configuration for DurationLimitFilter.
// Zero means no limit.
type DurationLimitConfig struct {
	MinDurationSec float64 `yaml:"min_duration_sec" mapstructure:"min_duration_sec" validate:"gte=0"`
	MaxDurationSec float64 `yaml:"max_duration_sec" mapstructure:"max_duration_sec" validate:"gte=0"`
}

// DurationLimitFilter checks if a song's length is within allowed limits.
type DurationLimitFilter struct {
	config *DurationLimitConfig
}

// NewDurationLimitFilter creates a new duration limit filter.
func NewDurationLimitFilter() *DurationLimitFilter {
	return &DurationLimitFilter{}
}

func (f *DurationLimitFilter) Name() string {
	return DurationLimitFilterName
}

func (f *DurationLimitFilter) Description() string {
	return "Rejects songs shorter or longer than the configured limits"
}

func (f *DurationLimitFilter) ReturnCodes() []string {
	return []string{"duration_limit_exceeded"}
}

func (f *DurationLimitFilter) ValidateConfig(settings map[string]any) error {
	var config DurationLimitConfig
	if err := decodeSettings(settings, &config); err != nil {
		return err
	}

	// Custom validation: min cannot be greater than max
	if config.MaxDurationSec > 0 && config.MinDurationSec > config.MaxDurationSec {
		return errors.New("min_duration_sec cannot be greater than max_duration_sec")
	}
	f.config = &config
	zlog.Info().Msgf("duration limit filter config: %+v", config)
	return nil
}

// AppliesTo applies to every song; cue tracks are checked by their own length.
func (f *DurationLimitFilter) AppliesTo(origin Origin) bool {
	return true
}

func (f *DurationLimitFilter) Check(ctx context.Context, req Request) Result {
	// If config is not set, accept all songs
	if f.config == nil {
		return Accept()
	}

	length := req.Song.Length
	if f.config.MinDurationSec > 0 && length < seconds(f.config.MinDurationSec) {
		return Reject("duration_limit_exceeded")
	}
	if f.config.MaxDurationSec > 0 && length > seconds(f.config.MaxDurationSec) {
		return Reject("duration_limit_exceeded")
	}

	return Accept()
}

func seconds(s float64) time.Duration {
	return time.Duration(s * float64(time.Second))
}

func init() {
	Register(DurationLimitFilterName, func() Filter {
		return NewDurationLimitFilter()
	})
}

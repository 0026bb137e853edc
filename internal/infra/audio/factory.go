package audio

import (
	"github.com/cockroachdb/errors"
	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"github.com/mitchellh/mapstructure"
	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/cuebox/internal/app/playback"
	"github.com/osa030/cuebox/internal/infra/config"
)

const (
	OutputSpeaker = "speaker"
	OutputNull    = "null"
)

// SpeakerSettings configures the speaker output.
type SpeakerSettings struct {
	SampleRate      int `yaml:"sample_rate" mapstructure:"sample_rate" default:"44100" validate:"gte=8000,lte=192000"`
	BufferMs        int `yaml:"buffer_ms" mapstructure:"buffer_ms" default:"100" validate:"gte=10,lte=2000"`
	ResampleQuality int `yaml:"resample_quality" mapstructure:"resample_quality" default:"4" validate:"gte=1,lte=64"`
}

// NewOutputFromConfig creates the output named by the configuration.
func NewOutputFromConfig(cfg config.OutputConfig) (playback.Output, error) {
	zlog.Debug().Msgf("creating audio output: type=%s settings=%+v", cfg.Type, cfg.Settings)

	switch cfg.Type {
	case OutputSpeaker:
		settings, err := DecodeSpeakerSettings(cfg.Settings)
		if err != nil {
			return nil, err
		}
		out, err := NewSpeakerOutput(*settings)
		if err != nil {
			return nil, errors.Wrap(err, "failed to create speaker output")
		}
		return out, nil

	case OutputNull:
		return NewNullOutput(), nil

	default:
		return nil, errors.Newf("unsupported output type: %s", cfg.Type)
	}
}

// DecodeSpeakerSettings decodes, defaults and validates speaker settings.
func DecodeSpeakerSettings(settings map[string]any) (*SpeakerSettings, error) {
	var s SpeakerSettings
	if err := mapstructure.Decode(settings, &s); err != nil {
		return nil, errors.Wrap(err, "failed to decode settings")
	}
	if err := defaults.Set(&s); err != nil {
		return nil, errors.Wrap(err, "failed to set defaults")
	}
	if err := validator.New().Struct(s); err != nil {
		return nil, errors.Wrap(err, "validation failed")
	}
	return &s, nil
}

package filter

import (
	"context"
	"path/filepath"
	"slices"
	"strings"

	zlog "github.com/rs/zerolog/log"
	"github.com/samber/lo"
)

const ExtensionFilterName = "extension_filter"

// ExtensionConfig represents the configuration for ExtensionFilter.
type ExtensionConfig struct {
	Allowed []string `yaml:"allowed" mapstructure:"allowed" default:"[\".mp3\",\".wav\",\".wave\"]" validate:"min=1,dive,startswith=."`
}

// ExtensionFilter only admits files with an allowed extension. Tracks of a
// cue sheet are exempt since the sheet names its audio file explicitly.
type ExtensionFilter struct {
	allowed []string
}

// NewExtensionFilter creates a new extension filter.
func NewExtensionFilter() *ExtensionFilter {
	return &ExtensionFilter{}
}

func (f *ExtensionFilter) Name() string {
	return ExtensionFilterName
}

func (f *ExtensionFilter) Description() string {
	return "Rejects audio files whose extension is not in the allowed list"
}

func (f *ExtensionFilter) ReturnCodes() []string {
	return []string{"unsupported_extension"}
}

func (f *ExtensionFilter) ValidateConfig(settings map[string]any) error {
	var config ExtensionConfig
	if err := decodeSettings(settings, &config); err != nil {
		return err
	}

	f.allowed = lo.Uniq(lo.Map(config.Allowed, func(ext string, _ int) string {
		return strings.ToLower(ext)
	}))
	zlog.Info().Msgf("extension filter config: allowed=%v", f.allowed)
	return nil
}

func (f *ExtensionFilter) AppliesTo(origin Origin) bool {
	return origin == OriginFile
}

func (f *ExtensionFilter) Check(ctx context.Context, req Request) Result {
	// If config is not set, accept all songs
	if len(f.allowed) == 0 {
		return Accept()
	}

	ext := strings.ToLower(filepath.Ext(req.Song.Path))
	if !slices.Contains(f.allowed, ext) {
		return Reject("unsupported_extension")
	}
	return Accept()
}

func init() {
	Register(ExtensionFilterName, func() Filter {
		return NewExtensionFilter()
	})
}

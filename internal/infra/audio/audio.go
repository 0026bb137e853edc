// Package audio decodes songs and plays them through gopxl/beep.
//
// Two outputs implement playback.Output: the speaker output, available when
// the build can reach the system audio device, and the null output, which
// pulls samples at wall-clock pace without producing sound.
package audio

import (
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/gopxl/beep/v2"
	"github.com/gopxl/beep/v2/mp3"
	"github.com/gopxl/beep/v2/wav"
)

var (
	ErrUnsupportedFormat = errors.New("unsupported audio format")
	ErrAudioUnavailable  = errors.New("audio output is not available in this build")
	ErrSeekOutOfRange    = errors.New("seek position out of range")
)

const (
	extMP3  = ".mp3"
	extWAV  = ".wav"
	extWAVE = ".wave"
)

// Extensions lists the file extensions that can be decoded.
func Extensions() []string {
	return []string{extMP3, extWAV, extWAVE}
}

// Supported reports whether path has a decodable extension.
func Supported(path string) bool {
	return slices.Contains(Extensions(), strings.ToLower(filepath.Ext(path)))
}

// decode opens path and picks a decoder from its extension. Closing the
// returned streamer closes the file.
func decode(path string) (beep.StreamSeekCloser, beep.Format, error) {
	if !Supported(path) {
		return nil, beep.Format{}, errors.Wrapf(ErrUnsupportedFormat, "%s", path)
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, beep.Format{}, errors.Wrapf(err, "failed to open %s", path)
	}

	var streamer beep.StreamSeekCloser
	var format beep.Format
	switch strings.ToLower(filepath.Ext(path)) {
	case extMP3:
		streamer, format, err = mp3.Decode(f)
	default:
		streamer, format, err = wav.Decode(f)
	}
	if err != nil {
		f.Close()
		return nil, beep.Format{}, errors.Wrapf(err, "failed to decode %s", path)
	}

	return streamer, format, nil
}

// Probe returns the playing time of the audio file at path.
func Probe(path string) (time.Duration, error) {
	streamer, format, err := decode(path)
	if err != nil {
		return 0, err
	}
	defer streamer.Close()

	return format.SampleRate.D(streamer.Len()), nil
}

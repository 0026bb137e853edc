//go:build (linux && cgo) || windows || darwin

package audio

import (
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/gopxl/beep/v2"
	"github.com/gopxl/beep/v2/speaker"
	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/cuebox/internal/app/playback"
)

// AudioAvailable indicates whether the speaker output is supported in this build.
const AudioAvailable = true

var (
	speakerMu          sync.Mutex
	speakerInitialized bool
	speakerSampleRate  beep.SampleRate
)

// SpeakerOutput plays songs on the system audio device. Every song is
// resampled to the device rate chosen at initialization.
type SpeakerOutput struct {
	rate    beep.SampleRate
	quality int
}

// NewSpeakerOutput initializes the speaker if not already done.
func NewSpeakerOutput(settings SpeakerSettings) (*SpeakerOutput, error) {
	rate, err := initSpeaker(beep.SampleRate(settings.SampleRate), time.Duration(settings.BufferMs)*time.Millisecond)
	if err != nil {
		return nil, err
	}
	return &SpeakerOutput{rate: rate, quality: settings.ResampleQuality}, nil
}

// initSpeaker can only run once per process; later calls reuse the first rate.
func initSpeaker(rate beep.SampleRate, buffer time.Duration) (beep.SampleRate, error) {
	speakerMu.Lock()
	defer speakerMu.Unlock()

	if speakerInitialized {
		if rate != speakerSampleRate {
			zlog.Warn().Msgf("audio: speaker already running at %d Hz, ignoring %d Hz", speakerSampleRate, rate)
		}
		return speakerSampleRate, nil
	}

	if err := speaker.Init(rate, rate.N(buffer)); err != nil {
		return 0, errors.Wrap(err, "failed to initialize speaker")
	}
	speakerInitialized = true
	speakerSampleRate = rate
	zlog.Debug().Msgf("audio: speaker initialized: rate=%d buffer=%v", rate, buffer)
	return rate, nil
}

// Open decodes path for the speaker.
func (o *SpeakerOutput) Open(path string) (playback.Source, error) {
	streamer, format, err := decode(path)
	if err != nil {
		return nil, err
	}
	return &speakerSource{track: newTrack(path, streamer, format, o.rate, o.quality)}, nil
}

type speakerSource struct {
	*track
}

// Play hands the track to the speaker mixer. The hook runs on the mixer
// goroutine with the speaker lock held.
func (s *speakerSource) Play(interval time.Duration, hook func(playback.Controls)) <-chan struct{} {
	speaker.Play(s.prepare(interval, hook))
	return s.done
}

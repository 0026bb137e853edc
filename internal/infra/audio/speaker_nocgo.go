//go:build !((linux && cgo) || windows || darwin)

package audio

import (
	"github.com/osa030/cuebox/internal/app/playback"
)

// AudioAvailable indicates whether the speaker output is supported in this build.
// The speaker needs cgo for the native sound libraries on this platform.
const AudioAvailable = false

// SpeakerOutput is unavailable in this build.
type SpeakerOutput struct{}

// NewSpeakerOutput always fails in this build.
func NewSpeakerOutput(settings SpeakerSettings) (*SpeakerOutput, error) {
	return nil, ErrAudioUnavailable
}

func (o *SpeakerOutput) Open(path string) (playback.Source, error) {
	return nil, ErrAudioUnavailable
}

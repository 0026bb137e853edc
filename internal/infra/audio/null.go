package audio

import (
	"time"

	"github.com/osa030/cuebox/internal/app/playback"
)

// NullOutput decodes songs and consumes their samples in real time without
// sending them anywhere. It serves headless runs and machines without an
// audio device.
type NullOutput struct{}

// NewNullOutput creates a NullOutput.
func NewNullOutput() *NullOutput {
	return &NullOutput{}
}

// Open decodes path at its native sample rate.
func (o *NullOutput) Open(path string) (playback.Source, error) {
	streamer, format, err := decode(path)
	if err != nil {
		return nil, err
	}
	return &nullSource{track: newTrack(path, streamer, format, format.SampleRate, 1)}, nil
}

type nullSource struct {
	*track
}

// Play pulls the elapsed number of samples on every tick.
func (s *nullSource) Play(interval time.Duration, hook func(playback.Controls)) <-chan struct{} {
	stream := s.prepare(interval, hook)

	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		buf := make([][2]float64, s.rate.N(interval))
		last := time.Now()
		for now := range ticker.C {
			n := s.rate.N(now.Sub(last))
			if n <= 0 {
				continue
			}
			last = now
			if n > len(buf) {
				buf = make([][2]float64, n)
			}
			if _, ok := stream.Stream(buf[:n]); !ok {
				return
			}
		}
	}()

	return s.done
}

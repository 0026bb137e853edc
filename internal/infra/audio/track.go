package audio

import (
	"math"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/gopxl/beep/v2"
	"github.com/gopxl/beep/v2/effects"
	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/cuebox/internal/app/playback"
)

// track is one opened song and the streamer chain that plays it:
// decoder -> resampler -> pause control -> volume -> track (hook calls).
//
// Once playing, the Controls methods are only called from the hook, which
// runs inside Stream. They must not take the speaker lock.
type track struct {
	path     string
	streamer beep.StreamSeekCloser
	format   beep.Format
	rate     beep.SampleRate // output sample rate
	ctrl     *beep.Ctrl
	volume   *effects.Volume

	hook    func(playback.Controls)
	every   int // output samples between hook calls
	since   int
	stopped bool
	done    chan struct{}
}

func newTrack(path string, streamer beep.StreamSeekCloser, format beep.Format, rate beep.SampleRate, quality int) *track {
	var s beep.Streamer = streamer
	if format.SampleRate != rate {
		s = beep.Resample(quality, format.SampleRate, rate, streamer)
	}
	ctrl := &beep.Ctrl{Streamer: s}

	return &track{
		path:     path,
		streamer: streamer,
		format:   format,
		rate:     rate,
		ctrl:     ctrl,
		volume:   &effects.Volume{Streamer: ctrl, Base: 2},
		done:     make(chan struct{}),
	}
}

// prepare installs the hook and returns the streamer to hand to a player.
// The returned streamer closes done once the track has been drained or stopped.
func (t *track) prepare(interval time.Duration, hook func(playback.Controls)) beep.Streamer {
	t.hook = hook
	t.every = max(t.rate.N(interval), 1)
	return beep.Seq(t, beep.Callback(t.finish))
}

func (t *track) finish() {
	if err := t.streamer.Close(); err != nil {
		zlog.Warn().Err(err).Msgf("audio: failed to close %s", t.path)
	}
	close(t.done)
}

// Close releases a track that was never played.
func (t *track) Close() error {
	return errors.Wrapf(t.streamer.Close(), "failed to close %s", t.path)
}

// Stream implements beep.Streamer.
func (t *track) Stream(samples [][2]float64) (int, bool) {
	filled := 0
	for filled < len(samples) {
		if t.since == 0 && t.hook != nil {
			t.hook(t)
		}
		if t.stopped {
			return filled, filled > 0
		}

		chunk := min(len(samples)-filled, t.every-t.since)
		n, ok := t.volume.Stream(samples[filled : filled+chunk])
		filled += n
		t.since = (t.since + n) % t.every

		if !ok || n == 0 {
			t.stopped = true
			return filled, filled > 0
		}
	}
	return filled, true
}

// Err implements beep.Streamer.
func (t *track) Err() error {
	return t.streamer.Err()
}

// TrySeek moves the decoder to pos.
func (t *track) TrySeek(pos time.Duration) error {
	n := t.format.SampleRate.N(pos)
	if n < 0 || n > t.streamer.Len() {
		return errors.Wrapf(ErrSeekOutOfRange, "%v in %s", pos, t.path)
	}
	if err := t.streamer.Seek(n); err != nil {
		return errors.Wrapf(err, "failed to seek %s", t.path)
	}
	return nil
}

// Position returns the decoder position.
func (t *track) Position() time.Duration {
	return t.format.SampleRate.D(t.streamer.Position())
}

// SetVolume maps a linear volume in [0, 1] onto the base-2 volume effect.
func (t *track) SetVolume(volume float64) {
	if volume <= 0 || math.IsNaN(volume) {
		t.volume.Silent = true
		return
	}
	t.volume.Silent = false
	t.volume.Volume = math.Log2(min(volume, 1))
}

func (t *track) SetPaused(paused bool) {
	t.ctrl.Paused = paused
}

func (t *track) Stop() {
	t.stopped = true
}

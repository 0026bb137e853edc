package playback

import "time"

// Output opens audio files for playback.
type Output interface {
	Open(path string) (Source, error)
}

// Source is an opened audio file that has not started playing yet.
type Source interface {
	// TrySeek moves the read position before playback starts.
	TrySeek(pos time.Duration) error
	// Play starts output. hook is called about every interval from the
	// output side. The returned channel is closed once the output has fully
	// unwound, either after Controls.Stop or when the data runs out.
	Play(interval time.Duration, hook func(Controls)) <-chan struct{}
	// Close releases a source that will not be played. A played source
	// releases itself once its done channel is closed.
	Close() error
}

// Controls is the live view of a playing source handed to the hook.
// It is only valid for the duration of the hook call.
type Controls interface {
	Position() time.Duration
	TrySeek(pos time.Duration) error
	SetVolume(volume float64)
	SetPaused(paused bool)
	Stop()
}

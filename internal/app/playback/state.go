// Package playback runs the background playback worker and exposes its command surface.
package playback

// State represents the worker state.
type State int

const (
	StateIdle     State = iota // Waiting on the queue for the next song
	StateLoading               // Song popped, output being opened
	StatePlaying               // Audio is being output
	StatePaused                // Song loaded, output held
	StateEnding                // Song finished or stopped, waiting for the output to unwind
	StateShutdown              // Worker has exited
)

// String returns the string representation of the state.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateLoading:
		return "loading"
	case StatePlaying:
		return "playing"
	case StatePaused:
		return "paused"
	case StateEnding:
		return "ending"
	case StateShutdown:
		return "shutdown"
	default:
		return "unknown"
	}
}

package playback

import "github.com/osa030/cuebox/internal/domain/song"

// EventType represents a playback event type.
type EventType int

const (
	EventTrackStarted EventType = iota // Song started playing
	EventTrackEnded                    // Song reached its end
	EventTrackSkipped                  // Song was stopped before its end
	EventStateChanged                  // Playback paused or resumed
	EventQueueEmpty                    // Worker is idle with nothing queued
	EventLoadFailed                    // Song could not be opened and was dropped
)

// String returns the string representation of the event type.
func (e EventType) String() string {
	switch e {
	case EventTrackStarted:
		return "track_started"
	case EventTrackEnded:
		return "track_ended"
	case EventTrackSkipped:
		return "track_skipped"
	case EventStateChanged:
		return "state_changed"
	case EventQueueEmpty:
		return "queue_empty"
	case EventLoadFailed:
		return "load_failed"
	default:
		return "unknown"
	}
}

// Event represents a playback event.
type Event struct {
	Type  EventType
	Song  *song.Song // Song concerned (nil for queue_empty)
	State State      // Worker state when the event was emitted
}

package playback

import (
	"time"

	"github.com/osa030/cuebox/internal/domain/song"
)

type commandKind int

const (
	cmdToggle commandKind = iota
	cmdStop
	cmdSeek
)

func (k commandKind) String() string {
	switch k {
	case cmdToggle:
		return "toggle"
	case cmdStop:
		return "stop"
	case cmdSeek:
		return "seek"
	default:
		return "unknown"
	}
}

// command is a request for the worker. generation ties it to the song
// that was loaded when it was sent; commands for older songs are dropped.
type command struct {
	kind       commandKind
	delta      int // seconds, for cmdSeek
	generation uint64
}

// endReason is why a song stopped playing.
type endReason int

const (
	endNatural   endReason = iota // Logical end reached
	endExhausted                  // Output ran out of data first
	endStopped                    // Stop command or seek past the end
	endFailed                     // Could not be opened
	endShutdown                   // Player closed
)

// run is the worker loop: pop a song, play it, repeat until the queue closes.
func (p *Player) run() {
	defer p.wg.Done()

	for {
		p.setState(StateIdle)
		if p.queue.Len() == 0 {
			p.sendEvent(Event{Type: EventQueueEmpty, State: StateIdle})
		}

		s, ok := p.queue.Pop()
		if !ok {
			p.log.Debug().Msg("playback: queue closed, worker exiting")
			p.setState(StateShutdown)
			return
		}

		if p.playSong(s) == endShutdown {
			p.log.Debug().Msg("playback: player closed, worker exiting")
			p.setState(StateShutdown)
			return
		}
	}
}

// playSong takes one song through loading, playing and ending.
func (p *Player) playSong(s song.Song) endReason {
	p.setState(StateLoading)

	src, err := p.output.Open(s.Path)
	if err != nil {
		p.log.Error().Err(err).Msgf("playback: failed to open %s, skipping", s.Path)
		p.sendEvent(Event{Type: EventLoadFailed, Song: &s, State: StateLoading})
		return endFailed
	}

	if s.StartTime > 0 {
		if err := src.TrySeek(s.StartTime); err != nil {
			p.log.Error().Err(err).Msgf("playback: failed to seek %s to %v, skipping", s.Path, s.StartTime)
			if err := src.Close(); err != nil {
				p.log.Warn().Err(err).Msgf("playback: failed to release %s", s.Path)
			}
			p.sendEvent(Event{Type: EventLoadFailed, Song: &s, State: StateLoading})
			return endFailed
		}
	}

	p.mu.Lock()
	p.generation++
	generation := p.generation
	p.current = &s
	p.position = s.StartTime
	p.paused = false
	p.stopping = false
	p.seekTarget = nil
	p.state = StatePlaying
	p.mu.Unlock()

	done := src.Play(p.config.TickInterval, p.hook(generation))

	p.log.Info().Msgf("playback: now playing %s (%v)", s.DisplayName(), s.Length)
	p.sendEvent(Event{Type: EventTrackStarted, Song: &s, State: StatePlaying})

	reason := p.await(s, generation, done)
	p.finish(s, done, reason)
	return reason
}

// await blocks until the song should end. The wait is bounded by the time
// left until the logical end, or unbounded while paused.
func (p *Player) await(s song.Song, generation uint64, done <-chan struct{}) endReason {
	for {
		var timer *time.Timer
		var timeout <-chan time.Time
		if !p.IsPaused() {
			timer = time.NewTimer(p.remaining(s))
			timeout = timer.C
		}

		reason, ended := p.waitOnce(s, generation, done, timeout)
		if timer != nil {
			timer.Stop()
		}
		if ended {
			return reason
		}
	}
}

// waitOnce waits for a single command, the end of the output or the timeout.
func (p *Player) waitOnce(s song.Song, generation uint64, done <-chan struct{}, timeout <-chan time.Time) (endReason, bool) {
	select {
	case <-p.ctx.Done():
		return endShutdown, true
	case cmd := <-p.commands:
		return p.handle(s, generation, cmd)
	case <-done:
		p.log.Debug().Msgf("playback: output exhausted for %s", s.Path)
		return endExhausted, true
	case <-timeout:
		// Commands sent before the deadline are applied before the natural end.
		drained := false
		for {
			select {
			case cmd := <-p.commands:
				drained = true
				if reason, ended := p.handle(s, generation, cmd); ended {
					return reason, true
				}
			default:
				if drained && (p.IsPaused() || p.remaining(s) > 0) {
					return endNatural, false
				}
				return endNatural, true
			}
		}
	}
}

// handle applies cmd to the current song and reports whether it ended the song.
func (p *Player) handle(s song.Song, generation uint64, cmd command) (endReason, bool) {
	if cmd.generation != generation {
		p.log.Debug().Msgf("playback: dropping stale %s command", cmd.kind)
		return endNatural, false
	}

	switch cmd.kind {
	case cmdToggle:
		p.setPaused(s, !p.IsPaused())
	case cmdStop:
		return endStopped, true
	case cmdSeek:
		return p.seek(s, cmd.delta)
	}
	return endNatural, false
}

func (p *Player) setPaused(s song.Song, paused bool) {
	p.mu.Lock()
	if p.paused == paused {
		p.mu.Unlock()
		return
	}
	p.paused = paused
	p.state = StatePlaying
	if paused {
		p.state = StatePaused
	}
	state := p.state
	p.mu.Unlock()

	p.log.Debug().Msgf("playback: %s %s", state, s.Path)
	p.sendEvent(Event{Type: EventStateChanged, Song: &s, State: state})
}

// seek records a seek target for the output hook and moves the position
// right away. A target past the end of the song ends it instead.
func (p *Player) seek(s song.Song, delta int) (endReason, bool) {
	if delta == 0 {
		p.log.Warn().Msg("playback: ignoring seek by zero")
		return endNatural, false
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.stopping || p.current == nil {
		return endNatural, false
	}

	target := p.position + time.Duration(delta)*time.Second
	if target < s.StartTime {
		target = s.StartTime
	}
	if target > s.End() {
		p.log.Debug().Msgf("playback: seek past the end of %s, skipping", s.Path)
		return endStopped, true
	}

	p.seekTarget = &target
	p.position = target
	return endNatural, false
}

// remaining returns the time left until the logical end of s.
func (p *Player) remaining(s song.Song) time.Duration {
	p.mu.RLock()
	defer p.mu.RUnlock()

	left := s.Length - (p.position - s.StartTime)
	if left < 0 {
		return 0
	}
	return left
}

// finish asks the output to stop and waits for it to unwind before the
// next song can be loaded.
func (p *Player) finish(s song.Song, done <-chan struct{}, reason endReason) {
	p.mu.Lock()
	p.state = StateEnding
	p.stopping = true
	p.mu.Unlock()

	select {
	case <-done:
	case <-time.After(p.config.StopTimeout):
		p.log.Error().Msgf("playback: output for %s did not stop within %v", s.Path, p.config.StopTimeout)
	}

	p.mu.Lock()
	p.current = nil
	p.position = 0
	p.paused = false
	p.stopping = false
	p.seekTarget = nil
	p.mu.Unlock()

	switch reason {
	case endStopped:
		p.log.Info().Msgf("playback: skipped %s", s.DisplayName())
		p.sendEvent(Event{Type: EventTrackSkipped, Song: &s, State: StateEnding})
	case endNatural, endExhausted:
		p.log.Debug().Msgf("playback: finished %s", s.DisplayName())
		p.sendEvent(Event{Type: EventTrackEnded, Song: &s, State: StateEnding})
	}
}

// hook returns the periodic output callback for the song with the given
// generation. It applies pause, volume and pending seeks, and reads the
// position back. Hooks of older songs stop their output.
func (p *Player) hook(generation uint64) func(Controls) {
	return func(c Controls) {
		p.mu.Lock()
		defer p.mu.Unlock()

		if p.stopping || p.current == nil || generation != p.generation {
			c.Stop()
			return
		}

		c.SetPaused(p.paused)
		c.SetVolume(p.volume)

		if p.seekTarget != nil {
			target := *p.seekTarget
			p.seekTarget = nil
			if err := c.TrySeek(target); err != nil {
				p.log.Warn().Err(err).Msgf("playback: seek to %v failed", target)
			}
		}

		p.position = c.Position()
	}
}

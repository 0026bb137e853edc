package playback

import (
	"context"
	"math"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/cuebox/internal/app/queue"
	"github.com/osa030/cuebox/internal/domain/cuesheet"
	"github.com/osa030/cuebox/internal/domain/song"
)

// Config holds player configuration.
type Config struct {
	InitialVolume float64       // Starting volume in [0, 1]
	TickInterval  time.Duration // How often the output calls back into the worker
	CommandBuffer int           // Capacity of the command inbox
	EventBuffer   int           // Capacity of the event channel
	StopTimeout   time.Duration // How long to wait for the output to acknowledge a stop
}

// DefaultConfig returns the configuration used when fields are left zero.
func DefaultConfig() Config {
	return Config{
		InitialVolume: 1.0,
		TickInterval:  5 * time.Millisecond,
		CommandBuffer: 64,
		EventBuffer:   32,
		StopTimeout:   2 * time.Second,
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.TickInterval <= 0 {
		c.TickInterval = d.TickInterval
	}
	if c.CommandBuffer <= 0 {
		c.CommandBuffer = d.CommandBuffer
	}
	if c.EventBuffer <= 0 {
		c.EventBuffer = d.EventBuffer
	}
	if c.StopTimeout <= 0 {
		c.StopTimeout = d.StopTimeout
	}
	c.InitialVolume = clampVolume(c.InitialVolume)
	return c
}

// Player owns a queue and a single worker goroutine that plays it.
// Every method is safe to call from any goroutine and none of them wait
// for the worker.
type Player struct {
	id     string
	queue  *queue.Queue
	output Output
	config Config
	log    zerolog.Logger

	commands chan command
	eventCh  chan Event

	// Playback state. Written by the worker (and the output hook it owns),
	// except volume which callers adjust directly.
	mu         sync.RWMutex
	state      State
	current    *song.Song
	generation uint64 // Incremented for every loaded song
	position   time.Duration
	volume     float64
	paused     bool
	stopping   bool
	seekTarget *time.Duration

	ctx       context.Context
	cancel    context.CancelFunc
	wg        sync.WaitGroup
	closeOnce sync.Once
}

// New creates a player and starts its worker.
func New(output Output, config Config) *Player {
	config = config.withDefaults()
	ctx, cancel := context.WithCancel(context.Background())

	id := uuid.New().String()
	p := &Player{
		id:       id,
		queue:    queue.New(),
		output:   output,
		config:   config,
		log:      zlog.With().Str("player", id[:8]).Logger(),
		commands: make(chan command, config.CommandBuffer),
		eventCh:  make(chan Event, config.EventBuffer),
		state:    StateIdle,
		volume:   config.InitialVolume,
		ctx:      ctx,
		cancel:   cancel,
	}

	p.wg.Add(1)
	go p.run()

	return p
}

// ID returns the player instance id.
func (p *Player) ID() string {
	return p.id
}

// Queue returns the player's queue for observation.
func (p *Player) Queue() *queue.Queue {
	return p.queue
}

// Events returns the event channel. It is closed by Close.
func (p *Player) Events() <-chan Event {
	return p.eventCh
}

// EnqueueSong adds a song to the end of the queue.
func (p *Player) EnqueueSong(s song.Song) {
	p.queue.PushBack(s)
}

// EnqueueSongs adds songs to the end of the queue.
func (p *Player) EnqueueSongs(songs []song.Song) {
	p.queue.Append(songs)
}

// EnqueueCue materialises every track of the sheet and queues them.
// It returns the songs added.
func (p *Player) EnqueueCue(sheet *cuesheet.CueSheet, reader song.TagReader) ([]song.Song, error) {
	songs, err := song.FromCueSheet(sheet, reader)
	if err != nil {
		return nil, err
	}
	p.queue.Append(songs)
	return songs, nil
}

// PlaySong puts s at the front of the queue and abandons the current song
// so that s starts right away.
func (p *Player) PlaySong(s song.Song) {
	p.queue.PushFront(s)

	p.mu.RLock()
	playing := p.current != nil
	generation := p.generation
	p.mu.RUnlock()

	if playing {
		p.send(command{kind: cmdStop, generation: generation})
	}
}

// Toggle resumes a paused song or pauses a playing one.
func (p *Player) Toggle() {
	p.mu.RLock()
	playing := p.current != nil
	generation := p.generation
	p.mu.RUnlock()

	if playing {
		p.send(command{kind: cmdToggle, generation: generation})
	}
}

// Stop ends the current song; the worker moves on to the next one.
func (p *Player) Stop() {
	p.mu.RLock()
	playing := p.current != nil
	generation := p.generation
	p.mu.RUnlock()

	if playing {
		p.send(command{kind: cmdStop, generation: generation})
	}
}

// Seek moves the current song by deltaSeconds. It is ignored when nothing
// is playing. Seeking before the song's start clamps to the start; seeking
// past its end skips to the next song.
func (p *Player) Seek(deltaSeconds int) {
	p.mu.RLock()
	playing := p.current != nil
	generation := p.generation
	p.mu.RUnlock()

	if !playing {
		return
	}
	p.send(command{kind: cmdSeek, delta: deltaSeconds, generation: generation})
}

// ChangeVolume adds delta to the volume, clamped to [0, 1], and returns the result.
func (p *Player) ChangeVolume(delta float64) float64 {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !math.IsNaN(delta) {
		p.volume = clampVolume(p.volume + delta)
	}
	return p.volume
}

// Volume returns the current volume.
func (p *Player) Volume() float64 {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.volume
}

// Position returns the playback position relative to the start of the
// current song, or 0 when nothing is playing.
func (p *Player) Position() time.Duration {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if p.current == nil {
		return 0
	}
	pos := p.position - p.current.StartTime
	if pos < 0 {
		return 0
	}
	return pos
}

// CurrentlyPlaying returns the song being played.
func (p *Player) CurrentlyPlaying() (*song.Song, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if p.current == nil {
		return nil, false
	}
	s := *p.current
	return &s, true
}

// IsPaused returns true if the current song is paused.
func (p *Player) IsPaused() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.paused
}

// State returns the worker state.
func (p *Player) State() State {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.state
}

// Close stops playback, shuts the worker down and closes the event channel.
func (p *Player) Close() {
	p.closeOnce.Do(func() {
		p.cancel()
		p.queue.Close()
		p.wg.Wait()
		close(p.eventCh)
	})
}

// send delivers a command to the worker. It only blocks if the inbox is full.
func (p *Player) send(cmd command) {
	select {
	case p.commands <- cmd:
	case <-p.ctx.Done():
	}
}

// sendEvent sends an event without blocking.
func (p *Player) sendEvent(e Event) {
	select {
	case p.eventCh <- e:
	case <-p.ctx.Done():
	default:
		p.log.Debug().Msgf("playback: event channel full, dropping %s", e.Type)
	}
}

func (p *Player) setState(s State) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.state = s
}

func clampVolume(v float64) float64 {
	if math.IsNaN(v) {
		return 0
	}
	return math.Max(0, math.Min(1, v))
}

// Package session ties the player, admission filters and notifications
// together for a front end.
package session

import (
	"context"
	"path/filepath"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/cuebox/internal/app/filter"
	"github.com/osa030/cuebox/internal/app/notification"
	"github.com/osa030/cuebox/internal/app/playback"
	"github.com/osa030/cuebox/internal/domain/cuesheet"
	"github.com/osa030/cuebox/internal/domain/song"
	"github.com/osa030/cuebox/internal/infra/config"
)

var ErrNothingToPlay = errors.New("no playable song")

const cueExt = ".cue"

// Manager manages a playback session.
type Manager struct {
	// Configuration
	config *config.Config

	// Components
	player       *playback.Player
	tags         song.TagReader
	filterChain  *filter.Chain
	notification *notification.Manager

	done chan struct{}
}

// NewManager creates a session manager and starts forwarding player events.
func NewManager(cfg *config.Config, output playback.Output, tags song.TagReader) (*Manager, error) {
	m := &Manager{
		config: cfg,
		player: playback.New(output, playback.Config{
			InitialVolume: cfg.Player.Volume(),
			TickInterval:  cfg.Player.TickInterval(),
			CommandBuffer: cfg.Player.CommandBuffer,
			EventBuffer:   cfg.Player.EventBuffer,
			StopTimeout:   cfg.Player.StopTimeout(),
		}),
		tags:         tags,
		filterChain:  filter.NewChain(),
		notification: notification.NewManager(),
		done:         make(chan struct{}),
	}

	// Setup filters
	if err := m.setupFilters(); err != nil {
		m.player.Close()
		return nil, err
	}

	go m.playbackLoop()

	zlog.Info().Msgf("session started: player=%s filters=%v", m.player.ID(), m.filterChain.Names())
	return m, nil
}

// setupFilters initializes the filter chain.
func (m *Manager) setupFilters() error {
	cfg := m.config

	for name := range cfg.Filters {
		if _, ok := filter.GetRegistered()[name]; !ok {
			zlog.Warn().Msgf("unknown filter in config: %s", name)
		}
	}

	// ExtensionFilter
	if cfg.IsFilterEnabled(filter.ExtensionFilterName) {
		f := filter.NewExtensionFilter()
		if err := f.ValidateConfig(cfg.Filters[filter.ExtensionFilterName].Settings); err != nil {
			return errors.Wrapf(err, "invalid %s config", filter.ExtensionFilterName)
		}
		m.filterChain.Add(f)
	}

	// DurationLimitFilter
	if cfg.IsFilterEnabled(filter.DurationLimitFilterName) {
		f := filter.NewDurationLimitFilter()
		if err := f.ValidateConfig(cfg.Filters[filter.DurationLimitFilterName].Settings); err != nil {
			return errors.Wrapf(err, "invalid %s config", filter.DurationLimitFilterName)
		}
		m.filterChain.Add(f)
	}

	// DuplicateSongFilter
	if cfg.IsFilterEnabled(filter.DuplicateSongFilterName) {
		m.filterChain.Add(filter.NewDuplicateSongFilter(m.player.Queue()))
	}

	return nil
}

// Rejection is a song refused by a filter.
type Rejection struct {
	Song   song.Song
	Code   string
	Filter string
}

// Failure is a path that could not be turned into songs.
type Failure struct {
	Path string
	Err  error
}

// AddResult summarizes an Add call.
type AddResult struct {
	Added    []song.Song
	Rejected []Rejection
	Failed   []Failure
}

// Add resolves every path into songs and queues the accepted ones in order.
// A path ending in .cue is read as a cue sheet; anything else as an audio file.
func (m *Manager) Add(ctx context.Context, paths ...string) *AddResult {
	result := &AddResult{}
	for _, path := range paths {
		if ctx.Err() != nil {
			result.Failed = append(result.Failed, Failure{Path: path, Err: ctx.Err()})
			continue
		}

		if isCueSheet(path) && len(m.filterChain.Filters()) == 0 {
			m.addCueUnfiltered(path, result)
			continue
		}

		songs, origin, err := m.resolve(path)
		if err != nil {
			zlog.Error().Err(err).Msgf("session: failed to load %s", path)
			result.Failed = append(result.Failed, Failure{Path: path, Err: err})
			continue
		}

		accepted := m.admit(ctx, songs, origin, result)
		m.player.EnqueueSongs(accepted)
		result.Added = append(result.Added, accepted...)
	}

	zlog.Info().Msgf("session: added=%d rejected=%d failed=%d", len(result.Added), len(result.Rejected), len(result.Failed))
	return result
}

// addCueUnfiltered hands the whole sheet to the player.
func (m *Manager) addCueUnfiltered(path string, result *AddResult) {
	sheet, err := cuesheet.FromFile(path)
	if err == nil {
		var songs []song.Song
		songs, err = m.player.EnqueueCue(sheet, m.tags)
		if err == nil {
			result.Added = append(result.Added, songs...)
			return
		}
	}
	zlog.Error().Err(err).Msgf("session: failed to load %s", path)
	result.Failed = append(result.Failed, Failure{Path: path, Err: err})
}

// PlayNow resolves path and starts its first accepted song immediately,
// abandoning the current one. Remaining songs of a cue sheet go to the back
// of the queue.
func (m *Manager) PlayNow(ctx context.Context, path string) (*AddResult, error) {
	result := &AddResult{}

	songs, origin, err := m.resolve(path)
	if err != nil {
		return nil, err
	}

	accepted := m.admit(ctx, songs, origin, result)
	if len(accepted) == 0 {
		return result, errors.Wrapf(ErrNothingToPlay, "%s", path)
	}

	m.player.PlaySong(accepted[0])
	m.player.EnqueueSongs(accepted[1:])
	result.Added = accepted
	return result, nil
}

// resolve turns a path into songs.
func (m *Manager) resolve(path string) ([]song.Song, filter.Origin, error) {
	if isCueSheet(path) {
		sheet, err := cuesheet.FromFile(path)
		if err != nil {
			return nil, filter.OriginCueSheet, err
		}
		songs, err := song.FromCueSheet(sheet, m.tags)
		return songs, filter.OriginCueSheet, err
	}

	s, err := song.FromFile(path, m.tags)
	if err != nil {
		return nil, filter.OriginFile, err
	}
	return []song.Song{s}, filter.OriginFile, nil
}

// admit runs every song through the filter chain.
func (m *Manager) admit(ctx context.Context, songs []song.Song, origin filter.Origin, result *AddResult) []song.Song {
	accepted := make([]song.Song, 0, len(songs))
	for _, s := range songs {
		r := m.filterChain.Execute(ctx, filter.Request{Song: s, Origin: origin})
		if !r.Accepted {
			zlog.Warn().Msgf("song rejected: path=%s title=%s filter=%s code=%s", s.Path, s.Title, r.Filter, r.Code)
			result.Rejected = append(result.Rejected, Rejection{Song: s, Code: r.Code, Filter: r.Filter})
			continue
		}
		accepted = append(accepted, s)
	}
	return accepted
}

func isCueSheet(path string) bool {
	return strings.EqualFold(filepath.Ext(path), cueExt)
}

// Toggle pauses or resumes the current song.
func (m *Manager) Toggle() {
	m.player.Toggle()
}

// Skip ends the current song.
func (m *Manager) Skip() {
	m.player.Stop()
}

// SeekForward moves the current song forward by the configured step.
func (m *Manager) SeekForward() {
	m.player.Seek(m.config.Player.SeekStepSec)
}

// SeekBackward moves the current song back by the configured step.
func (m *Manager) SeekBackward() {
	m.player.Seek(-m.config.Player.SeekStepSec)
}

// ChangeVolume adjusts the volume and returns the new value.
func (m *Manager) ChangeVolume(delta float64) float64 {
	v := m.player.ChangeVolume(delta)
	zlog.Debug().Msgf("volume: %.2f", v)
	return v
}

// ClearQueue drops every queued song; the current song keeps playing.
func (m *Manager) ClearQueue() int {
	return len(m.player.Queue().Clear())
}

// Queue returns the queued songs.
func (m *Manager) Queue() []song.Song {
	return m.player.Queue().Songs()
}

// Status represents the current playback status.
type Status struct {
	State      playback.State
	Current    *song.Song
	Position   time.Duration
	Volume     float64
	Paused     bool
	QueueSize  int
	QueueTotal time.Duration
	Rejections map[string]int // Songs rejected so far, by filter name
}

// GetStatus returns the current playback status.
func (m *Manager) GetStatus() *Status {
	current, _ := m.player.CurrentlyPlaying()
	q := m.player.Queue()
	return &Status{
		State:      m.player.State(),
		Current:    current,
		Position:   m.player.Position(),
		Volume:     m.player.Volume(),
		Paused:     m.player.IsPaused(),
		QueueSize:  q.Len(),
		QueueTotal: q.TotalTime(),
		Rejections: m.filterChain.Rejections(),
	}
}

// Filters returns the active filters.
func (m *Manager) Filters() []filter.Filter {
	return m.filterChain.Filters()
}

// GetNotificationManager returns the notification manager.
func (m *Manager) GetNotificationManager() *notification.Manager {
	return m.notification
}

// Done is closed once the session has shut down.
func (m *Manager) Done() <-chan struct{} {
	return m.done
}

// Close stops playback and waits for pending notifications to go out.
func (m *Manager) Close() {
	m.player.Close()
	<-m.done
	m.notification.Close()
	zlog.Info().Msg("session closed")
}

// playbackLoop forwards player events until the player closes its channel.
func (m *Manager) playbackLoop() {
	defer close(m.done)
	defer func() {
		if r := recover(); r != nil {
			zlog.Error().Msgf("playback loop panicked: %v", r)
		}
	}()

	for event := range m.player.Events() {
		m.handlePlaybackEvent(event)
	}
}

// handlePlaybackEvent handles playback events.
func (m *Manager) handlePlaybackEvent(event playback.Event) {
	n := &notification.Notification{
		Type:  event.Type.String(),
		State: event.State.String(),
		Song:  event.Song,
	}

	switch event.Type {
	case playback.EventTrackStarted:
		zlog.Info().Msgf("broadcast %s: %s", event.Type, event.Song.DisplayName())
		n.Message = "now playing " + event.Song.DisplayName()

	case playback.EventTrackSkipped:
		n.Message = "skipped " + event.Song.DisplayName()

	case playback.EventLoadFailed:
		n.Message = "failed to load " + event.Song.Path

	case playback.EventQueueEmpty:
		n.Message = "queue is empty"

	default:
		zlog.Debug().Msgf("playback event: type=%s state=%s", event.Type, event.State)
	}

	m.notification.Broadcast(n)
}

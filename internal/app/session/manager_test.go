package session

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/osa030/cuebox/internal/app/filter"
	"github.com/osa030/cuebox/internal/app/notification"
	"github.com/osa030/cuebox/internal/app/playback"
	"github.com/osa030/cuebox/internal/domain/song"
	"github.com/osa030/cuebox/internal/infra/config"
)

const waitTimeout = 2 * time.Second

// fakeOutput opens sources that play silently until stopped.
type fakeOutput struct{}

func (fakeOutput) Open(string) (playback.Source, error) {
	return &fakeSource{}, nil
}

type fakeSource struct {
	mu      sync.Mutex
	pos     time.Duration
	paused  bool
	stopped bool
}

func (s *fakeSource) TrySeek(pos time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pos = pos
	return nil
}

func (s *fakeSource) Play(interval time.Duration, hook func(playback.Controls)) <-chan struct{} {
	done := make(chan struct{})
	go func() {
		defer close(done)
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for range ticker.C {
			hook(s)
			s.mu.Lock()
			if !s.paused {
				s.pos += interval
			}
			stopped := s.stopped
			s.mu.Unlock()
			if stopped {
				return
			}
		}
	}()
	return done
}

func (s *fakeSource) Position() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pos
}

func (s *fakeSource) SetVolume(float64) {}

func (s *fakeSource) Close() error { return nil }

func (s *fakeSource) SetPaused(paused bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.paused = paused
}

func (s *fakeSource) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopped = true
}

// fakeTags answers from a fixed table.
type fakeTags map[string]song.Tags

func (f fakeTags) ReadTags(path string) (song.Tags, error) {
	tags, ok := f[path]
	if !ok {
		return song.Tags{}, errors.Newf("no such file: %s", path)
	}
	return tags, nil
}

func testConfig(filters map[string]config.FilterConfig) *config.Config {
	volume := 1.0
	return &config.Config{
		Player: config.PlayerConfig{
			InitialVolume:  &volume,
			SeekStepSec:    5,
			TickIntervalMs: 1,
			CommandBuffer:  64,
			EventBuffer:    32,
			StopTimeoutMs:  500,
		},
		Filters: filters,
	}
}

func newTestManager(t *testing.T, filters map[string]config.FilterConfig, tags fakeTags) *Manager {
	t.Helper()
	m, err := NewManager(testConfig(filters), fakeOutput{}, tags)
	require.NoError(t, err)
	t.Cleanup(m.Close)
	return m
}

func waitForNotification(t *testing.T, stream *notification.ChannelStream, typ string) *notification.Notification {
	t.Helper()
	deadline := time.After(waitTimeout)
	for {
		select {
		case n, ok := <-stream.C():
			require.True(t, ok, "notification stream closed while waiting for %s", typ)
			if n.Type == typ {
				return n
			}
		case <-deadline:
			t.Fatalf("timed out waiting for %s", typ)
		}
	}
}

func writeCue(t *testing.T, dir string) string {
	t.Helper()
	path := filepath.Join(dir, "album.cue")
	content := `PERFORMER "Band"
TITLE "Album"
FILE "album.wav" WAVE
  TRACK 01 AUDIO
    TITLE "One"
    INDEX 01 00:00:00
  TRACK 02 AUDIO
    TITLE "Two"
    INDEX 01 03:00:00
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestManager_AddPlaysAndNotifies(t *testing.T) {
	m := newTestManager(t, nil, fakeTags{
		"/music/a.mp3": {Title: "A", Artist: "X", Duration: time.Minute},
		"/music/b.mp3": {Title: "B", Duration: time.Minute},
	})
	stream := notification.NewChannelStream(64)
	m.GetNotificationManager().Subscribe(stream)

	result := m.Add(context.Background(), "/music/a.mp3", "/music/b.mp3")
	require.Len(t, result.Added, 2)
	assert.Empty(t, result.Rejected)
	assert.Empty(t, result.Failed)

	n := waitForNotification(t, stream, playback.EventTrackStarted.String())
	require.NotNil(t, n.Song)
	assert.Equal(t, "A", n.Song.Title)
	assert.Equal(t, "now playing X - A", n.Message)
	assert.NotZero(t, n.SequenceNo)

	status := m.GetStatus()
	assert.Equal(t, playback.StatePlaying, status.State)
	require.NotNil(t, status.Current)
	assert.Equal(t, "/music/a.mp3", status.Current.Path)
	assert.Equal(t, 1, status.QueueSize)
	assert.Equal(t, time.Minute, status.QueueTotal)
	assert.InDelta(t, 1.0, status.Volume, 1e-9)
}

func TestManager_AddCueSheet(t *testing.T) {
	tests := []struct {
		name    string
		filters map[string]config.FilterConfig
	}{
		{name: "without filters"},
		{
			name: "with filters",
			filters: map[string]config.FilterConfig{
				filter.ExtensionFilterName:     {Enabled: true},
				filter.DuplicateSongFilterName: {Enabled: true},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			cue := writeCue(t, dir)
			audio := filepath.Join(dir, "album.wav")
			m := newTestManager(t, tt.filters, fakeTags{audio: {Duration: 10 * time.Minute}})

			result := m.Add(context.Background(), cue)
			require.Empty(t, result.Failed)
			require.Len(t, result.Added, 2)

			assert.Equal(t, "One", result.Added[0].Title)
			assert.Equal(t, time.Duration(0), result.Added[0].StartTime)
			assert.Equal(t, 3*time.Minute, result.Added[0].Length)
			assert.Equal(t, "Two", result.Added[1].Title)
			assert.Equal(t, 3*time.Minute, result.Added[1].StartTime)
			assert.Equal(t, 7*time.Minute, result.Added[1].Length)
			assert.Equal(t, "Band", result.Added[1].Artist)
			assert.Equal(t, audio, result.Added[1].Path)
		})
	}
}

func TestManager_AddRejected(t *testing.T) {
	tests := []struct {
		name       string
		filters    map[string]config.FilterConfig
		paths      []string
		wantAdded  int
		wantCode   string
		wantFilter string
	}{
		{
			name: "too long",
			filters: map[string]config.FilterConfig{
				filter.DurationLimitFilterName: {
					Enabled:  true,
					Settings: map[string]any{"max_duration_sec": 120},
				},
			},
			paths:      []string{"/music/a.mp3", "/music/long.mp3"},
			wantAdded:  1,
			wantCode:   "duration_limit_exceeded",
			wantFilter: filter.DurationLimitFilterName,
		},
		{
			name: "duplicate",
			filters: map[string]config.FilterConfig{
				filter.DuplicateSongFilterName: {Enabled: true},
			},
			paths:      []string{"/music/a.mp3", "/music/b.mp3", "/music/b.mp3"},
			wantAdded:  2,
			wantCode:   "duplicate_song",
			wantFilter: filter.DuplicateSongFilterName,
		},
		{
			name: "unsupported extension",
			filters: map[string]config.FilterConfig{
				filter.ExtensionFilterName: {Enabled: true},
			},
			paths:      []string{"/music/a.mp3", "/music/c.flac"},
			wantAdded:  1,
			wantCode:   "unsupported_extension",
			wantFilter: filter.ExtensionFilterName,
		},
	}

	tags := fakeTags{
		"/music/a.mp3":    {Title: "A", Duration: time.Minute},
		"/music/b.mp3":    {Title: "B", Duration: time.Minute},
		"/music/c.flac":   {Title: "C", Duration: time.Minute},
		"/music/long.mp3": {Title: "Long", Duration: 10 * time.Minute},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := newTestManager(t, tt.filters, tags)

			result := m.Add(context.Background(), tt.paths...)
			assert.Len(t, result.Added, tt.wantAdded)
			require.Len(t, result.Rejected, 1)
			assert.Equal(t, tt.wantCode, result.Rejected[0].Code)
			assert.Equal(t, tt.wantFilter, result.Rejected[0].Filter)
			assert.Equal(t, map[string]int{tt.wantFilter: 1}, m.GetStatus().Rejections)
			assert.Empty(t, result.Failed)
		})
	}
}

func TestManager_AddFailures(t *testing.T) {
	m := newTestManager(t, nil, fakeTags{"/music/a.mp3": {Title: "A", Duration: time.Minute}})

	result := m.Add(context.Background(), "/music/missing.mp3", "/music/a.mp3", filepath.Join(t.TempDir(), "none.cue"))
	assert.Len(t, result.Added, 1)
	require.Len(t, result.Failed, 2)
	assert.Equal(t, "/music/missing.mp3", result.Failed[0].Path)
	assert.Error(t, result.Failed[0].Err)
	assert.Error(t, result.Failed[1].Err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	result = m.Add(ctx, "/music/a.mp3")
	assert.Empty(t, result.Added)
	require.Len(t, result.Failed, 1)
	assert.ErrorIs(t, result.Failed[0].Err, context.Canceled)
}

func TestManager_PlayNow(t *testing.T) {
	m := newTestManager(t, nil, fakeTags{
		"/music/a.mp3": {Title: "A", Duration: time.Minute},
		"/music/b.mp3": {Title: "B", Duration: time.Minute},
		"/music/c.mp3": {Title: "C", Duration: time.Minute},
	})
	stream := notification.NewChannelStream(64)
	m.GetNotificationManager().Subscribe(stream)

	m.Add(context.Background(), "/music/a.mp3", "/music/c.mp3")
	waitForNotification(t, stream, playback.EventTrackStarted.String())

	result, err := m.PlayNow(context.Background(), "/music/b.mp3")
	require.NoError(t, err)
	require.Len(t, result.Added, 1)

	skipped := waitForNotification(t, stream, playback.EventTrackSkipped.String())
	assert.Equal(t, "A", skipped.Song.Title)
	started := waitForNotification(t, stream, playback.EventTrackStarted.String())
	assert.Equal(t, "B", started.Song.Title)

	queued := m.Queue()
	require.Len(t, queued, 1)
	assert.Equal(t, "C", queued[0].Title)
}

func TestManager_PlayNowNothingToPlay(t *testing.T) {
	m := newTestManager(t, map[string]config.FilterConfig{
		filter.DurationLimitFilterName: {
			Enabled:  true,
			Settings: map[string]any{"max_duration_sec": 30},
		},
	}, fakeTags{"/music/a.mp3": {Title: "A", Duration: time.Minute}})

	result, err := m.PlayNow(context.Background(), "/music/a.mp3")
	assert.ErrorIs(t, err, ErrNothingToPlay)
	require.NotNil(t, result)
	assert.Len(t, result.Rejected, 1)

	_, err = m.PlayNow(context.Background(), "/music/missing.mp3")
	assert.Error(t, err)
}

func TestManager_Controls(t *testing.T) {
	m := newTestManager(t, nil, fakeTags{
		"/music/a.mp3": {Title: "A", Duration: time.Minute},
		"/music/b.mp3": {Title: "B", Duration: time.Minute},
	})
	stream := notification.NewChannelStream(64)
	m.GetNotificationManager().Subscribe(stream)

	m.Add(context.Background(), "/music/a.mp3", "/music/b.mp3")
	waitForNotification(t, stream, playback.EventTrackStarted.String())

	m.SeekForward()
	m.SeekForward()
	assert.Eventually(t, func() bool {
		return m.GetStatus().Position >= 10*time.Second
	}, waitTimeout, time.Millisecond)

	m.SeekBackward()
	assert.Eventually(t, func() bool {
		pos := m.GetStatus().Position
		return pos >= 5*time.Second && pos < 10*time.Second
	}, waitTimeout, time.Millisecond)

	assert.InDelta(t, 0.5, m.ChangeVolume(-0.5), 1e-9)

	m.Toggle()
	assert.Eventually(t, func() bool { return m.GetStatus().Paused }, waitTimeout, time.Millisecond)
	m.Toggle()
	assert.Eventually(t, func() bool { return !m.GetStatus().Paused }, waitTimeout, time.Millisecond)

	assert.Equal(t, 1, m.ClearQueue())
	assert.Empty(t, m.Queue())

	m.Skip()
	waitForNotification(t, stream, playback.EventTrackSkipped.String())
	n := waitForNotification(t, stream, playback.EventQueueEmpty.String())
	assert.Equal(t, "queue is empty", n.Message)
}

func TestNewManager_Filters(t *testing.T) {
	tests := []struct {
		name      string
		filters   map[string]config.FilterConfig
		wantErr   bool
		wantNames []string
	}{
		{
			name:      "no filters",
			wantNames: []string{},
		},
		{
			name: "all enabled in fixed order",
			filters: map[string]config.FilterConfig{
				filter.DuplicateSongFilterName: {Enabled: true},
				filter.DurationLimitFilterName: {Enabled: true},
				filter.ExtensionFilterName:     {Enabled: true},
			},
			wantNames: []string{
				filter.ExtensionFilterName,
				filter.DurationLimitFilterName,
				filter.DuplicateSongFilterName,
			},
		},
		{
			name: "disabled filter is skipped",
			filters: map[string]config.FilterConfig{
				filter.ExtensionFilterName: {Enabled: false},
			},
			wantNames: []string{},
		},
		{
			name: "unknown filter only warns",
			filters: map[string]config.FilterConfig{
				"bogus_filter": {Enabled: true},
			},
			wantNames: []string{},
		},
		{
			name: "invalid duration settings",
			filters: map[string]config.FilterConfig{
				filter.DurationLimitFilterName: {
					Enabled:  true,
					Settings: map[string]any{"max_duration_sec": -1},
				},
			},
			wantErr: true,
		},
		{
			name: "invalid extension settings",
			filters: map[string]config.FilterConfig{
				filter.ExtensionFilterName: {
					Enabled:  true,
					Settings: map[string]any{"allowed": []string{"mp3"}},
				},
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, err := NewManager(testConfig(tt.filters), fakeOutput{}, fakeTags{})
			if tt.wantErr {
				assert.Error(t, err)
				assert.Nil(t, m)
				return
			}
			require.NoError(t, err)
			defer m.Close()

			names := make([]string, 0, len(m.Filters()))
			for _, f := range m.Filters() {
				names = append(names, f.Name())
			}
			assert.Equal(t, tt.wantNames, names)
		})
	}
}

func TestManager_Close(t *testing.T) {
	m, err := NewManager(testConfig(nil), fakeOutput{}, fakeTags{"/music/a.mp3": {Duration: time.Minute}})
	require.NoError(t, err)
	m.Add(context.Background(), "/music/a.mp3")

	m.Close()
	select {
	case <-m.Done():
	case <-time.After(waitTimeout):
		t.Fatal("session did not shut down")
	}
	assert.Equal(t, 0, m.GetNotificationManager().SubscriberCount())
}

package playback

import (
	"sync"
	"time"

	"github.com/cockroachdb/errors"
)

// fakeOutput is an in-memory Output whose sources advance in wall-clock time.
type fakeOutput struct {
	mu          sync.Mutex
	failPaths   map[string]bool
	lengths     map[string]time.Duration // physical length; zero means endless
	seekErr     error
	openSeekErr error // returned by the seek before playback starts
	sources     []*fakeSource
	active      int
	maxActive   int
}

func newFakeOutput() *fakeOutput {
	return &fakeOutput{
		failPaths: make(map[string]bool),
		lengths:   make(map[string]time.Duration),
	}
}

func (f *fakeOutput) Open(path string) (Source, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.failPaths[path] {
		return nil, errors.Newf("cannot decode %s", path)
	}
	src := &fakeSource{out: f, path: path, length: f.lengths[path], seekErr: f.seekErr, openSeekErr: f.openSeekErr, volume: -1}
	f.sources = append(f.sources, src)
	return src, nil
}

func (f *fakeOutput) source(i int) *fakeSource {
	f.mu.Lock()
	defer f.mu.Unlock()
	if i >= len(f.sources) {
		return nil
	}
	return f.sources[i]
}

func (f *fakeOutput) sourceCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.sources)
}

func (f *fakeOutput) maxConcurrent() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.maxActive
}

type fakeSource struct {
	out         *fakeOutput
	path        string
	length      time.Duration
	seekErr     error
	openSeekErr error

	mu          sync.Mutex
	pos         time.Duration
	paused      bool
	volume      float64
	stopped     bool
	playing     bool
	closed      bool
	initialSeek time.Duration
	seeks       []time.Duration
}

// TrySeek serves both the pre-play seek and Controls seeks from the hook.
func (s *fakeSource) TrySeek(pos time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.playing {
		if s.openSeekErr != nil {
			return s.openSeekErr
		}
		s.initialSeek = pos
		s.pos = pos
		return nil
	}
	s.seeks = append(s.seeks, pos)
	if s.seekErr != nil {
		return s.seekErr
	}
	s.pos = pos
	return nil
}

func (s *fakeSource) Play(interval time.Duration, hook func(Controls)) <-chan struct{} {
	done := make(chan struct{})

	s.mu.Lock()
	s.playing = true
	s.mu.Unlock()

	s.out.mu.Lock()
	s.out.active++
	s.out.maxActive = max(s.out.maxActive, s.out.active)
	s.out.mu.Unlock()

	go func() {
		defer close(done)
		defer func() {
			s.out.mu.Lock()
			s.out.active--
			s.out.mu.Unlock()
		}()

		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		last := time.Now()
		for now := range ticker.C {
			s.mu.Lock()
			if !s.paused {
				s.pos += now.Sub(last)
			}
			last = now
			exhausted := s.length > 0 && s.pos >= s.length
			s.mu.Unlock()

			hook(s)

			if s.isStopped() || exhausted {
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

func (s *fakeSource) SetVolume(volume float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.volume = volume
}

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

func (s *fakeSource) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

func (s *fakeSource) isPlaying() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.playing
}

func (s *fakeSource) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

func (s *fakeSource) isStopped() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stopped
}

func (s *fakeSource) snapshot() (paused bool, volume float64, seeks []time.Duration, initialSeek time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.paused, s.volume, append([]time.Duration(nil), s.seeks...), s.initialSeek
}

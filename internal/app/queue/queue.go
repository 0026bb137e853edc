// Package queue provides the thread-safe song queue shared by the UI and the playback worker.
package queue

import (
	"sync"
	"time"

	"github.com/samber/lo"

	"github.com/osa030/cuebox/internal/domain/song"
)

// noSelection marks an unset cursor.
const noSelection = -1

// Queue is an ordered, blocking-pop collection of songs with a selection
// cursor for the UI. The cursor is independent of playback.
type Queue struct {
	mu   sync.Mutex
	cond *sync.Cond

	songs     []song.Song
	selected  int
	totalTime time.Duration
	closed    bool
}

// New creates an empty queue.
func New() *Queue {
	q := &Queue{
		songs:    make([]song.Song, 0),
		selected: noSelection,
	}
	q.cond = sync.NewCond(&q.mu)
	return q
}

// PushFront inserts s so that it is popped next.
func (q *Queue) PushFront(s song.Song) {
	q.mu.Lock()
	defer q.mu.Unlock()

	q.songs = append([]song.Song{s}, q.songs...)
	q.changedLocked()
}

// PushBack appends s to the end of the queue.
func (q *Queue) PushBack(s song.Song) {
	q.mu.Lock()
	defer q.mu.Unlock()

	q.songs = append(q.songs, s)
	q.changedLocked()
}

// Append adds songs to the end of the queue, preserving their order.
func (q *Queue) Append(songs []song.Song) {
	if len(songs) == 0 {
		return
	}

	q.mu.Lock()
	defer q.mu.Unlock()

	q.songs = append(q.songs, songs...)
	q.changedLocked()
}

// Pop removes and returns the front song. It blocks while the queue is
// empty. Once the queue is closed it returns false.
func (q *Queue) Pop() (song.Song, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	for len(q.songs) == 0 && !q.closed {
		q.cond.Wait()
	}
	if q.closed {
		return song.Song{}, false
	}

	s := q.songs[0]
	q.songs = q.songs[1:]
	q.changedLocked()
	return s, true
}

// RemoveSelected removes the song under the cursor, if any, and clamps the
// cursor to the remaining songs.
func (q *Queue) RemoveSelected() {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.selected == noSelection || q.selected >= len(q.songs) {
		return
	}

	q.songs = append(q.songs[:q.selected], q.songs[q.selected+1:]...)
	if len(q.songs) == 0 {
		q.selected = noSelection
	} else {
		q.selected = min(q.selected, len(q.songs)-1)
	}
	q.changedLocked()
}

// Clear removes every song and resets the cursor.
func (q *Queue) Clear() []song.Song {
	q.mu.Lock()
	defer q.mu.Unlock()

	removed := q.songs
	q.songs = make([]song.Song, 0)
	q.selected = noSelection
	q.changedLocked()
	return removed
}

// Close wakes every blocked Pop; subsequent Pops return false.
func (q *Queue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()

	q.closed = true
	q.cond.Broadcast()
}

// SelectNext moves the cursor down, starting at the first song if unset.
// It stops at the last song.
func (q *Queue) SelectNext() {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.songs) == 0 {
		return
	}
	if q.selected == noSelection {
		q.selected = 0
		return
	}
	q.selected = min(q.selected+1, len(q.songs)-1)
}

// SelectPrevious moves the cursor up, starting at the first song if unset.
// It stops at the first song.
func (q *Queue) SelectPrevious() {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.songs) == 0 {
		return
	}
	if q.selected == noSelection {
		q.selected = 0
		return
	}
	q.selected = max(min(q.selected-1, len(q.songs)-1), 0)
}

// SelectNone clears the cursor.
func (q *Queue) SelectNone() {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.songs) == 0 {
		return
	}
	q.selected = noSelection
}

// Songs returns a copy of the queued songs.
func (q *Queue) Songs() []song.Song {
	q.mu.Lock()
	defer q.mu.Unlock()

	result := make([]song.Song, len(q.songs))
	copy(result, q.songs)
	return result
}

// Len returns the number of queued songs.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.songs)
}

// TotalTime returns the summed length of every queued song.
func (q *Queue) TotalTime() time.Duration {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.totalTime
}

// SelectedIndex returns the cursor position, or false if nothing is selected.
func (q *Queue) SelectedIndex() (int, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.selected == noSelection {
		return 0, false
	}
	return q.selected, true
}

// SelectedSong returns the song under the cursor. It reports false when the
// queue is empty, even if a stale index remains.
func (q *Queue) SelectedSong() (song.Song, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.songs) == 0 || q.selected == noSelection || q.selected >= len(q.songs) {
		return song.Song{}, false
	}
	return q.songs[q.selected], true
}

// changedLocked recomputes the total from scratch and wakes blocked consumers.
// Must be called with lock held.
func (q *Queue) changedLocked() {
	q.totalTime = lo.SumBy(q.songs, func(s song.Song) time.Duration {
		return s.Length
	})
	q.cond.Broadcast()
}

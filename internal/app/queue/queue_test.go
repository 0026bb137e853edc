package queue

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/osa030/cuebox/internal/domain/song"
)

func newSong(name string, length time.Duration) song.Song {
	return song.Song{Path: "/music/" + name + ".mp3", Title: name, Length: length}
}

func TestQueue_PopOrderAndTotal(t *testing.T) {
	q := New()
	a := newSong("A", 30*time.Second)
	b := newSong("B", 45*time.Second)
	q.PushBack(a)
	q.PushBack(b)

	assert.Equal(t, 75*time.Second, q.TotalTime())

	got, ok := q.Pop()
	require.True(t, ok)
	assert.Equal(t, a, got)
	assert.Equal(t, 45*time.Second, q.TotalTime())
	assert.Equal(t, 1, q.Len())
}

func TestQueue_PushFront(t *testing.T) {
	q := New()
	q.PushBack(newSong("A", time.Second))
	q.PushFront(newSong("B", 2*time.Second))

	got, ok := q.Pop()
	require.True(t, ok)
	assert.Equal(t, "B", got.Title)
	assert.Equal(t, time.Second, q.TotalTime())
}

func TestQueue_Append(t *testing.T) {
	q := New()
	q.PushBack(newSong("A", time.Second))
	q.Append([]song.Song{newSong("B", 2*time.Second), newSong("C", 3*time.Second)})
	q.Append(nil)

	titles := make([]string, 0)
	for _, s := range q.Songs() {
		titles = append(titles, s.Title)
	}
	assert.Equal(t, []string{"A", "B", "C"}, titles)
	assert.Equal(t, 6*time.Second, q.TotalTime())
}

func TestQueue_TotalTimeTracksMutations(t *testing.T) {
	q := New()
	var expected time.Duration
	for i := 1; i <= 20; i++ {
		length := time.Duration(i) * 7 * time.Second
		q.PushBack(newSong(fmt.Sprintf("s%d", i), length))
		expected += length
		require.Equal(t, expected, q.TotalTime())
	}

	// remove the third song
	q.SelectNext()
	q.SelectNext()
	q.SelectNext()
	selected, ok := q.SelectedSong()
	require.True(t, ok)
	q.RemoveSelected()
	expected -= selected.Length
	assert.Equal(t, expected, q.TotalTime())

	popped, ok := q.Pop()
	require.True(t, ok)
	expected -= popped.Length
	assert.Equal(t, expected, q.TotalTime())

	q.Clear()
	assert.Equal(t, time.Duration(0), q.TotalTime())
}

func TestQueue_PopBlocksUntilPush(t *testing.T) {
	tests := []struct {
		name string
		push func(q *Queue, s song.Song)
	}{
		{name: "push back", push: func(q *Queue, s song.Song) { q.PushBack(s) }},
		{name: "push front", push: func(q *Queue, s song.Song) { q.PushFront(s) }},
		{name: "append", push: func(q *Queue, s song.Song) { q.Append([]song.Song{s}) }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q := New()
			result := make(chan song.Song, 1)
			go func() {
				s, ok := q.Pop()
				if ok {
					result <- s
				}
			}()

			select {
			case <-result:
				t.Fatal("Pop returned on an empty queue")
			case <-time.After(50 * time.Millisecond):
			}

			want := newSong("late", time.Minute)
			tt.push(q, want)

			select {
			case got := <-result:
				assert.Equal(t, want, got)
			case <-time.After(time.Second):
				t.Fatal("Pop did not wake up")
			}
		})
	}
}

func TestQueue_CloseWakesPop(t *testing.T) {
	q := New()
	done := make(chan bool, 1)
	go func() {
		_, ok := q.Pop()
		done <- ok
	}()

	time.Sleep(20 * time.Millisecond)
	q.Close()

	select {
	case ok := <-done:
		assert.False(t, ok)
	case <-time.After(time.Second):
		t.Fatal("Pop did not return after Close")
	}

	q.PushBack(newSong("A", time.Second))
	_, ok := q.Pop()
	assert.False(t, ok)
}

func TestQueue_SelectionOnEmpty(t *testing.T) {
	q := New()

	assert.NotPanics(t, func() {
		q.SelectNext()
		q.SelectPrevious()
		q.SelectNone()
		q.RemoveSelected()
	})

	_, ok := q.SelectedIndex()
	assert.False(t, ok)
	_, ok = q.SelectedSong()
	assert.False(t, ok)
}

func TestQueue_SelectionClamps(t *testing.T) {
	q := New()
	q.Append([]song.Song{newSong("A", 1), newSong("B", 1), newSong("C", 1)})

	q.SelectPrevious()
	idx, ok := q.SelectedIndex()
	require.True(t, ok)
	assert.Equal(t, 0, idx, "unset cursor starts at the first song")

	q.SelectPrevious()
	idx, _ = q.SelectedIndex()
	assert.Equal(t, 0, idx, "no wraparound at the top")

	for i := 0; i < 10; i++ {
		q.SelectNext()
		idx, _ = q.SelectedIndex()
		assert.GreaterOrEqual(t, idx, 0)
		assert.LessOrEqual(t, idx, q.Len()-1)
	}
	assert.Equal(t, 2, idx, "no wraparound at the bottom")

	q.SelectNone()
	_, ok = q.SelectedIndex()
	assert.False(t, ok)

	q.SelectNext()
	idx, _ = q.SelectedIndex()
	assert.Equal(t, 0, idx)
}

func TestQueue_RemoveSelected(t *testing.T) {
	tests := []struct {
		name          string
		selectSteps   int
		expectedTitle []string
		expectedIndex int
		expectedOK    bool
	}{
		{name: "remove first", selectSteps: 1, expectedTitle: []string{"B", "C"}, expectedIndex: 0, expectedOK: true},
		{name: "remove middle", selectSteps: 2, expectedTitle: []string{"A", "C"}, expectedIndex: 1, expectedOK: true},
		{name: "remove last clamps cursor", selectSteps: 3, expectedTitle: []string{"A", "B"}, expectedIndex: 1, expectedOK: true},
		{name: "nothing selected", selectSteps: 0, expectedTitle: []string{"A", "B", "C"}, expectedOK: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q := New()
			q.Append([]song.Song{newSong("A", 1), newSong("B", 1), newSong("C", 1)})
			for i := 0; i < tt.selectSteps; i++ {
				q.SelectNext()
			}

			q.RemoveSelected()

			titles := make([]string, 0)
			for _, s := range q.Songs() {
				titles = append(titles, s.Title)
			}
			assert.Equal(t, tt.expectedTitle, titles)

			idx, ok := q.SelectedIndex()
			assert.Equal(t, tt.expectedOK, ok)
			if ok {
				assert.Equal(t, tt.expectedIndex, idx)
			}
		})
	}
}

func TestQueue_RemoveLastSongClearsSelection(t *testing.T) {
	q := New()
	q.PushBack(newSong("A", time.Second))
	q.SelectNext()
	q.RemoveSelected()

	_, ok := q.SelectedIndex()
	assert.False(t, ok)
	assert.Equal(t, 0, q.Len())
}

func TestQueue_SelectedSongStaleIndex(t *testing.T) {
	q := New()
	q.PushBack(newSong("A", time.Second))
	q.SelectNext()

	_, ok := q.Pop()
	require.True(t, ok)

	_, ok = q.SelectedSong()
	assert.False(t, ok)
}

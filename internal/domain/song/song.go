// Package song provides the Song domain entity.
package song

import (
	"path/filepath"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/cuebox/internal/domain/cuesheet"
)

// Song is one logical playable track. Several songs may share a Path when
// a cue sheet splits a single file; StartTime then marks where each begins.
// Songs are values and are never modified after construction.
type Song struct {
	Path      string        // Physical audio file
	StartTime time.Duration // Offset of the logical track inside the file
	Length    time.Duration // Logical track length
	Title     string        // Title (falls back to the file name)
	Artist    string        // Artist (empty if unknown)
	Album     string        // Album (empty if unknown)
	Track     int           // Track number (0 if unknown)
}

// Tags is what a TagReader knows about an audio file.
type Tags struct {
	Title    string
	Artist   string
	Album    string
	Track    int
	Duration time.Duration // Total length of the physical file
}

// TagReader reads metadata from an audio file.
type TagReader interface {
	ReadTags(path string) (Tags, error)
}

// FromFile builds a song covering the whole file at path.
func FromFile(path string, reader TagReader) (Song, error) {
	tags, err := reader.ReadTags(path)
	if err != nil {
		return Song{}, errors.Wrapf(err, "failed to read tags of %s", path)
	}

	title := tags.Title
	if title == "" {
		title = titleFromPath(path)
	}

	return Song{
		Path:   path,
		Length: tags.Duration,
		Title:  title,
		Artist: tags.Artist,
		Album:  tags.Album,
		Track:  tags.Track,
	}, nil
}

// FromCueSheet builds one song per track of the sheet. The audio file is
// resolved relative to the sheet's directory and read once for its length.
// A sheet without a FILE section yields no songs.
func FromCueSheet(sheet *cuesheet.CueSheet, reader TagReader) ([]Song, error) {
	if sheet == nil {
		return nil, errors.New("cue sheet is nil")
	}
	if sheet.File == nil || len(sheet.File.Tracks) == 0 {
		zlog.Warn().Msgf("song: cue sheet %s has no tracks", sheet.Path)
		return []Song{}, nil
	}

	audioPath := sheet.File.Name
	if !filepath.IsAbs(audioPath) {
		audioPath = filepath.Join(filepath.Dir(sheet.Path), audioPath)
	}

	tags, err := reader.ReadTags(audioPath)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read tags of %s", audioPath)
	}

	tracks := sheet.File.Tracks
	starts := make([]time.Duration, len(tracks))
	for i, t := range tracks {
		start, err := t.StartTime()
		if err != nil {
			return nil, errors.Wrapf(err, "cue sheet %s", sheet.Path)
		}
		starts[i] = start
	}

	songs := make([]Song, 0, len(tracks))
	for i, t := range tracks {
		end := tags.Duration
		if i+1 < len(tracks) {
			end = starts[i+1]
		}
		length := end - starts[i]
		if length < 0 {
			return nil, errors.Newf("cue sheet %s: track %s starts at %v, after its end %v",
				sheet.Path, t.Index, starts[i], end)
		}

		title := t.Title
		if title == "" {
			title = titleFromPath(audioPath) + " " + strings.TrimSpace(t.Index)
		}
		artist := t.Performer
		if artist == "" {
			artist = sheet.Performer
		}
		album := sheet.Title
		if album == "" {
			album = tags.Album
		}

		songs = append(songs, Song{
			Path:      audioPath,
			StartTime: starts[i],
			Length:    length,
			Title:     title,
			Artist:    artist,
			Album:     album,
			Track:     t.Number(),
		})
	}

	return songs, nil
}

// End returns the offset in the file at which the song ends.
func (s Song) End() time.Duration {
	return s.StartTime + s.Length
}

// Equal reports whether both songs refer to the same file.
func (s Song) Equal(other Song) bool {
	return s.Path == other.Path
}

// Compare orders songs by path.
func (s Song) Compare(other Song) int {
	return strings.Compare(s.Path, other.Path)
}

// DisplayName returns "Artist - Title", or just the title when the artist is unknown.
func (s Song) DisplayName() string {
	if s.Artist == "" {
		return s.Title
	}
	return s.Artist + " - " + s.Title
}

func titleFromPath(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

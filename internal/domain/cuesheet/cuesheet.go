package cuesheet

import (
	"cmp"
	"io"
	"os"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	zlog "github.com/rs/zerolog/log"
)

// Errors
var (
	ErrInvalidTimestamp = errors.New("invalid cue timestamp")
)

// framesPerSecond is the CD frame rate used by MM:SS:FF timestamps.
const framesPerSecond = 75

// CueSheet is a parsed cue sheet. It is read-only once built.
type CueSheet struct {
	Path      string   // Path of the sheet itself
	Performer string   // Sheet-wide performer (empty if absent)
	Title     string   // Sheet-wide title (empty if absent)
	Comments  []string // REM lines
	File      *File    // The referenced audio file (nil if the sheet has none)
}

// File is the audio file a sheet subdivides.
type File struct {
	Name   string  // File name relative to the sheet's directory
	Type   string  // WAVE, MP3, ...
	Tracks []Track // Sorted by index
}

// Track is one logical track inside the file.
type Track struct {
	Index        string // e.g. "01 AUDIO"
	Title        string
	StartTimeRaw string // MM:SS:FF taken from INDEX 01 (or the first INDEX)
	Performer    string
}

// Number returns the numeric part of the track index, or 0 if it has none.
func (t Track) Number() int {
	head, _, _ := strings.Cut(t.Index, " ")
	n, err := strconv.Atoi(head)
	if err != nil {
		return 0
	}
	return n
}

// StartTime parses StartTimeRaw.
func (t Track) StartTime() (time.Duration, error) {
	d, err := ParseTimestamp(t.StartTimeRaw)
	if err != nil {
		return 0, errors.Wrapf(err, "track %s", t.Index)
	}
	return d, nil
}

// FromFile reads and parses the cue sheet at path.
func FromFile(path string) (*CueSheet, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to open cue sheet %s", path)
	}
	defer f.Close()

	return Parse(f, path)
}

// Parse parses a cue sheet read from r. path is recorded on the sheet and
// used later to resolve the audio file.
func Parse(r io.Reader, path string) (*CueSheet, error) {
	lines, err := Lex(r)
	if err != nil {
		return nil, err
	}

	root := BuildTree(lines)
	return fromItems(path, ClassifyChildren(root)), nil
}

func fromItems(path string, items []Item) *CueSheet {
	sheet := &CueSheet{
		Path:     path,
		Comments: make([]string, 0),
	}

	for _, item := range items {
		switch it := item.(type) {
		case CommentItem:
			sheet.Comments = append(sheet.Comments, it.Text)
		case TitleItem:
			sheet.Title = it.Text
		case PerformerItem:
			sheet.Performer = it.Name
		case FileItem:
			if sheet.File != nil {
				zlog.Warn().Msgf("cuesheet: %s references more than one file, ignoring %q", path, it.Name)
				continue
			}
			sheet.File = buildFile(it)
		case UnknownItem:
			zlog.Debug().Msgf("cuesheet: ignoring %s %q in %s", it.Key, it.Value, path)
		default:
			zlog.Debug().Msgf("cuesheet: ignoring top-level %T in %s", it, path)
		}
	}

	return sheet
}

func buildFile(it FileItem) *File {
	file := &File{
		Name:   it.Name,
		Type:   it.Type,
		Tracks: make([]Track, 0),
	}
	for _, child := range it.Children {
		if ti, ok := child.(TrackItem); ok {
			file.Tracks = append(file.Tracks, buildTrack(ti))
		}
	}

	slices.SortStableFunc(file.Tracks, func(a, b Track) int {
		if c := cmp.Compare(a.Number(), b.Number()); c != 0 {
			return c
		}
		return strings.Compare(a.Index, b.Index)
	})
	return file
}

func buildTrack(it TrackItem) Track {
	track := Track{Index: it.Index}

	var firstIndex string
	for _, child := range it.Children {
		switch c := child.(type) {
		case TitleItem:
			track.Title = c.Text
		case PerformerItem:
			track.Performer = c.Name
		case IndexItem:
			if firstIndex == "" {
				firstIndex = c.Time
			}
			if n, err := strconv.Atoi(c.Number); err == nil && n == 1 {
				track.StartTimeRaw = c.Time
			}
		}
	}
	if track.StartTimeRaw == "" {
		track.StartTimeRaw = firstIndex
	}
	return track
}

// ParseTimestamp parses an MM:SS:FF index time. Frames are validated but
// dropped, so the result is always whole seconds.
func ParseTimestamp(raw string) (time.Duration, error) {
	parts := strings.Split(strings.TrimSpace(raw), ":")
	if len(parts) != 3 {
		return 0, errors.Wrapf(ErrInvalidTimestamp, "%q", raw)
	}

	values := make([]int, len(parts))
	for i, p := range parts {
		v, err := strconv.Atoi(p)
		if err != nil || v < 0 {
			return 0, errors.Wrapf(ErrInvalidTimestamp, "%q", raw)
		}
		values[i] = v
	}

	minutes, seconds, frames := values[0], values[1], values[2]
	if seconds >= 60 || frames >= framesPerSecond {
		return 0, errors.Wrapf(ErrInvalidTimestamp, "%q", raw)
	}

	return time.Duration(minutes*60+seconds) * time.Second, nil
}

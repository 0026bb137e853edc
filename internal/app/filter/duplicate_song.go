package filter

import (
	"context"
	"regexp"
	"strings"

	"github.com/osa030/cuebox/internal/domain/song"
)

const DuplicateSongFilterName = "duplicate_song_filter"

// SongLister gives access to the songs already waiting in the queue.
type SongLister interface {
	Songs() []song.Song
}

// DuplicateSongFilter rejects songs that are already queued.
// Detects:
// - The same file at the same offset
// - Remasters and alternate versions (normalized title + same artist)
// Excludes:
// - Covers (same title but different artist)
// - Other tracks of the same cue sheet (same file, different offset)
type DuplicateSongFilter struct {
	queue SongLister
}

// NewDuplicateSongFilter creates a new duplicate song filter.
func NewDuplicateSongFilter(queue SongLister) *DuplicateSongFilter {
	return &DuplicateSongFilter{
		queue: queue,
	}
}

func (f *DuplicateSongFilter) Name() string {
	return DuplicateSongFilterName
}

func (f *DuplicateSongFilter) Description() string {
	return "Rejects songs already in the queue, including remasters; covers are allowed"
}

func (f *DuplicateSongFilter) ReturnCodes() []string {
	return []string{"duplicate_song"}
}

// ValidateConfig validates the filter configuration.
func (f *DuplicateSongFilter) ValidateConfig(settings map[string]any) error {
	// No configuration needed
	return nil
}

func (f *DuplicateSongFilter) AppliesTo(origin Origin) bool {
	return true
}

func (f *DuplicateSongFilter) Check(ctx context.Context, req Request) Result {
	if f.queue == nil {
		return Accept()
	}

	for _, queued := range f.queue.Songs() {
		if queued.Path == req.Song.Path && queued.StartTime == req.Song.StartTime {
			return Reject("duplicate_song")
		}
		if isRemaster(queued, req.Song) {
			return Reject("duplicate_song")
		}
	}
	return Accept()
}

// isRemaster reports whether two songs are versions of the same recording.
func isRemaster(a, b song.Song) bool {
	if a.Artist == "" || b.Artist == "" {
		return false
	}
	if normalizeTitle(a.Title) != normalizeTitle(b.Title) {
		return false
	}
	// Same normalized title by another artist is a cover
	return strings.EqualFold(strings.TrimSpace(a.Artist), strings.TrimSpace(b.Artist))
}

var (
	remasterPatterns = []*regexp.Regexp{
		regexp.MustCompile(`\s*-?\s*\d{4}\s+remaster(ed)?`),      // "- 2011 Remaster"
		regexp.MustCompile(`\s*\(remaster(ed)?\s*\d{0,4}\)`),     // "(Remastered 2023)"
		regexp.MustCompile(`\s*\[remaster(ed)?\s*\d{0,4}\]`),     // "[Remastered]"
		regexp.MustCompile(`\s*-?\s*remaster(ed)?(\s+version)?`), // "- Remastered"
		regexp.MustCompile(`\s*\(.*?remaster.*?\)`),              // "(Any Remaster text)"
		regexp.MustCompile(`\s*\[.*?remaster.*?\]`),              // "[Any Remaster text]"
	}
	versionPatterns = []*regexp.Regexp{
		regexp.MustCompile(`\s*\(.*?version\)`),        // "(Single Version)"
		regexp.MustCompile(`\s*\(.*?edit\)`),           // "(Radio Edit)"
		regexp.MustCompile(`\s*\(live\)`),              // "(Live)"
		regexp.MustCompile(`\s*-\s*live\b.*$`),         // "- Live at Budokan"
		regexp.MustCompile(`\s*-?\s*radio\s+edit`),     // "- Radio Edit"
		regexp.MustCompile(`\s*-?\s*single\s+version`), // "- Single Version"
	}
	spaces = regexp.MustCompile(`\s+`)
)

// normalizeTitle strips remaster and version annotations.
func normalizeTitle(title string) string {
	normalized := strings.ToLower(title)
	for _, pattern := range remasterPatterns {
		normalized = pattern.ReplaceAllString(normalized, "")
	}
	for _, pattern := range versionPatterns {
		normalized = pattern.ReplaceAllString(normalized, "")
	}

	normalized = spaces.ReplaceAllString(strings.TrimSpace(normalized), " ")
	return strings.TrimRight(normalized, " -")
}

func init() {
	// The queue is injected by the session; the registered instance only
	// serves listings.
	Register(DuplicateSongFilterName, func() Filter {
		return NewDuplicateSongFilter(nil)
	})
}

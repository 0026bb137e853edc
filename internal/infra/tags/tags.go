// Package tags reads song metadata from audio files.
package tags

import (
	"io"
	"os"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/dhowden/tag"
	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/cuebox/internal/domain/song"
	"github.com/osa030/cuebox/internal/infra/audio"
)

// Reader reads ID3, MP4, FLAC and OGG tags with dhowden/tag and measures the
// playing time by decoding the file.
type Reader struct{}

// NewReader creates a new Reader.
func NewReader() *Reader {
	return &Reader{}
}

// ReadTags implements song.TagReader. A file without tags is not an error;
// only the duration is required.
func (r *Reader) ReadTags(path string) (song.Tags, error) {
	duration, err := audio.Probe(path)
	if err != nil {
		return song.Tags{}, errors.Wrapf(err, "failed to probe %s", path)
	}
	result := song.Tags{Duration: duration}

	f, err := os.Open(path)
	if err != nil {
		return song.Tags{}, errors.Wrapf(err, "failed to open %s", path)
	}
	defer f.Close()

	if err := readMetadata(f, &result); err != nil {
		if errors.Is(err, tag.ErrNoTagsFound) {
			zlog.Debug().Msgf("tags: no tags in %s", path)
		} else {
			zlog.Warn().Err(err).Msgf("tags: failed to read tags of %s", path)
		}
	}
	return result, nil
}

func readMetadata(r io.ReadSeeker, result *song.Tags) error {
	m, err := tag.ReadFrom(r)
	if err != nil {
		return err
	}

	result.Title = strings.TrimSpace(m.Title())
	result.Artist = strings.TrimSpace(m.Artist())
	if result.Artist == "" {
		result.Artist = strings.TrimSpace(m.AlbumArtist())
	}
	result.Album = strings.TrimSpace(m.Album())
	result.Track, _ = m.Track()
	return nil
}

// Package cuesheet parses cue sheets into a tree of lines and then into a CueSheet.
package cuesheet

import (
	"bufio"
	"io"
	"strings"
	"unicode"

	"github.com/cockroachdb/errors"
	zlog "github.com/rs/zerolog/log"
)

const utf8BOM = "\ufeff"

// Line is one lexed line of a cue sheet.
type Line struct {
	Indentation int    // Number of leading whitespace characters
	Key         string // First word of the line (e.g. TRACK, INDEX)
	Value       string // Remainder of the line, surrounding quotes removed
}

// maxLineLength bounds a single line. Longer lines are skipped.
const maxLineLength = 1024 * 1024

// Lex splits r into lines. Lines without both a key and a value, and lines
// longer than maxLineLength, are dropped with a warning; only read failures
// are returned as errors.
func Lex(r io.Reader) ([]Line, error) {
	reader := bufio.NewReaderSize(r, maxLineLength)

	var lines []Line
	lineNo := 0
	for {
		chunk, isPrefix, err := reader.ReadLine()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, errors.Wrap(err, "failed to read cue sheet")
		}
		lineNo++

		if isPrefix {
			if err := discardLine(reader); err != nil {
				return nil, errors.Wrap(err, "failed to read cue sheet")
			}
			zlog.Warn().Msgf("cuesheet: skipping line %d longer than %d bytes", lineNo, maxLineLength)
			continue
		}

		raw := string(chunk)
		if lineNo == 1 {
			raw = strings.TrimPrefix(raw, utf8BOM)
		}
		if strings.TrimSpace(raw) == "" {
			continue
		}

		line, ok := lexLine(raw)
		if !ok {
			zlog.Warn().Msgf("cuesheet: skipping malformed line %d: %q", lineNo, raw)
			continue
		}
		lines = append(lines, line)
	}
	return lines, nil
}

// discardLine reads up to the end of the current line.
func discardLine(reader *bufio.Reader) error {
	for {
		_, isPrefix, err := reader.ReadLine()
		if err == io.EOF {
			return nil
		}
		if err != nil || !isPrefix {
			return err
		}
	}
}

func lexLine(raw string) (Line, bool) {
	raw = strings.TrimRightFunc(raw, unicode.IsSpace)
	body := strings.TrimLeftFunc(raw, unicode.IsSpace)
	indentation := len([]rune(raw)) - len([]rune(body))

	sep := strings.IndexFunc(body, unicode.IsSpace)
	if sep < 0 {
		return Line{}, false
	}

	key := body[:sep]
	value := trimQuotes(strings.TrimSpace(body[sep:]))
	if value == "" {
		return Line{}, false
	}

	return Line{
		Indentation: indentation,
		Key:         key,
		Value:       value,
	}, true
}

func trimQuotes(s string) string {
	if len(s) >= 2 && s[0] == '"' && s[len(s)-1] == '"' {
		return s[1 : len(s)-1]
	}
	return s
}

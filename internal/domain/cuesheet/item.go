package cuesheet

import (
	"strings"

	zlog "github.com/rs/zerolog/log"
)

// Item is the semantic meaning of a node in the sheet tree.
// It is one of CommentItem, TitleItem, PerformerItem, FileItem, TrackItem,
// IndexItem or UnknownItem.
type Item interface {
	isItem()
}

// CommentItem is a REM line.
type CommentItem struct {
	Text string
}

// TitleItem is a TITLE line.
type TitleItem struct {
	Text string
}

// PerformerItem is a PERFORMER line.
type PerformerItem struct {
	Name string
}

// FileItem is a FILE section with its nested items.
type FileItem struct {
	Name     string // Audio file name, relative to the sheet
	Type     string // File type token (WAVE, MP3, ...), may be empty
	Children []Item
}

// TrackItem is a TRACK section with its nested items.
type TrackItem struct {
	Index    string // e.g. "01 AUDIO"
	Children []Item
}

// IndexItem is an INDEX line.
type IndexItem struct {
	Number string // e.g. "01"
	Time   string // MM:SS:FF
}

// UnknownItem is any line whose key is not understood.
type UnknownItem struct {
	Key   string
	Value string
}

func (CommentItem) isItem()   {}
func (TitleItem) isItem()     {}
func (PerformerItem) isItem() {}
func (FileItem) isItem()      {}
func (TrackItem) isItem()     {}
func (IndexItem) isItem()     {}
func (UnknownItem) isItem()   {}

// Classify converts a node into its item. The root node (no line) yields nil.
func Classify(n *Node) Item {
	if n == nil || n.Line == nil {
		return nil
	}

	line := n.Line
	switch strings.ToUpper(line.Key) {
	case "REM":
		return CommentItem{Text: line.Value}
	case "TITLE":
		return TitleItem{Text: line.Value}
	case "PERFORMER":
		return PerformerItem{Name: line.Value}
	case "FILE":
		name, fileType := splitFileValue(line.Value)
		return FileItem{Name: name, Type: fileType, Children: ClassifyChildren(n)}
	case "TRACK":
		return TrackItem{Index: line.Value, Children: ClassifyChildren(n)}
	case "INDEX":
		number, ts, _ := strings.Cut(line.Value, " ")
		return IndexItem{Number: number, Time: strings.TrimSpace(ts)}
	default:
		zlog.Debug().Msgf("cuesheet: unknown key %q", line.Key)
		return UnknownItem{Key: line.Key, Value: line.Value}
	}
}

// ClassifyChildren classifies every child of n in order.
func ClassifyChildren(n *Node) []Item {
	items := make([]Item, 0, len(n.Children))
	for _, child := range n.Children {
		if item := Classify(child); item != nil {
			items = append(items, item)
		}
	}
	return items
}

// splitFileValue separates `"name with spaces.wav" WAVE` into name and type.
func splitFileValue(value string) (string, string) {
	if strings.HasPrefix(value, `"`) {
		if end := strings.LastIndex(value, `"`); end > 0 {
			return value[1:end], strings.TrimSpace(value[end+1:])
		}
	}

	fields := strings.Fields(value)
	if len(fields) < 2 {
		return value, ""
	}
	last := fields[len(fields)-1]
	if isFileType(last) {
		return strings.TrimSpace(strings.TrimSuffix(value, last)), last
	}
	return value, ""
}

func isFileType(s string) bool {
	switch strings.ToUpper(s) {
	case "WAVE", "MP3", "AIFF", "BINARY", "MOTOROLA", "FLAC":
		return true
	}
	return false
}

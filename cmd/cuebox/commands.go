package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"maps"
	"slices"
	"strings"
	"time"

	"github.com/osa030/cuebox/internal/app/session"
	"github.com/osa030/cuebox/internal/domain/cuesheet"
	"github.com/osa030/cuebox/internal/domain/song"
)

const volumeStep = 0.05

const helpText = `Commands:
  p              pause / resume
  n              skip to the next song
  f / b          seek forward / backward
  + / -          volume up / down
  a <path>...    add files or cue sheets
  now <path>     play a file or cue sheet now
  l              list the queue
  c              clear the queue
  s              show status
  q              quit`

// readLines sends each line of r until EOF.
func readLines(r io.Reader, lines chan<- string) {
	defer close(lines)
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		lines <- scanner.Text()
	}
}

// handleCommand runs one command line and reports whether to quit.
func handleCommand(ctx context.Context, w io.Writer, mgr *session.Manager, line string) bool {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return false
	}

	switch cmd, args := fields[0], fields[1:]; cmd {
	case "p":
		mgr.Toggle()
	case "n":
		mgr.Skip()
	case "f":
		mgr.SeekForward()
	case "b":
		mgr.SeekBackward()
	case "+":
		fmt.Fprintf(w, "Volume: %.0f%%\n", mgr.ChangeVolume(volumeStep)*100)
	case "-":
		fmt.Fprintf(w, "Volume: %.0f%%\n", mgr.ChangeVolume(-volumeStep)*100)
	case "a":
		if len(args) == 0 {
			fmt.Fprintln(w, "Usage: a <path>...")
			break
		}
		printAddResult(w, mgr.Add(ctx, args...))
	case "now":
		if len(args) != 1 {
			fmt.Fprintln(w, "Usage: now <path>")
			break
		}
		result, err := mgr.PlayNow(ctx, args[0])
		if result != nil {
			printAddResult(w, result)
		}
		if err != nil {
			fmt.Fprintf(w, "Error: %v\n", err)
		}
	case "l":
		printQueue(w, mgr.Queue())
	case "c":
		fmt.Fprintf(w, "Removed %d songs\n", mgr.ClearQueue())
	case "s":
		printStatus(w, mgr.GetStatus())
	case "h", "?":
		fmt.Fprintln(w, helpText)
	case "q":
		return true
	default:
		fmt.Fprintf(w, "Unknown command %q\n", cmd)
	}
	return false
}

func printQueue(w io.Writer, songs []song.Song) {
	if len(songs) == 0 {
		fmt.Fprintln(w, "Queue is empty")
		return
	}
	var total time.Duration
	for i, s := range songs {
		fmt.Fprintf(w, "%3d. %s (%s)\n", i+1, s.DisplayName(), formatDuration(s.Length))
		total += s.Length
	}
	fmt.Fprintf(w, "Total: %d songs, %s\n", len(songs), formatDuration(total))
}

func printStatus(w io.Writer, status *session.Status) {
	fmt.Fprintf(w, "State: %s\n", status.State)
	if status.Current != nil {
		fmt.Fprintf(w, "Now playing: %s [%s / %s]\n",
			status.Current.DisplayName(), formatDuration(status.Position), formatDuration(status.Current.Length))
	}
	fmt.Fprintf(w, "Volume: %.0f%%\n", status.Volume*100)
	fmt.Fprintf(w, "Queue: %d songs, %s\n", status.QueueSize, formatDuration(status.QueueTotal))
	for _, name := range slices.Sorted(maps.Keys(status.Rejections)) {
		fmt.Fprintf(w, "Rejected by %s: %d\n", name, status.Rejections[name])
	}
}

// printCueSheet prints the parsed sheet followed by the songs it yields.
func printCueSheet(w io.Writer, path string, reader song.TagReader) error {
	sheet, err := cuesheet.FromFile(path)
	if err != nil {
		return err
	}

	fmt.Fprintf(w, "Performer: %s\n", sheet.Performer)
	fmt.Fprintf(w, "Title: %s\n", sheet.Title)
	for _, c := range sheet.Comments {
		fmt.Fprintf(w, "REM %s\n", c)
	}
	if sheet.File == nil {
		fmt.Fprintln(w, "No FILE section")
		return nil
	}

	fmt.Fprintf(w, "File: %s (%s)\n", sheet.File.Name, sheet.File.Type)
	for _, t := range sheet.File.Tracks {
		fmt.Fprintf(w, "  TRACK %s %s %s\n", t.Index, t.StartTimeRaw, t.Title)
	}

	songs, err := song.FromCueSheet(sheet, reader)
	if err != nil {
		return err
	}
	fmt.Fprintln(w, "Songs:")
	for i, s := range songs {
		fmt.Fprintf(w, "%3d. %s  +%s  %s\n", i+1, formatDuration(s.StartTime), formatDuration(s.Length), s.DisplayName())
	}
	return nil
}

// formatDuration formats d as m:ss, or h:mm:ss from an hour up.
func formatDuration(d time.Duration) string {
	secs := int(d.Round(time.Second) / time.Second)
	if secs < 0 {
		secs = 0
	}
	h, m, s := secs/3600, secs/60%60, secs%60
	if h > 0 {
		return fmt.Sprintf("%d:%02d:%02d", h, m, s)
	}
	return fmt.Sprintf("%d:%02d", m, s)
}

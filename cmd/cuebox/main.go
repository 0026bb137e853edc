// Package main provides the cuebox player entry point.
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/alecthomas/kingpin/v2"
	"github.com/joho/godotenv"
	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/cuebox/internal/app/filter"
	"github.com/osa030/cuebox/internal/app/notification"
	"github.com/osa030/cuebox/internal/app/session"
	"github.com/osa030/cuebox/internal/infra/audio"
	"github.com/osa030/cuebox/internal/infra/config"
	"github.com/osa030/cuebox/internal/infra/logger"
	"github.com/osa030/cuebox/internal/infra/tags"
)

var (
	app        = kingpin.New("cuebox", "cuebox audio player")
	configPath = app.Flag("config", "Path to config file").Default("config/cuebox.yaml").String()
	verbose    = app.Flag("verbose", "Enable verbose (DEBUG) logging").Short('v').Bool()
	logfile    = app.Flag("logfile", "Path to log file (default: stderr)").String()

	// play command (default)
	playCmd   = app.Command("play", "Play audio files and cue sheets (default)").Default()
	playPaths = playCmd.Arg("paths", "Audio files or cue sheets").Strings()

	// cue command
	cueCmd  = app.Command("cue", "Print a cue sheet and the songs it yields")
	cuePath = cueCmd.Arg("file", "Cue sheet").Required().ExistingFile()

	// list-filters command
	listFiltersCmd = app.Command("list-filters", "List available filters and exit")
)

func main() {
	// Load .env file if it exists (errors are ignored)
	_ = godotenv.Load()

	// Parse command
	command := kingpin.MustParse(app.Parse(os.Args[1:]))

	// Handle list-filters command
	if command == listFiltersCmd.FullCommand() {
		printFilters()
		return
	}

	// Load config
	cfg, err := config.LoadDefault(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	// Override with command-line flags if specified
	if *verbose {
		cfg.Log.Level = "debug"
	}
	if *logfile != "" {
		cfg.Log.Output = logger.OutputFile
		cfg.Log.File = *logfile
	}
	closer, err := logger.Init(cfg.Log)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}

	switch command {
	case cueCmd.FullCommand():
		err = printCueSheet(os.Stdout, *cuePath, tags.NewReader())
	default:
		err = run(cfg, *playPaths)
	}

	_ = closer.Close()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// run executes the player. Using a separate function ensures defer
// statements are executed even when returning with an error.
func run(cfg *config.Config, paths []string) error {
	output, err := audio.NewOutputFromConfig(cfg.Output)
	if err != nil {
		return fmt.Errorf("failed to open audio output: %w", err)
	}

	sessionMgr, err := session.NewManager(cfg, output, tags.NewReader())
	if err != nil {
		return fmt.Errorf("failed to create session manager: %w", err)
	}
	defer sessionMgr.Close()

	// Print notifications as they arrive
	stream := notification.NewChannelStream(64)
	sessionMgr.GetNotificationManager().Subscribe(stream)
	go printNotifications(os.Stdout, stream)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if len(paths) > 0 {
		printAddResult(os.Stdout, sessionMgr.Add(ctx, paths...))
	}

	lines := make(chan string)
	go readLines(os.Stdin, lines)
	fmt.Println(`Type "h" for help.`)

	for {
		select {
		case <-ctx.Done():
			zlog.Info().Msg("Received shutdown signal...")
			return nil
		case <-sessionMgr.Done():
			return nil
		case line, ok := <-lines:
			if !ok {
				// stdin closed; keep playing until interrupted
				lines = nil
				continue
			}
			if quit := handleCommand(ctx, os.Stdout, sessionMgr, line); quit {
				return nil
			}
		}
	}
}

// printFilters prints available filters.
func printFilters() {
	fmt.Println("Available Filters:")
	registry := filter.GetRegistered()
	for _, name := range filter.RegisteredNames() {
		f := registry[name]()
		codes := strings.Join(f.ReturnCodes(), ", ")
		fmt.Printf("  %-30s - %s [codes: %s]\n", f.Name(), f.Description(), codes)
	}
}

func printAddResult(w io.Writer, result *session.AddResult) {
	for _, s := range result.Added {
		fmt.Fprintf(w, "+ %s (%s)\n", s.DisplayName(), formatDuration(s.Length))
	}
	for _, r := range result.Rejected {
		fmt.Fprintf(w, "Rejected [%s]: %s\n", r.Code, r.Song.DisplayName())
	}
	for _, f := range result.Failed {
		fmt.Fprintf(w, "Failed: %s: %v\n", f.Path, f.Err)
	}
}

func printNotifications(w io.Writer, stream *notification.ChannelStream) {
	for n := range stream.C() {
		if n.Message == "" {
			continue
		}
		fmt.Fprintf(w, "[%d] %s\n", n.SequenceNo, n.Message)
	}
}

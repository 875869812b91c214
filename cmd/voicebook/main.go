package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/petems/voicebook/internal/app"
	"github.com/petems/voicebook/internal/audio"
	"github.com/petems/voicebook/internal/backend"
	"github.com/petems/voicebook/internal/capture"
	"github.com/petems/voicebook/internal/clipboard"
	"github.com/petems/voicebook/internal/config"
	"github.com/petems/voicebook/internal/flow"
	"github.com/petems/voicebook/internal/hotkey"
	"github.com/petems/voicebook/internal/logging"
	"github.com/petems/voicebook/internal/permissions"
	"github.com/petems/voicebook/internal/speech"
	"github.com/petems/voicebook/internal/tray"
	"github.com/rs/zerolog"
)

var (
	// Version is set via ldflags at build time
	Version = "dev"
	// Commit is set via ldflags at build time
	Commit = "unknown"
)

func main() {
	configPath := flag.String("config", config.Path(), "path to config.json")
	showVersion := flag.Bool("version", false, "print version and exit")
	flag.Usage = usage
	flag.Parse()

	if *showVersion {
		fmt.Printf("voicebook %s (%s)\n", Version, Commit)
		return
	}

	// Load config from XDG/Library/AppData, with VOICEBOOK_* overrides
	cfg, err := config.LoadFile(*configPath)
	if err != nil {
		// Use default logger if config fails to load
		log := logging.New()
		log.Fatal().Err(err).Msg("Failed to load config")
	}

	// Initialize logger with configured level
	log := logging.NewWithLevel(cfg.LogLevel)

	if flag.NArg() > 0 {
		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		err := runCommand(ctx, flag.Args(), cfg, log, os.Stdout)
		stop()
		if errors.Is(err, errUsage) {
			usage()
			os.Exit(2)
		}
		if err != nil {
			os.Exit(1)
		}
		return
	}

	runTray(cfg, *configPath, log)
}

func runTray(cfg *config.Config, configPath string, log zerolog.Logger) {
	// macOS requires explicit microphone + accessibility approval before capture or hotkeys work
	if err := permissions.EnsurePermissions(); err != nil {
		log.Fatal().Err(err).Msg("Required permissions not granted")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Initialize audio capture and playback
	mic, err := audio.New(cfg.Audio)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize audio")
	}
	defer mic.Close()

	player, err := audio.NewPlayer()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize audio output")
	}
	defer player.Close()

	api := backend.New(cfg.Backend, log)

	// Initialize hotkey manager
	hkManager, err := hotkey.New()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize hotkeys")
	}
	defer hkManager.Close()

	// Create tray UI first (it is the flow's status indicator)
	trayUI := tray.New(nil, cfg, Version, Commit, log) // App reference set below

	results := make(chan capture.Result, 1)
	recorder := capture.New(capture.Config{
		Audio:       mic,
		Transcriber: api,
		Results:     results,
		DeviceID:    cfg.Audio.DeviceID,
		SampleRate:  cfg.Audio.SampleRate,
		Duration:    time.Duration(cfg.Audio.CaptureSeconds) * time.Second,
		Logger:      log,
	})

	page := app.NewPage(log)
	voice := flow.New(flow.Config{
		Capture:   recorder,
		Assistant: api,
		Speaker:   speech.New(api, player, log),
		Dates:     api,
		View: flow.View{
			Transcript: page,
			Form:       page,
			Status:     trayUI,
		},
		STTEndpoint:       cfg.Backend.Endpoint(cfg.Backend.STTPath),
		AIMode:            cfg.Flow.AIMode,
		SilenceSentinels:  cfg.Flow.SilenceSentinels,
		RestartsPerMinute: cfg.Flow.RestartsPerMin,
		Logger:            log,
	})

	go func() {
		if err := voice.Run(ctx, results); err != nil && !errors.Is(err, context.Canceled) {
			log.Error().Err(err).Msg("Voice flow stopped")
		}
	}()

	application := app.New(app.Config{
		Flow:       voice,
		Recorder:   recorder,
		Audio:      mic,
		Backend:    api,
		Page:       page,
		Clipboard:  clipboard.New(log),
		Config:     cfg,
		ConfigPath: configPath,
		Logger:     log,
	})

	// Set app reference in tray
	trayUI.SetApp(application)

	// Register global hotkey
	if err := hkManager.Register(cfg.PlatformHotkey(), application.OnHotkey); err != nil {
		log.Fatal().Err(err).Msg("Failed to register hotkey")
	}

	log.Info().
		Str("backend", cfg.Backend.BaseURL).
		Str("hotkey", cfg.PlatformHotkey()).
		Msg("voicebook starting...")

	// Setup shutdown signal handling
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		<-sigChan
		log.Info().Msg("Shutting down...")
		cancel()
	}()

	// Start tray UI - MUST run on main thread
	if err := trayUI.Run(ctx); err != nil {
		log.Fatal().Err(err).Msg("Tray error")
	}

	shutdownCtx, done := context.WithTimeout(context.Background(), 5*time.Second)
	defer done()
	if err := application.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Shutdown error")
	}
}

func usage() {
	out := flag.CommandLine.Output()
	fmt.Fprintf(out, `Usage: voicebook [flags] [command] [args]

Without a command voicebook runs in the system tray.

Commands:
  check       -doctor ID -time TIME           check a slot
  book        -doctor ID -time TIME ...       check a slot and book it
  cancel      -reason TEXT BOOKING_ID         cancel a booking
  scan        [-copy] BOOKING_ID IMAGE        upload a prescription for scanning
  parse-time  TEXT...                         resolve a spoken booking time

TIME is local time as YYYY-MM-DD HH:MM.

Flags:
`)
	flag.PrintDefaults()
}

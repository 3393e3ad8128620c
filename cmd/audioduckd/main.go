// Package main is the entry point for the audioduckd ducking daemon.
package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/jmylchreest/audioduck/internal/backend"
	"github.com/jmylchreest/audioduck/internal/backend/mpris"
	"github.com/jmylchreest/audioduck/internal/backend/pulse"
	"github.com/jmylchreest/audioduck/internal/config"
	"github.com/jmylchreest/audioduck/internal/daemon"
	"github.com/jmylchreest/audioduck/internal/dbus"
	"github.com/jmylchreest/audioduck/internal/engine"
	"github.com/jmylchreest/audioduck/internal/model"
	"github.com/jmylchreest/audioduck/internal/store"
)

var (
	// Build-time variables
	version = "dev"
)

func main() {
	configPath := flag.String("config", "", "Path to config file (default: ~/.config/audioduck/config.toml)")
	logLevel := flag.String("log-level", "", "Override log level (debug, info, warn, error)")
	showVersion := flag.Bool("version", false, "Show version and exit")
	flag.Parse()

	if *showVersion {
		println("audioduckd version", version)
		os.Exit(0)
	}

	// Bootstrap logger so config errors are reported consistently
	logger := newLogger(slog.LevelInfo)
	slog.SetDefault(logger)

	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	level := cfg.Log.Level
	if *logLevel != "" {
		level = *logLevel
	}
	logger = newLogger(parseLevel(level))
	slog.SetDefault(logger)

	logger.Info("starting audioduckd", "version", version)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Select backends for this host. Missing capabilities degrade to
	// no-ops rather than failing startup.
	var volume backend.VolumeBackend = backend.NoopVolume{}
	var audible backend.AudibleSource
	if pulse.Available() {
		client := pulse.NewClient(logger)
		volume = client
		audible = client
		logger.Info("volume backend ready", "backend", "pulse")
	} else {
		logger.Warn("pactl not found, volume control disabled")
	}

	var media backend.MediaSource
	var transport backend.Transport
	mprisClient := mpris.NewClient(logger)
	if mprisClient.Available() {
		media = mprisClient
		transport = mprisClient
		logger.Info("media backend ready", "backend", "mpris")
	} else {
		logger.Warn("session bus unreachable, playback control disabled")
	}

	probe := backend.NewProbe(audible, media, logger)
	playback := backend.NewController(transport, cfg.Playback.MusicApps, logger)

	// Event journal
	var journal *store.Journal
	if cfg.History.Enabled {
		journal, err = store.OpenJournal(config.JournalPath())
		if err != nil {
			logger.Warn("failed to open event journal, continuing without history", "error", err)
		} else {
			defer journal.Close()
			logger.Info("event journal open", "path", journal.Path())
		}
	}

	fader := engine.NewFader(cfg, volume, playback, logger)
	loop := engine.NewLoop(cfg, probe, fader, logger)

	controlServer := dbus.NewControlServer(loop, logger)

	loop.SetEventFunc(func(eventType model.EventType, detail string) {
		if journal != nil {
			event, err := model.NewEvent(eventType)
			if err != nil {
				logger.Warn("failed to create event", "error", err)
				return
			}
			event.Detail = detail
			if err := journal.Append(*event); err != nil {
				logger.Warn("failed to journal event", "type", eventType, "error", err)
			}
		}
		if err := controlServer.EmitStateChanged(); err != nil {
			logger.Debug("could not emit state change", "error", err)
		}
	})

	if err := controlServer.Start(); err != nil {
		logger.Error("failed to start control server", "error", err)
		os.Exit(1)
	}

	if err := loop.Start(ctx); err != nil {
		logger.Error("failed to start ducking loop", "error", err)
		controlServer.Stop()
		os.Exit(1)
	}

	// Config hot reload
	watchPath := *configPath
	if watchPath == "" {
		watchPath, err = config.ConfigPath()
		if err != nil {
			logger.Warn("failed to resolve config path, hot reload disabled", "error", err)
		}
	}

	var configWatcher *daemon.ConfigWatcher
	if watchPath != "" {
		configWatcher = daemon.NewConfigWatcher(watchPath, logger)
		configWatcher.SetReloadCallback(func(newConfig *config.Config) {
			fader.UpdateConfig(newConfig)
			loop.UpdateConfig(newConfig)
			playback.SetMusicApps(newConfig.Playback.MusicApps)
		})
		configWatcher.SetErrorCallback(func(err error) {
			logger.Warn("ignoring invalid config change", "error", err)
		})
		if err := configWatcher.Start(ctx, cfg); err != nil {
			logger.Warn("failed to start config watcher", "error", err)
		}
	}

	logger.Info("audioduckd ready",
		"bus", dbus.BusName,
		"monitored_apps", cfg.Monitor.Apps,
		"music_apps", cfg.Playback.MusicApps,
	)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigCh
	logger.Info("received signal, shutting down", "signal", sig)
	cancel()

	if configWatcher != nil {
		configWatcher.Stop()
	}
	// Loop.Stop force-restores volume, so it must run before the
	// backends are torn down
	loop.Stop()
	if err := controlServer.Stop(); err != nil {
		logger.Warn("error stopping control server", "error", err)
	}
	if err := mprisClient.Close(); err != nil {
		logger.Warn("error closing mpris client", "error", err)
	}

	logger.Info("audioduckd stopped")
}

func newLogger(level slog.Level) *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	}))
}

func parseLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

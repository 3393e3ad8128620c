package backend

import (
	"log/slog"
	"sync"
)

// Transport issues media transport commands to a named application.
// Implemented by the MPRIS client; nil means the capability is absent.
type Transport interface {
	// IsPlaying reports whether the application's media session is
	// playing. Returns ErrNoSession if the application has none.
	IsPlaying(app string) (bool, error)

	// Pause pauses the application's media session.
	Pause(app string) error

	// Play resumes the application's media session.
	Play(app string) error
}

// Controller implements PlaybackController on top of a Transport.
//
// It tracks whether this process paused playback and whether playback was
// actually running beforehand, so a restore never resumes something the
// user had paused themselves.
type Controller struct {
	mu        sync.Mutex
	transport Transport
	musicApps []string
	logger    *slog.Logger

	pausedByUs bool
	wasPlaying bool
	pausedApp  string
}

// NewController creates a playback controller for the configured music
// apps. A nil transport degrades every operation to a no-op.
func NewController(transport Transport, musicApps []string, logger *slog.Logger) *Controller {
	if logger == nil {
		logger = slog.Default()
	}
	return &Controller{
		transport: transport,
		musicApps: musicApps,
		logger:    logger,
	}
}

// SetMusicApps replaces the candidate music app list (config hot reload).
func (c *Controller) SetMusicApps(apps []string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.musicApps = apps
}

// IsPausedByUs reports whether this process paused playback.
func (c *Controller) IsPausedByUs() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.pausedByUs
}

// Pause pauses the music app, but only if it is currently playing.
// Returns true if a pause command was issued.
func (c *Controller) Pause() bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.transport == nil || c.pausedByUs {
		return false
	}

	app, playing := c.findPlaying()
	c.wasPlaying = playing
	if !playing {
		c.logger.Debug("music app not playing, skipping pause")
		return false
	}

	if err := c.transport.Pause(app); err != nil {
		c.logger.Warn("failed to pause playback", "app", app, "error", err)
		c.wasPlaying = false
		return false
	}

	c.pausedByUs = true
	c.pausedApp = app
	c.logger.Info("paused playback", "app", app)
	return true
}

// Play resumes the music app, but only if we paused it and it was playing
// before. Clears the paused-by-us state either way. Returns true if a
// resume command was issued.
func (c *Controller) Play() bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.transport == nil || !c.pausedByUs {
		return false
	}

	app := c.pausedApp
	wasPlaying := c.wasPlaying
	c.pausedByUs = false
	c.wasPlaying = false
	c.pausedApp = ""

	if !wasPlaying {
		c.logger.Debug("not resuming, playback was not running before pause")
		return false
	}

	if err := c.transport.Play(app); err != nil {
		c.logger.Warn("failed to resume playback", "app", app, "error", err)
		return false
	}

	c.logger.Info("resumed playback", "app", app)
	return true
}

// Toggle resumes if paused-by-us, otherwise pauses.
func (c *Controller) Toggle() bool {
	if c.IsPausedByUs() {
		return c.Play()
	}
	return c.Pause()
}

// findPlaying returns the first configured music app with a playing media
// session. Caller holds the mutex.
func (c *Controller) findPlaying() (string, bool) {
	for _, app := range c.musicApps {
		playing, err := c.transport.IsPlaying(app)
		if err != nil {
			continue
		}
		if playing {
			return app, true
		}
	}
	return "", false
}

// Package engine implements the ducking decision core: the volume fader
// and the polling loop that drives it.
package engine

import (
	"log/slog"
	"sync"
	"time"

	"github.com/jmylchreest/audioduck/internal/backend"
	"github.com/jmylchreest/audioduck/internal/config"
)

const (
	// fadeCancelWait bounds how long a new duck/restore waits for the
	// previous fade goroutine to observe cancellation. Cancellation is
	// best-effort; after the wait the new fade proceeds regardless, and
	// its final step re-asserts the correct target.
	fadeCancelWait = 500 * time.Millisecond

	// resumeSettleDelay gives the player a moment to start producing
	// audio again before the volume comes back up.
	resumeSettleDelay = 100 * time.Millisecond
)

// fadeSpec is a snapshot of everything a fade goroutine needs, taken
// under the fader mutex so the goroutine itself never locks.
type fadeSpec struct {
	target     float64
	steps      int
	stepDelay  time.Duration
	musicApps  []string
	pauseAfter bool
	playBefore bool
}

// Fader owns the duck/restore state and runs smooth, interruptible volume
// transitions for the active music application. At most one fade
// goroutine is live at any time; starting a new one cancels the previous.
type Fader struct {
	volume   backend.VolumeBackend
	playback backend.PlaybackController
	logger   *slog.Logger

	mu              sync.Mutex
	musicApps       []string
	duckLevel       float64
	normalLevel     float64
	fadeDuration    time.Duration
	fadeSteps       int
	pauseWhenDucked bool

	ducked   bool
	fadeStop chan struct{}
	fadeDone chan struct{}
}

// NewFader creates a volume fader.
func NewFader(cfg *config.Config, volume backend.VolumeBackend, playback backend.PlaybackController, logger *slog.Logger) *Fader {
	if logger == nil {
		logger = slog.Default()
	}
	f := &Fader{
		volume:   volume,
		playback: playback,
		logger:   logger,
	}
	f.applyConfig(cfg)
	return f
}

// UpdateConfig applies new fade settings (config hot reload). A fade
// already in flight keeps its original shape.
func (f *Fader) UpdateConfig(cfg *config.Config) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.applyConfig(cfg)
}

// applyConfig copies config fields. Caller holds the mutex (or owns the
// fader exclusively during construction).
func (f *Fader) applyConfig(cfg *config.Config) {
	f.musicApps = cfg.Playback.MusicApps
	f.duckLevel = cfg.Levels.Duck
	f.normalLevel = cfg.Levels.Normal
	f.fadeDuration = cfg.Fade.Duration.Duration()
	f.fadeSteps = cfg.Fade.Steps
	f.pauseWhenDucked = cfg.Playback.PauseWhenDucked
}

// IsDucked reports the committed duck state. It flips synchronously with
// Duck/Restore; the audible volume converges as the fade runs.
func (f *Fader) IsDucked() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.ducked
}

// Duck fades the music volume down and, if configured, pauses playback
// once the fade completes. No-op when already ducked.
func (f *Fader) Duck() {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.ducked {
		return
	}

	f.stopCurrentFade()
	f.ducked = true
	f.startFade(fadeSpec{
		target:     f.duckLevel,
		pauseAfter: f.pauseWhenDucked,
	})
	f.logger.Info("ducking", "target", f.duckLevel)
}

// Restore fades the music volume back up, resuming playback first if this
// process paused it. No-op when not ducked.
func (f *Fader) Restore() {
	f.mu.Lock()
	defer f.mu.Unlock()

	if !f.ducked {
		return
	}

	f.stopCurrentFade()
	f.ducked = false
	f.startFade(fadeSpec{
		target:     f.normalLevel,
		playBefore: f.pauseWhenDucked && f.playback.IsPausedByUs(),
	})
	f.logger.Info("restoring", "target", f.normalLevel)
}

// ForceRestore synchronously restores normal volume with no fade, resumes
// playback if this process paused it, and clears the duck state. Used at
// shutdown and on disable; never blocks beyond the fade-cancel wait.
func (f *Fader) ForceRestore() {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.stopCurrentFade()
	f.ducked = false

	if f.playback.IsPausedByUs() {
		f.playback.Play()
	}

	app := activeMusicApp(f.volume, f.musicApps)
	if app == "" {
		return
	}
	if err := f.volume.SetVolume(app, f.normalLevel); err != nil {
		f.logger.Warn("failed to force restore volume", "app", app, "error", err)
		return
	}
	f.logger.Info("force restored volume", "app", app, "level", f.normalLevel)
}

// stopCurrentFade signals the in-flight fade goroutine and waits, bounded,
// for it to exit. Caller holds the mutex.
func (f *Fader) stopCurrentFade() {
	if f.fadeStop == nil {
		return
	}

	close(f.fadeStop)
	select {
	case <-f.fadeDone:
	case <-time.After(fadeCancelWait):
		f.logger.Warn("fade did not stop within cancel window, proceeding")
	}
	f.fadeStop = nil
	f.fadeDone = nil
}

// startFade fills in the fade shape from current config and launches the
// fade goroutine. Caller holds the mutex.
func (f *Fader) startFade(spec fadeSpec) {
	spec.steps = f.fadeSteps
	spec.stepDelay = f.fadeDuration / time.Duration(f.fadeSteps)
	spec.musicApps = f.musicApps

	stop := make(chan struct{})
	done := make(chan struct{})
	f.fadeStop = stop
	f.fadeDone = done

	go f.fadeTo(spec, stop, done)
}

// fadeTo runs a stepped volume transition toward the target, checking the
// cancellation signal before each sleep. A cancelled fade exits without
// forcing any volume; the operation that cancelled it owns the final
// state. The last step writes the exact target to avoid float drift.
//
// Runs without the fader mutex: everything it needs is in the spec.
func (f *Fader) fadeTo(spec fadeSpec, stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)

	app := activeMusicApp(f.volume, spec.musicApps)
	if app == "" {
		// Expected when the music app simply isn't running
		f.logger.Debug("no music app running, skipping fade")
		return
	}

	if spec.playBefore {
		f.playback.Play()
		select {
		case <-stop:
			return
		case <-time.After(resumeSettleDelay):
		}
	}

	current, err := f.volume.GetVolume(app)
	if err != nil {
		f.logger.Debug("could not read current volume, skipping fade", "app", app, "error", err)
		return
	}

	volumeStep := (spec.target - current) / float64(spec.steps)
	f.logger.Debug("fading", "app", app, "from", current, "to", spec.target)

	for i := 0; i < spec.steps; i++ {
		select {
		case <-stop:
			f.logger.Debug("fade interrupted", "app", app)
			return
		case <-time.After(spec.stepDelay):
		}

		level := current + volumeStep*float64(i+1)
		if err := f.volume.SetVolume(app, level); err != nil {
			f.logger.Debug("failed to set volume during fade", "app", app, "error", err)
		}
	}

	// Land exactly on the target
	if err := f.volume.SetVolume(app, spec.target); err != nil {
		f.logger.Warn("failed to set final fade volume", "app", app, "error", err)
		return
	}
	f.logger.Debug("fade complete", "app", app, "level", spec.target)

	if spec.pauseAfter {
		f.playback.Pause()
	}
}

// activeMusicApp resolves the music app to fade: the first configured name
// with a running audio session. Configuration order is the tie-break.
func activeMusicApp(volume backend.VolumeBackend, apps []string) string {
	for _, app := range apps {
		if volume.IsRunning(app) {
			return app
		}
	}
	return ""
}

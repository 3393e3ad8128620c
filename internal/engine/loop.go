package engine

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/jmylchreest/audioduck/internal/backend"
	"github.com/jmylchreest/audioduck/internal/config"
	"github.com/jmylchreest/audioduck/internal/model"
)

const (
	// errorBackoff replaces the normal poll interval after a probe
	// failure, so a broken sound server isn't hammered.
	errorBackoff = 1 * time.Second

	// stopTimeout bounds how long Stop waits for the poll goroutine.
	stopTimeout = 2 * time.Second
)

// EventFunc receives engine events for journaling or signaling.
type EventFunc func(eventType model.EventType, detail string)

// Loop is the periodic ducking decision loop. Each tick it asks the
// activity probe whether any monitored application is making sound and
// drives the fader accordingly, with hysteresis on the restore side so
// short silence gaps don't flap the volume.
type Loop struct {
	probe  backend.AudioActivityProbe
	fader  *Fader
	logger *slog.Logger

	mu              sync.Mutex
	checkInterval   time.Duration
	restoreDelay    time.Duration
	monitoredApps   []string
	holdWhilePaused bool
	enabled         bool

	// silenceSince is set the instant monitored audio is first observed
	// absent while ducked, cleared when activity resumes or a restore
	// completes. Non-zero only while ducked.
	silenceSince time.Time

	onEvent   EventFunc
	running   bool
	stopCh    chan struct{}
	doneCh    chan struct{}
	errStreak int
}

// NewLoop creates a ducking loop. It starts enabled.
func NewLoop(cfg *config.Config, probe backend.AudioActivityProbe, fader *Fader, logger *slog.Logger) *Loop {
	if logger == nil {
		logger = slog.Default()
	}
	l := &Loop{
		probe:   probe,
		fader:   fader,
		logger:  logger,
		enabled: true,
	}
	l.applyConfig(cfg)
	return l
}

// SetEventFunc sets the callback invoked for every engine event. Must be
// called before Start.
func (l *Loop) SetEventFunc(fn EventFunc) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.onEvent = fn
}

// UpdateConfig applies new monitor settings (config hot reload).
func (l *Loop) UpdateConfig(cfg *config.Config) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.applyConfig(cfg)
}

func (l *Loop) applyConfig(cfg *config.Config) {
	l.checkInterval = cfg.Monitor.CheckInterval.Duration()
	l.restoreDelay = cfg.Monitor.RestoreDelay.Duration()
	l.monitoredApps = cfg.Monitor.Apps
	l.holdWhilePaused = cfg.Monitor.HoldWhilePaused
}

// Enabled reports whether the loop is taking ducking action.
func (l *Loop) Enabled() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.enabled
}

// IsDucked reports the fader's committed duck state.
func (l *Loop) IsDucked() bool {
	return l.fader.IsDucked()
}

// SetEnabled toggles ducking. Disabling releases any active duck
// immediately, bypassing hysteresis: disabling is an explicit override.
func (l *Loop) SetEnabled(enabled bool) {
	l.mu.Lock()
	if l.enabled == enabled {
		l.mu.Unlock()
		return
	}
	l.enabled = enabled
	l.silenceSince = time.Time{}
	l.mu.Unlock()

	if enabled {
		l.logger.Info("ducking enabled")
		l.emit(model.EventEnabled, "")
		return
	}

	l.logger.Info("ducking disabled")
	if l.fader.IsDucked() {
		l.fader.Restore()
		l.emit(model.EventRestore, "disabled")
	}
	l.emit(model.EventDisabled, "")
}

// ForceRestore synchronously restores normal volume and clears the duck
// state, regardless of any in-flight fade.
func (l *Loop) ForceRestore() {
	l.mu.Lock()
	l.silenceSince = time.Time{}
	l.mu.Unlock()

	l.fader.ForceRestore()
	l.emit(model.EventForceRestore, "")
}

// Start launches the poll goroutine.
func (l *Loop) Start(ctx context.Context) error {
	l.mu.Lock()
	if l.running {
		l.mu.Unlock()
		return nil
	}
	l.running = true
	l.stopCh = make(chan struct{})
	l.doneCh = make(chan struct{})
	stopCh, doneCh := l.stopCh, l.doneCh
	l.mu.Unlock()

	go l.run(ctx, stopCh, doneCh)

	l.logger.Info("ducking loop started", "interval", l.checkInterval, "restore_delay", l.restoreDelay)
	l.emit(model.EventStarted, "")
	return nil
}

// Stop signals the poll goroutine, waits bounded for it to exit, then
// force-restores unconditionally. Shutdown must never leave music ducked.
func (l *Loop) Stop() {
	l.mu.Lock()
	if !l.running {
		l.mu.Unlock()
		return
	}
	l.running = false
	close(l.stopCh)
	doneCh := l.doneCh
	l.mu.Unlock()

	select {
	case <-doneCh:
	case <-time.After(stopTimeout):
		l.logger.Warn("poll loop did not stop within timeout")
	}

	l.fader.ForceRestore()
	l.emit(model.EventStopped, "")
	l.logger.Info("ducking loop stopped")
}

// run is the poll goroutine.
func (l *Loop) run(ctx context.Context, stopCh <-chan struct{}, doneCh chan<- struct{}) {
	defer close(doneCh)

	for {
		delay := l.nextDelay()
		select {
		case <-ctx.Done():
			return
		case <-stopCh:
			return
		case <-time.After(delay):
		}

		l.tick(time.Now())
	}
}

// nextDelay returns the sleep before the next poll, stretched while the
// probe keeps failing.
func (l *Loop) nextDelay() time.Duration {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.errStreak > 0 && errorBackoff > l.checkInterval {
		return errorBackoff
	}
	return l.checkInterval
}

// tick evaluates one poll. States: Idle (not ducked), Ducked-Active
// (ducked, monitored audio present), Ducked-Draining (ducked, silence
// being waited out).
func (l *Loop) tick(now time.Time) {
	l.mu.Lock()
	enabled := l.enabled
	apps := l.monitoredApps
	restoreDelay := l.restoreDelay
	holdWhilePaused := l.holdWhilePaused
	l.mu.Unlock()

	if !enabled {
		return
	}

	active, err := l.probe.AnyAudible(apps)
	if err != nil {
		// Fail toward not ducking further, never toward staying ducked
		l.probeError(err)
		active = false
	} else {
		l.clearProbeError()
	}

	ducked := l.fader.IsDucked()

	switch {
	case active && !ducked:
		l.logger.Info("monitored audio detected, ducking")
		l.fader.Duck()
		l.setSilenceSince(time.Time{})
		l.emit(model.EventDuck, "")

	case active && ducked:
		l.setSilenceSince(time.Time{})

	case !active && ducked:
		if holdWhilePaused {
			held, err := l.probe.AnyActiveOrPausedMedia(apps)
			if err == nil && held {
				// A paused session keeps the duck in place
				l.setSilenceSince(time.Time{})
				return
			}
		}

		since := l.silenceStart()
		if since.IsZero() {
			l.setSilenceSince(now)
			l.logger.Debug("monitored audio went silent, waiting out restore delay")
			return
		}
		if now.Sub(since) >= restoreDelay {
			l.logger.Info("monitored audio stayed silent, restoring")
			l.fader.Restore()
			l.setSilenceSince(time.Time{})
			l.emit(model.EventRestore, "")
		}
	}
}

func (l *Loop) silenceStart() time.Time {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.silenceSince
}

func (l *Loop) setSilenceSince(t time.Time) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.silenceSince = t
}

// probeError logs a probe failure, at Warn when the streak starts and at
// Debug while it continues.
func (l *Loop) probeError(err error) {
	l.mu.Lock()
	l.errStreak++
	streak := l.errStreak
	l.mu.Unlock()

	if streak == 1 {
		l.logger.Warn("activity probe failed, treating as silence", "error", err)
	} else {
		l.logger.Debug("activity probe still failing", "error", err, "streak", streak)
	}
}

func (l *Loop) clearProbeError() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.errStreak = 0
}

// emit forwards an event to the callback, if any.
func (l *Loop) emit(eventType model.EventType, detail string) {
	l.mu.Lock()
	fn := l.onEvent
	l.mu.Unlock()

	if fn != nil {
		fn(eventType, detail)
	}
}

// Package backend defines the platform capability contracts the ducking
// engine depends on: per-application volume control, audio activity
// probing, and media playback control.
package backend

import (
	"errors"
	"strings"
)

// ErrUnavailable is returned when the underlying OS facility is absent.
var ErrUnavailable = errors.New("capability unavailable")

// ErrNoSession is returned when no audio session matches an application.
var ErrNoSession = errors.New("no audio session for application")

// NoiseFloor is the normalized level below which a stream is considered
// silent even if technically unmuted.
const NoiseFloor = 0.0001

// VolumeBackend controls a named application's output volume.
type VolumeBackend interface {
	// GetVolume returns the application's current volume in [0,1].
	// Returns ErrNoSession if the application has no audio session.
	GetVolume(app string) (float64, error)

	// SetVolume sets the application's volume, clamping to [0,1].
	SetVolume(app string, level float64) error

	// IsRunning reports whether the application has an audio session.
	IsRunning(app string) bool
}

// AudioActivityProbe reports audio activity for a set of applications.
type AudioActivityProbe interface {
	// AnyAudible reports whether any of the named applications is
	// currently emitting audible sound.
	AnyAudible(apps []string) (bool, error)

	// AnyActiveOrPausedMedia reports whether any of the named
	// applications has a live media session, playing or paused. This
	// distinguishes "stopped/closed" from "merely paused".
	AnyActiveOrPausedMedia(apps []string) (bool, error)
}

// PlaybackController pauses and resumes the music application, remembering
// whether this process was the one that paused it.
type PlaybackController interface {
	// Pause pauses playback if it is currently playing. Returns true if
	// a pause command was issued.
	Pause() bool

	// Play resumes playback if we paused it and it was playing before.
	// Returns true if a resume command was issued.
	Play() bool

	// Toggle resumes if paused-by-us, otherwise pauses.
	Toggle() bool

	// IsPausedByUs reports whether this process paused playback.
	IsPausedByUs() bool
}

// NormalizeAppName lowercases an application name and strips a trailing
// ".exe", so configs carried over from Windows setups keep working.
func NormalizeAppName(name string) string {
	return strings.TrimSuffix(strings.ToLower(strings.TrimSpace(name)), ".exe")
}

// MatchesApp reports whether a session or process name matches the
// configured application name: case-insensitive, exact or substring in
// either direction.
func MatchesApp(sessionName, appName string) bool {
	session := NormalizeAppName(sessionName)
	app := NormalizeAppName(appName)
	if session == "" || app == "" {
		return false
	}
	return session == app || strings.Contains(session, app) || strings.Contains(app, session)
}

// MatchesAny reports whether the session name matches any configured app.
func MatchesAny(sessionName string, apps []string) bool {
	for _, app := range apps {
		if MatchesApp(sessionName, app) {
			return true
		}
	}
	return false
}

// Clamp limits a volume level to [0,1].
func Clamp(level float64) float64 {
	if level < 0 {
		return 0
	}
	if level > 1 {
		return 1
	}
	return level
}

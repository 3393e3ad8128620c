package backend

import (
	"log/slog"
)

// AudibleSource reports whether named applications are emitting sound.
// Implemented by the pulse client.
type AudibleSource interface {
	AnyAudible(apps []string) (bool, error)
}

// MediaSource reports live media sessions for named applications.
// Implemented by the MPRIS client.
type MediaSource interface {
	AnyActiveOrPausedMedia(apps []string) (bool, error)
}

// Probe combines the audible signal and the media-session signal into a
// single AudioActivityProbe. Either source may be nil, in which case its
// signal degrades to "nothing detected".
type Probe struct {
	audible AudibleSource
	media   MediaSource
	logger  *slog.Logger
}

// NewProbe creates a composite activity probe.
func NewProbe(audible AudibleSource, media MediaSource, logger *slog.Logger) *Probe {
	if logger == nil {
		logger = slog.Default()
	}
	return &Probe{
		audible: audible,
		media:   media,
		logger:  logger,
	}
}

// AnyAudible reports whether any of the named applications is emitting
// audible sound.
func (p *Probe) AnyAudible(apps []string) (bool, error) {
	if p.audible == nil {
		return false, ErrUnavailable
	}
	return p.audible.AnyAudible(apps)
}

// AnyActiveOrPausedMedia reports whether any of the named applications is
// emitting sound or holds a playing-or-paused media session.
func (p *Probe) AnyActiveOrPausedMedia(apps []string) (bool, error) {
	audible, err := p.AnyAudible(apps)
	if err == nil && audible {
		return true, nil
	}

	if p.media == nil {
		if err != nil {
			return false, err
		}
		return false, ErrUnavailable
	}
	return p.media.AnyActiveOrPausedMedia(apps)
}

package backend

// NoopVolume is an inert VolumeBackend used when no per-application volume
// facility is available. Every query behaves as if no session exists.
type NoopVolume struct{}

// GetVolume always reports the capability as unavailable.
func (NoopVolume) GetVolume(string) (float64, error) { return 0, ErrUnavailable }

// SetVolume always reports the capability as unavailable.
func (NoopVolume) SetVolume(string, float64) error { return ErrUnavailable }

// IsRunning always reports no session.
func (NoopVolume) IsRunning(string) bool { return false }

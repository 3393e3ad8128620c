package engine

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jmylchreest/audioduck/internal/backend"
	"github.com/jmylchreest/audioduck/internal/config"
)

// fakeVolume is an in-memory VolumeBackend recording every write.
type fakeVolume struct {
	mu      sync.Mutex
	levels  map[string]float64
	running map[string]bool
	writes  []float64
}

func newFakeVolume() *fakeVolume {
	return &fakeVolume{
		levels:  map[string]float64{"spotify": 1.0},
		running: map[string]bool{"spotify": true},
	}
}

func (f *fakeVolume) GetVolume(app string) (float64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	level, ok := f.levels[app]
	if !ok {
		return 0, backend.ErrNoSession
	}
	return level, nil
}

func (f *fakeVolume) SetVolume(app string, level float64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.running[app] {
		return backend.ErrNoSession
	}
	f.levels[app] = level
	f.writes = append(f.writes, level)
	return nil
}

func (f *fakeVolume) IsRunning(app string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.running[app]
}

func (f *fakeVolume) level(app string) float64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.levels[app]
}

func (f *fakeVolume) writeCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.writes)
}

// fakePlayback records pause/resume calls in order.
type fakePlayback struct {
	mu         sync.Mutex
	pausedByUs bool
	calls      []string
}

func (f *fakePlayback) Pause() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, "pause")
	f.pausedByUs = true
	return true
}

func (f *fakePlayback) Play() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, "play")
	f.pausedByUs = false
	return true
}

func (f *fakePlayback) Toggle() bool {
	if f.IsPausedByUs() {
		return f.Play()
	}
	return f.Pause()
}

func (f *fakePlayback) IsPausedByUs() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.pausedByUs
}

func (f *fakePlayback) callLog() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

func testConfig() *config.Config {
	cfg := config.DefaultConfig()
	cfg.Fade.Duration = config.Duration(40 * time.Millisecond)
	cfg.Fade.Steps = 4
	cfg.Playback.PauseWhenDucked = false
	return cfg
}

func TestFaderDuckReachesExactTarget(t *testing.T) {
	volume := newFakeVolume()
	playback := &fakePlayback{}
	fader := NewFader(testConfig(), volume, playback, nil)

	fader.Duck()
	assert.True(t, fader.IsDucked())

	require.Eventually(t, func() bool {
		return volume.level("spotify") == 0.1
	}, time.Second, 5*time.Millisecond)
}

func TestFaderDuckIdempotent(t *testing.T) {
	volume := newFakeVolume()
	fader := NewFader(testConfig(), volume, &fakePlayback{}, nil)

	fader.Duck()
	fader.Duck()
	assert.True(t, fader.IsDucked())

	require.Eventually(t, func() bool {
		return volume.level("spotify") == 0.1
	}, time.Second, 5*time.Millisecond)

	// A second Duck must not start a second fade
	writes := volume.writeCount()
	time.Sleep(60 * time.Millisecond)
	assert.Equal(t, writes, volume.writeCount())
}

func TestFaderRestoreReachesExactTarget(t *testing.T) {
	volume := newFakeVolume()
	fader := NewFader(testConfig(), volume, &fakePlayback{}, nil)

	fader.Duck()
	require.Eventually(t, func() bool {
		return volume.level("spotify") == 0.1
	}, time.Second, 5*time.Millisecond)

	fader.Restore()
	assert.False(t, fader.IsDucked())

	require.Eventually(t, func() bool {
		return volume.level("spotify") == 1.0
	}, time.Second, 5*time.Millisecond)
}

func TestFaderRestoreNoOpWhenNotDucked(t *testing.T) {
	volume := newFakeVolume()
	fader := NewFader(testConfig(), volume, &fakePlayback{}, nil)

	fader.Restore()
	assert.False(t, fader.IsDucked())

	time.Sleep(60 * time.Millisecond)
	assert.Zero(t, volume.writeCount())
}

func TestFaderRestoreInterruptsDuckFade(t *testing.T) {
	volume := newFakeVolume()
	cfg := testConfig()
	// Slow fade so the restore lands mid-flight
	cfg.Fade.Duration = config.Duration(500 * time.Millisecond)
	cfg.Fade.Steps = 10
	fader := NewFader(cfg, volume, &fakePlayback{}, nil)

	fader.Duck()
	time.Sleep(100 * time.Millisecond)
	fader.Restore()

	// The interrupted duck must not win; volume converges to normal
	require.Eventually(t, func() bool {
		return volume.level("spotify") == 1.0
	}, 2*time.Second, 10*time.Millisecond)
	assert.False(t, fader.IsDucked())
}

func TestFaderPauseAfterDuck(t *testing.T) {
	volume := newFakeVolume()
	playback := &fakePlayback{}
	cfg := testConfig()
	cfg.Playback.PauseWhenDucked = true
	fader := NewFader(cfg, volume, playback, nil)

	fader.Duck()

	require.Eventually(t, func() bool {
		return playback.IsPausedByUs()
	}, time.Second, 5*time.Millisecond)

	// Pause comes after the fade has reached its target
	assert.Equal(t, 0.1, volume.level("spotify"))
}

func TestFaderResumeBeforeRestore(t *testing.T) {
	volume := newFakeVolume()
	playback := &fakePlayback{}
	cfg := testConfig()
	cfg.Playback.PauseWhenDucked = true
	fader := NewFader(cfg, volume, playback, nil)

	fader.Duck()
	require.Eventually(t, func() bool {
		return playback.IsPausedByUs()
	}, time.Second, 5*time.Millisecond)

	writesBeforeRestore := volume.writeCount()
	fader.Restore()

	require.Eventually(t, func() bool {
		return volume.level("spotify") == 1.0
	}, time.Second, 5*time.Millisecond)

	// Playback resumed, and it happened before the restore fade wrote
	// any volume
	assert.False(t, playback.IsPausedByUs())
	log := playback.callLog()
	require.Equal(t, []string{"pause", "play"}, log)
	assert.Greater(t, volume.writeCount(), writesBeforeRestore)
}

func TestFaderForceRestore(t *testing.T) {
	volume := newFakeVolume()
	playback := &fakePlayback{}
	cfg := testConfig()
	cfg.Playback.PauseWhenDucked = true
	fader := NewFader(cfg, volume, playback, nil)

	fader.Duck()
	require.Eventually(t, func() bool {
		return playback.IsPausedByUs()
	}, time.Second, 5*time.Millisecond)

	fader.ForceRestore()

	assert.False(t, fader.IsDucked())
	assert.False(t, playback.IsPausedByUs())
	assert.Equal(t, 1.0, volume.level("spotify"))
}

func TestFaderNoMusicAppRunning(t *testing.T) {
	volume := newFakeVolume()
	volume.running["spotify"] = false
	fader := NewFader(testConfig(), volume, &fakePlayback{}, nil)

	fader.Duck()
	assert.True(t, fader.IsDucked())

	time.Sleep(60 * time.Millisecond)
	assert.Zero(t, volume.writeCount())
}

func TestFaderUpdateConfig(t *testing.T) {
	volume := newFakeVolume()
	fader := NewFader(testConfig(), volume, &fakePlayback{}, nil)

	cfg := testConfig()
	cfg.Levels.Duck = 0.3
	fader.UpdateConfig(cfg)

	fader.Duck()
	require.Eventually(t, func() bool {
		return volume.level("spotify") == 0.3
	}, time.Second, 5*time.Millisecond)
}

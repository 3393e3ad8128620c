package engine

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jmylchreest/audioduck/internal/config"
	"github.com/jmylchreest/audioduck/internal/model"
)

// fakeProbe serves scripted activity answers.
type fakeProbe struct {
	mu       sync.Mutex
	audible  bool
	err      error
	media    bool
	mediaErr error
}

func (f *fakeProbe) AnyAudible([]string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.audible, f.err
}

func (f *fakeProbe) AnyActiveOrPausedMedia([]string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.media, f.mediaErr
}

func (f *fakeProbe) set(audible bool, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.audible = audible
	f.err = err
}

// eventLog collects emitted event types.
type eventLog struct {
	mu    sync.Mutex
	types []model.EventType
}

func (e *eventLog) record(eventType model.EventType, _ string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.types = append(e.types, eventType)
}

func (e *eventLog) all() []model.EventType {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]model.EventType(nil), e.types...)
}

func newTestLoop(t *testing.T, cfg *config.Config) (*Loop, *fakeProbe, *fakeVolume, *eventLog) {
	t.Helper()
	volume := newFakeVolume()
	probe := &fakeProbe{}
	fader := NewFader(cfg, volume, &fakePlayback{}, nil)
	loop := NewLoop(cfg, probe, fader, nil)
	events := &eventLog{}
	loop.SetEventFunc(events.record)
	return loop, probe, volume, events
}

func TestLoopDucksOnActivity(t *testing.T) {
	loop, probe, _, events := newTestLoop(t, testConfig())
	probe.set(true, nil)

	loop.tick(time.Now())

	assert.True(t, loop.IsDucked())
	assert.Equal(t, []model.EventType{model.EventDuck}, events.all())
}

func TestLoopIdleOnSilence(t *testing.T) {
	loop, probe, _, events := newTestLoop(t, testConfig())
	probe.set(false, nil)

	loop.tick(time.Now())

	assert.False(t, loop.IsDucked())
	assert.Empty(t, events.all())
}

func TestLoopRestoreHysteresis(t *testing.T) {
	cfg := testConfig()
	cfg.Monitor.RestoreDelay = config.Duration(500 * time.Millisecond)
	loop, probe, _, _ := newTestLoop(t, cfg)

	t0 := time.Now()
	probe.set(true, nil)
	loop.tick(t0)
	require.True(t, loop.IsDucked())

	// Silence starts: first tick arms the timer, later ticks inside the
	// delay keep the duck
	probe.set(false, nil)
	loop.tick(t0.Add(100 * time.Millisecond))
	assert.True(t, loop.IsDucked())

	loop.tick(t0.Add(400 * time.Millisecond))
	assert.True(t, loop.IsDucked())

	// Past the delay the duck releases
	loop.tick(t0.Add(700 * time.Millisecond))
	assert.False(t, loop.IsDucked())
}

func TestLoopActivityResetsDrain(t *testing.T) {
	cfg := testConfig()
	cfg.Monitor.RestoreDelay = config.Duration(500 * time.Millisecond)
	loop, probe, _, _ := newTestLoop(t, cfg)

	t0 := time.Now()
	probe.set(true, nil)
	loop.tick(t0)

	probe.set(false, nil)
	loop.tick(t0.Add(100 * time.Millisecond))

	// Audio comes back mid-drain
	probe.set(true, nil)
	loop.tick(t0.Add(300 * time.Millisecond))

	// Silence again: the old drain must not carry over
	probe.set(false, nil)
	loop.tick(t0.Add(400 * time.Millisecond))
	loop.tick(t0.Add(800 * time.Millisecond))
	assert.True(t, loop.IsDucked(), "drain timer must restart after renewed activity")

	loop.tick(t0.Add(1000 * time.Millisecond))
	assert.False(t, loop.IsDucked())
}

func TestLoopProbeErrorTreatedAsSilence(t *testing.T) {
	cfg := testConfig()
	cfg.Monitor.RestoreDelay = config.Duration(100 * time.Millisecond)
	loop, probe, _, _ := newTestLoop(t, cfg)

	t0 := time.Now()
	probe.set(true, nil)
	loop.tick(t0)
	require.True(t, loop.IsDucked())

	// A failing probe must never hold the duck forever
	probe.set(false, errors.New("sound server down"))
	loop.tick(t0.Add(50 * time.Millisecond))
	loop.tick(t0.Add(200 * time.Millisecond))
	assert.False(t, loop.IsDucked())
}

func TestLoopProbeErrorNeverDucks(t *testing.T) {
	loop, probe, _, events := newTestLoop(t, testConfig())
	probe.set(true, errors.New("sound server down"))

	loop.tick(time.Now())

	assert.False(t, loop.IsDucked())
	assert.Empty(t, events.all())
}

func TestLoopDisabledTakesNoAction(t *testing.T) {
	loop, probe, _, events := newTestLoop(t, testConfig())
	loop.SetEnabled(false)
	probe.set(true, nil)

	loop.tick(time.Now())

	assert.False(t, loop.IsDucked())
	assert.Equal(t, []model.EventType{model.EventDisabled}, events.all())
}

func TestLoopDisableRestoresImmediately(t *testing.T) {
	cfg := testConfig()
	cfg.Monitor.RestoreDelay = config.Duration(time.Hour)
	loop, probe, volume, events := newTestLoop(t, cfg)

	probe.set(true, nil)
	loop.tick(time.Now())
	require.True(t, loop.IsDucked())

	// Disabling bypasses the hour-long hysteresis
	loop.SetEnabled(false)
	assert.False(t, loop.IsDucked())
	assert.False(t, loop.Enabled())

	require.Eventually(t, func() bool {
		return volume.level("spotify") == 1.0
	}, time.Second, 5*time.Millisecond)

	assert.Equal(t, []model.EventType{
		model.EventDuck, model.EventRestore, model.EventDisabled,
	}, events.all())
}

func TestLoopSetEnabledIdempotent(t *testing.T) {
	loop, _, _, events := newTestLoop(t, testConfig())

	loop.SetEnabled(true)
	assert.Empty(t, events.all())

	loop.SetEnabled(false)
	loop.SetEnabled(false)
	assert.Equal(t, []model.EventType{model.EventDisabled}, events.all())
}

func TestLoopHoldWhilePaused(t *testing.T) {
	cfg := testConfig()
	cfg.Monitor.RestoreDelay = config.Duration(100 * time.Millisecond)
	cfg.Monitor.HoldWhilePaused = true
	loop, probe, _, _ := newTestLoop(t, cfg)

	t0 := time.Now()
	probe.set(true, nil)
	loop.tick(t0)
	require.True(t, loop.IsDucked())

	// Silent but a paused media session remains: duck holds
	probe.set(false, nil)
	probe.mu.Lock()
	probe.media = true
	probe.mu.Unlock()

	loop.tick(t0.Add(200 * time.Millisecond))
	loop.tick(t0.Add(400 * time.Millisecond))
	assert.True(t, loop.IsDucked())

	// Session goes away: normal drain applies
	probe.mu.Lock()
	probe.media = false
	probe.mu.Unlock()

	loop.tick(t0.Add(500 * time.Millisecond))
	assert.True(t, loop.IsDucked(), "first silent tick arms the timer")
	loop.tick(t0.Add(700 * time.Millisecond))
	assert.False(t, loop.IsDucked())
}

func TestLoopForceRestore(t *testing.T) {
	loop, probe, volume, events := newTestLoop(t, testConfig())

	probe.set(true, nil)
	loop.tick(time.Now())
	require.True(t, loop.IsDucked())

	loop.ForceRestore()

	assert.False(t, loop.IsDucked())
	assert.Equal(t, 1.0, volume.level("spotify"))
	assert.Contains(t, events.all(), model.EventForceRestore)
}

func TestLoopStartStop(t *testing.T) {
	cfg := testConfig()
	cfg.Monitor.CheckInterval = config.Duration(10 * time.Millisecond)
	loop, probe, volume, events := newTestLoop(t, cfg)

	probe.set(true, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	require.NoError(t, loop.Start(ctx))

	require.Eventually(t, func() bool {
		return loop.IsDucked()
	}, time.Second, 5*time.Millisecond)

	// Stop must leave the volume restored no matter what
	loop.Stop()
	assert.False(t, loop.IsDucked())
	assert.Equal(t, 1.0, volume.level("spotify"))

	all := events.all()
	assert.Contains(t, all, model.EventStarted)
	assert.Contains(t, all, model.EventStopped)
}

func TestLoopUpdateConfig(t *testing.T) {
	loop, probe, _, _ := newTestLoop(t, testConfig())

	cfg := testConfig()
	cfg.Monitor.RestoreDelay = config.Duration(50 * time.Millisecond)
	loop.UpdateConfig(cfg)

	t0 := time.Now()
	probe.set(true, nil)
	loop.tick(t0)
	require.True(t, loop.IsDucked())

	probe.set(false, nil)
	loop.tick(t0.Add(10 * time.Millisecond))
	loop.tick(t0.Add(100 * time.Millisecond))
	assert.False(t, loop.IsDucked(), "shortened restore delay applies")
}

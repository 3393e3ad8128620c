package dbus

import (
	"sync"
	"testing"

	"github.com/godbus/dbus/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeEngine is a scriptable Engine for exercising the control methods
// without a bus connection.
type fakeEngine struct {
	mu       sync.Mutex
	enabled  bool
	ducked   bool
	restores int
}

func (f *fakeEngine) SetEnabled(enabled bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.enabled = enabled
}

func (f *fakeEngine) Enabled() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.enabled
}

func (f *fakeEngine) IsDucked() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.ducked
}

func (f *fakeEngine) ForceRestore() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.restores++
	f.ducked = false
}

func TestControlServerStatus(t *testing.T) {
	engine := &fakeEngine{enabled: true, ducked: true}
	s := NewControlServer(engine, nil)

	enabled, ducked, derr := s.Status()
	require.Nil(t, derr)
	assert.True(t, enabled)
	assert.True(t, ducked)
}

func TestControlServerSetEnabled(t *testing.T) {
	engine := &fakeEngine{enabled: true}
	s := NewControlServer(engine, nil)

	require.Nil(t, s.SetEnabled(false))
	assert.False(t, engine.Enabled())

	require.Nil(t, s.SetEnabled(true))
	assert.True(t, engine.Enabled())
}

func TestControlServerToggle(t *testing.T) {
	engine := &fakeEngine{enabled: true}
	s := NewControlServer(engine, nil)

	enabled, derr := s.Toggle()
	require.Nil(t, derr)
	assert.False(t, enabled)
	assert.False(t, engine.Enabled())

	enabled, derr = s.Toggle()
	require.Nil(t, derr)
	assert.True(t, enabled)
}

func TestControlServerForceRestore(t *testing.T) {
	engine := &fakeEngine{enabled: true, ducked: true}
	s := NewControlServer(engine, nil)

	require.Nil(t, s.ForceRestore())
	assert.Equal(t, 1, engine.restores)
	assert.False(t, engine.IsDucked())
}

func TestEmitStateChangedRequiresRunningServer(t *testing.T) {
	s := NewControlServer(&fakeEngine{}, nil)
	assert.Error(t, s.EmitStateChanged())
}

func TestWrapCallError(t *testing.T) {
	err := dbus.Error{Name: "org.freedesktop.DBus.Error.ServiceUnknown"}
	assert.ErrorIs(t, wrapCallError(err), ErrDaemonNotRunning)

	other := dbus.Error{Name: "org.freedesktop.DBus.Error.NoReply"}
	assert.NotErrorIs(t, wrapCallError(other), ErrDaemonNotRunning)

	assert.Nil(t, wrapCallError(nil))
}

package dbus

import (
	"fmt"
	"log/slog"
	"sync"

	"github.com/godbus/dbus/v5"
	"github.com/godbus/dbus/v5/introspect"
)

// Engine is the daemon surface the control interface drives.
type Engine interface {
	SetEnabled(enabled bool)
	Enabled() bool
	IsDucked() bool
	ForceRestore()
}

// ControlServer exports the control interface on the session bus.
type ControlServer struct {
	engine Engine
	logger *slog.Logger

	mu      sync.Mutex
	conn    *dbus.Conn
	running bool
}

// NewControlServer creates a control server for the given engine.
func NewControlServer(engine Engine, logger *slog.Logger) *ControlServer {
	if logger == nil {
		logger = slog.Default()
	}
	return &ControlServer{
		engine: engine,
		logger: logger,
	}
}

// Start connects to the session bus, exports the control object, and
// claims the bus name. Fails if another daemon instance owns it.
func (s *ControlServer) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return fmt.Errorf("control server already running")
	}

	conn, err := dbus.SessionBus()
	if err != nil {
		return fmt.Errorf("failed to connect to session bus: %w", err)
	}
	s.conn = conn

	if err := conn.Export(s, Path, Interface); err != nil {
		return fmt.Errorf("failed to export control object: %w", err)
	}

	node := &introspect.Node{
		Name: Path,
		Interfaces: []introspect.Interface{
			introspect.IntrospectData,
			{
				Name:    Interface,
				Methods: controlMethods(),
				Signals: controlSignals(),
			},
		},
	}
	if err := conn.Export(introspect.NewIntrospectable(node), Path,
		"org.freedesktop.DBus.Introspectable"); err != nil {
		return fmt.Errorf("failed to export introspectable: %w", err)
	}

	reply, err := conn.RequestName(BusName, dbus.NameFlagDoNotQueue)
	if err != nil {
		return fmt.Errorf("failed to request bus name: %w", err)
	}
	if reply != dbus.RequestNameReplyPrimaryOwner {
		return fmt.Errorf("bus name %s already taken, is another daemon running?", BusName)
	}

	s.running = true
	s.logger.Info("control server started", "bus", BusName, "path", Path)
	return nil
}

// Stop releases the bus name. The shared session bus connection stays
// open.
func (s *ControlServer) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		return nil
	}
	s.running = false

	if s.conn != nil {
		if _, err := s.conn.ReleaseName(BusName); err != nil {
			s.logger.Warn("failed to release bus name", "error", err)
		}
	}

	s.logger.Info("control server stopped")
	return nil
}

// Status returns the daemon state.
// D-Bus method: Status() -> (bb)
func (s *ControlServer) Status() (bool, bool, *dbus.Error) {
	return s.engine.Enabled(), s.engine.IsDucked(), nil
}

// SetEnabled enables or disables ducking.
// D-Bus method: SetEnabled(b) -> nothing
func (s *ControlServer) SetEnabled(enabled bool) *dbus.Error {
	s.logger.Debug("SetEnabled called", "enabled", enabled)
	s.engine.SetEnabled(enabled)
	s.emitStateChanged()
	return nil
}

// Toggle flips the enabled state and returns the new value.
// D-Bus method: Toggle() -> b
func (s *ControlServer) Toggle() (bool, *dbus.Error) {
	enabled := !s.engine.Enabled()
	s.logger.Debug("Toggle called", "enabled", enabled)
	s.engine.SetEnabled(enabled)
	s.emitStateChanged()
	return enabled, nil
}

// ForceRestore restores normal volume immediately.
// D-Bus method: ForceRestore() -> nothing
func (s *ControlServer) ForceRestore() *dbus.Error {
	s.logger.Debug("ForceRestore called")
	s.engine.ForceRestore()
	s.emitStateChanged()
	return nil
}

// EmitStateChanged publishes the current state as a StateChanged signal.
// The daemon calls this when the loop ducks or restores on its own.
func (s *ControlServer) EmitStateChanged() error {
	s.mu.Lock()
	conn := s.conn
	running := s.running
	s.mu.Unlock()

	if !running || conn == nil {
		return fmt.Errorf("control server not running")
	}

	if err := conn.Emit(Path, SignalStateChanged, s.engine.Enabled(), s.engine.IsDucked()); err != nil {
		return fmt.Errorf("failed to emit StateChanged: %w", err)
	}
	return nil
}

func (s *ControlServer) emitStateChanged() {
	if err := s.EmitStateChanged(); err != nil {
		s.logger.Debug("could not emit StateChanged", "error", err)
	}
}

func controlMethods() []introspect.Method {
	return []introspect.Method{
		{
			Name: "Status",
			Args: []introspect.Arg{
				{Name: "enabled", Type: "b", Direction: "out"},
				{Name: "ducked", Type: "b", Direction: "out"},
			},
		},
		{
			Name: "SetEnabled",
			Args: []introspect.Arg{
				{Name: "enabled", Type: "b", Direction: "in"},
			},
		},
		{
			Name: "Toggle",
			Args: []introspect.Arg{
				{Name: "enabled", Type: "b", Direction: "out"},
			},
		},
		{
			Name: "ForceRestore",
		},
	}
}

func controlSignals() []introspect.Signal {
	return []introspect.Signal{
		{
			Name: "StateChanged",
			Args: []introspect.Arg{
				{Name: "enabled", Type: "b"},
				{Name: "ducked", Type: "b"},
			},
		},
	}
}

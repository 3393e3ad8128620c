// Package dbus implements the audioduck control interface on the session
// bus: the daemon exports it, the CLI calls it.
package dbus

// Control interface identity on the session bus.
const (
	// BusName is the well-known bus name the daemon claims.
	BusName = "io.github.jmylchreest.audioduck"
	// Path is the control object path.
	Path = "/io/github/jmylchreest/audioduck"
	// Interface is the control interface name.
	Interface = "io.github.jmylchreest.audioduck.Control"

	// SignalStateChanged is emitted whenever enabled or ducked flips.
	SignalStateChanged = Interface + ".StateChanged"
)

// Status is the daemon state as reported over the control interface.
type Status struct {
	Enabled bool
	Ducked  bool
}

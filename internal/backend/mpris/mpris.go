// Package mpris controls media players over the org.mpris.MediaPlayer2
// D-Bus interface: session discovery, playback status, and play/pause.
package mpris

import (
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/godbus/dbus/v5"

	"github.com/jmylchreest/audioduck/internal/backend"
)

const (
	// BusPrefix is the bus-name prefix every MPRIS player claims.
	BusPrefix = "org.mpris.MediaPlayer2."
	// ObjectPath is the well-known MPRIS object path.
	ObjectPath = "/org/mpris/MediaPlayer2"
	// PlayerInterface is the playback control interface.
	PlayerInterface = "org.mpris.MediaPlayer2.Player"
)

// Playback status values defined by the MPRIS spec.
const (
	StatusPlaying = "Playing"
	StatusPaused  = "Paused"
	StatusStopped = "Stopped"
)

// Session describes one live media player.
type Session struct {
	BusName  string
	Identity string
	Status   string
}

// Active reports whether the session is playing or paused, as opposed to
// stopped.
func (s Session) Active() bool {
	return s.Status == StatusPlaying || s.Status == StatusPaused
}

// PlayerName extracts the player's short name from its bus name, e.g.
// "spotify" from "org.mpris.MediaPlayer2.spotify.instance123".
func PlayerName(busName string) string {
	name := strings.TrimPrefix(busName, BusPrefix)
	// Strip per-instance suffixes some players append
	if i := strings.Index(name, ".instance"); i >= 0 {
		name = name[:i]
	}
	return name
}

// Client discovers and controls MPRIS media players on the session bus.
//
// The bus connection is owned by the client and initialized lazily on
// first use, never held in package state.
type Client struct {
	mu     sync.Mutex
	conn   *dbus.Conn
	logger *slog.Logger
}

// NewClient creates an MPRIS client. No connection is made until the
// first operation.
func NewClient(logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{logger: logger}
}

// connection returns the session bus connection, dialing it on first use.
func (c *Client) connection() (*dbus.Conn, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.conn != nil {
		return c.conn, nil
	}

	conn, err := dbus.SessionBus()
	if err != nil {
		return nil, fmt.Errorf("%w: session bus: %v", backend.ErrUnavailable, err)
	}
	c.conn = conn
	return conn, nil
}

// Available reports whether the session bus can be reached.
func (c *Client) Available() bool {
	_, err := c.connection()
	return err == nil
}

// Close releases the bus connection.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.conn == nil {
		return nil
	}
	err := c.conn.Close()
	c.conn = nil
	return err
}

// Sessions lists all live media players with their playback status.
func (c *Client) Sessions() ([]Session, error) {
	conn, err := c.connection()
	if err != nil {
		return nil, err
	}

	var names []string
	if err := conn.BusObject().Call("org.freedesktop.DBus.ListNames", 0).Store(&names); err != nil {
		return nil, fmt.Errorf("failed to list bus names: %w", err)
	}

	var sessions []Session
	for _, name := range names {
		if !strings.HasPrefix(name, BusPrefix) {
			continue
		}

		session := Session{BusName: name}
		obj := conn.Object(name, ObjectPath)

		if v, err := obj.GetProperty(PlayerInterface + ".PlaybackStatus"); err == nil {
			_ = v.Store(&session.Status)
		} else {
			// Player is mid-startup or mid-teardown, skip this poll
			c.logger.Debug("failed to read playback status", "bus", name, "error", err)
			continue
		}

		if v, err := obj.GetProperty("org.mpris.MediaPlayer2.Identity"); err == nil {
			_ = v.Store(&session.Identity)
		}

		sessions = append(sessions, session)
	}
	return sessions, nil
}

// find returns the first session matching the application name, by player
// bus name or identity.
func (c *Client) find(app string) (*Session, error) {
	sessions, err := c.Sessions()
	if err != nil {
		return nil, err
	}
	for i := range sessions {
		if backend.MatchesApp(PlayerName(sessions[i].BusName), app) ||
			backend.MatchesApp(sessions[i].Identity, app) {
			return &sessions[i], nil
		}
	}
	return nil, backend.ErrNoSession
}

// IsPlaying reports whether the application's media session is playing.
func (c *Client) IsPlaying(app string) (bool, error) {
	session, err := c.find(app)
	if err != nil {
		return false, err
	}
	return session.Status == StatusPlaying, nil
}

// Pause pauses the application's media session.
func (c *Client) Pause(app string) error {
	return c.call(app, "Pause")
}

// Play resumes the application's media session.
func (c *Client) Play(app string) error {
	return c.call(app, "Play")
}

// call invokes a transport method on the application's player.
func (c *Client) call(app, method string) error {
	session, err := c.find(app)
	if err != nil {
		return err
	}

	conn, err := c.connection()
	if err != nil {
		return err
	}

	call := conn.Object(session.BusName, ObjectPath).Call(PlayerInterface+"."+method, 0)
	if call.Err != nil {
		return fmt.Errorf("%s %s: %w", method, app, call.Err)
	}

	c.logger.Debug("issued transport command", "method", method, "app", app, "bus", session.BusName)
	return nil
}

// AnyActiveOrPausedMedia reports whether any of the named applications
// holds a playing-or-paused media session.
func (c *Client) AnyActiveOrPausedMedia(apps []string) (bool, error) {
	sessions, err := c.Sessions()
	if err != nil {
		return false, err
	}
	for _, session := range sessions {
		if !session.Active() {
			continue
		}
		if backend.MatchesAny(PlayerName(session.BusName), apps) ||
			backend.MatchesAny(session.Identity, apps) {
			return true, nil
		}
	}
	return false, nil
}

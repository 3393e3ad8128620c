package dbus

import (
	"errors"
	"fmt"

	"github.com/godbus/dbus/v5"
)

// ErrDaemonNotRunning is returned when the daemon does not own the
// control bus name.
var ErrDaemonNotRunning = errors.New("audioduckd is not running")

// Client calls the daemon's control interface from the CLI.
type Client struct {
	conn *dbus.Conn
}

// NewClient connects to the session bus.
func NewClient() (*Client, error) {
	conn, err := dbus.SessionBus()
	if err != nil {
		return nil, fmt.Errorf("failed to connect to session bus: %w", err)
	}
	return &Client{conn: conn}, nil
}

// Close releases the bus connection.
func (c *Client) Close() error {
	return c.conn.Close()
}

func (c *Client) object() dbus.BusObject {
	return c.conn.Object(BusName, Path)
}

// wrapCallError maps the common "no such name" failure to a friendly
// error.
func wrapCallError(err error) error {
	var dbusErr dbus.Error
	if errors.As(err, &dbusErr) && dbusErr.Name == "org.freedesktop.DBus.Error.ServiceUnknown" {
		return ErrDaemonNotRunning
	}
	return err
}

// Status fetches the daemon state.
func (c *Client) Status() (Status, error) {
	var status Status
	call := c.object().Call(Interface+".Status", 0)
	if call.Err != nil {
		return status, wrapCallError(call.Err)
	}
	if err := call.Store(&status.Enabled, &status.Ducked); err != nil {
		return status, fmt.Errorf("failed to decode status: %w", err)
	}
	return status, nil
}

// SetEnabled enables or disables ducking.
func (c *Client) SetEnabled(enabled bool) error {
	call := c.object().Call(Interface+".SetEnabled", 0, enabled)
	return wrapCallError(call.Err)
}

// Toggle flips ducking and returns the new enabled state.
func (c *Client) Toggle() (bool, error) {
	var enabled bool
	call := c.object().Call(Interface+".Toggle", 0)
	if call.Err != nil {
		return false, wrapCallError(call.Err)
	}
	if err := call.Store(&enabled); err != nil {
		return false, fmt.Errorf("failed to decode toggle reply: %w", err)
	}
	return enabled, nil
}

// ForceRestore asks the daemon to restore normal volume immediately.
func (c *Client) ForceRestore() error {
	call := c.object().Call(Interface+".ForceRestore", 0)
	return wrapCallError(call.Err)
}

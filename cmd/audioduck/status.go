package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/jmylchreest/audioduck/internal/dbus"
)

var statusOpts struct {
	jsonOutput bool
	quiet      bool
}

// WaybarStatus represents the Waybar custom module JSON format.
type WaybarStatus struct {
	Text    string `json:"text"`
	Alt     string `json:"alt,omitempty"`
	Tooltip string `json:"tooltip,omitempty"`
	Class   string `json:"class,omitempty"`
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show daemon status",
	Long: `Show whether the daemon is running, whether ducking is enabled, and
whether music volume is currently ducked.

With --json the status is printed in Waybar's custom module format:

  "custom/audioduck": {
    "exec": "audioduck status --json",
    "interval": 2,
    "return-type": "json",
    "on-click": "audioduck toggle"
  }`,
	RunE: runStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)

	statusCmd.Flags().BoolVar(&statusOpts.jsonOutput, "json", false,
		"Output Waybar-compatible JSON")
	statusCmd.Flags().BoolVarP(&statusOpts.quiet, "quiet", "q", false,
		"Suppress output, return exit code only (0=enabled, 1=disabled, 2=not running)")
}

func runStatus(cmd *cobra.Command, args []string) error {
	client, err := dbus.NewClient()
	if err != nil {
		return reportStatusError(err)
	}
	defer client.Close()

	status, err := client.Status()
	if err != nil {
		return reportStatusError(err)
	}

	if statusOpts.quiet {
		if !status.Enabled {
			os.Exit(1)
		}
		return nil
	}

	if statusOpts.jsonOutput {
		return outputStatus(waybarStatus(status))
	}

	fmt.Printf("Ducking: %s\n", onOff(status.Enabled))
	fmt.Printf("Music volume: %s\n", duckedLabel(status.Ducked))
	return nil
}

// reportStatusError renders a daemon-unreachable state instead of a bare
// error, so status bars get valid output.
func reportStatusError(err error) error {
	if statusOpts.quiet {
		os.Exit(2)
	}
	if statusOpts.jsonOutput {
		if errors.Is(err, dbus.ErrDaemonNotRunning) {
			return outputStatus(WaybarStatus{Text: "", Alt: "stopped", Class: "stopped", Tooltip: "audioduckd not running"})
		}
		return outputStatus(WaybarStatus{Text: "", Alt: "error", Class: "error", Tooltip: err.Error()})
	}
	return err
}

func waybarStatus(status dbus.Status) WaybarStatus {
	switch {
	case !status.Enabled:
		return WaybarStatus{Text: "off", Alt: "disabled", Class: "disabled", Tooltip: "Ducking disabled"}
	case status.Ducked:
		return WaybarStatus{Text: "ducked", Alt: "ducked", Class: "ducked", Tooltip: "Music volume ducked"}
	default:
		return WaybarStatus{Text: "on", Alt: "idle", Class: "idle", Tooltip: "Ducking enabled"}
	}
}

func onOff(b bool) string {
	if b {
		return "enabled"
	}
	return "disabled"
}

func duckedLabel(ducked bool) string {
	if ducked {
		return "ducked"
	}
	return "normal"
}

// outputStatus writes the status as JSON.
func outputStatus(status WaybarStatus) error {
	encoder := json.NewEncoder(os.Stdout)
	return encoder.Encode(status)
}

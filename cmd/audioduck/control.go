package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jmylchreest/audioduck/internal/dbus"
)

// enableCmd turns ducking on.
var enableCmd = &cobra.Command{
	Use:   "enable",
	Short: "Enable automatic ducking",
	Long:  `Enable automatic ducking. The daemon resumes lowering music volume when monitored applications play audio.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return setEnabled(true)
	},
}

// disableCmd turns ducking off.
var disableCmd = &cobra.Command{
	Use:   "disable",
	Short: "Disable automatic ducking",
	Long:  `Disable automatic ducking. If music is currently ducked, its volume is restored immediately.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return setEnabled(false)
	},
}

// toggleCmd flips the enabled state.
var toggleCmd = &cobra.Command{
	Use:   "toggle",
	Short: "Toggle automatic ducking",
	Long:  `Toggle automatic ducking between enabled and disabled.`,
	RunE:  runToggle,
}

// restoreCmd forces an immediate volume restore.
var restoreCmd = &cobra.Command{
	Use:   "restore",
	Short: "Force an immediate volume restore",
	Long: `Force the daemon to restore normal music volume right now, skipping
any fade or restore delay. Ducking stays enabled and will trigger again
on the next monitored audio.`,
	RunE: runRestore,
}

func init() {
	rootCmd.AddCommand(enableCmd)
	rootCmd.AddCommand(disableCmd)
	rootCmd.AddCommand(toggleCmd)
	rootCmd.AddCommand(restoreCmd)
}

func setEnabled(enabled bool) error {
	client, err := dbus.NewClient()
	if err != nil {
		return err
	}
	defer client.Close()

	if err := client.SetEnabled(enabled); err != nil {
		return err
	}

	fmt.Printf("Ducking: %s\n", onOff(enabled))
	return nil
}

func runToggle(cmd *cobra.Command, args []string) error {
	client, err := dbus.NewClient()
	if err != nil {
		return err
	}
	defer client.Close()

	enabled, err := client.Toggle()
	if err != nil {
		return err
	}

	fmt.Printf("Ducking: %s\n", onOff(enabled))
	return nil
}

func runRestore(cmd *cobra.Command, args []string) error {
	client, err := dbus.NewClient()
	if err != nil {
		return err
	}
	defer client.Close()

	if err := client.ForceRestore(); err != nil {
		return err
	}

	fmt.Println("Volume restored")
	return nil
}

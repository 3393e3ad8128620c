package main

import (
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/jmylchreest/audioduck/internal/config"
	"github.com/jmylchreest/audioduck/internal/dbus"
	"github.com/jmylchreest/audioduck/internal/store"
	"github.com/jmylchreest/audioduck/internal/tui"
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Watch the daemon live",
	Long: `Open a live terminal view of the daemon: current ducking state plus
the event journal, updating as the daemon makes decisions.

Keys: e toggles ducking, r forces a volume restore, q quits.`,
	RunE: runWatch,
}

func init() {
	rootCmd.AddCommand(watchCmd)
}

func runWatch(cmd *cobra.Command, args []string) error {
	client, err := dbus.NewClient()
	if err != nil {
		return err
	}
	defer client.Close()

	journal, err := store.OpenJournal(config.JournalPath())
	if err != nil {
		return fmt.Errorf("failed to open journal: %w", err)
	}
	defer journal.Close()

	// Forward journal changes to the view. The channel is buffered so a
	// burst of writes collapses into one pending refresh.
	changeCh := make(chan struct{}, 1)
	watcher, err := store.NewJournalWatcher(journal.Path(), func() {
		select {
		case changeCh <- struct{}{}:
		default:
		}
	})
	if err != nil {
		logger.Warn("failed to create journal watcher, live updates disabled", "error", err)
	} else {
		if err := watcher.Start(); err != nil {
			logger.Warn("failed to start journal watcher", "error", err)
		}
		defer watcher.Stop()
	}

	m := tui.New(client, journal, changeCh)
	p := tea.NewProgram(m, tea.WithAltScreen())
	if _, err := p.Run(); err != nil {
		return fmt.Errorf("watch view failed: %w", err)
	}
	return nil
}

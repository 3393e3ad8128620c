package main

import (
	"fmt"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/jmylchreest/audioduck/internal/config"
	"github.com/jmylchreest/audioduck/internal/store"
)

var historyOpts struct {
	limit int
	clear bool
}

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Show recent ducking events",
	Long: `Show the most recent ducking events from the daemon's journal:
when music was ducked, restored, or ducking was toggled.

Use --clear to truncate the journal.`,
	RunE: runHistory,
}

func init() {
	rootCmd.AddCommand(historyCmd)

	historyCmd.Flags().IntVarP(&historyOpts.limit, "limit", "n", 20,
		"Maximum number of events to show (0 = all)")
	historyCmd.Flags().BoolVar(&historyOpts.clear, "clear", false,
		"Clear the event journal")
}

func runHistory(cmd *cobra.Command, args []string) error {
	journal, err := store.OpenJournal(config.JournalPath())
	if err != nil {
		return fmt.Errorf("failed to open journal: %w", err)
	}
	defer journal.Close()

	if historyOpts.clear {
		if err := journal.Clear(); err != nil {
			return fmt.Errorf("failed to clear journal: %w", err)
		}
		fmt.Println("Event history cleared")
		return nil
	}

	events, err := journal.Load()
	if err != nil {
		return fmt.Errorf("failed to load journal: %w", err)
	}

	if len(events) == 0 {
		fmt.Println("No events recorded")
		return nil
	}

	if historyOpts.limit > 0 && len(events) > historyOpts.limit {
		events = events[len(events)-historyOpts.limit:]
	}

	// Newest first
	for i := len(events) - 1; i >= 0; i-- {
		e := events[i]
		line := fmt.Sprintf("%-14s %s", humanize.Time(e.Time), e.Describe())
		if e.Detail != "" {
			line += fmt.Sprintf(" (%s)", e.Detail)
		}
		fmt.Println(line)
	}

	return nil
}

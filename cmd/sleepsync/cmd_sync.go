package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/jpfieber/sleepsync/internal/syncer"
)

var (
	syncStart     string
	syncEnd       string
	syncJournal   bool
	syncSleepNote bool
)

func init() {
	syncCmd.Flags().StringVar(&syncStart, "start", "", "window start date (YYYY-MM-DD)")
	syncCmd.Flags().StringVar(&syncEnd, "end", "", "window end date (YYYY-MM-DD)")
	syncCmd.Flags().BoolVar(&syncJournal, "journal", false, "write to the journal for this run, overriding config")
	syncCmd.Flags().BoolVar(&syncSleepNote, "sleep-note", false, "write to the sleep note for this run, overriding config")
	rootCmd.AddCommand(syncCmd)
}

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Run one synchronization",
	Long: `Fetches sleep sessions from the configured source, normalizes them
into sleep/wake events, and appends each to the enabled documents exactly
once. Ctrl-C cancels between events; entries already written stand.`,
	Args: cobra.NoArgs,
	RunE: runSync,
}

func runSync(cmd *cobra.Command, args []string) error {
	cfg := loadConfig()
	setupLogging(cfg)

	orch, err := buildOrchestrator(cfg)
	if err != nil {
		return err
	}

	opts := syncer.Options{
		Start: syncStart,
		End:   syncEnd,
		OnProgress: func(p syncer.Progress) {
			fmt.Fprintf(os.Stdout, "\rday %d/%d (%s %s %s)",
				p.DaysProcessed, p.TotalDays, p.Event.Date, p.Event.Time, p.Event.Kind)
		},
	}

	// The destination override is scoped to this one run; the config file
	// is left untouched.
	if cmd.Flags().Changed("journal") || cmd.Flags().Changed("sleep-note") {
		dest := &syncer.Destinations{
			Journal:   cfg.Journal.Enabled,
			SleepNote: cfg.SleepNote.Enabled,
		}
		if cmd.Flags().Changed("journal") {
			dest.Journal = syncJournal
		}
		if cmd.Flags().Changed("sleep-note") {
			dest.SleepNote = syncSleepNote
		}
		opts.Destinations = dest
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	res, err := orch.Sync(ctx, opts)
	fmt.Fprintln(os.Stdout)
	if err != nil {
		return err
	}
	if res.Cancelled {
		fmt.Fprintf(os.Stdout, "Cancelled after %d entries.\n", res.Written)
		return nil
	}
	fmt.Fprintf(os.Stdout, "Done: %d events, %d new entries across %d days.\n",
		res.Events, res.Written, res.Days)
	return nil
}

package main

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/jpfieber/sleepsync/internal/clock"
	"github.com/jpfieber/sleepsync/internal/config"
	"github.com/jpfieber/sleepsync/internal/journal"
	"github.com/jpfieber/sleepsync/internal/notify"
	"github.com/jpfieber/sleepsync/internal/source"
	"github.com/jpfieber/sleepsync/internal/source/calendar"
	"github.com/jpfieber/sleepsync/internal/source/googlefit"
	"github.com/jpfieber/sleepsync/internal/syncer"
	"github.com/jpfieber/sleepsync/internal/vault"
)

var cfgPath string

var rootCmd = &cobra.Command{
	Use:   "sleepsync",
	Short: "Sync sleep events from a calendar feed or Google Fit into journal documents",
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgPath,
		"config",
		filepath.Join(os.Getenv("HOME"), ".sleepsync", "config.json"),
		"config file path")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func loadConfig() *config.Config {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}
	return cfg
}

func setupLogging(cfg *config.Config) {
	var level slog.Level
	switch strings.ToLower(cfg.LogLevel) {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))
}

// newTokenClient builds the Google Fit token client, persisting refreshed
// tokens back into the config file.
func newTokenClient(cfg *config.Config) *googlefit.TokenClient {
	persist := func(tok googlefit.Token) error {
		cfg.GoogleFit.AccessToken = tok.AccessToken
		cfg.GoogleFit.RefreshToken = tok.RefreshToken
		cfg.GoogleFit.TokenExpiry = tok.Expiry
		return config.Save(cfgPath, cfg)
	}
	return googlefit.NewTokenClient(
		cfg.GoogleFit.ClientID,
		cfg.GoogleFit.ClientSecret,
		googlefit.Token{
			AccessToken:  cfg.GoogleFit.AccessToken,
			RefreshToken: cfg.GoogleFit.RefreshToken,
			Expiry:       cfg.GoogleFit.TokenExpiry,
		},
		persist,
		clock.Real{},
	)
}

// buildOrchestrator wires the configured source, vault store, writer, and
// notifier into a ready orchestrator.
func buildOrchestrator(cfg *config.Config) (*syncer.Orchestrator, error) {
	loc := time.Local

	var src source.Source
	switch cfg.Source {
	case "calendar":
		src = calendar.New(cfg.Calendar.URL, loc)
	case "googlefit":
		src = googlefit.New(newTokenClient(cfg), loc)
	default:
		return nil, fmt.Errorf("unknown source %q (want calendar or googlefit)", cfg.Source)
	}

	var notifier notify.Notifier = notify.Log{}
	if cfg.Telegram.Token != "" && cfg.Telegram.ChatID != 0 {
		tg, err := notify.NewTelegram(cfg.Telegram.Token, cfg.Telegram.ChatID)
		if err != nil {
			return nil, fmt.Errorf("create telegram notifier: %w", err)
		}
		notifier = tg
	}

	store := vault.NewFileStore(cfg.VaultDir)
	writer := journal.NewWriter(store, clock.Real{}, loc)

	return syncer.New(syncer.Params{
		Source:      src,
		Writer:      writer,
		Journal:     journal.CategoryFromConfig("journal", cfg.Journal),
		SleepNote:   journal.CategoryFromConfig("sleepnote", cfg.SleepNote),
		JournalOn:   cfg.Journal.Enabled,
		SleepNoteOn: cfg.SleepNote.Enabled,
		UserID:      cfg.UserID,
		DefaultDays: cfg.Sync.DefaultDays,
		Clock:       clock.Real{},
		Location:    loc,
		Notifier:    notifier,
	}), nil
}

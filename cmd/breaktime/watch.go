package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/fatih/color"
	"github.com/goodtune/breaktime/internal/browser"
	"github.com/goodtune/breaktime/internal/budget"
	"github.com/goodtune/breaktime/internal/config"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Show a live budget countdown",
	Long: `Open a foreground countdown over the shared budget state. The countdown
runs locally between storage reconciliations, so it stays smooth even when
the background tracker only evaluates once a minute. Closing the watch
never loses tracked time.`,
	RunE: runWatch,
}

func init() {
	rootCmd.AddCommand(watchCmd)
}

func runWatch(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	// Quiet logger; the terminal belongs to the countdown.
	logger := zerolog.New(os.Stderr).Level(zerolog.ErrorLevel).With().Timestamp().Logger()

	store, err := openStorage(cfg.Storage)
	if err != nil {
		return fmt.Errorf("failed to initialize storage: %w", err)
	}
	defer store.Close()

	inspector := browser.NewAgentClient(browser.AgentConfig{
		Endpoint: cfg.Agent.Endpoint,
		Timeout:  parseDuration(cfg.Agent.Timeout, browser.DefaultAgentTimeout),
	}, logger)

	projector, err := budget.NewProjector(store.State(), logger)
	if err != nil {
		return fmt.Errorf("failed to initialize projector: %w", err)
	}

	ctx := context.Background()
	if err := projector.Open(ctx); err != nil {
		return fmt.Errorf("failed to open projector: %w", err)
	}
	defer projector.Close()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	render := func() error {
		tickCtx, cancel := context.WithTimeout(ctx, time.Second)
		defer cancel()

		focusedURL, err := inspector.FocusedURL(tickCtx)
		if err != nil && !errors.Is(err, browser.ErrNoFocusedPage) {
			focusedURL = ""
		}

		snap, err := projector.Tick(tickCtx, focusedURL)
		if err != nil {
			return err
		}

		printSnapshot(snap)
		return nil
	}

	if err := render(); err != nil {
		return err
	}

	for {
		select {
		case <-ticker.C:
			if err := render(); err != nil {
				return err
			}
		case <-sigChan:
			fmt.Println()
			return nil
		}
	}
}

// printSnapshot rewrites the current terminal line with the countdown.
func printSnapshot(snap budget.Snapshot) {
	label := color.New(color.FgWhite)
	value := color.New(color.FgGreen, color.Bold)

	switch {
	case snap.Phase == budget.PhaseBreak:
		label = color.New(color.FgRed)
		value = color.New(color.FgRed, color.Bold)
	case snap.CountingDown:
		label = color.New(color.FgYellow)
		value = color.New(color.FgYellow, color.Bold)
	}

	state := "idle"
	switch snap.Phase {
	case budget.PhaseBreak:
		state = "on break"
	case budget.PhaseTracking:
		state = "counting"
	}

	fmt.Print("\r\033[K")
	label.Printf("%-8s ", state)
	value.Printf("%s", snap.Countdown)
	label.Printf("  of %d min", snap.AllowedMinutes)
}

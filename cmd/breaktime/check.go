package main

import (
	"context"
	"fmt"
	"time"

	"github.com/fatih/color"
	"github.com/goodtune/breaktime/internal/budget"
	"github.com/goodtune/breaktime/internal/config"
	"github.com/goodtune/breaktime/internal/rules"
	"github.com/goodtune/breaktime/internal/storage"
	"github.com/spf13/cobra"
)

var checkCmd = &cobra.Command{
	Use:   "check URL",
	Short: "Check what the tracker would do for a URL",
	Long: `Check whether a URL matches the configured blocklist and what the
background tracker would do right now if that URL were the focused page.
Nothing is persisted; this is a dry run against the stored state.`,
	Example: `  breaktime -c config.yaml check https://www.youtube.com/watch?v=abc
  breaktime check news.ycombinator.com`,
	Args: cobra.ExactArgs(1),
	RunE: runCheck,
}

func init() {
	rootCmd.AddCommand(checkCmd)
}

func runCheck(cmd *cobra.Command, args []string) error {
	url := args[0]

	// Load configuration
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	store, err := openStorage(cfg.Storage)
	if err != nil {
		return fmt.Errorf("failed to initialize storage: %w", err)
	}
	defer store.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	st, err := store.State().Get(ctx)
	if err != nil {
		return fmt.Errorf("failed to read state: %w", err)
	}

	set := rules.NewSet(st.BlockedEntries)
	pattern, matched := set.Match(url)

	breakURL := cfg.Budget.BreakURL
	if breakURL == "" {
		breakURL = budget.DefaultBreakURL
	}

	out := budget.Evaluate(st, budget.Input{
		NowMS:           storage.NowMS(time.Now()),
		Trigger:         budget.TriggerNavigation,
		FocusedURL:      url,
		Matched:         matched,
		BreakURL:        breakURL,
		WarningWindowMS: parseDuration(cfg.Tracker.WarningWindow, time.Minute).Milliseconds(),
	})

	printCheckResult(url, pattern, matched, st, out)

	return nil
}

func printCheckResult(url, pattern string, matched bool, st *storage.BudgetState, out budget.Outcome) {
	bold := color.New(color.Bold)
	green := color.New(color.FgGreen, color.Bold)
	yellow := color.New(color.FgYellow, color.Bold)
	red := color.New(color.FgRed, color.Bold)

	bold.Printf("URL:      %s\n", url)

	if matched {
		yellow.Printf("Match:    yes")
		fmt.Printf("  (pattern %q)\n", pattern)
	} else {
		green.Println("Match:    no")
	}

	fmt.Printf("Budget:   %d min, %s spent\n",
		st.AllowedMinutes,
		(time.Duration(st.TimeSpentMS) * time.Millisecond).Round(time.Second),
	)

	switch out.Phase {
	case budget.PhaseBreak:
		red.Println("Phase:    BREAK")
	case budget.PhaseTracking:
		yellow.Println("Phase:    TRACKING")
	default:
		green.Println("Phase:    IDLE")
	}

	if out.RedirectTo != "" {
		red.Printf("Action:   redirect to %s\n", out.RedirectTo)
	} else if out.BeginBreakEndMS > 0 {
		red.Printf("Action:   break would start, ending %s\n",
			time.UnixMilli(out.BeginBreakEndMS).Format(time.Kitchen))
	} else if out.Warn {
		yellow.Printf("Action:   low-budget warning (%s remaining)\n",
			(time.Duration(out.RemainingMS) * time.Millisecond).Round(time.Second))
	} else if out.PersistTimeSpent {
		fmt.Println("Action:   time accumulates")
	} else {
		fmt.Println("Action:   none")
	}
}

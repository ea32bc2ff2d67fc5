package handlers

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"adpulse/internal/analysis"
	"adpulse/internal/config"
)

// NewHistoryCmd creates the history listing command
func NewHistoryCmd() *cobra.Command {
	var (
		fp  string
		day string
	)

	cmd := &cobra.Command{
		Use:   "history",
		Short: "List or read persisted analyses for a fingerprint",
		Long: `Scan the trailing history window for analyses persisted under the given
data fingerprint, newest first. With --day, print the full text of the
single analysis persisted on that day instead.

Examples:
  # List the trailing window
  adpulse history --fingerprint all-245-1582340

  # Read one day's analysis in full
  adpulse history --fingerprint all-245-1582340 --day 2026-08-24`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runHistory(cmd.Context(), fp, day)
		},
	}

	cmd.Flags().StringVar(&fp, "fingerprint", "", "Data fingerprint to scan for (required)")
	cmd.Flags().StringVar(&day, "day", "", "Read the full analysis for one day (YYYY-MM-DD)")
	_ = cmd.MarkFlagRequired("fingerprint")

	return cmd
}

func runHistory(ctx context.Context, fp, day string) error {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	p, err := buildPipeline(ctx, cfg)
	if err != nil {
		return err
	}
	defer p.Close()

	if day != "" {
		parsed, err := time.Parse("2006-01-02", day)
		if err != nil {
			return fmt.Errorf("invalid --day %q, expected YYYY-MM-DD: %w", day, err)
		}
		text, err := p.history.ReadByDay(ctx, fp, parsed)
		if errors.Is(err, analysis.ErrNotFound) {
			fmt.Printf("No analysis persisted for %s on %s\n", fp, day)
			return nil
		}
		if err != nil {
			return fmt.Errorf("failed to read analysis: %w", err)
		}
		fmt.Println(text)
		return nil
	}

	items, err := p.history.ListHistory(ctx, fp)
	if err != nil {
		return fmt.Errorf("failed to list history: %w", err)
	}
	if len(items) == 0 {
		fmt.Printf("No analyses persisted for %s in the last %d days\n", fp, cfg.Analysis.HistoryWindowDays)
		return nil
	}

	fmt.Printf("📜 %d analyses for %s\n", len(items), fp)
	fmt.Println("==========================")
	for _, item := range items {
		fmt.Printf("%s  (generated %s)\n", item.Day.Format("2006-01-02"), item.GeneratedAt.Format("2006-01-02 15:04:05"))
	}
	return nil
}

package handlers

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"adpulse/internal/analysis"
	"adpulse/internal/config"
	"adpulse/internal/dataset"
	"adpulse/internal/fingerprint"
)

// NewAnalyzeCmd creates the one-shot analysis command
func NewAnalyzeCmd() *cobra.Command {
	var (
		campaign string
		force    bool
	)

	cmd := &cobra.Command{
		Use:   "analyze",
		Short: "Generate (or read the cached) weekly analysis",
		Long: `Fetch campaign rows from the configured spreadsheet, derive the data
fingerprint, and produce the weekly analysis for the current period.

If a valid analysis is already cached for today's fingerprint it is
returned without calling any model backend. Use --force to regenerate.

Examples:
  # Analysis over all campaigns
  adpulse analyze

  # Analysis scoped to one campaign
  adpulse analyze --campaign "Spring Promo"

  # Regenerate even when a cached analysis exists
  adpulse analyze --force`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAnalyze(cmd.Context(), campaign, force)
		},
	}

	cmd.Flags().StringVar(&campaign, "campaign", fingerprint.AllCampaigns, "Campaign to scope the analysis to (default: all campaigns)")
	cmd.Flags().BoolVar(&force, "force", false, "Bypass the cache and regenerate")

	return cmd
}

func runAnalyze(ctx context.Context, campaign string, force bool) error {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	p, err := buildPipeline(ctx, cfg)
	if err != nil {
		return err
	}
	defer p.Close()

	if p.source == nil {
		return fmt.Errorf("no spreadsheet configured\n\n" +
			"The analyze command needs campaign data. Please set one of:\n" +
			"  • sheets.spreadsheet_id in .adpulse.yaml\n" +
			"  • ADPULSE_SPREADSHEET_ID environment variable\n")
	}

	fmt.Println("📥 Fetching campaign data...")
	records, err := p.source.FetchRecords(ctx)
	if err != nil {
		return fmt.Errorf("failed to fetch campaign data: %w", err)
	}

	filtered := dataset.FilterByCampaign(records, campaign)
	current, historical := dataset.SplitPeriods(filtered, time.Now().UTC(), cfg.Analysis.PeriodDays)
	fp := fingerprint.Derive(campaign, len(current), dataset.SumImpressions(current))

	fmt.Printf("🔎 Fingerprint: %s (%d current rows, %d historical)\n", fp, len(current), len(historical))
	fmt.Println("🤖 Generating analysis...")

	result, err := p.coordinator.EnsureAnalysis(ctx, analysis.Request{
		ContextKey:   campaign,
		Fingerprint:  fp,
		ForceRefresh: force,
		Current:      current,
		Historical:   historical,
	})
	if err != nil {
		return fmt.Errorf("analysis generation failed: %w", err)
	}

	if result.WasCached {
		fmt.Printf("✅ Cached analysis from %s\n\n", result.GeneratedAt.Format("2006-01-02 15:04:05"))
	} else {
		fmt.Println("✅ Fresh analysis generated")
		fmt.Println()
	}
	fmt.Println(result.Text)

	return nil
}

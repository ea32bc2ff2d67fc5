// Package sheets pulls campaign rows from a Google Spreadsheet. It is the one
// concrete implementation of the dataset source the analysis pipeline
// consumes; the pipeline itself never talks to the Sheets API.
package sheets

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"

	"adpulse/internal/config"
	"adpulse/internal/core"
	"adpulse/internal/logger"
)

// Source fetches campaign records from one spreadsheet range.
type Source struct {
	svc           *sheets.Service
	spreadsheetID string
	readRange     string
	log           *slog.Logger
}

// New creates a Sheets-backed source from configuration. Authentication uses
// a service-account credentials file when configured, an API key otherwise.
func New(ctx context.Context, cfg config.Sheets) (*Source, error) {
	if cfg.SpreadsheetID == "" {
		return nil, fmt.Errorf("sheets.spreadsheet_id is required")
	}

	var opts []option.ClientOption
	switch {
	case cfg.CredentialsFile != "":
		opts = append(opts, option.WithCredentialsFile(cfg.CredentialsFile))
	case cfg.APIKey != "":
		opts = append(opts, option.WithAPIKey(cfg.APIKey))
	default:
		return nil, fmt.Errorf("sheets source requires a credentials file or an API key")
	}

	svc, err := sheets.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create Sheets service: %w", err)
	}

	readRange := cfg.ReadRange
	if readRange == "" {
		readRange = "Campaigns!A2:G"
	}

	return &Source{
		svc:           svc,
		spreadsheetID: cfg.SpreadsheetID,
		readRange:     readRange,
		log:           logger.Get(),
	}, nil
}

// FetchRecords reads the configured range and parses it into campaign
// records. Malformed rows are skipped with a warning rather than failing the
// whole fetch; transport errors surface to the caller.
func (s *Source) FetchRecords(ctx context.Context) ([]core.CampaignRecord, error) {
	resp, err := s.svc.Spreadsheets.Values.Get(s.spreadsheetID, s.readRange).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("failed to read spreadsheet values: %w", err)
	}

	records := make([]core.CampaignRecord, 0, len(resp.Values))
	for i, row := range resp.Values {
		record, err := ParseRow(row)
		if err != nil {
			s.log.Warn("Skipping malformed spreadsheet row", "row", i+2, "error", err.Error())
			continue
		}
		records = append(records, record)
	}

	s.log.Info("Fetched campaign records", "count", len(records), "range", s.readRange)
	return records, nil
}

// ParseRow converts one spreadsheet row into a CampaignRecord. Expected
// columns: date, vehicle, campaign, impressions, clicks, cost, conversions.
func ParseRow(row []interface{}) (core.CampaignRecord, error) {
	if len(row) < 7 {
		return core.CampaignRecord{}, fmt.Errorf("expected 7 columns, got %d", len(row))
	}

	date, err := parseDate(cellString(row[0]))
	if err != nil {
		return core.CampaignRecord{}, err
	}

	vehicle := cellString(row[1])
	campaign := cellString(row[2])
	if vehicle == "" || campaign == "" {
		return core.CampaignRecord{}, fmt.Errorf("vehicle and campaign must not be empty")
	}

	impressions, err := cellInt(row[3])
	if err != nil {
		return core.CampaignRecord{}, fmt.Errorf("impressions: %w", err)
	}
	clicks, err := cellInt(row[4])
	if err != nil {
		return core.CampaignRecord{}, fmt.Errorf("clicks: %w", err)
	}
	cost, err := cellFloat(row[5])
	if err != nil {
		return core.CampaignRecord{}, fmt.Errorf("cost: %w", err)
	}
	conversions, err := cellInt(row[6])
	if err != nil {
		return core.CampaignRecord{}, fmt.Errorf("conversions: %w", err)
	}

	return core.CampaignRecord{
		Date:        date,
		Vehicle:     vehicle,
		Campaign:    campaign,
		Impressions: impressions,
		Clicks:      clicks,
		Cost:        cost,
		Conversions: conversions,
	}, nil
}

func cellString(v interface{}) string {
	s, _ := v.(string)
	return strings.TrimSpace(s)
}

func cellInt(v interface{}) (int64, error) {
	s := strings.ReplaceAll(cellString(v), ",", "")
	if s == "" {
		return 0, nil
	}
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("not an integer: %q", s)
	}
	return n, nil
}

func cellFloat(v interface{}) (float64, error) {
	s := strings.ReplaceAll(cellString(v), ",", "")
	s = strings.TrimPrefix(s, "$")
	if s == "" {
		return 0, nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("not a number: %q", s)
	}
	return f, nil
}

// parseDate accepts the date formats spreadsheets commonly emit.
func parseDate(s string) (time.Time, error) {
	for _, layout := range []string{"2006-01-02", "2006/01/02", "01/02/2006"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized date: %q", s)
}

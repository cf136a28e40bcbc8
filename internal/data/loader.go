// Package data loads historical per-day option tick files into the canonical
// time-ordered tick sequence consumed by the backtest engine.
package data

import (
	"math"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/gocarina/gocsv"
	"github.com/rs/zerolog"

	"options-backtester/internal/errors"
	"options-backtester/internal/models"
	"options-backtester/pkg/utils"
)

// tickRow mirrors one CSV record. Numeric columns are read as strings so a
// malformed cell becomes a missing-value marker instead of a fatal error.
type tickRow struct {
	Timestamp     string `csv:"timestamp"`
	UnderlyingLTP string `csv:"underlying_ltp"`
	Strike        string `csv:"strike"`
	Type          string `csv:"type"`
	Price         string `csv:"price"`
	OI            string `csv:"oi"`
	Symbol        string `csv:"symbol"`
}

// LoadOptions controls which files of a data directory are loaded.
type LoadOptions struct {
	// FilePrefix narrows files to PREFIX_YYYY-MM-DD.csv. Empty means
	// YYYY-MM-DD.csv.
	FilePrefix string
	// StartDate / EndDate bound the file dates, inclusive. Zero means
	// unbounded.
	StartDate time.Time
	EndDate   time.Time
}

// LoadDirectory reads all per-day CSV files in dir matching opts and returns
// the combined tick sequence sorted ascending by timestamp, together with
// ingestion diagnostics. An empty directory yields an empty sequence, not an
// error.
func LoadDirectory(dir string, opts LoadOptions, logger zerolog.Logger) ([]models.Tick, []models.Diagnostic, error) {
	info, err := os.Stat(dir)
	if err != nil || !info.IsDir() {
		return nil, nil, errors.Wrapf(errors.ErrDataNotFound, "data directory %s", dir)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, nil, errors.Wrapf(err, "reading data directory %s", dir)
	}

	var ticks []models.Tick
	var diags []models.Diagnostic

	names := make([]string, 0, len(entries))
	for _, entry := range entries {
		if !entry.IsDir() {
			names = append(names, entry.Name())
		}
	}
	sort.Strings(names)

	for _, name := range names {
		fileDate, ok := parseFileDate(name, opts.FilePrefix)
		if !ok {
			continue
		}
		if !utils.IsTradingDay(fileDate) {
			logger.Warn().Str("file", name).Msg("Skipping weekend-dated data file")
			continue
		}
		if !opts.StartDate.IsZero() && fileDate.Before(opts.StartDate) {
			continue
		}
		if !opts.EndDate.IsZero() && fileDate.After(opts.EndDate) {
			continue
		}

		fileTicks, fileDiags, err := loadFile(filepath.Join(dir, name), fileDate)
		if err != nil {
			logger.Warn().Err(err).Str("file", name).Msg("Skipping unreadable data file")
			diags = append(diags, models.Diagnostic{
				Level:   models.DiagnosticWarn,
				Kind:    models.DiagBadRecord,
				Date:    fileDate,
				Message: "unreadable file " + name + ": " + err.Error(),
			})
			continue
		}
		ticks = append(ticks, fileTicks...)
		diags = append(diags, fileDiags...)
	}

	if len(ticks) == 0 {
		diags = append(diags, models.Diagnostic{
			Level:   models.DiagnosticWarn,
			Kind:    models.DiagEmptyData,
			Message: "no historical data loaded from " + dir,
		})
		logger.Warn().Str("dir", dir).Msg("No historical data loaded")
		return nil, diags, nil
	}

	sort.SliceStable(ticks, func(i, j int) bool {
		return ticks[i].Timestamp.Before(ticks[j].Timestamp)
	})

	logger.Info().
		Int("ticks", len(ticks)).
		Str("dir", dir).
		Msg("Historical data loaded")

	return ticks, diags, nil
}

// parseFileDate extracts the trading date from a PREFIX_YYYY-MM-DD.csv name.
func parseFileDate(name, prefix string) (time.Time, bool) {
	if !strings.HasPrefix(name, prefix) || !strings.HasSuffix(name, ".csv") {
		return time.Time{}, false
	}
	datePart := strings.TrimSuffix(strings.TrimPrefix(name, prefix), ".csv")
	date, err := time.Parse("2006-01-02", datePart)
	if err != nil {
		return time.Time{}, false
	}
	return date, true
}

func loadFile(path string, fileDate time.Time) ([]models.Tick, []models.Diagnostic, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, err
	}
	defer f.Close()

	var rows []*tickRow
	if err := gocsv.UnmarshalFile(f, &rows); err != nil {
		return nil, nil, err
	}

	ticks := make([]models.Tick, 0, len(rows))
	var diags []models.Diagnostic

	for _, row := range rows {
		ts, err := parseTimestamp(row.Timestamp, fileDate)
		if err != nil {
			diags = append(diags, models.Diagnostic{
				Level:   models.DiagnosticWarn,
				Kind:    models.DiagBadRecord,
				Date:    fileDate,
				Message: "unparseable timestamp " + row.Timestamp + " in " + filepath.Base(path),
			})
			continue
		}

		strike, ok := parseInt(row.Strike)
		if !ok {
			diags = append(diags, models.Diagnostic{
				Level:     models.DiagnosticWarn,
				Kind:      models.DiagBadRecord,
				Date:      fileDate,
				Timestamp: ts,
				Message:   "non-numeric strike " + row.Strike + " in " + filepath.Base(path),
			})
			continue
		}

		tick := models.Tick{
			Timestamp:     ts,
			Symbol:        strings.ToUpper(strings.TrimSpace(row.Symbol)),
			UnderlyingLTP: parseFloat(row.UnderlyingLTP),
			Strike:        strike,
			Type:          models.OptionType(strings.ToUpper(strings.TrimSpace(row.Type))),
			Price:         parseFloat(row.Price),
			OI:            parseOI(row.OI),
		}
		ticks = append(ticks, tick)
	}

	return ticks, diags, nil
}

// parseTimestamp accepts full datetimes or time-only values; time-only values
// are combined with the file's date. Exchange data carries IST wall-clock
// times.
func parseTimestamp(raw string, fileDate time.Time) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if ts, err := time.ParseInLocation("2006-01-02 15:04:05", raw, utils.IndiaLocation); err == nil {
		return ts, nil
	}
	if ts, err := time.Parse(time.RFC3339, raw); err == nil {
		return ts, nil
	}
	tod, err := time.Parse("15:04:05", raw)
	if err != nil {
		return time.Time{}, err
	}
	return time.Date(fileDate.Year(), fileDate.Month(), fileDate.Day(),
		tod.Hour(), tod.Minute(), tod.Second(), 0, utils.IndiaLocation), nil
}

// parseFloat coerces a numeric cell, producing NaN as the missing-value
// marker for malformed entries. NaN marks propagate to the engine, which
// treats them as unavailable quotes.
func parseFloat(raw string) float64 {
	v, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
	if err != nil {
		return math.NaN()
	}
	return v
}

func parseInt(raw string) (int, bool) {
	v, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
	if err != nil || math.IsNaN(v) {
		return 0, false
	}
	return int(v), true
}

func parseOI(raw string) int64 {
	v, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
	if err != nil {
		return 0
	}
	return v
}

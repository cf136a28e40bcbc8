package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"options-backtester/internal/backtest"
	"options-backtester/internal/config"
	"options-backtester/internal/data"
	"options-backtester/internal/models"
	"options-backtester/internal/report"
	"options-backtester/internal/store"
)

// newInitCmd creates the strategy template generator command.
func newInitCmd(app *App) *cobra.Command {
	var output string

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write a default ATM straddle strategy file",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := config.WriteStrategyTemplate(output); err != nil {
				return err
			}
			color.Green("✓ Strategy template written to %s", output)
			return nil
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "strategy.toml", "path for the strategy file")
	return cmd
}

// newRunCmd creates the backtest run command.
func newRunCmd(app *App) *cobra.Command {
	var (
		dataDir      string
		strategyPath string
		filePrefix   string
		fromDate     string
		toDate       string
		dbPath       string
		showChart    bool
	)

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run a backtest over historical data",
		RunE: func(cmd *cobra.Command, args []string) error {
			strategy, err := config.LoadStrategy(strategyPath)
			if err != nil {
				return err
			}

			opts := data.LoadOptions{FilePrefix: filePrefix}
			if fromDate != "" {
				opts.StartDate, err = time.Parse("2006-01-02", fromDate)
				if err != nil {
					return fmt.Errorf("invalid --from date %q: %w", fromDate, err)
				}
			}
			if toDate != "" {
				opts.EndDate, err = time.Parse("2006-01-02", toDate)
				if err != nil {
					return fmt.Errorf("invalid --to date %q: %w", toDate, err)
				}
			}

			ticks, loadDiags, err := data.LoadDirectory(dataDir, opts, app.Logger)
			if err != nil {
				return err
			}

			engine, err := backtest.NewEngine(strategy, app.Logger)
			if err != nil {
				return err
			}

			result, err := engine.Run(ticks)
			if err != nil {
				return err
			}
			diagnostics := append(loadDiags, result.Diagnostics...)

			jsonOut, _ := cmd.Flags().GetBool("json")
			if jsonOut {
				return printRunJSON(result.Trades, diagnostics)
			}

			summary := report.Summarize(result.Trades)
			color.Cyan("📊 Backtest - %s", strategy.Name)
			fmt.Print(report.FormatTradeTable(result.Trades))
			fmt.Println()
			fmt.Print(report.FormatSummary(summary))
			if summary.TotalPnL >= 0 {
				color.Green("✓ Net result: %+.2f over %d trade(s)", summary.TotalPnL, summary.TotalTrades)
			} else {
				color.Red("✗ Net result: %+.2f over %d trade(s)", summary.TotalPnL, summary.TotalTrades)
			}
			if showChart && len(result.Trades) > 0 {
				fmt.Println()
				fmt.Print(report.GeneratePnLCurveASCII(result.Trades, 60, 12))
			}
			if len(diagnostics) > 0 {
				color.Yellow("⚠️ %d diagnostic(s) recorded; run with --debug for details", len(diagnostics))
			}

			if dbPath != "" {
				if err := persistRun(app, dbPath, strategy.Name, result.Trades, diagnostics); err != nil {
					return err
				}
			}

			return nil
		},
	}

	cmd.Flags().StringVarP(&dataDir, "data", "d", "", "directory of per-day CSV tick files (required)")
	cmd.Flags().StringVarP(&strategyPath, "strategy", "s", "strategy.toml", "strategy configuration file")
	cmd.Flags().StringVar(&filePrefix, "prefix", "", "data file prefix, e.g. NIFTY_")
	cmd.Flags().StringVar(&fromDate, "from", "", "start date YYYY-MM-DD (inclusive)")
	cmd.Flags().StringVar(&toDate, "to", "", "end date YYYY-MM-DD (inclusive)")
	cmd.Flags().StringVar(&dbPath, "db", "", "sqlite database to persist the run into")
	cmd.Flags().BoolVar(&showChart, "chart", false, "render an ASCII cumulative PnL chart")
	cmd.MarkFlagRequired("data")

	return cmd
}

func printRunJSON(trades []models.ClosedTrade, diags []models.Diagnostic) error {
	out := struct {
		Trades      []models.ClosedTrade `json:"trades"`
		Diagnostics []models.Diagnostic  `json:"diagnostics"`
	}{Trades: trades, Diagnostics: diags}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}

func persistRun(app *App, dbPath, strategyName string, trades []models.ClosedTrade, diags []models.Diagnostic) error {
	st, err := store.NewSQLiteStore(dbPath)
	if err != nil {
		return err
	}
	defer st.Close()

	now := time.Now()
	run := &store.RunRecord{
		ID:          fmt.Sprintf("RUN_%s", now.Format("20060102_150405")),
		Strategy:    strategyName,
		CreatedAt:   now,
		Trades:      trades,
		Diagnostics: diags,
	}
	for _, trade := range trades {
		run.TotalPnL += trade.OverallPnL
	}

	ctx := context.Background()
	if err := st.SaveRun(ctx, run); err != nil {
		return err
	}

	app.Logger.Info().
		Str("run_id", run.ID).
		Str("db", dbPath).
		Int("trades", len(trades)).
		Msg("Run persisted")
	color.Green("✓ Run %s persisted to %s", run.ID, dbPath)
	return nil
}

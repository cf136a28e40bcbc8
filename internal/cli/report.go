package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"options-backtester/internal/report"
	"options-backtester/internal/store"
)

// newReportCmd creates the persisted-run report command.
func newReportCmd(app *App) *cobra.Command {
	var (
		dbPath    string
		runID     string
		showChart bool
		showDiags bool
	)

	cmd := &cobra.Command{
		Use:   "report",
		Short: "Report on a persisted backtest run",
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := store.NewSQLiteStore(dbPath)
			if err != nil {
				return err
			}
			defer st.Close()

			ctx := context.Background()

			if runID == "" {
				runs, err := st.GetRuns(ctx, 1)
				if err != nil {
					return err
				}
				if len(runs) == 0 {
					return fmt.Errorf("no runs found in %s", dbPath)
				}
				runID = runs[0].ID
			}

			trades, err := st.GetTrades(ctx, store.TradeFilter{RunID: runID})
			if err != nil {
				return err
			}

			jsonOut, _ := cmd.Flags().GetBool("json")
			if jsonOut {
				enc := json.NewEncoder(os.Stdout)
				enc.SetIndent("", "  ")
				return enc.Encode(trades)
			}

			color.Cyan("📊 Run %s", runID)
			fmt.Println()
			fmt.Print(report.FormatTradeTable(trades))
			fmt.Println()
			fmt.Print(report.FormatSummary(report.Summarize(trades)))
			if showChart && len(trades) > 0 {
				fmt.Println()
				fmt.Print(report.GeneratePnLCurveASCII(trades, 60, 12))
			}

			if showDiags {
				diags, err := st.GetDiagnostics(ctx, runID)
				if err != nil {
					return err
				}
				fmt.Println()
				color.Yellow("⚠️ %d diagnostic(s):", len(diags))
				for _, d := range diags {
					fmt.Printf("  [%s] %s: %s\n", d.Level, d.Kind, d.Message)
				}
			}

			return nil
		},
	}

	cmd.Flags().StringVar(&dbPath, "db", "", "sqlite database with persisted runs (required)")
	cmd.Flags().StringVar(&runID, "run", "", "run ID (default: most recent)")
	cmd.Flags().BoolVar(&showChart, "chart", false, "render an ASCII cumulative PnL chart")
	cmd.Flags().BoolVar(&showDiags, "diagnostics", false, "list the run's diagnostics")
	cmd.MarkFlagRequired("db")

	return cmd
}

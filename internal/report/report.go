// Package report summarizes a backtest run: aggregate metrics, a per-trade
// table and an ASCII cumulative-PnL chart.
package report

import (
	"fmt"
	"strings"

	"options-backtester/internal/models"
	"options-backtester/pkg/utils"
)

// Summary holds aggregate metrics over a run's trade log.
type Summary struct {
	TotalTrades   int
	WinningTrades int
	LosingTrades  int
	TotalPnL      float64
	WinRate       float64
	AvgWin        float64
	AvgLoss       float64
	ProfitFactor  float64
	MaxDrawdown   float64
	BestTrade     float64
	WorstTrade    float64
}

// Summarize computes aggregate metrics from the trade log. Trades arrive in
// close order, which is also date order.
func Summarize(trades []models.ClosedTrade) Summary {
	var s Summary
	s.TotalTrades = len(trades)
	if s.TotalTrades == 0 {
		return s
	}

	var totalWins, totalLosses float64
	var cumulative, peak, maxDD float64
	s.BestTrade = trades[0].OverallPnL
	s.WorstTrade = trades[0].OverallPnL

	for _, trade := range trades {
		pnl := trade.OverallPnL
		s.TotalPnL += pnl

		if pnl > 0 {
			s.WinningTrades++
			totalWins += pnl
		} else {
			s.LosingTrades++
			totalLosses += -pnl
		}
		if pnl > s.BestTrade {
			s.BestTrade = pnl
		}
		if pnl < s.WorstTrade {
			s.WorstTrade = pnl
		}

		// Drawdown over the cumulative PnL curve.
		cumulative += pnl
		if cumulative > peak {
			peak = cumulative
		}
		if dd := peak - cumulative; dd > maxDD {
			maxDD = dd
		}
	}

	s.WinRate = float64(s.WinningTrades) / float64(s.TotalTrades) * 100
	if s.WinningTrades > 0 {
		s.AvgWin = totalWins / float64(s.WinningTrades)
	}
	if s.LosingTrades > 0 {
		s.AvgLoss = -totalLosses / float64(s.LosingTrades)
	}
	if totalLosses > 0 {
		s.ProfitFactor = totalWins / totalLosses
	}
	s.MaxDrawdown = maxDD

	return s
}

// FormatSummary renders the summary as a plain-text block.
func FormatSummary(s Summary) string {
	var sb strings.Builder
	sb.WriteString("Backtest Summary\n")
	sb.WriteString(strings.Repeat("─", 40) + "\n")
	sb.WriteString(fmt.Sprintf("Trades:        %d (%d won / %d lost)\n", s.TotalTrades, s.WinningTrades, s.LosingTrades))
	sb.WriteString(fmt.Sprintf("Total PnL:     %s\n", utils.FormatPnL(s.TotalPnL)))
	sb.WriteString(fmt.Sprintf("Win rate:      %.1f%%\n", s.WinRate))
	sb.WriteString(fmt.Sprintf("Avg win/loss:  %s / %s\n", utils.FormatPnL(s.AvgWin), utils.FormatPnL(s.AvgLoss)))
	if s.ProfitFactor > 0 {
		sb.WriteString(fmt.Sprintf("Profit factor: %.2f\n", s.ProfitFactor))
	}
	sb.WriteString(fmt.Sprintf("Max drawdown:  %s\n", utils.FormatIndianCurrency(s.MaxDrawdown)))
	sb.WriteString(fmt.Sprintf("Best/worst:    %s / %s\n", utils.FormatPnL(s.BestTrade), utils.FormatPnL(s.WorstTrade)))
	return sb.String()
}

// FormatTradeTable renders the per-trade log as a fixed-width table.
func FormatTradeTable(trades []models.ClosedTrade) string {
	if len(trades) == 0 {
		return "No trades closed.\n"
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("%-22s %-12s %-10s %-10s %-5s %12s\n",
		"TRADE", "DATE", "ENTRY", "EXIT", "LEGS", "PNL"))
	sb.WriteString(strings.Repeat("─", 75) + "\n")

	for _, trade := range trades {
		sb.WriteString(fmt.Sprintf("%-22s %-12s %-10s %-10s %-5d %12.2f\n",
			trade.TradeID,
			trade.Date.Format("2006-01-02"),
			trade.EntryTime.Format("15:04:05"),
			trade.ExitTime.Format("15:04:05"),
			len(trade.Legs),
			trade.OverallPnL))
		for _, leg := range trade.Legs {
			sb.WriteString(fmt.Sprintf("    %-18s %s %s %d @ %.2f -> %.2f [%s] %12.2f\n",
				leg.LegID, leg.Side, leg.Type, leg.Strike,
				leg.EntryPrice, leg.ExitPrice, leg.ExitReason, leg.RealizedPnL))
		}
	}

	return sb.String()
}

// GeneratePnLCurveASCII renders the cumulative PnL curve as an ASCII chart.
func GeneratePnLCurveASCII(trades []models.ClosedTrade, width, height int) string {
	if len(trades) == 0 {
		return "No data to display"
	}
	if width <= 0 {
		width = 60
	}
	if height <= 0 {
		height = 12
	}

	curve := make([]float64, len(trades))
	var cumulative float64
	for i, trade := range trades {
		cumulative += trade.OverallPnL
		curve[i] = cumulative
	}

	minPnL, maxPnL := curve[0], curve[0]
	for _, v := range curve {
		if v < minPnL {
			minPnL = v
		}
		if v > maxPnL {
			maxPnL = v
		}
	}

	pnlRange := maxPnL - minPnL
	if pnlRange == 0 {
		pnlRange = 1
	}
	minPnL -= pnlRange * 0.05
	maxPnL += pnlRange * 0.05
	pnlRange = maxPnL - minPnL

	grid := make([][]rune, height)
	for i := range grid {
		grid[i] = make([]rune, width)
		for j := range grid[i] {
			grid[i][j] = ' '
		}
	}

	step := len(curve) / width
	if step == 0 {
		step = 1
	}

	for x := 0; x < width && x*step < len(curve); x++ {
		y := int((curve[x*step] - minPnL) / pnlRange * float64(height-1))
		if y >= 0 && y < height {
			grid[height-1-y][x] = '█'
		}
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Cumulative PnL (%.0f - %.0f)\n", minPnL, maxPnL))
	sb.WriteString(strings.Repeat("─", width+2) + "\n")
	for _, row := range grid {
		sb.WriteRune('│')
		sb.WriteString(string(row))
		sb.WriteRune('│')
		sb.WriteRune('\n')
	}
	sb.WriteString(strings.Repeat("─", width+2) + "\n")

	return sb.String()
}

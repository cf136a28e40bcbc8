package backtest

import (
	"reflect"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"options-backtester/internal/models"
)

func mustTime(t *testing.T, day, hms string) time.Time {
	t.Helper()
	ts, err := time.Parse("2006-01-02 15:04:05", day+" "+hms)
	if err != nil {
		t.Fatalf("bad test timestamp %s %s: %v", day, hms, err)
	}
	return ts
}

func optTick(t *testing.T, day, hms string, strike int, optType models.OptionType, price, ltp float64) models.Tick {
	t.Helper()
	return models.Tick{
		Timestamp:     mustTime(t, day, hms),
		Symbol:        "NIFTY",
		UnderlyingLTP: ltp,
		Strike:        strike,
		Type:          optType,
		Price:         price,
		OI:            1000,
	}
}

func straddleStrategy(targetPct *float64, slPct *float64) *models.StrategyDefinition {
	return &models.StrategyDefinition{
		Name:         "atm-straddle",
		Underlying:   "NIFTY",
		LotSize:      50,
		EntryTime:    models.TimeOfDay{Hour: 9, Minute: 20},
		ExitTime:     models.TimeOfDay{Hour: 15},
		StrikeStep:   50,
		TargetPnLPct: targetPct,
		Legs: []models.LegSpec{
			{Type: models.OptionCall, Side: models.OrderSideSell, QuantityLots: 1, StopLossPct: slPct},
			{Type: models.OptionPut, Side: models.OrderSideSell, QuantityLots: 1, StopLossPct: slPct},
		},
	}
}

func newTestEngine(t *testing.T, strategy *models.StrategyDefinition) *Engine {
	t.Helper()
	engine, err := NewEngine(strategy, zerolog.Nop())
	if err != nil {
		t.Fatalf("NewEngine: %v", err)
	}
	return engine
}

func hasDiag(diags []models.Diagnostic, kind models.DiagnosticKind) bool {
	for _, d := range diags {
		if d.Kind == kind {
			return true
		}
	}
	return false
}

func TestEngineEndToEndEODClose(t *testing.T) {
	const day = "2023-06-01"
	ticks := []models.Tick{
		optTick(t, day, "09:20:00", 25000, models.OptionCall, 120, 24975),
		optTick(t, day, "09:20:00", 25000, models.OptionPut, 110, 24975),
		optTick(t, day, "09:25:00", 25000, models.OptionCall, 80, 24950),
		optTick(t, day, "09:25:00", 25000, models.OptionPut, 90, 24950),
		optTick(t, day, "15:00:00", 25000, models.OptionCall, 60, 24990),
		optTick(t, day, "15:00:00", 25000, models.OptionPut, 50, 24990),
	}

	engine := newTestEngine(t, straddleStrategy(pctPtr(50), pctPtr(25)))
	result, err := engine.Run(ticks)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if len(result.Trades) != 1 {
		t.Fatalf("expected 1 trade, got %d", len(result.Trades))
	}
	trade := result.Trades[0]

	if trade.TradeID != "TRADE_20230601_0" {
		t.Errorf("trade ID = %s, want TRADE_20230601_0", trade.TradeID)
	}
	if len(trade.Legs) != 2 {
		t.Fatalf("expected 2 legs, got %d", len(trade.Legs))
	}
	for _, leg := range trade.Legs {
		if leg.ExitReason != models.ExitReasonEOD {
			t.Errorf("leg %s exit reason = %s, want EOD", leg.LegID, leg.ExitReason)
		}
		if leg.Status != models.LegClosed {
			t.Errorf("leg %s status = %s, want CLOSED", leg.LegID, leg.Status)
		}
		if leg.Strike != 25000 {
			t.Errorf("leg %s strike = %d, want 25000", leg.LegID, leg.Strike)
		}
	}

	// (120-60)*50 + (110-50)*50
	if trade.OverallPnL != 6000 {
		t.Errorf("overall pnl = %v, want 6000", trade.OverallPnL)
	}
	if !trade.EntryTime.Equal(mustTime(t, day, "09:20:00")) {
		t.Errorf("entry time = %v, want 09:20:00", trade.EntryTime)
	}
	if !trade.ExitTime.Equal(mustTime(t, day, "15:00:00")) {
		t.Errorf("exit time = %v, want 15:00:00", trade.ExitTime)
	}
}

func TestEngineTargetHit(t *testing.T) {
	const day = "2023-06-02"
	ticks := []models.Tick{
		optTick(t, day, "09:20:00", 25000, models.OptionCall, 100, 24990),
		optTick(t, day, "09:20:00", 25000, models.OptionPut, 120, 24990),
		// Net credit 220*50 = 11000; cost to close 90*50 = 4500;
		// pnl 6500 >= 5500 at 50% target.
		optTick(t, day, "11:00:00", 25000, models.OptionCall, 40, 25010),
		optTick(t, day, "11:00:00", 25000, models.OptionPut, 50, 25010),
		optTick(t, day, "15:00:00", 25000, models.OptionCall, 30, 25000),
		optTick(t, day, "15:00:00", 25000, models.OptionPut, 45, 25000),
	}

	engine := newTestEngine(t, straddleStrategy(pctPtr(50), pctPtr(200)))
	result, err := engine.Run(ticks)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if len(result.Trades) != 1 {
		t.Fatalf("expected 1 trade, got %d", len(result.Trades))
	}
	trade := result.Trades[0]
	for _, leg := range trade.Legs {
		if leg.ExitReason != models.ExitReasonTarget {
			t.Errorf("leg %s exit reason = %s, want TARGET", leg.LegID, leg.ExitReason)
		}
	}
	if !trade.ExitTime.Equal(mustTime(t, day, "11:00:00")) {
		t.Errorf("exit time = %v, want 11:00:00 target tick", trade.ExitTime)
	}
	if trade.OverallPnL != 6500 {
		t.Errorf("overall pnl = %v, want 6500", trade.OverallPnL)
	}
}

func TestEngineStopLossCollapsesWholePosition(t *testing.T) {
	const day = "2023-06-05"
	ticks := []models.Tick{
		optTick(t, day, "09:20:00", 25000, models.OptionCall, 100, 25000),
		optTick(t, day, "09:20:00", 25000, models.OptionPut, 110, 25000),
		// CE blows through its 25% stop; PE is fine.
		optTick(t, day, "10:00:00", 25000, models.OptionCall, 130, 25120),
		optTick(t, day, "10:00:00", 25000, models.OptionPut, 95, 25120),
		// Later ticks must not reopen a position.
		optTick(t, day, "11:00:00", 25000, models.OptionCall, 90, 25050),
		optTick(t, day, "11:00:00", 25000, models.OptionPut, 100, 25050),
		optTick(t, day, "15:00:00", 25000, models.OptionCall, 80, 25000),
		optTick(t, day, "15:00:00", 25000, models.OptionPut, 105, 25000),
	}

	engine := newTestEngine(t, straddleStrategy(nil, pctPtr(25)))
	result, err := engine.Run(ticks)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	// Single entry per day: the stop-loss collapse ends the day's trade.
	if len(result.Trades) != 1 {
		t.Fatalf("expected exactly 1 trade, got %d", len(result.Trades))
	}
	trade := result.Trades[0]

	// The current policy records only the stopped leg; the untriggered PE
	// leg is dropped with the day.
	if len(trade.Legs) != 1 {
		t.Fatalf("expected 1 closed leg, got %d", len(trade.Legs))
	}
	leg := trade.Legs[0]
	if leg.Type != models.OptionCall || leg.ExitReason != models.ExitReasonStopLoss {
		t.Errorf("closed leg = %s %s, want CE leg with SL reason", leg.Type, leg.ExitReason)
	}
	if leg.RealizedPnL != -1500 {
		t.Errorf("leg pnl = %v, want -1500", leg.RealizedPnL)
	}
	if !trade.ExitTime.Equal(mustTime(t, day, "10:00:00")) {
		t.Errorf("exit time = %v, want the stop tick", trade.ExitTime)
	}
}

func TestEngineMissingLegAtEntry(t *testing.T) {
	const day = "2023-06-06"
	ticks := []models.Tick{
		// Only the CE quote exists at entry time.
		optTick(t, day, "09:20:00", 25000, models.OptionCall, 120, 24975),
		optTick(t, day, "15:00:00", 25000, models.OptionCall, 60, 24990),
	}

	engine := newTestEngine(t, straddleStrategy(nil, nil))
	result, err := engine.Run(ticks)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if !hasDiag(result.Diagnostics, models.DiagMissingLegEntry) {
		t.Error("expected a MISSING_LEG_AT_ENTRY diagnostic")
	}
	if len(result.Trades) != 1 {
		t.Fatalf("expected 1 trade with the single filled leg, got %d trades", len(result.Trades))
	}
	if len(result.Trades[0].Legs) != 1 {
		t.Fatalf("expected 1 leg, got %d", len(result.Trades[0].Legs))
	}
	if result.Trades[0].Legs[0].Type != models.OptionCall {
		t.Errorf("filled leg type = %s, want CE", result.Trades[0].Legs[0].Type)
	}
}

func TestEngineDataGapPastEOD(t *testing.T) {
	const day = "2023-06-07"
	// Ticks stop at 14:50, before the configured 15:00 exit.
	ticks := []models.Tick{
		optTick(t, day, "09:20:00", 25000, models.OptionCall, 120, 24975),
		optTick(t, day, "09:20:00", 25000, models.OptionPut, 110, 24975),
		optTick(t, day, "14:50:00", 25000, models.OptionCall, 100, 24980),
		optTick(t, day, "14:50:00", 25000, models.OptionPut, 95, 24980),
	}

	engine := newTestEngine(t, straddleStrategy(nil, nil))
	result, err := engine.Run(ticks)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if len(result.Trades) != 0 {
		t.Fatalf("stranded position must not be recorded, got %d trades", len(result.Trades))
	}
	if !hasDiag(result.Diagnostics, models.DiagStrandedOpen) {
		t.Error("expected a POSITION_STRANDED_OPEN diagnostic")
	}
}

func TestEngineEntryRetry(t *testing.T) {
	const day = "2023-06-08"
	ticks := []models.Tick{
		// At 09:20 the ATM strike (25000) has no quotes, only a far strike;
		// entry must retry and fill at 09:21.
		optTick(t, day, "09:20:00", 24000, models.OptionCall, 5, 24975),
		optTick(t, day, "09:21:00", 25000, models.OptionCall, 118, 24980),
		optTick(t, day, "09:21:00", 25000, models.OptionPut, 108, 24980),
		optTick(t, day, "15:00:00", 25000, models.OptionCall, 60, 24990),
		optTick(t, day, "15:00:00", 25000, models.OptionPut, 50, 24990),
	}

	engine := newTestEngine(t, straddleStrategy(nil, nil))
	result, err := engine.Run(ticks)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if len(result.Trades) != 1 {
		t.Fatalf("expected 1 trade after retry, got %d", len(result.Trades))
	}
	trade := result.Trades[0]
	if !trade.EntryTime.Equal(mustTime(t, day, "09:21:00")) {
		t.Errorf("entry time = %v, want the retry tick 09:21:00", trade.EntryTime)
	}
	// The failed attempt consumed sequence 0.
	if trade.TradeID != "TRADE_20230608_1" {
		t.Errorf("trade ID = %s, want TRADE_20230608_1", trade.TradeID)
	}
	if !hasDiag(result.Diagnostics, models.DiagMissingLegEntry) {
		t.Error("expected MISSING_LEG_AT_ENTRY diagnostics from the failed attempt")
	}
}

func TestEngineSkipsIncompleteMarks(t *testing.T) {
	const day = "2023-06-09"
	ticks := []models.Tick{
		optTick(t, day, "09:20:00", 25000, models.OptionCall, 100, 24990),
		optTick(t, day, "09:20:00", 25000, models.OptionPut, 110, 24990),
		// CE alone would trip its stop here, but the PE mark is missing:
		// the tick must be skipped entirely.
		optTick(t, day, "10:00:00", 25000, models.OptionCall, 200, 25100),
		optTick(t, day, "15:00:00", 25000, models.OptionCall, 90, 25000),
		optTick(t, day, "15:00:00", 25000, models.OptionPut, 80, 25000),
	}

	engine := newTestEngine(t, straddleStrategy(nil, pctPtr(25)))
	result, err := engine.Run(ticks)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if !hasDiag(result.Diagnostics, models.DiagIncompleteMark) {
		t.Error("expected an INCOMPLETE_MARKS diagnostic")
	}
	if len(result.Trades) != 1 {
		t.Fatalf("expected 1 trade, got %d", len(result.Trades))
	}
	for _, leg := range result.Trades[0].Legs {
		if leg.ExitReason != models.ExitReasonEOD {
			t.Errorf("leg %s exit reason = %s, want EOD (stop tick skipped)", leg.LegID, leg.ExitReason)
		}
	}
}

func TestEngineEmptyInput(t *testing.T) {
	engine := newTestEngine(t, straddleStrategy(nil, nil))
	result, err := engine.Run(nil)
	if err != nil {
		t.Fatalf("empty input must not error: %v", err)
	}
	if len(result.Trades) != 0 {
		t.Fatalf("expected empty trade log, got %d trades", len(result.Trades))
	}
	if !hasDiag(result.Diagnostics, models.DiagEmptyData) {
		t.Error("expected an EMPTY_DATA diagnostic")
	}
}

func TestEngineMultiDayDateOrder(t *testing.T) {
	days := []string{"2023-06-01", "2023-06-02", "2023-06-05"}
	var ticks []models.Tick
	for _, day := range days {
		ticks = append(ticks,
			optTick(t, day, "09:20:00", 25000, models.OptionCall, 120, 24975),
			optTick(t, day, "09:20:00", 25000, models.OptionPut, 110, 24975),
			optTick(t, day, "15:00:00", 25000, models.OptionCall, 60, 24990),
			optTick(t, day, "15:00:00", 25000, models.OptionPut, 50, 24990),
		)
	}

	engine := newTestEngine(t, straddleStrategy(nil, nil))
	result, err := engine.Run(ticks)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if len(result.Trades) != 3 {
		t.Fatalf("expected 3 trades, got %d", len(result.Trades))
	}
	wantIDs := []string{"TRADE_20230601_0", "TRADE_20230602_1", "TRADE_20230605_2"}
	for i, trade := range result.Trades {
		if trade.TradeID != wantIDs[i] {
			t.Errorf("trade[%d] ID = %s, want %s", i, trade.TradeID, wantIDs[i])
		}
	}
}

func TestEngineDeterminism(t *testing.T) {
	const day = "2023-06-12"
	ticks := []models.Tick{
		optTick(t, day, "09:20:00", 25000, models.OptionCall, 120, 24975),
		optTick(t, day, "09:20:00", 25000, models.OptionPut, 110, 24975),
		optTick(t, day, "10:30:00", 25000, models.OptionCall, 152, 25080),
		optTick(t, day, "10:30:00", 25000, models.OptionPut, 70, 25080),
		optTick(t, day, "15:00:00", 25000, models.OptionCall, 90, 25000),
		optTick(t, day, "15:00:00", 25000, models.OptionPut, 60, 25000),
	}

	engine := newTestEngine(t, straddleStrategy(pctPtr(50), pctPtr(25)))

	first, err := engine.Run(ticks)
	if err != nil {
		t.Fatalf("first run: %v", err)
	}
	second, err := engine.Run(ticks)
	if err != nil {
		t.Fatalf("second run: %v", err)
	}

	if !reflect.DeepEqual(first, second) {
		t.Error("re-running the engine on identical input produced a different trade log")
	}
}

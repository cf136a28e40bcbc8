package backtest

import (
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/rs/zerolog"

	"options-backtester/internal/errors"
	"options-backtester/internal/models"
)

// Engine drives the day-by-day, tick-by-tick simulation of one strategy over
// historical data. A run is strictly sequential: days in ascending date
// order, timestamps ascending within each day.
type Engine struct {
	strategy *models.StrategyDefinition
	logger   zerolog.Logger
}

// NewEngine creates a backtest engine for the given strategy definition.
func NewEngine(strategy *models.StrategyDefinition, logger zerolog.Logger) (*Engine, error) {
	if strategy == nil {
		return nil, errors.NewConfigError("strategy", nil, "required")
	}
	if strategy.LotSize <= 0 {
		return nil, errors.NewConfigError("lot_size", strategy.LotSize, "must be a positive integer")
	}
	if strategy.StrikeStep <= 0 {
		return nil, errors.NewConfigError("strike_selection.step", strategy.StrikeStep, "must be a positive integer")
	}
	if len(strategy.Legs) == 0 {
		return nil, errors.NewConfigError("legs", nil, "at least one leg is required")
	}

	return &Engine{
		strategy: strategy,
		logger:   logger.With().Str("strategy", strategy.Name).Logger(),
	}, nil
}

// Result is the outcome of a run: the ordered trade log plus the diagnostics
// accumulated alongside it. A run always returns both; it never aborts on a
// single day's or leg's malformed data.
type Result struct {
	Trades      []models.ClosedTrade
	Diagnostics []models.Diagnostic
}

// Run simulates the strategy over the given tick sequence, which must be
// sorted ascending by timestamp. Empty input yields an empty trade log.
func (e *Engine) Run(ticks []models.Tick) (*Result, error) {
	result := &Result{
		Trades:      make([]models.ClosedTrade, 0),
		Diagnostics: make([]models.Diagnostic, 0),
	}

	if len(ticks) == 0 {
		result.Diagnostics = append(result.Diagnostics, models.Diagnostic{
			Level:   models.DiagnosticWarn,
			Kind:    models.DiagEmptyData,
			Message: "historical data is empty, nothing to simulate",
		})
		e.logger.Warn().Msg("Historical data is empty, nothing to simulate")
		return result, nil
	}

	days := e.groupDays(ticks)
	seq := 0

	for _, day := range days {
		trade, diags := e.simulateDay(day, &seq)
		result.Diagnostics = append(result.Diagnostics, diags...)
		if trade != nil {
			result.Trades = append(result.Trades, *trade)
		}
	}

	e.logger.Info().
		Int("days", len(days)).
		Int("trades", len(result.Trades)).
		Int("diagnostics", len(result.Diagnostics)).
		Msg("Backtest run complete")

	return result, nil
}

// quoteKey identifies one option contract within a frame.
type quoteKey struct {
	symbol  string
	strike  int
	optType models.OptionType
}

// frame is all market data observed at one timestamp: the underlying LTP and
// every option quote, keyed for exact-timestamp lookups.
type frame struct {
	ts     time.Time
	ltp    float64
	quotes map[quoteKey]float64
}

func (f *frame) quote(symbol string, strike int, optType models.OptionType) (float64, bool) {
	price, ok := f.quotes[quoteKey{symbol: symbol, strike: strike, optType: optType}]
	return price, ok
}

// tradingDay is one calendar day's frames, in ascending timestamp order.
type tradingDay struct {
	date   time.Time
	frames []*frame
}

// groupDays splits the sorted tick sequence into per-day frame sequences.
func (e *Engine) groupDays(ticks []models.Tick) []*tradingDay {
	byDate := make(map[string]*tradingDay)
	var order []string

	for _, tick := range ticks {
		date := tick.Date()
		key := date.Format("2006-01-02")
		day, ok := byDate[key]
		if !ok {
			day = &tradingDay{date: date}
			byDate[key] = day
			order = append(order, key)
		}

		var fr *frame
		if n := len(day.frames); n > 0 && day.frames[n-1].ts.Equal(tick.Timestamp) {
			fr = day.frames[n-1]
		} else {
			fr = &frame{
				ts:     tick.Timestamp,
				ltp:    math.NaN(),
				quotes: make(map[quoteKey]float64),
			}
			day.frames = append(day.frames, fr)
		}

		if tick.Symbol == e.strategy.Underlying && math.IsNaN(fr.ltp) && !math.IsNaN(tick.UnderlyingLTP) {
			fr.ltp = tick.UnderlyingLTP
		}
		qk := quoteKey{symbol: tick.Symbol, strike: tick.Strike, optType: tick.Type}
		if _, exists := fr.quotes[qk]; !exists && !math.IsNaN(tick.Price) {
			fr.quotes[qk] = tick.Price
		}
	}

	// Input is sorted by timestamp, so first-appearance order is date order.
	days := make([]*tradingDay, 0, len(order))
	for _, key := range order {
		days = append(days, byDate[key])
	}
	sort.SliceStable(days, func(i, j int) bool { return days[i].date.Before(days[j].date) })
	return days
}

// dayState is the per-day state machine driving the simulation.
type dayState int

const (
	awaitingEntry dayState = iota
	positionOpen
	dayDone
)

// simulateDay runs the state machine over one trading day. It is a pure
// function of the strategy and the day's frames apart from the run-global
// trade sequence, so days could fan out in parallel if that ever pays off.
func (e *Engine) simulateDay(day *tradingDay, seq *int) (*models.ClosedTrade, []models.Diagnostic) {
	var diags []models.Diagnostic
	var pos *models.Position
	state := awaitingEntry

	logger := e.logger.With().Str("date", day.date.Format("2006-01-02")).Logger()
	logger.Debug().Int("frames", len(day.frames)).Msg("Processing trading day")

	var trade *models.ClosedTrade

	for _, fr := range day.frames {
		tod := models.TimeOfDayOf(fr.ts)

		if state == awaitingEntry && tod.AtOrAfter(e.strategy.EntryTime) {
			var entryDiags []models.Diagnostic
			pos, entryDiags = e.attemptEntry(day.date, fr, seq, logger)
			diags = append(diags, entryDiags...)
			if pos != nil {
				// Single entry per day: no re-attempt after the first
				// fill, even if some legs never opened.
				state = positionOpen
			}
			// Zero legs filled: stay in AWAITING_ENTRY and retry on the
			// next frame.
		}

		if state != positionOpen || pos == nil {
			continue
		}

		marks, gap := e.gatherMarks(pos, fr)
		if gap != nil {
			// Partial marks: never exit on incomplete information.
			diags = append(diags, models.Diagnostic{
				Level:     models.DiagnosticWarn,
				Kind:      models.DiagIncompleteMark,
				Date:      day.date,
				Timestamp: fr.ts,
				TradeID:   pos.TradeID,
				Message:   gap.Error() + "; exit evaluation skipped for this tick",
			})
			continue
		}

		signal := EvaluateExit(marks, pos.NetCredit, e.strategy.TargetPnLPct, tod, e.strategy.ExitTime)
		if signal.Type == ExitNone {
			continue
		}

		logger.Debug().
			Str("exit_type", string(signal.Type)).
			Str("time", tod.String()).
			Msg("Exit condition triggered")

		closeDiags := e.closeLegs(pos, signal, fr.ts, logger)
		diags = append(diags, closeDiags...)

		// Any triggered exit currently collapses to a full-position close,
		// even when only a subset of legs hit their stop.
		trade = e.assembleTrade(pos, fr.ts, logger)
		state = dayDone
		break
	}

	if state == positionOpen && pos != nil {
		open := pos.OpenLegs()
		if len(open) > 0 {
			ids := make([]string, 0, len(open))
			for _, leg := range open {
				ids = append(ids, leg.LegID)
			}
			diags = append(diags, models.Diagnostic{
				Level:   models.DiagnosticWarn,
				Kind:    models.DiagStrandedOpen,
				Date:    day.date,
				TradeID: pos.TradeID,
				Message: fmt.Sprintf("ticks exhausted with %d leg(s) still open (%v), trade discarded", len(open), ids),
			})
			logger.Warn().
				Str("trade_id", pos.TradeID).
				Int("open_legs", len(open)).
				Msg("Ticks exhausted with position still open, trade discarded")
		}
	}

	return trade, diags
}

// attemptEntry tries to open every strategy leg at the frame's timestamp.
// Returns nil when no leg could be opened, leaving the day in AWAITING_ENTRY.
func (e *Engine) attemptEntry(date time.Time, fr *frame, seq *int, logger zerolog.Logger) (*models.Position, []models.Diagnostic) {
	var diags []models.Diagnostic

	strike, err := SelectStrike(fr.ltp, e.strategy.StrikeStep)
	if err != nil {
		diags = append(diags, models.Diagnostic{
			Level:     models.DiagnosticWarn,
			Kind:      models.DiagInvalidInput,
			Date:      date,
			Timestamp: fr.ts,
			Message:   "strike selection failed: " + err.Error(),
		})
		return nil, diags
	}

	tradeID := fmt.Sprintf("TRADE_%s_%d", date.Format("20060102"), *seq)
	*seq++

	logger.Debug().
		Float64("ltp", fr.ltp).
		Int("atm_strike", strike).
		Str("trade_id", tradeID).
		Msg("Attempting entry")

	pos := &models.Position{
		TradeID: tradeID,
		Date:    date,
	}

	for i, spec := range e.strategy.Legs {
		price, ok := fr.quote(e.strategy.Underlying, strike, spec.Type)
		if !ok {
			gap := errors.NewDataGapError(e.strategy.Underlying, strike, string(spec.Type), fr.ts)
			diags = append(diags, models.Diagnostic{
				Level:     models.DiagnosticWarn,
				Kind:      models.DiagMissingLegEntry,
				Date:      date,
				Timestamp: fr.ts,
				TradeID:   tradeID,
				Message:   gap.Error() + " at entry; leg omitted",
			})
			continue
		}

		leg := &models.Leg{
			LegID:        fmt.Sprintf("%s_LEG%d_%s", tradeID, i+1, spec.Type),
			TradeID:      tradeID,
			Symbol:       e.strategy.Underlying,
			Strike:       strike,
			Type:         spec.Type,
			Side:         spec.Side,
			QuantityLots: spec.QuantityLots,
			LotSize:      e.strategy.LotSize,
			StopLossPct:  spec.StopLossPct,
			EntryPrice:   price,
			EntryTime:    fr.ts,
			Status:       models.LegOpen,
		}
		pos.Legs = append(pos.Legs, leg)

		scaled := price * float64(spec.QuantityLots) * float64(e.strategy.LotSize)
		if spec.Side == models.OrderSideSell {
			pos.NetCredit += scaled
		} else {
			pos.NetCredit -= scaled
		}

		logger.Info().
			Str("leg_id", leg.LegID).
			Str("side", string(leg.Side)).
			Str("type", string(leg.Type)).
			Int("strike", leg.Strike).
			Float64("entry_price", leg.EntryPrice).
			Msg("Leg entered")
	}

	if len(pos.Legs) == 0 {
		return nil, diags
	}

	return pos, diags
}

// gatherMarks collects the current price of every open leg at the frame's
// exact timestamp. A DataGapError identifies the first leg whose price is
// unavailable.
func (e *Engine) gatherMarks(pos *models.Position, fr *frame) ([]LegMark, error) {
	open := pos.OpenLegs()
	marks := make([]LegMark, 0, len(open))

	for _, leg := range open {
		price, ok := fr.quote(leg.Symbol, leg.Strike, leg.Type)
		if !ok {
			return nil, errors.NewDataGapError(leg.Symbol, leg.Strike, string(leg.Type), fr.ts)
		}
		marks = append(marks, LegMark{
			LegID:        leg.LegID,
			Side:         leg.Side,
			EntryPrice:   leg.EntryPrice,
			CurrentPrice: price,
			QuantityLots: leg.QuantityLots,
			LotSize:      leg.LotSize,
			StopLossPct:  leg.StopLossPct,
		})
	}

	return marks, nil
}

// closeLegs applies the exit signal: each named leg transitions OPEN to
// CLOSED with its exit fields stamped and its PnL realized. A leg whose PnL
// calculation rejects its inputs is skipped with a diagnostic and stays open.
func (e *Engine) closeLegs(pos *models.Position, signal ExitSignal, ts time.Time, logger zerolog.Logger) []models.Diagnostic {
	var diags []models.Diagnostic

	for _, exit := range signal.Legs {
		var leg *models.Leg
		for _, candidate := range pos.Legs {
			if candidate.LegID == exit.LegID && candidate.Status == models.LegOpen {
				leg = candidate
				break
			}
		}
		if leg == nil {
			continue
		}

		pnl, err := LegPnL(leg.EntryPrice, exit.Price, leg.Side, leg.QuantityLots, leg.LotSize)
		if err != nil {
			diags = append(diags, models.Diagnostic{
				Level:     models.DiagnosticWarn,
				Kind:      models.DiagInvalidInput,
				Date:      pos.Date,
				Timestamp: ts,
				TradeID:   pos.TradeID,
				LegID:     leg.LegID,
				Message:   "pnl calculation failed, leg close skipped: " + err.Error(),
			})
			continue
		}

		leg.Status = models.LegClosed
		leg.ExitPrice = exit.Price
		leg.ExitTime = ts
		leg.ExitReason = exit.Reason
		leg.RealizedPnL = pnl

		logger.Info().
			Str("leg_id", leg.LegID).
			Str("reason", string(leg.ExitReason)).
			Float64("exit_price", leg.ExitPrice).
			Float64("pnl", leg.RealizedPnL).
			Msg("Leg exited")
	}

	return diags
}

// assembleTrade builds the ClosedTrade record from the day's closed legs.
// Returns nil when nothing closed.
func (e *Engine) assembleTrade(pos *models.Position, exitTime time.Time, logger zerolog.Logger) *models.ClosedTrade {
	closed := make([]models.Leg, 0, len(pos.Legs))
	for _, leg := range pos.Legs {
		if leg.Status == models.LegClosed {
			closed = append(closed, *leg)
		}
	}
	if len(closed) == 0 {
		return nil
	}

	trade := &models.ClosedTrade{
		TradeID:   pos.TradeID,
		Date:      pos.Date,
		Legs:      closed,
		EntryTime: closed[0].EntryTime,
		ExitTime:  exitTime,
	}
	for _, leg := range closed {
		trade.OverallPnL += leg.RealizedPnL
	}

	logger.Info().
		Str("trade_id", trade.TradeID).
		Int("legs", len(trade.Legs)).
		Float64("overall_pnl", trade.OverallPnL).
		Msg("Trade closed")

	return trade
}

package backtest

import (
	"options-backtester/internal/models"
)

// ExitType classifies the outcome of an exit evaluation.
type ExitType string

const (
	ExitNone     ExitType = "NONE"
	ExitStopLoss ExitType = "STOP_LOSS"
	ExitTarget   ExitType = "TARGET_HIT"
	ExitEOD      ExitType = "END_OF_DAY"
)

// LegMark is the current mark of one open leg, as seen by the evaluator.
type LegMark struct {
	LegID        string
	Side         models.OrderSide
	EntryPrice   float64
	CurrentPrice float64
	QuantityLots int
	LotSize      int
	StopLossPct  *float64
}

// LegExit names one leg to close, with its reason and exit price.
type LegExit struct {
	LegID  string
	Reason models.ExitReason
	Price  float64
}

// ExitSignal is the evaluator's verdict for one tick: the exit type and the
// subset of legs to close. A STOP_LOSS signal may carry only the triggered
// legs; the engine's policy collapses any triggered exit to a full close.
type ExitSignal struct {
	Type ExitType
	Legs []LegExit
}

// EvaluateExit decides whether the open position must exit on the current
// tick. Precedence is strict: end-of-day beats stop-loss beats target profit.
// The caller must only invoke it with a complete set of marks; a tick with a
// missing leg price is skipped upstream.
func EvaluateExit(marks []LegMark, netCredit float64, targetPct *float64, now, eodExit models.TimeOfDay) ExitSignal {
	if len(marks) == 0 {
		return ExitSignal{Type: ExitNone}
	}

	// 1. End-of-day: forced close of every leg, regardless of PnL.
	if now.AtOrAfter(eodExit) {
		legs := make([]LegExit, 0, len(marks))
		for _, mark := range marks {
			legs = append(legs, LegExit{
				LegID:  mark.LegID,
				Reason: models.ExitReasonEOD,
				Price:  mark.CurrentPrice,
			})
		}
		return ExitSignal{Type: ExitEOD, Legs: legs}
	}

	// 2. Per-leg stop loss.
	var stopped []LegExit
	for _, mark := range marks {
		if mark.StopLossPct == nil {
			continue
		}
		slPct := *mark.StopLossPct
		switch mark.Side {
		case models.OrderSideSell:
			if mark.CurrentPrice >= mark.EntryPrice*(1+slPct/100) {
				stopped = append(stopped, LegExit{
					LegID:  mark.LegID,
					Reason: models.ExitReasonStopLoss,
					Price:  mark.CurrentPrice,
				})
			}
		case models.OrderSideBuy:
			if mark.CurrentPrice <= mark.EntryPrice*(1-slPct/100) {
				stopped = append(stopped, LegExit{
					LegID:  mark.LegID,
					Reason: models.ExitReasonStopLoss,
					Price:  mark.CurrentPrice,
				})
			}
		}
	}
	if len(stopped) > 0 {
		return ExitSignal{Type: ExitStopLoss, Legs: stopped}
	}

	// 3. Target profit, computed over the SELL legs that produced the net
	// credit. Cost to close is scaled the same way net credit is.
	if targetPct != nil {
		var costToClose float64
		hasSellLegs := false
		for _, mark := range marks {
			if mark.Side == models.OrderSideSell {
				costToClose += mark.CurrentPrice * float64(mark.QuantityLots) * float64(mark.LotSize)
				hasSellLegs = true
			}
		}
		if hasSellLegs {
			currentPnL := netCredit - costToClose
			targetAmount := netCredit * (*targetPct / 100)
			if currentPnL >= targetAmount {
				legs := make([]LegExit, 0, len(marks))
				for _, mark := range marks {
					legs = append(legs, LegExit{
						LegID:  mark.LegID,
						Reason: models.ExitReasonTarget,
						Price:  mark.CurrentPrice,
					})
				}
				return ExitSignal{Type: ExitTarget, Legs: legs}
			}
		}
	}

	return ExitSignal{Type: ExitNone}
}

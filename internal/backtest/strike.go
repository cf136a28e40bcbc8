// Package backtest implements the backtesting simulation engine: a per-day,
// per-timestamp state machine that opens multi-leg option positions at a
// configured entry time and closes them on stop-loss, target or end-of-day.
package backtest

import (
	"fmt"
	"math"

	"options-backtester/internal/errors"
)

// SelectStrike returns the At-The-Money strike nearest to the underlying's
// LTP, rounded half-up to a multiple of step. The failure is explicit so a
// zero strike can never leak into downstream lookups.
func SelectStrike(ltp float64, step int) (int, error) {
	if math.IsNaN(ltp) || ltp <= 0 {
		return 0, errors.NewInvalidInputError("select_strike",
			fmt.Sprintf("ltp must be a positive number, got %v", ltp))
	}
	if step <= 0 {
		return 0, errors.NewInvalidInputError("select_strike",
			fmt.Sprintf("step must be a positive integer, got %d", step))
	}

	return int(math.Floor(ltp/float64(step)+0.5)) * step, nil
}

package backtest

import (
	"fmt"
	"math"

	"options-backtester/internal/errors"
	"options-backtester/internal/models"
)

// LegPnL calculates the realized profit or loss for a single closed leg.
// SELL legs profit when the exit price is below entry; BUY legs profit when
// it is above. The result is linear in both quantity and lot size.
func LegPnL(entryPrice, exitPrice float64, side models.OrderSide, quantityLots, lotSize int) (float64, error) {
	if quantityLots <= 0 {
		return 0, errors.NewInvalidInputError("leg_pnl",
			fmt.Sprintf("quantity_lots must be a positive integer, got %d", quantityLots))
	}
	if lotSize <= 0 {
		return 0, errors.NewInvalidInputError("leg_pnl",
			fmt.Sprintf("lot_size must be a positive integer, got %d", lotSize))
	}
	if math.IsNaN(entryPrice) || math.IsNaN(exitPrice) {
		return 0, errors.NewInvalidInputError("leg_pnl", "entry and exit prices must be numeric")
	}

	var diff float64
	switch side {
	case models.OrderSideSell:
		diff = entryPrice - exitPrice
	case models.OrderSideBuy:
		diff = exitPrice - entryPrice
	default:
		return 0, errors.NewInvalidInputError("leg_pnl",
			fmt.Sprintf("side must be BUY or SELL, got %q", side))
	}

	return diff * float64(quantityLots) * float64(lotSize), nil
}

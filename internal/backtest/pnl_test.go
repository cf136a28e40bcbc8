package backtest

import (
	"testing"

	"options-backtester/internal/errors"
	"options-backtester/internal/models"
)

func TestLegPnL(t *testing.T) {
	tests := []struct {
		name    string
		entry   float64
		exit    float64
		side    models.OrderSide
		lots    int
		lotSize int
		want    float64
	}{
		{"sell profit when price falls", 120, 60, models.OrderSideSell, 1, 50, 3000},
		{"sell loss when price rises", 100, 125, models.OrderSideSell, 1, 50, -1250},
		{"buy profit when price rises", 100, 130, models.OrderSideBuy, 1, 50, 1500},
		{"buy loss when price falls", 100, 80, models.OrderSideBuy, 1, 50, -1000},
		{"scales with lots", 120, 60, models.OrderSideSell, 3, 50, 9000},
		{"scales with lot size", 120, 60, models.OrderSideSell, 1, 25, 1500},
		{"flat is zero", 100, 100, models.OrderSideSell, 2, 50, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := LegPnL(tt.entry, tt.exit, tt.side, tt.lots, tt.lotSize)
			if err != nil {
				t.Fatalf("LegPnL returned error: %v", err)
			}
			if got != tt.want {
				t.Errorf("LegPnL(%v, %v, %s, %d, %d) = %v, want %v",
					tt.entry, tt.exit, tt.side, tt.lots, tt.lotSize, got, tt.want)
			}
		})
	}
}

func TestLegPnLInvalidInput(t *testing.T) {
	tests := []struct {
		name    string
		side    models.OrderSide
		lots    int
		lotSize int
	}{
		{"zero lots", models.OrderSideSell, 0, 50},
		{"negative lots", models.OrderSideSell, -1, 50},
		{"zero lot size", models.OrderSideBuy, 1, 0},
		{"negative lot size", models.OrderSideBuy, 1, -50},
		{"unknown side", models.OrderSide("HOLD"), 1, 50},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LegPnL(100, 90, tt.side, tt.lots, tt.lotSize)
			if err == nil {
				t.Fatal("expected error, got nil")
			}
			if !errors.Is(err, errors.ErrInvalidInput) {
				t.Errorf("expected ErrInvalidInput, got %v", err)
			}
		})
	}
}

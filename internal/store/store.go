// Package store provides persistence for backtest runs and their trade logs.
package store

import (
	"context"
	"time"

	"options-backtester/internal/models"
)

// RunRecord is one completed backtest run with its outputs.
type RunRecord struct {
	ID          string
	Strategy    string
	CreatedAt   time.Time
	TotalPnL    float64
	Trades      []models.ClosedTrade
	Diagnostics []models.Diagnostic
}

// RunSummary is the run-level view returned by listings.
type RunSummary struct {
	ID          string
	Strategy    string
	CreatedAt   time.Time
	TradeCount  int
	TotalPnL    float64
	Diagnostics int
}

// TradeFilter represents filters for querying persisted trades.
type TradeFilter struct {
	RunID     string
	StartDate time.Time
	EndDate   time.Time
	Limit     int
}

// DataStore defines the interface for run persistence.
type DataStore interface {
	SaveRun(ctx context.Context, run *RunRecord) error
	GetRuns(ctx context.Context, limit int) ([]RunSummary, error)
	GetTrades(ctx context.Context, filter TradeFilter) ([]models.ClosedTrade, error)
	GetDiagnostics(ctx context.Context, runID string) ([]models.Diagnostic, error)
	Close() error
}

// Package store provides data persistence implementations.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"options-backtester/internal/models"
)

// SQLiteStore implements DataStore using SQLite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore creates a new SQLite-based data store.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(time.Hour)

	store := &SQLiteStore{db: db}

	if err := store.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return store, nil
}

// initSchema creates all required tables and indexes.
func (s *SQLiteStore) initSchema() error {
	schema := `
	-- Backtest runs
	CREATE TABLE IF NOT EXISTS runs (
		id TEXT PRIMARY KEY,
		strategy TEXT NOT NULL,
		created_at DATETIME NOT NULL,
		total_pnl REAL NOT NULL,
		trade_count INTEGER NOT NULL,
		diagnostic_count INTEGER NOT NULL
	);

	-- Closed trades, one row per fully closed multi-leg trade
	CREATE TABLE IF NOT EXISTS trades (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		run_id TEXT NOT NULL,
		trade_id TEXT NOT NULL,
		date DATETIME NOT NULL,
		entry_time DATETIME NOT NULL,
		exit_time DATETIME NOT NULL,
		overall_pnl REAL NOT NULL,
		legs TEXT NOT NULL,
		UNIQUE(run_id, trade_id),
		FOREIGN KEY(run_id) REFERENCES runs(id)
	);
	CREATE INDEX IF NOT EXISTS idx_trades_run ON trades(run_id);
	CREATE INDEX IF NOT EXISTS idx_trades_date ON trades(date);

	-- Run diagnostics
	CREATE TABLE IF NOT EXISTS diagnostics (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		run_id TEXT NOT NULL,
		level TEXT NOT NULL,
		kind TEXT NOT NULL,
		date DATETIME,
		timestamp DATETIME,
		trade_id TEXT,
		leg_id TEXT,
		message TEXT NOT NULL,
		FOREIGN KEY(run_id) REFERENCES runs(id)
	);
	CREATE INDEX IF NOT EXISTS idx_diagnostics_run ON diagnostics(run_id);
	`

	_, err := s.db.Exec(schema)
	return err
}

// SaveRun persists a run with its trades and diagnostics in one transaction.
func (s *SQLiteStore) SaveRun(ctx context.Context, run *RunRecord) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO runs (id, strategy, created_at, total_pnl, trade_count, diagnostic_count)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		run.ID, run.Strategy, run.CreatedAt, run.TotalPnL, len(run.Trades), len(run.Diagnostics))
	if err != nil {
		return fmt.Errorf("inserting run: %w", err)
	}

	for _, trade := range run.Trades {
		legsJSON, err := json.Marshal(trade.Legs)
		if err != nil {
			return fmt.Errorf("encoding legs for %s: %w", trade.TradeID, err)
		}
		_, err = tx.ExecContext(ctx,
			`INSERT INTO trades (run_id, trade_id, date, entry_time, exit_time, overall_pnl, legs)
			 VALUES (?, ?, ?, ?, ?, ?, ?)`,
			run.ID, trade.TradeID, trade.Date, trade.EntryTime, trade.ExitTime,
			trade.OverallPnL, string(legsJSON))
		if err != nil {
			return fmt.Errorf("inserting trade %s: %w", trade.TradeID, err)
		}
	}

	for _, diag := range run.Diagnostics {
		_, err = tx.ExecContext(ctx,
			`INSERT INTO diagnostics (run_id, level, kind, date, timestamp, trade_id, leg_id, message)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			run.ID, string(diag.Level), string(diag.Kind), diag.Date, diag.Timestamp,
			diag.TradeID, diag.LegID, diag.Message)
		if err != nil {
			return fmt.Errorf("inserting diagnostic: %w", err)
		}
	}

	return tx.Commit()
}

// GetRuns returns the most recent runs, newest first.
func (s *SQLiteStore) GetRuns(ctx context.Context, limit int) ([]RunSummary, error) {
	if limit <= 0 {
		limit = 20
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, strategy, created_at, total_pnl, trade_count, diagnostic_count
		 FROM runs ORDER BY created_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("querying runs: %w", err)
	}
	defer rows.Close()

	var runs []RunSummary
	for rows.Next() {
		var r RunSummary
		if err := rows.Scan(&r.ID, &r.Strategy, &r.CreatedAt, &r.TotalPnL, &r.TradeCount, &r.Diagnostics); err != nil {
			return nil, fmt.Errorf("scanning run: %w", err)
		}
		runs = append(runs, r)
	}

	return runs, rows.Err()
}

// GetTrades returns trades matching the filter, in date order.
func (s *SQLiteStore) GetTrades(ctx context.Context, filter TradeFilter) ([]models.ClosedTrade, error) {
	query := `SELECT trade_id, date, entry_time, exit_time, overall_pnl, legs FROM trades WHERE 1=1`
	var args []interface{}

	if filter.RunID != "" {
		query += " AND run_id = ?"
		args = append(args, filter.RunID)
	}
	if !filter.StartDate.IsZero() {
		query += " AND date >= ?"
		args = append(args, filter.StartDate)
	}
	if !filter.EndDate.IsZero() {
		query += " AND date <= ?"
		args = append(args, filter.EndDate)
	}
	query += " ORDER BY date ASC, trade_id ASC"
	if filter.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filter.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying trades: %w", err)
	}
	defer rows.Close()

	var trades []models.ClosedTrade
	for rows.Next() {
		var trade models.ClosedTrade
		var legsJSON string
		if err := rows.Scan(&trade.TradeID, &trade.Date, &trade.EntryTime, &trade.ExitTime,
			&trade.OverallPnL, &legsJSON); err != nil {
			return nil, fmt.Errorf("scanning trade: %w", err)
		}
		if err := json.Unmarshal([]byte(legsJSON), &trade.Legs); err != nil {
			return nil, fmt.Errorf("decoding legs for %s: %w", trade.TradeID, err)
		}
		trades = append(trades, trade)
	}

	return trades, rows.Err()
}

// GetDiagnostics returns the diagnostics recorded for a run.
func (s *SQLiteStore) GetDiagnostics(ctx context.Context, runID string) ([]models.Diagnostic, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT level, kind, date, timestamp, trade_id, leg_id, message
		 FROM diagnostics WHERE run_id = ? ORDER BY id ASC`, runID)
	if err != nil {
		return nil, fmt.Errorf("querying diagnostics: %w", err)
	}
	defer rows.Close()

	var diags []models.Diagnostic
	for rows.Next() {
		var d models.Diagnostic
		var date, ts sql.NullTime
		var tradeID, legID sql.NullString
		if err := rows.Scan(&d.Level, &d.Kind, &date, &ts, &tradeID, &legID, &d.Message); err != nil {
			return nil, fmt.Errorf("scanning diagnostic: %w", err)
		}
		if date.Valid {
			d.Date = date.Time
		}
		if ts.Valid {
			d.Timestamp = ts.Time
		}
		d.TradeID = tradeID.String
		d.LegID = legID.String
		diags = append(diags, d)
	}

	return diags, rows.Err()
}

// Close closes the underlying database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

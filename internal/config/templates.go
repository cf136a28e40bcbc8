package config

import (
	"fmt"
	"os"
	"path/filepath"
)

const strategyTemplate = `# ATM Short Straddle strategy configuration

strategy_name = "ATM Straddle"
# Underlying symbol as it appears in the historical data files
underlying = "NIFTY"
# Contract multiplier converting price points to currency PnL
lot_size = 50
# Entry and forced end-of-day exit, HH:MM:SS
entry_time = "09:20:00"
exit_time = "15:00:00"
# Target profit as a percentage of net credit received (omit to disable)
target_pnl_pct = 50.0

[strike_selection]
method = "ATM"
# Strike step: 50 for NIFTY, 100 for BANKNIFTY
step = 50

[[legs]]
instrument_type = "CE"
action = "SELL"
quantity_lots = 1
# Per-leg stop loss as percentage of entry price (omit to disable)
sl_pct = 25.0

[[legs]]
instrument_type = "PE"
action = "SELL"
quantity_lots = 1
sl_pct = 25.0
`

// WriteStrategyTemplate writes the default ATM straddle strategy file to the
// given path. It refuses to overwrite an existing file.
func WriteStrategyTemplate(path string) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("strategy file already exists: %s", path)
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("creating directory %s: %w", dir, err)
	}

	if err := os.WriteFile(path, []byte(strategyTemplate), 0644); err != nil {
		return fmt.Errorf("writing strategy template: %w", err)
	}

	return nil
}

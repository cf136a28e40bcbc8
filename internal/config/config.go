// Package config provides strategy configuration loading and validation.
package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"

	"options-backtester/internal/errors"
	"options-backtester/internal/models"
)

// StrategyConfig mirrors the on-disk strategy file. Supported formats are
// TOML, JSON and YAML, decided by file extension.
type StrategyConfig struct {
	StrategyName    string                `mapstructure:"strategy_name"`
	Underlying      string                `mapstructure:"underlying"`
	LotSize         int                   `mapstructure:"lot_size"`
	EntryTime       string                `mapstructure:"entry_time"`
	ExitTime        string                `mapstructure:"exit_time"`
	TargetPnLPct    *float64              `mapstructure:"target_pnl_pct"`
	StrikeSelection StrikeSelectionConfig `mapstructure:"strike_selection"`
	Legs            []LegConfig           `mapstructure:"legs"`
}

// StrikeSelectionConfig holds strike selection parameters.
type StrikeSelectionConfig struct {
	Method string `mapstructure:"method"`
	Step   int    `mapstructure:"step"`
}

// LegConfig describes one strategy leg in the config file.
type LegConfig struct {
	InstrumentType string   `mapstructure:"instrument_type"`
	Action         string   `mapstructure:"action"`
	QuantityLots   int      `mapstructure:"quantity_lots"`
	SLPct          *float64 `mapstructure:"sl_pct"`
}

// DefaultStrikeStep is used when strike_selection.step is absent.
const DefaultStrikeStep = 50

// LoadStrategy loads a strategy definition from the given file.
// Missing required keys are a fatal configuration error.
func LoadStrategy(path string) (*models.StrategyDefinition, error) {
	v := viper.New()
	v.SetConfigFile(path)

	if err := v.ReadInConfig(); err != nil {
		return nil, errors.Wrapf(err, "reading strategy file %s", path)
	}

	cfg := &StrategyConfig{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, errors.Wrapf(err, "parsing strategy file %s", path)
	}

	return cfg.ToDefinition()
}

// ToDefinition validates the raw config and converts it into the immutable
// strategy definition consumed by the engine.
func (c *StrategyConfig) ToDefinition() (*models.StrategyDefinition, error) {
	if c.Underlying == "" {
		return nil, errors.NewConfigError("underlying", c.Underlying, "required")
	}
	if c.LotSize <= 0 {
		return nil, errors.NewConfigError("lot_size", c.LotSize, "must be a positive integer")
	}
	if c.EntryTime == "" {
		return nil, errors.NewConfigError("entry_time", c.EntryTime, "required")
	}
	if c.ExitTime == "" {
		return nil, errors.NewConfigError("exit_time", c.ExitTime, "required")
	}
	if len(c.Legs) == 0 {
		return nil, errors.NewConfigError("legs", nil, "at least one leg is required")
	}

	entryTime, err := models.ParseTimeOfDay(c.EntryTime)
	if err != nil {
		return nil, errors.NewConfigError("entry_time", c.EntryTime, err.Error())
	}
	exitTime, err := models.ParseTimeOfDay(c.ExitTime)
	if err != nil {
		return nil, errors.NewConfigError("exit_time", c.ExitTime, err.Error())
	}
	if !entryTime.Before(exitTime) {
		return nil, errors.NewConfigError("entry_time", c.EntryTime, "must be earlier than exit_time")
	}

	step := c.StrikeSelection.Step
	if step == 0 {
		step = DefaultStrikeStep
	}
	if step < 0 {
		return nil, errors.NewConfigError("strike_selection.step", step, "must be a positive integer")
	}

	if c.TargetPnLPct != nil && *c.TargetPnLPct <= 0 {
		return nil, errors.NewConfigError("target_pnl_pct", *c.TargetPnLPct, "must be positive when set")
	}

	def := &models.StrategyDefinition{
		Name:         c.StrategyName,
		Underlying:   strings.ToUpper(c.Underlying),
		LotSize:      c.LotSize,
		EntryTime:    entryTime,
		ExitTime:     exitTime,
		StrikeStep:   step,
		TargetPnLPct: c.TargetPnLPct,
		Legs:         make([]models.LegSpec, 0, len(c.Legs)),
	}
	if def.Name == "" {
		def.Name = "unnamed"
	}

	for i, leg := range c.Legs {
		optType := models.OptionType(strings.ToUpper(leg.InstrumentType))
		if !optType.Valid() {
			return nil, errors.NewConfigError(
				fmt.Sprintf("legs[%d].instrument_type", i), leg.InstrumentType, "must be CE or PE")
		}
		side := models.OrderSide(strings.ToUpper(leg.Action))
		if !side.Valid() {
			return nil, errors.NewConfigError(
				fmt.Sprintf("legs[%d].action", i), leg.Action, "must be BUY or SELL")
		}
		lots := leg.QuantityLots
		if lots == 0 {
			lots = 1
		}
		if lots < 0 {
			return nil, errors.NewConfigError(
				fmt.Sprintf("legs[%d].quantity_lots", i), leg.QuantityLots, "must be a positive integer")
		}
		if leg.SLPct != nil && *leg.SLPct <= 0 {
			return nil, errors.NewConfigError(
				fmt.Sprintf("legs[%d].sl_pct", i), *leg.SLPct, "must be positive when set")
		}

		def.Legs = append(def.Legs, models.LegSpec{
			Type:         optType,
			Side:         side,
			QuantityLots: lots,
			StopLossPct:  leg.SLPct,
		})
	}

	return def, nil
}

// Package models provides domain models for the options backtester.
package models

import (
	"fmt"
	"time"
)

// OptionType represents the type of an option contract.
type OptionType string

const (
	OptionCall OptionType = "CE"
	OptionPut  OptionType = "PE"
)

// Valid reports whether the option type is one of CE or PE.
func (o OptionType) Valid() bool {
	return o == OptionCall || o == OptionPut
}

// OrderSide represents the side of a leg at entry.
type OrderSide string

const (
	OrderSideBuy  OrderSide = "BUY"
	OrderSideSell OrderSide = "SELL"
)

// Valid reports whether the side is one of BUY or SELL.
func (s OrderSide) Valid() bool {
	return s == OrderSideBuy || s == OrderSideSell
}

// Tick represents a single historical option quote with the underlying's
// LTP attached, as produced by the data loader.
type Tick struct {
	Timestamp     time.Time
	Symbol        string
	UnderlyingLTP float64
	Strike        int
	Type          OptionType
	Price         float64
	OI            int64
}

// Date returns the calendar date of the tick in its own location.
func (t Tick) Date() time.Time {
	y, m, d := t.Timestamp.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Timestamp.Location())
}

// TimeOfDay holds a wall-clock time within a trading session.
// It compares independently of the calendar date.
type TimeOfDay struct {
	Hour   int
	Minute int
	Second int
}

// TimeOfDayOf extracts the time-of-day component of an instant.
func TimeOfDayOf(t time.Time) TimeOfDay {
	return TimeOfDay{Hour: t.Hour(), Minute: t.Minute(), Second: t.Second()}
}

// Seconds returns the time-of-day as seconds since midnight.
func (t TimeOfDay) Seconds() int {
	return t.Hour*3600 + t.Minute*60 + t.Second
}

// Before reports whether t is strictly earlier than other.
func (t TimeOfDay) Before(other TimeOfDay) bool {
	return t.Seconds() < other.Seconds()
}

// AtOrAfter reports whether t is at or later than other.
func (t TimeOfDay) AtOrAfter(other TimeOfDay) bool {
	return t.Seconds() >= other.Seconds()
}

// String renders the time-of-day as HH:MM:SS.
func (t TimeOfDay) String() string {
	return fmt.Sprintf("%02d:%02d:%02d", t.Hour, t.Minute, t.Second)
}

// ParseTimeOfDay parses a HH:MM:SS (or HH:MM) string.
func ParseTimeOfDay(s string) (TimeOfDay, error) {
	layouts := []string{"15:04:05", "15:04"}
	for _, layout := range layouts {
		if parsed, err := time.Parse(layout, s); err == nil {
			return TimeOfDayOf(parsed), nil
		}
	}
	return TimeOfDay{}, fmt.Errorf("invalid time of day %q (want HH:MM:SS)", s)
}

// LegSpec describes one leg of a strategy definition.
type LegSpec struct {
	Type         OptionType
	Side         OrderSide
	QuantityLots int
	// StopLossPct is the per-leg stop-loss as a percentage of entry price.
	// Nil disables the stop for this leg.
	StopLossPct *float64
}

// StrategyDefinition is the immutable description of the strategy under test.
type StrategyDefinition struct {
	Name       string
	Underlying string
	LotSize    int
	EntryTime  TimeOfDay
	ExitTime   TimeOfDay
	StrikeStep int
	// TargetPnLPct is the target profit as a percentage of net credit
	// received. Nil disables the target exit.
	TargetPnLPct *float64
	Legs         []LegSpec
}

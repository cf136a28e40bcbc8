package models

import "time"

// LegStatus represents the lifecycle state of a leg.
type LegStatus string

const (
	LegOpen   LegStatus = "OPEN"
	LegClosed LegStatus = "CLOSED"
)

// ExitReason tags why a leg was closed.
type ExitReason string

const (
	ExitReasonStopLoss ExitReason = "SL"
	ExitReasonTarget   ExitReason = "TARGET"
	ExitReasonEOD      ExitReason = "EOD"
)

// Leg is one option contract position within a day's trade. It is created at
// entry and mutated exactly once, by the OPEN to CLOSED transition.
type Leg struct {
	LegID        string
	TradeID      string
	Symbol       string
	Strike       int
	Type         OptionType
	Side         OrderSide
	QuantityLots int
	LotSize      int
	StopLossPct  *float64
	EntryPrice   float64
	EntryTime    time.Time
	Status       LegStatus
	ExitPrice    float64
	ExitTime     time.Time
	ExitReason   ExitReason
	RealizedPnL  float64
}

// Position is the set of currently open legs for a single day's trade
// attempt, owned exclusively by that day's simulation.
type Position struct {
	TradeID string
	Date    time.Time
	Legs    []*Leg
	// NetCredit is the premium received for SELL legs minus premium paid
	// for BUY legs at entry, scaled by quantity and lot size.
	NetCredit float64
}

// OpenLegs returns the legs still in OPEN state.
func (p *Position) OpenLegs() []*Leg {
	open := make([]*Leg, 0, len(p.Legs))
	for _, leg := range p.Legs {
		if leg.Status == LegOpen {
			open = append(open, leg)
		}
	}
	return open
}

// ClosedTrade is one fully closed multi-leg trade, appended to the trade log
// exactly once and never mutated afterwards.
type ClosedTrade struct {
	TradeID    string
	Date       time.Time
	Legs       []Leg
	EntryTime  time.Time
	ExitTime   time.Time
	OverallPnL float64
}

// DiagnosticLevel classifies a run diagnostic.
type DiagnosticLevel string

const (
	DiagnosticWarn  DiagnosticLevel = "WARN"
	DiagnosticError DiagnosticLevel = "ERROR"
)

// DiagnosticKind names the category of a run diagnostic.
type DiagnosticKind string

const (
	DiagMissingLegEntry DiagnosticKind = "MISSING_LEG_AT_ENTRY"
	DiagIncompleteMark  DiagnosticKind = "INCOMPLETE_MARKS"
	DiagStrandedOpen    DiagnosticKind = "POSITION_STRANDED_OPEN"
	DiagInvalidInput    DiagnosticKind = "INVALID_INPUT"
	DiagEmptyData       DiagnosticKind = "EMPTY_DATA"
	DiagBadRecord       DiagnosticKind = "BAD_RECORD"
)

// Diagnostic is a structured warning accumulated alongside the trade log.
// A diagnostic never aborts a run.
type Diagnostic struct {
	Level     DiagnosticLevel
	Kind      DiagnosticKind
	Date      time.Time
	Timestamp time.Time
	TradeID   string
	LegID     string
	Message   string
}

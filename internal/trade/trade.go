// Package trade defines the simulated order the scheduler inserts and the
// settlement reconciler resolves.
package trade

import (
	"time"

	"github.com/tholloway/btc-updown-bot/internal/window"
)

// Result is a sealed, string-backed enum for a settled trade's outcome.
type Result string

const (
	Pending Result = "pending"
	Win     Result = "win"
	Loss    Result = "loss"
	Push    Result = "push"
)

// IsValid reports whether r is one of the recognized results.
func (r Result) IsValid() bool {
	switch r {
	case Pending, Win, Loss, Push:
		return true
	default:
		return false
	}
}

// Trade is a simulated order against a window, tracked from open to
// settlement. It transitions exactly once from Settled=false to true; once
// settled, PnL and Result are immutable.
type Trade struct {
	ID           uint
	MarketTicker string
	EventSlug    string
	Direction    window.Direction
	EntryPrice   float64
	Size         float64
	Timestamp    time.Time

	ModelProbability   float64
	MarketPriceAtEntry float64
	EdgeAtEntry        float64
	SignalID           *uint

	Settled         bool
	Result          Result
	SettlementValue *float64
	PnL             *float64
	SettlementTime  *time.Time
}

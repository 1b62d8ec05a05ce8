// Package store is the durable record of signals, trades, and bot state,
// backed by GORM over SQLite.
package store

import "time"

// SignalRecord is the GORM model for a persisted trading signal.
type SignalRecord struct {
	ID               uint   `gorm:"primaryKey;autoIncrement"`
	MarketTicker     string `gorm:"index;not null"`
	Platform         string
	Timestamp        time.Time `gorm:"index;not null"`
	Direction        string    `gorm:"not null"`
	ModelProbability float64
	MarketPrice      float64
	Edge             float64
	Confidence       float64
	KellyFraction    float64
	SuggestedSize    float64
	Sources          string
	Reasoning        string
	Executed         bool

	ActualOutcome   *string
	OutcomeCorrect  *bool
	SettlementValue *float64
	SettledAt       *time.Time

	CreatedAt time.Time `gorm:"autoCreateTime"`
}

func (SignalRecord) TableName() string { return "signals" }

// TradeRecord is the GORM model for a simulated order and its eventual
// settlement.
type TradeRecord struct {
	ID           uint   `gorm:"primaryKey;autoIncrement"`
	MarketTicker string `gorm:"index;not null"`
	EventSlug    string `gorm:"index;not null"`
	Direction    string `gorm:"not null"`
	EntryPrice   float64
	Size         float64
	Timestamp    time.Time `gorm:"index;not null"`

	ModelProbability   float64
	MarketPriceAtEntry float64
	EdgeAtEntry        float64
	SignalID           *uint

	Settled         bool `gorm:"index;not null"`
	Result          string
	SettlementValue *float64
	PnL             *float64 `gorm:"column:pnl"`
	SettlementTime  *time.Time

	CreatedAt time.Time `gorm:"autoCreateTime"`
}

func (TradeRecord) TableName() string { return "trades" }

// BotStateRecord is the GORM model for the singleton bot state row.
type BotStateRecord struct {
	ID             uint `gorm:"primaryKey"`
	Bankroll       float64
	TotalTrades    int
	WinningTrades  int
	TotalPnL       float64 `gorm:"column:total_pnl"`
	IsRunning      bool
	LastRun        *time.Time
	DailyLossFloor time.Time // UTC midnight the daily-loss tally resets against
	DailyPnL       float64   `gorm:"column:daily_pnl"`
}

func (BotStateRecord) TableName() string { return "bot_state" }

// botStateSingletonID is the fixed primary key enforcing a single BotState row.
const botStateSingletonID = 1

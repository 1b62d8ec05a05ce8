// Package journal provides an append-only JSONL audit trail of bot activity,
// independent of the relational store — a raw record of what the bot saw and
// did, useful for after-the-fact review even if the database is lost.
package journal

import (
	"encoding/json"
	"os"
	"sync"
	"time"
)

// Journal is an append-only JSONL writer for bot events.
type Journal struct {
	f  *os.File
	mu sync.Mutex
}

// New opens (or creates) the journal file in append mode.
func New(path string) (*Journal, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, err
	}
	return &Journal{f: f}, nil
}

// Log marshals event to JSON and appends it as a single line.
func (j *Journal) Log(event any) error {
	data, err := json.Marshal(event)
	if err != nil {
		return err
	}
	data = append(data, '\n')

	j.mu.Lock()
	defer j.mu.Unlock()
	if _, err = j.f.Write(data); err != nil {
		return err
	}
	return j.f.Sync()
}

// Close flushes and closes the underlying file.
func (j *Journal) Close() error {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.f.Close()
}

// Event types.

type SessionStart struct {
	Type            string  `json:"type"`
	Time            string  `json:"time"`
	DryRun          bool    `json:"dry_run"`
	InitialBankroll float64 `json:"initial_bankroll"`
}

func NewSessionStart(dryRun bool, bankroll float64) SessionStart {
	return SessionStart{
		Type:            "session_start",
		Time:            time.Now().UTC().Format(time.RFC3339Nano),
		DryRun:          dryRun,
		InitialBankroll: bankroll,
	}
}

type TradeEntered struct {
	Type         string  `json:"type"`
	Time         string  `json:"time"`
	EventSlug    string  `json:"event_slug"`
	MarketTicker string  `json:"market_ticker"`
	Direction    string  `json:"direction"`
	EntryPrice   float64 `json:"entry_price"`
	Size         float64 `json:"size"`
	ModelProb    float64 `json:"model_probability"`
	Edge         float64 `json:"edge"`
	DryRun       bool    `json:"dry_run"`
}

func NewTradeEntered(eventSlug, marketTicker, direction string, entryPrice, size, modelProb, edge float64, dryRun bool) TradeEntered {
	return TradeEntered{
		Type:         "trade",
		Time:         time.Now().UTC().Format(time.RFC3339Nano),
		EventSlug:    eventSlug,
		MarketTicker: marketTicker,
		Direction:    direction,
		EntryPrice:   entryPrice,
		Size:         size,
		ModelProb:    modelProb,
		Edge:         edge,
		DryRun:       dryRun,
	}
}

type Settlement struct {
	Type            string  `json:"type"`
	Time            string  `json:"time"`
	EventSlug       string  `json:"event_slug"`
	MarketTicker    string  `json:"market_ticker"`
	Direction       string  `json:"direction"`
	Result          string  `json:"result"`
	SettlementValue float64 `json:"settlement_value"`
	EntryPrice      float64 `json:"entry_price"`
	Size            float64 `json:"size"`
	PnL             float64 `json:"pnl"`
	DryRun          bool    `json:"dry_run"`
}

func NewSettlement(eventSlug, marketTicker, direction, result string, settlementValue, entryPrice, size, pnl float64, dryRun bool) Settlement {
	return Settlement{
		Type:            "settlement",
		Time:            time.Now().UTC().Format(time.RFC3339Nano),
		EventSlug:       eventSlug,
		MarketTicker:    marketTicker,
		Direction:       direction,
		Result:          result,
		SettlementValue: settlementValue,
		EntryPrice:      entryPrice,
		Size:            size,
		PnL:             pnl,
		DryRun:          dryRun,
	}
}

package store

import (
	"github.com/tholloway/btc-updown-bot/internal/signal"
	"github.com/tholloway/btc-updown-bot/internal/trade"
	"github.com/tholloway/btc-updown-bot/internal/window"
)

func signalToRecord(s *signal.Signal) SignalRecord {
	return SignalRecord{
		ID:               s.ID,
		MarketTicker:     s.MarketID,
		Platform:         s.Platform,
		Timestamp:        s.Timestamp,
		Direction:        string(s.Direction),
		ModelProbability: s.ModelProbability,
		MarketPrice:      s.MarketPrice,
		Edge:             s.Edge,
		Confidence:       s.Confidence,
		KellyFraction:    s.KellyFraction,
		SuggestedSize:    s.SuggestedSize,
		Sources:          s.Sources,
		Reasoning:        s.Reasoning,
		Executed:         s.Executed,
		ActualOutcome:    directionPtrToStringPtr(s.ActualOutcome),
		OutcomeCorrect:   s.OutcomeCorrect,
		SettlementValue:  s.SettlementValue,
		SettledAt:        s.SettledAt,
	}
}

func directionPtrToStringPtr(d *window.Direction) *string {
	if d == nil {
		return nil
	}
	v := string(*d)
	return &v
}

func tradeToRecord(t *trade.Trade) TradeRecord {
	return TradeRecord{
		ID:                 t.ID,
		MarketTicker:       t.MarketTicker,
		EventSlug:          t.EventSlug,
		Direction:          string(t.Direction),
		EntryPrice:         t.EntryPrice,
		Size:               t.Size,
		Timestamp:          t.Timestamp,
		ModelProbability:   t.ModelProbability,
		MarketPriceAtEntry: t.MarketPriceAtEntry,
		EdgeAtEntry:        t.EdgeAtEntry,
		SignalID:           t.SignalID,
		Settled:            t.Settled,
		Result:             string(t.Result),
		SettlementValue:    t.SettlementValue,
		PnL:                t.PnL,
		SettlementTime:     t.SettlementTime,
	}
}

func recordToTrade(r TradeRecord) *trade.Trade {
	return &trade.Trade{
		ID:                 r.ID,
		MarketTicker:       r.MarketTicker,
		EventSlug:          r.EventSlug,
		Direction:          window.Direction(r.Direction),
		EntryPrice:         r.EntryPrice,
		Size:               r.Size,
		Timestamp:          r.Timestamp,
		ModelProbability:   r.ModelProbability,
		MarketPriceAtEntry: r.MarketPriceAtEntry,
		EdgeAtEntry:        r.EdgeAtEntry,
		SignalID:           r.SignalID,
		Settled:            r.Settled,
		Result:             trade.Result(r.Result),
		SettlementValue:    r.SettlementValue,
		PnL:                r.PnL,
		SettlementTime:     r.SettlementTime,
	}
}

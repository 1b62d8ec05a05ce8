// Package settlement reconciles unsettled trades against the venue's
// published terminal outcome and rolls the result into bankroll and signal
// calibration.
package settlement

import (
	"context"
	"log/slog"
	"math"
	"time"

	"github.com/tholloway/btc-updown-bot/internal/store"
	"github.com/tholloway/btc-updown-bot/internal/trade"
	"github.com/tholloway/btc-updown-bot/internal/window"
)

// Reconciler settles pending trades against the venue's published outcome.
type Reconciler struct {
	venue VenueClient
	store Store
}

// VenueClient is the subset of *window.Client the reconciler depends on,
// kept narrow so it can be faked in tests.
type VenueClient interface {
	FetchBySlug(ctx context.Context, slug string) (window.Window, bool, error)
	FetchByMarketID(ctx context.Context, marketID string) (window.Window, bool, error)
}

// Store is the subset of *store.Store the reconciler depends on, kept
// narrow so it can be faked in tests.
type Store interface {
	ListUnsettledTrades() ([]*trade.Trade, error)
	ApplySettlements(updates []store.SettlementUpdate) error
}

// NewReconciler builds a reconciler against the given venue client and store.
func NewReconciler(venue VenueClient, st Store) *Reconciler {
	return &Reconciler{venue: venue, store: st}
}

// outcome is the parsed terminal state of one window.
type outcome struct {
	decided bool
	value   float64 // 1.0 = UP won, 0.0 = DOWN won
}

// resolveOutcome fetches the window behind a trade (by event slug first,
// falling back to market id) and parses its terminal outcome. A window that
// the venue reports as not yet closed, or whose first outcome price sits
// away from the 0/1 boundary, is undecided and deferred to the next cycle.
func (r *Reconciler) resolveOutcome(ctx context.Context, t *trade.Trade) (outcome, error) {
	w, ok, err := r.venue.FetchBySlug(ctx, t.EventSlug)
	if err != nil {
		return outcome{}, err
	}
	if !ok {
		w, ok, err = r.venue.FetchByMarketID(ctx, t.MarketTicker)
		if err != nil {
			return outcome{}, err
		}
		if !ok {
			return outcome{}, nil
		}
	}
	if !w.Closed {
		return outcome{}, nil
	}

	switch {
	case w.UpPrice >= 0.99:
		return outcome{decided: true, value: 1.0}, nil
	case w.UpPrice <= 0.01:
		return outcome{decided: true, value: 0.0}, nil
	default:
		return outcome{}, nil
	}
}

// computePnL returns the realized profit/loss for a settled trade, rounded
// to the nearest cent.
func computePnL(t *trade.Trade, settlementValue float64) float64 {
	var raw float64
	switch t.Direction {
	case window.Up:
		if settlementValue == 1.0 {
			raw = t.Size * (1 - t.EntryPrice)
		} else {
			raw = -t.Size * t.EntryPrice
		}
	default: // window.Down
		if settlementValue == 0.0 {
			raw = t.Size * (1 - t.EntryPrice)
		} else {
			raw = -t.Size * t.EntryPrice
		}
	}
	return math.Round(raw*100) / 100
}

func resultForPnL(pnl float64) trade.Result {
	switch {
	case pnl > 0:
		return trade.Win
	case pnl < 0:
		return trade.Loss
	default:
		return trade.Push
	}
}

// outcomeDirection reports which side the venue settled in favor of.
func outcomeDirection(settlementValue float64) window.Direction {
	if settlementValue == 1.0 {
		return window.Up
	}
	return window.Down
}

// Result pairs a settled trade with the update committed for it, so callers
// can journal or log the resolution without re-querying the store.
type Result struct {
	Trade  *trade.Trade
	Update store.SettlementUpdate
}

// Run resolves every currently-unsettled trade, committing whichever subset
// has a decided outcome in a single batch transaction. Per-trade resolution
// errors are logged and skipped; the rest of the batch still settles. If the
// batch commit itself fails, nothing is applied and the whole set is retried
// on the next call.
func (r *Reconciler) Run(ctx context.Context) ([]Result, error) {
	pending, err := r.store.ListUnsettledTrades()
	if err != nil {
		return nil, err
	}

	var results []Result
	for _, t := range pending {
		o, resolveErr := r.resolveOutcome(ctx, t)
		if resolveErr != nil {
			slog.Warn("settlement: resolve outcome failed", "event_slug", t.EventSlug, "err", resolveErr)
			continue
		}
		if !o.decided {
			continue
		}

		pnl := computePnL(t, o.value)
		result := resultForPnL(pnl)
		actual := outcomeDirection(o.value)

		results = append(results, Result{
			Trade: t,
			Update: store.SettlementUpdate{
				TradeID:         t.ID,
				SettlementValue: o.value,
				PnL:             pnl,
				Result:          result,
				SettledAt:       time.Now().UTC(),
				SignalID:        t.SignalID,
				ActualOutcome:   actual,
				OutcomeCorrect:  actual == t.Direction,
			},
		})
	}

	if len(results) == 0 {
		return nil, nil
	}

	updates := make([]store.SettlementUpdate, len(results))
	for i, res := range results {
		updates[i] = res.Update
	}
	if err := r.store.ApplySettlements(updates); err != nil {
		return nil, err
	}

	for _, res := range results {
		slog.Info("settlement: trade resolved",
			"trade_id", res.Update.TradeID, "result", res.Update.Result, "pnl", res.Update.PnL)
	}

	return results, nil
}

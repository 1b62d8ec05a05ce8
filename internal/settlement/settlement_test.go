package settlement

import (
	"context"
	"testing"

	"github.com/tholloway/btc-updown-bot/internal/store"
	"github.com/tholloway/btc-updown-bot/internal/trade"
	"github.com/tholloway/btc-updown-bot/internal/window"
)

type fakeVenue struct {
	bySlug map[string]window.Window
}

func (f *fakeVenue) FetchBySlug(_ context.Context, slug string) (window.Window, bool, error) {
	w, ok := f.bySlug[slug]
	return w, ok, nil
}

func (f *fakeVenue) FetchByMarketID(_ context.Context, marketID string) (window.Window, bool, error) {
	for _, w := range f.bySlug {
		if w.MarketID == marketID {
			return w, true, nil
		}
	}
	return window.Window{}, false, nil
}

type fakeStore struct {
	pending []*trade.Trade
	applied []store.SettlementUpdate
}

func (f *fakeStore) ListUnsettledTrades() ([]*trade.Trade, error) { return f.pending, nil }

func (f *fakeStore) ApplySettlements(updates []store.SettlementUpdate) error {
	f.applied = append(f.applied, updates...)
	return nil
}

func TestRunSettlesWinningTrade(t *testing.T) {
	tr := &trade.Trade{ID: 1, EventSlug: "btc-updown-5m-1708531200", Direction: window.Up, EntryPrice: 0.40, Size: 50}
	venue := &fakeVenue{bySlug: map[string]window.Window{
		tr.EventSlug: {Slug: tr.EventSlug, MarketID: "m1", UpPrice: 1.0, DownPrice: 0.0, Closed: true},
	}}
	st := &fakeStore{pending: []*trade.Trade{tr}}
	r := NewReconciler(venue, st)

	results, err := r.Run(context.Background())
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if len(results) != 1 {
		t.Fatalf("settled = %d, want 1", len(results))
	}
	if len(st.applied) != 1 {
		t.Fatalf("expected one settlement update, got %d", len(st.applied))
	}
	u := st.applied[0]
	if u.PnL != 30.00 {
		t.Errorf("pnl = %v, want 30.00", u.PnL)
	}
	if u.Result != trade.Win {
		t.Errorf("result = %v, want win", u.Result)
	}
}

func TestRunSettlesLosingTrade(t *testing.T) {
	tr := &trade.Trade{ID: 2, EventSlug: "btc-updown-5m-1708531500", Direction: window.Down, EntryPrice: 0.45, Size: 25}
	venue := &fakeVenue{bySlug: map[string]window.Window{
		tr.EventSlug: {Slug: tr.EventSlug, MarketID: "m2", UpPrice: 1.0, DownPrice: 0.0, Closed: true},
	}}
	st := &fakeStore{pending: []*trade.Trade{tr}}
	r := NewReconciler(venue, st)

	results, err := r.Run(context.Background())
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if len(results) != 1 {
		t.Fatalf("settled = %d, want 1", len(results))
	}
	u := st.applied[0]
	if u.PnL != -11.25 {
		t.Errorf("pnl = %v, want -11.25", u.PnL)
	}
	if u.Result != trade.Loss {
		t.Errorf("result = %v, want loss", u.Result)
	}
}

func TestRunDefersUndecidedOutcome(t *testing.T) {
	tr := &trade.Trade{ID: 3, EventSlug: "btc-updown-5m-1708531800", Direction: window.Up, EntryPrice: 0.50, Size: 10}
	venue := &fakeVenue{bySlug: map[string]window.Window{
		tr.EventSlug: {Slug: tr.EventSlug, MarketID: "m3", UpPrice: 0.62, DownPrice: 0.38, Closed: true},
	}}
	st := &fakeStore{pending: []*trade.Trade{tr}}
	r := NewReconciler(venue, st)

	results, err := r.Run(context.Background())
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if len(results) != 0 {
		t.Fatalf("settled = %d, want 0 for an undecided outcome", len(results))
	}
	if len(st.applied) != 0 {
		t.Errorf("expected no settlement updates for an undecided outcome")
	}
}

func TestRunDefersUnclosedWindow(t *testing.T) {
	tr := &trade.Trade{ID: 4, EventSlug: "btc-updown-5m-1708532100", Direction: window.Up, EntryPrice: 0.50, Size: 10}
	venue := &fakeVenue{bySlug: map[string]window.Window{
		tr.EventSlug: {Slug: tr.EventSlug, MarketID: "m4", UpPrice: 1.0, DownPrice: 0.0, Closed: false},
	}}
	st := &fakeStore{pending: []*trade.Trade{tr}}
	r := NewReconciler(venue, st)

	results, err := r.Run(context.Background())
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if len(results) != 0 {
		t.Fatalf("settled = %d, want 0 for a window not yet closed", len(results))
	}
}

func TestComputePnLMirrorsDownDirection(t *testing.T) {
	tests := []struct {
		name            string
		direction       window.Direction
		entryPrice      float64
		size            float64
		settlementValue float64
		wantPnL         float64
	}{
		{"up wins", window.Up, 0.40, 50, 1.0, 30.00},
		{"up loses", window.Up, 0.40, 50, 0.0, -20.00},
		{"down wins", window.Down, 0.45, 25, 0.0, 13.75},
		{"down loses", window.Down, 0.45, 25, 1.0, -11.25},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tr := &trade.Trade{Direction: tt.direction, EntryPrice: tt.entryPrice, Size: tt.size}
			got := computePnL(tr, tt.settlementValue)
			if got != tt.wantPnL {
				t.Errorf("computePnL() = %v, want %v", got, tt.wantPnL)
			}
		})
	}
}

func TestResultForPnL(t *testing.T) {
	if resultForPnL(5.0) != trade.Win {
		t.Errorf("expected win for positive pnl")
	}
	if resultForPnL(-5.0) != trade.Loss {
		t.Errorf("expected loss for negative pnl")
	}
	if resultForPnL(0) != trade.Push {
		t.Errorf("expected push for zero pnl")
	}
}

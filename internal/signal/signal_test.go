package signal

import (
	"testing"
	"time"

	"github.com/tholloway/btc-updown-bot/internal/candle"
	"github.com/tholloway/btc-updown-bot/internal/indicator"
	"github.com/tholloway/btc-updown-bot/internal/window"
)

func defaultWeights() Weights {
	return Weights{RSI: 0.20, Momentum: 0.35, VWAP: 0.20, SMA: 0.15, MarketSkew: 0.10}
}

func defaultFilters() Filters {
	return Filters{
		MaxEntryPrice:    0.48,
		MinTimeRemaining: 60 * time.Second,
		MaxTimeRemaining: 240 * time.Second,
	}
}

func newTestEngine(bankroll float64) *Engine {
	return NewEngine(defaultWeights(), defaultFilters(), 0.25, 0.05, 250, func() float64 { return bankroll })
}

func flatCandles(n int, price float64) []candle.Candle {
	cs := make([]candle.Candle, n)
	base := time.Now().Add(-time.Duration(n) * time.Minute).UnixMilli()
	for i := range cs {
		cs[i] = candle.Candle{
			OpenTimeMs: base + int64(i)*60_000,
			Open:       price,
			High:       price,
			Low:        price,
			Close:      price,
			Volume:     10,
		}
	}
	return cs
}

func risingCandles(n int, start, stepPct float64) []candle.Candle {
	cs := make([]candle.Candle, n)
	base := time.Now().Add(-time.Duration(n) * time.Minute).UnixMilli()
	price := start
	for i := range cs {
		cs[i] = candle.Candle{
			OpenTimeMs: base + int64(i)*60_000,
			Open:       price,
			High:       price,
			Low:        price,
			Close:      price,
			Volume:     10,
		}
		price *= 1 + stepPct/100
	}
	return cs
}

func TestUnchangedBTCIndicatorMicrostructure(t *testing.T) {
	candles := flatCandles(20, 50000.00)
	micro := indicator.Compute(candles, "test")

	// Per the zero-avg-loss rule in rsi14, RSI reports 100 here, not the
	// neutral 50 an alternative convention would give.
	if micro.RSI != 100 {
		t.Errorf("RSI for zero-loss series = %v, want 100 (per the zero-avg-loss rule)", micro.RSI)
	}
	if micro.Momentum1m != 0 || micro.Momentum5m != 0 || micro.Momentum15m != 0 {
		t.Errorf("expected zero momentum, got %+v", micro)
	}
	if micro.VWAPDeviation != 0 {
		t.Errorf("expected zero VWAP deviation, got %v", micro.VWAPDeviation)
	}
	if micro.SMACrossover != 0 {
		t.Errorf("expected zero SMA crossover, got %v", micro.SMACrossover)
	}
	if micro.Volatility != 0 {
		t.Errorf("expected zero volatility, got %v", micro.Volatility)
	}
}

// TestAllNeutralIndicatorsProduceNoEdge exercises the companion half of the
// unchanged-BTC scenario: when every indicator is genuinely neutral (as
// opposed to RSI's zero-loss 100 reading, which is an extreme overbought
// value, not a neutral one), the composite is exactly zero and no edge
// appears against a fair market.
func TestAllNeutralIndicatorsProduceNoEdge(t *testing.T) {
	micro := indicator.Microstructure{RSI: 50, Price: 50000}

	w := window.Window{
		Slug: "btc-updown-5m-1708531200", MarketID: "m1",
		UpPrice: 0.50, DownPrice: 0.50,
		WindowStart: time.Now().Add(-1 * time.Minute),
		WindowEnd:   time.Now().Add(150 * time.Second),
	}

	e := newTestEngine(10000)
	sig := e.Generate(w, micro, "test")
	if sig == nil {
		t.Fatal("expected a signal even when filtered")
	}
	if sig.ModelProbability != 0.50 {
		t.Errorf("model_up = %v, want 0.50", sig.ModelProbability)
	}
	if sig.Edge != 0 {
		t.Errorf("edge = %v, want 0", sig.Edge)
	}
}

func TestStrongUpMoveMicrostructure(t *testing.T) {
	candles := risingCandles(16, 50000, 0.02)
	micro := indicator.Compute(candles, "test")

	if micro.RSI <= 70 {
		t.Errorf("RSI = %v, want > 70 for a strong linear rise", micro.RSI)
	}
	if micro.Momentum1m <= 0 || micro.Momentum5m <= 0 || micro.Momentum15m <= 0 {
		t.Errorf("expected positive momentum at all horizons, got %+v", micro)
	}
	if micro.VWAPDeviation <= 0 {
		t.Errorf("expected price above VWAP on a rising series, got deviation %v", micro.VWAPDeviation)
	}
	if micro.SMACrossover <= 0 {
		t.Errorf("expected SMA5 > SMA15, got crossover %v", micro.SMACrossover)
	}
}

// actionableUpMicro is a snapshot where all four voting indicators lean up:
// RSI oversold (the mean-reversion mapping votes up only below the 45 band),
// and momentum, VWAP deviation, and SMA crossover all positive.
func actionableUpMicro() indicator.Microstructure {
	return indicator.Microstructure{
		RSI:        25,
		Momentum1m: 0.05, Momentum5m: 0.05, Momentum15m: 0.05,
		VWAPDeviation: 0.05,
		SMACrossover:  0.03,
		Volatility:    0.06,
		Price:         50000,
	}
}

func TestFullUpConvergenceIsActionable(t *testing.T) {
	w := window.Window{
		Slug: "btc-updown-5m-1708531200", MarketID: "m1",
		UpPrice: 0.45, DownPrice: 0.55,
		WindowStart: time.Now().Add(-1 * time.Minute),
		WindowEnd:   time.Now().Add(150 * time.Second),
	}

	e := newTestEngine(10000)
	sig := e.Generate(w, actionableUpMicro(), "test")
	if sig == nil {
		t.Fatal("expected a signal")
	}
	if sig.Direction != window.Up {
		t.Errorf("direction = %v, want up", sig.Direction)
	}
	if sig.Edge < 0.03 {
		t.Errorf("edge = %v, want >= 0.03", sig.Edge)
	}
	if sig.SuggestedSize <= 0 {
		t.Errorf("suggested size = %v, want > 0 for an actionable up edge", sig.SuggestedSize)
	}
}

func TestConvergenceGateBlocksWhenOnly3Of4Agree(t *testing.T) {
	micro := indicator.Microstructure{
		RSI: 20, // strongly up: rsi_signal ~ +0.83 (> 0.05 vote)
		Momentum1m: 0.02, Momentum5m: 0.02, Momentum15m: 0.02, // momentum up vote
		VWAPDeviation: 0.04, // vwap up vote
		SMACrossover:  0,    // zero vote -- no convergence
		Volatility:    0.03,
		Price:         50000,
	}

	w := window.Window{
		Slug: "btc-updown-5m-1708531200", MarketID: "m1",
		UpPrice: 0.40, DownPrice: 0.60,
		WindowStart: time.Now().Add(-1 * time.Minute),
		WindowEnd:   time.Now().Add(150 * time.Second),
	}

	e := newTestEngine(10000)
	sig := e.Generate(w, micro, "test")
	if sig == nil {
		t.Fatal("expected a signal even when filtered")
	}
	if sig.Edge != 0 {
		t.Errorf("edge = %v, want 0 (convergence gate should block with 3/4)", sig.Edge)
	}
}

func TestEntryPriceGateBlocksExpensiveEntries(t *testing.T) {
	micro := indicator.Microstructure{
		RSI: 15, Momentum1m: 0.05, Momentum5m: 0.05, Momentum15m: 0.05,
		VWAPDeviation: 0.05, SMACrossover: 0.03, Volatility: 0.05, Price: 50000,
	}

	w := window.Window{
		Slug: "btc-updown-5m-1708531200", MarketID: "m1",
		UpPrice: 0.55, DownPrice: 0.45, // above MAX_ENTRY_PRICE of 0.48
		WindowStart: time.Now().Add(-1 * time.Minute),
		WindowEnd:   time.Now().Add(150 * time.Second),
	}

	e := newTestEngine(10000)
	sig := e.Generate(w, micro, "test")
	if sig == nil {
		t.Fatal("expected a signal even when filtered")
	}
	if sig.Direction != window.Up {
		t.Fatalf("direction = %v, want up for this setup", sig.Direction)
	}
	if sig.Edge != 0 {
		t.Errorf("edge = %v, want 0 (entry-price gate should block at up_price 0.55)", sig.Edge)
	}
}

func TestModelProbabilityIsAlwaysBounded(t *testing.T) {
	inputs := []indicator.Microstructure{
		{RSI: 0, Momentum1m: 10, Momentum5m: 10, Momentum15m: 10, VWAPDeviation: 10, SMACrossover: 10, Volatility: 1},
		{RSI: 100, Momentum1m: -10, Momentum5m: -10, Momentum15m: -10, VWAPDeviation: -10, SMACrossover: -10, Volatility: 1},
		{RSI: 50},
	}
	w := window.Window{
		Slug: "btc-updown-5m-1708531200", MarketID: "m1",
		UpPrice: 0.5, DownPrice: 0.5,
		WindowStart: time.Now().Add(-1 * time.Minute),
		WindowEnd:   time.Now().Add(150 * time.Second),
	}
	e := newTestEngine(10000)

	for _, micro := range inputs {
		sig := e.Generate(w, micro, "test")
		if sig == nil {
			t.Fatal("expected a signal")
		}
		if sig.ModelProbability < 0.42 || sig.ModelProbability > 0.58 {
			t.Errorf("model_up = %v out of bounds [0.42,0.58]", sig.ModelProbability)
		}
	}
}

func TestFilterMonotonicityRaisingMinEdgeNeverAddsActionable(t *testing.T) {
	w := window.Window{
		Slug: "btc-updown-5m-1708531200", MarketID: "m1",
		UpPrice: 0.45, DownPrice: 0.55,
		WindowStart: time.Now().Add(-1 * time.Minute),
		WindowEnd:   time.Now().Add(150 * time.Second),
	}
	e := newTestEngine(10000)
	sig := e.Generate(w, actionableUpMicro(), "test")
	if sig == nil {
		t.Fatal("expected a signal")
	}
	if !sig.PassesThreshold(0.01) {
		t.Fatalf("expected an actionable signal to pass a low threshold, edge = %v", sig.Edge)
	}

	// Walking the threshold upward can only shrink the actionable set.
	thresholds := []float64{0.01, 0.03, 0.05, 0.10, 0.50, 0.90}
	prev := true
	for _, th := range thresholds {
		passes := sig.PassesThreshold(th)
		if passes && !prev {
			t.Fatalf("raising MIN_EDGE_THRESHOLD to %v re-admitted a signal", th)
		}
		prev = passes
	}
}

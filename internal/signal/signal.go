// Package signal fuses an indicator snapshot and a window's market price
// into a probability, an edge, a direction, a confidence, and a fractional-
// Kelly position size.
package signal

import (
	"fmt"
	"time"

	"github.com/tholloway/btc-updown-bot/internal/indicator"
	"github.com/tholloway/btc-updown-bot/internal/window"
)

// Weights holds the composite engine's indicator weights. Must sum to 1.0.
type Weights struct {
	RSI        float64
	Momentum   float64
	VWAP       float64
	SMA        float64
	MarketSkew float64
}

// Filters holds the entry gates applied after the composite is computed.
type Filters struct {
	MaxEntryPrice    float64
	MinTimeRemaining time.Duration
	MaxTimeRemaining time.Duration
}

// Signal is the persisted, append-only record the scheduler and settlement
// reconciler operate on.
type Signal struct {
	ID               uint
	MarketID         string
	EventSlug        string
	Platform         string
	Timestamp        time.Time
	Direction        window.Direction
	ModelProbability float64
	MarketPrice      float64
	Edge             float64
	Confidence       float64
	KellyFraction    float64
	SuggestedSize    float64
	Sources          string
	Reasoning        string
	Executed         bool

	ActualOutcome   *window.Direction
	OutcomeCorrect  *bool
	SettlementValue *float64
	SettledAt       *time.Time
}

// PassesThreshold reports whether the signal's absolute edge clears the
// configured actionability bar.
func (s Signal) PassesThreshold(minEdge float64) bool {
	return absf(s.Edge) >= minEdge
}

// Engine computes signals for windows given an indicator microstructure.
type Engine struct {
	weights       Weights
	filters       Filters
	kellyFraction float64
	maxTradeFrac  float64
	maxTradeSize  float64
	bankroll      func() float64
}

// NewEngine builds a signal engine. bankroll is called at generation time so
// sizing always reflects the current BotState.
func NewEngine(w Weights, f Filters, kellyFraction, maxTradeFraction, maxTradeSize float64, bankroll func() float64) *Engine {
	return &Engine{
		weights:       w,
		filters:       f,
		kellyFraction: kellyFraction,
		maxTradeFrac:  maxTradeFraction,
		maxTradeSize:  maxTradeSize,
		bankroll:      bankroll,
	}
}

// Generate computes a Signal for one window from its matching microstructure
// snapshot. Resolved windows (up_price outside [0.02, 0.98]) yield no signal.
func (e *Engine) Generate(w window.Window, micro indicator.Microstructure, sourceTag string) *Signal {
	if w.UpPrice < 0.02 || w.UpPrice > 0.98 {
		return nil
	}

	rsiSignal := rsiSignal(micro.RSI)
	momentumSignal := momentumSignal(micro.Momentum1m, micro.Momentum5m, micro.Momentum15m)
	vwapSignal := clamp(micro.VWAPDeviation/0.05, -1, 1)
	smaSignal := clamp(micro.SMACrossover/0.03, -1, 1)

	marketSkew := w.UpPrice - 0.50
	skewSignal := clamp(-marketSkew*4, -1, 1)

	upVotes, downVotes := countVotes(rsiSignal, momentumSignal, vwapSignal, smaSignal)
	hasConvergence := upVotes >= 4 || downVotes >= 4

	composite := rsiSignal*e.weights.RSI +
		momentumSignal*e.weights.Momentum +
		vwapSignal*e.weights.VWAP +
		smaSignal*e.weights.SMA +
		skewSignal*e.weights.MarketSkew

	modelUp := clamp(0.50+composite*0.08, 0.42, 0.58)

	edge, direction := calculateEdge(modelUp, w.UpPrice)

	entryPrice := w.EntryPrice(direction)
	timeRemaining := w.TimeUntilEnd()
	timeOK := timeRemaining >= e.filters.MinTimeRemaining && timeRemaining <= e.filters.MaxTimeRemaining
	entryOK := entryPrice <= e.filters.MaxEntryPrice
	passesFilters := hasConvergence && entryOK && timeOK

	if !passesFilters {
		edge = 0
	}

	volFactor := 0.5
	if micro.Volatility > 0 {
		volFactor = clamp(micro.Volatility/0.05, 0, 1)
	}
	maxVotes := upVotes
	if downVotes > maxVotes {
		maxVotes = downVotes
	}
	convergenceStrength := float64(maxVotes) / 4.0
	confidence := minf(0.8, 0.3+convergenceStrength*0.3+absf(composite)*0.2) * volFactor

	bankroll := e.bankroll()
	suggestedSize := e.kellySize(absf(edge), modelUp, w.UpPrice, direction, bankroll)

	kellyFraction := 0.0
	if bankroll > 0 {
		kellyFraction = suggestedSize / bankroll
	}

	reasoning := buildReasoning(passesFilters, upVotes, downVotes, timeOK, timeRemaining, e.filters,
		entryPrice, micro, composite, modelUp, w, edge, direction)

	return &Signal{
		MarketID:         w.MarketID,
		EventSlug:        w.Slug,
		Platform:         "polymarket",
		Timestamp:        time.Now().UTC(),
		Direction:        direction,
		ModelProbability: modelUp,
		MarketPrice:      w.UpPrice,
		Edge:             edge,
		Confidence:       confidence,
		KellyFraction:    kellyFraction,
		SuggestedSize:    suggestedSize,
		Sources:          fmt.Sprintf("binance_microstructure_%s", sourceTag),
		Reasoning:        reasoning,
		Executed:         false,
	}
}

// rsiSignal maps RSI into a bounded [-1,+1] opinion: oversold (<30) leans
// strongly up, overbought (>70) leans strongly down, with mild biases around
// the 45/55 neutral band.
func rsiSignal(rsi float64) float64 {
	var s float64
	switch {
	case rsi < 30:
		s = 0.5 + (30-rsi)/30
	case rsi > 70:
		s = -0.5 - (rsi-70)/30
	case rsi < 45:
		s = (45 - rsi) / 30
	case rsi > 55:
		s = -(rsi - 55) / 30
	default:
		s = 0
	}
	return clamp(s, -1, 1)
}

func momentumSignal(m1, m5, m15 float64) float64 {
	blend := m1*0.5 + m5*0.35 + m15*0.15
	return clamp(blend/0.10, -1, 1)
}

// countVotes counts indicators whose signed magnitude exceeds the 0.05
// deadband, split by direction.
func countVotes(signals ...float64) (up, down int) {
	for _, s := range signals {
		switch {
		case s > 0.05:
			up++
		case s < -0.05:
			down++
		}
	}
	return up, down
}

// calculateEdge picks whichever of the UP or DOWN bets has the larger edge.
func calculateEdge(modelUp, marketUp float64) (edge float64, dir window.Direction) {
	upEdge := modelUp - marketUp
	downEdge := (1 - modelUp) - (1 - marketUp)
	if upEdge >= downEdge {
		return upEdge, window.Up
	}
	return downEdge, window.Down
}

// kellySize applies fractional Kelly to the chosen side, capped per-trade.
func (e *Engine) kellySize(edge, probability, marketUpPrice float64, dir window.Direction, bankroll float64) float64 {
	var winProb, price float64
	if dir == window.Up {
		winProb = probability
		price = marketUpPrice
	} else {
		winProb = 1 - probability
		price = 1 - marketUpPrice
	}

	if price <= 0 || price >= 1 {
		return 0
	}

	odds := (1 - price) / price
	loseProb := 1 - winProb
	kelly := (winProb*odds - loseProb) / odds

	kelly *= e.kellyFraction
	kelly = minf(kelly, e.maxTradeFrac)
	kelly = maxf(kelly, 0)

	size := kelly * bankroll
	return minf(size, e.maxTradeSize)
}

func clamp(x, lo, hi float64) float64 {
	if x < lo {
		return lo
	}
	if x > hi {
		return hi
	}
	return x
}

func minf(a, b float64) float64 {
	if a < b {
		return a
	}
	return b
}

func maxf(a, b float64) float64 {
	if a > b {
		return a
	}
	return b
}

func absf(x float64) float64 {
	if x < 0 {
		return -x
	}
	return x
}

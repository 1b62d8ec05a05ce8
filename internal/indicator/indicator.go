// Package indicator computes a deterministic technical snapshot — RSI,
// multi-horizon momentum, VWAP deviation, SMA crossover, and volatility —
// from an ordered window of 1-minute candles. Every function here is a pure
// transform: same candles in, same Microstructure out, no I/O.
package indicator

import (
	"math"

	"github.com/tholloway/btc-updown-bot/internal/candle"
)

// Microstructure is the computed snapshot the signal engine consumes.
type Microstructure struct {
	Price         float64
	RSI           float64
	Momentum1m    float64
	Momentum5m    float64
	Momentum15m   float64
	VWAP          float64
	VWAPDeviation float64
	SMACrossover  float64
	Volatility    float64
	Source        string
}

// Compute derives a Microstructure from an ordered (oldest-first) slice of
// candles. Source tags the snapshot with where the candles came from.
func Compute(candles []candle.Candle, source string) Microstructure {
	n := len(candles)
	if n == 0 {
		return Microstructure{Source: source}
	}

	closes := make([]float64, n)
	highs := make([]float64, n)
	lows := make([]float64, n)
	volumes := make([]float64, n)
	for i, c := range candles {
		closes[i] = c.Close
		highs[i] = c.High
		lows[i] = c.Low
		volumes[i] = c.Volume
	}

	last := closes[n-1]

	return Microstructure{
		Price:         last,
		RSI:           rsi14(closes),
		Momentum1m:    momentum(closes, 1),
		Momentum5m:    momentum(closes, 5),
		Momentum15m:   momentum(closes, 15),
		VWAP:          vwap(highs, lows, closes, volumes),
		VWAPDeviation: vwapDeviation(highs, lows, closes, volumes, last),
		SMACrossover:  smaCrossover(closes, last),
		Volatility:    volatility(closes),
		Source:        source,
	}
}

// rsi14 computes Wilder-smoothed RSI(14). Needs at least 15 closes; returns
// 50 (neutral) when there isn't enough history.
func rsi14(closes []float64) float64 {
	const period = 14
	if len(closes) < period+1 {
		return 50
	}

	var gainSum, lossSum float64
	for i := 1; i <= period; i++ {
		delta := closes[i] - closes[i-1]
		if delta > 0 {
			gainSum += delta
		} else {
			lossSum += -delta
		}
	}
	avgGain := gainSum / period
	avgLoss := lossSum / period

	for i := period + 1; i < len(closes); i++ {
		delta := closes[i] - closes[i-1]
		var gain, loss float64
		if delta > 0 {
			gain = delta
		} else {
			loss = -delta
		}
		avgGain = (avgGain*(period-1) + gain) / period
		avgLoss = (avgLoss*(period-1) + loss) / period
	}

	if avgLoss == 0 {
		return 100
	}
	rs := avgGain / avgLoss
	return 100 - 100/(1+rs)
}

// momentum returns the percentage change from k candles ago to the last
// close. 0 when the lookback isn't available or the base is non-positive.
func momentum(closes []float64, k int) float64 {
	n := len(closes)
	if n <= k {
		return 0
	}
	base := closes[n-1-k]
	if base <= 0 {
		return 0
	}
	last := closes[n-1]
	return 100 * (last - base) / base
}

func vwapWindow(n int) int {
	const maxWindow = 30
	if n < maxWindow {
		return n
	}
	return maxWindow
}

// vwap computes the volume-weighted average typical price over the last
// min(30, N) candles. Falls back to the current price when total volume is
// zero.
func vwap(highs, lows, closes, volumes []float64) float64 {
	n := len(closes)
	if n == 0 {
		return 0
	}
	w := vwapWindow(n)
	start := n - w

	var sumPV, sumV float64
	for i := start; i < n; i++ {
		typical := (highs[i] + lows[i] + closes[i]) / 3
		sumPV += typical * volumes[i]
		sumV += volumes[i]
	}
	if sumV == 0 {
		return closes[n-1]
	}
	return sumPV / sumV
}

func vwapDeviation(highs, lows, closes, volumes []float64, price float64) float64 {
	v := vwap(highs, lows, closes, volumes)
	if v == 0 {
		return 0
	}
	return 100 * (price - v) / v
}

// smaCrossover returns 100*(sma5-sma15)/price.
func smaCrossover(closes []float64, price float64) float64 {
	n := len(closes)
	if n == 0 || price == 0 {
		return 0
	}
	sma5 := mean(lastN(closes, 5))
	sma15 := mean(lastN(closes, 15))
	return 100 * (sma5 - sma15) / price
}

// volatility is the population stdev of close-to-close simple returns over
// the last min(30, N-1) periods, expressed as a percentage.
func volatility(closes []float64) float64 {
	n := len(closes)
	if n < 2 {
		return 0
	}
	const maxWindow = 30
	window := n - 1
	if window > maxWindow {
		window = maxWindow
	}
	start := n - window

	returns := make([]float64, 0, window)
	for i := start; i < n; i++ {
		prev := closes[i-1]
		if prev == 0 {
			continue
		}
		returns = append(returns, 100*(closes[i]-prev)/prev)
	}
	if len(returns) == 0 {
		return 0
	}

	m := mean(returns)
	var sumSq float64
	for _, r := range returns {
		d := r - m
		sumSq += d * d
	}
	return math.Sqrt(sumSq / float64(len(returns)))
}

func lastN(xs []float64, n int) []float64 {
	if len(xs) < n {
		return xs
	}
	return xs[len(xs)-n:]
}

func mean(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	var sum float64
	for _, x := range xs {
		sum += x
	}
	return sum / float64(len(xs))
}

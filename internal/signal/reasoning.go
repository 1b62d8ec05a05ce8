package signal

import (
	"fmt"
	"strings"
	"time"

	"github.com/tholloway/btc-updown-bot/internal/indicator"
	"github.com/tholloway/btc-updown-bot/internal/window"
)

// buildReasoning renders a human-readable line summarizing why a signal did
// or did not fire, for later manual review.
func buildReasoning(
	passesFilters bool,
	upVotes, downVotes int,
	timeOK bool,
	timeRemaining time.Duration,
	filters Filters,
	entryPrice float64,
	micro indicator.Microstructure,
	composite, modelUp float64,
	w window.Window,
	edge float64,
	direction window.Direction,
) string {
	status := "FILTERED"
	if passesFilters {
		status = "ACTIONABLE"
	}

	maxVotes := upVotes
	if downVotes > maxVotes {
		maxVotes = downVotes
	}

	var reasons []string
	if maxVotes < 4 {
		reasons = append(reasons, fmt.Sprintf("convergence %d/4 < 4", maxVotes))
	}
	if !timeOK {
		reasons = append(reasons, fmt.Sprintf("time %.0fs not in [%s,%s]",
			timeRemaining.Seconds(), filters.MinTimeRemaining, filters.MaxTimeRemaining))
	}
	if entryPrice > filters.MaxEntryPrice {
		reasons = append(reasons, fmt.Sprintf("entry %.0f%% > %.0f%%", entryPrice*100, filters.MaxEntryPrice*100))
	}
	filterNote := ""
	if len(reasons) > 0 {
		filterNote = " [" + strings.Join(reasons, ", ") + "]"
	}

	return fmt.Sprintf(
		"[%s]%s BTC $%.0f | RSI:%.0f Mom1m:%+.3f%% Mom5m:%+.3f%% VWAP:%+.3f%% SMA:%+.4f%% Vol:%.4f%% | "+
			"Composite:%+.3f -> Model UP:%.0f%% vs Mkt:%.0f%% | Edge:%+.1f%% -> %s @ %.0f%% | "+
			"Convergence:%d/4 | Window ends: %s",
		status, filterNote, micro.Price,
		micro.RSI, micro.Momentum1m, micro.Momentum5m, micro.VWAPDeviation, micro.SMACrossover, micro.Volatility,
		composite, modelUp*100, w.UpPrice*100,
		edge*100, strings.ToUpper(string(direction)), entryPrice*100,
		maxVotes, w.WindowEnd.Format("15:04 MST"),
	)
}

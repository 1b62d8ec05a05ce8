package scheduler

import (
	"sync"
	"time"
)

// dailyLossGuard tracks realized P&L since the last UTC midnight and trips
// once cumulative losses breach the configured floor, halting new trade
// inserts until the next day boundary. This is a supplement to the core
// filter set: the original drafts mention a daily stop but never specify
// its bookkeeping. The gate decision is made from this in-memory tally; the
// store keeps a persisted copy (daily_pnl, daily_loss_floor) that seeds the
// guard at startup.
type dailyLossGuard struct {
	mu       sync.Mutex
	limit    float64
	dayStart time.Time
	pnlToday float64
}

func newDailyLossGuard(limit float64) *dailyLossGuard {
	// dayStart starts at the zero time, so the first seed, record, or tripped
	// call anchors the day from the timestamp it is given.
	return &dailyLossGuard{limit: limit}
}

func utcMidnight(t time.Time) time.Time {
	u := t.UTC()
	return time.Date(u.Year(), u.Month(), u.Day(), 0, 0, 0, 0, time.UTC)
}

// seed restores the guard from the persisted daily tally at startup, so a
// restart mid-day doesn't forget losses already taken. A floor from an
// earlier day is discarded by the normal rollover.
func (g *dailyLossGuard) seed(pnl float64, floor time.Time) {
	g.mu.Lock()
	defer g.mu.Unlock()
	day := utcMidnight(floor)
	if day.After(g.dayStart) || day.Equal(g.dayStart) {
		g.dayStart = day
		g.pnlToday = pnl
	}
}

// record applies a realized P&L delta, rolling over to a fresh day if the
// wall clock has crossed UTC midnight since the last record.
func (g *dailyLossGuard) record(pnl float64, at time.Time) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.rolloverLocked(at)
	g.pnlToday += pnl
}

// tripped reports whether the daily loss floor has been breached.
func (g *dailyLossGuard) tripped(at time.Time) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.rolloverLocked(at)
	return g.limit > 0 && g.pnlToday <= -g.limit
}

func (g *dailyLossGuard) rolloverLocked(at time.Time) {
	today := utcMidnight(at)
	if today.After(g.dayStart) {
		g.dayStart = today
		g.pnlToday = 0
	}
}

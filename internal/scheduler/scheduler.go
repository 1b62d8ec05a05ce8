// Package scheduler owns the bot's three recurring jobs — scan-and-trade,
// settle, and heartbeat — and the in-memory observability surface they
// report into.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/tholloway/btc-updown-bot/internal/candle"
	"github.com/tholloway/btc-updown-bot/internal/config"
	"github.com/tholloway/btc-updown-bot/internal/indicator"
	"github.com/tholloway/btc-updown-bot/internal/journal"
	"github.com/tholloway/btc-updown-bot/internal/settlement"
	"github.com/tholloway/btc-updown-bot/internal/signal"
	"github.com/tholloway/btc-updown-bot/internal/store"
	"github.com/tholloway/btc-updown-bot/internal/trade"
	"github.com/tholloway/btc-updown-bot/internal/window"
)

const candleLookback = 60

// Scheduler coordinates the scan/settle/heartbeat cadence against a shared
// store, signal engine, and venue. Each job enforces max-in-flight = 1: a
// tick that fires while the previous invocation is still running is skipped
// outright, never queued.
type Scheduler struct {
	cfg     *config.Config
	candles *candle.Fetcher
	catalog *window.Catalog
	engine  *signal.Engine
	store   *store.Store
	recon   *settlement.Reconciler
	journal *journal.Journal

	events    *EventLog
	dailyLoss *dailyLossGuard

	scanBusy      sync.Mutex
	settleBusy    sync.Mutex
	heartbeatBusy sync.Mutex
}

// New builds a Scheduler from its fully-wired dependencies.
func New(
	cfg *config.Config,
	candles *candle.Fetcher,
	catalog *window.Catalog,
	engine *signal.Engine,
	st *store.Store,
	recon *settlement.Reconciler,
	j *journal.Journal,
) *Scheduler {
	return &Scheduler{
		cfg:       cfg,
		candles:   candles,
		catalog:   catalog,
		engine:    engine,
		store:     st,
		recon:     recon,
		journal:   j,
		events:    NewEventLog(200),
		dailyLoss: newDailyLossGuard(cfg.DailyLossLimit),
	}
}

// Events returns the observability ring buffer for external inspection.
func (s *Scheduler) Events() *EventLog { return s.events }

// Run starts all three job loops and blocks until ctx is cancelled. A scan
// is dispatched once immediately on startup, ahead of its regular cadence.
func (s *Scheduler) Run(ctx context.Context) {
	if state, err := s.store.GetState(); err == nil {
		s.dailyLoss.seed(state.DailyPnL, state.DailyLossFloor)
	} else {
		slog.Warn("scheduler: could not seed daily-loss guard from state", "err", err)
	}

	go s.scanAndTrade(ctx)

	var wg sync.WaitGroup
	wg.Add(3)
	go s.loop(ctx, &wg, s.cfg.ScanInterval, s.scanAndTrade)
	go s.loop(ctx, &wg, s.cfg.SettlementInterval, s.settle)
	go s.loop(ctx, &wg, s.cfg.HeartbeatInterval, s.heartbeat)
	wg.Wait()
}

func (s *Scheduler) loop(ctx context.Context, wg *sync.WaitGroup, interval time.Duration, job func(context.Context)) {
	defer wg.Done()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			job(ctx)
		}
	}
}

func (s *Scheduler) log(typ EventType, msg string, payload any) {
	s.events.Add(Event{
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Type:      typ,
		Message:   msg,
		Payload:   payload,
	})
}

// scanAndTrade fetches candles, lists active windows, generates a signal per
// window, and turns actionable signals into simulated orders subject to the
// entry gates.
func (s *Scheduler) scanAndTrade(ctx context.Context) {
	runExclusive(&s.scanBusy, func() { s.doScanAndTrade(ctx) })
}

func (s *Scheduler) doScanAndTrade(ctx context.Context) {
	state, err := s.store.GetState()
	if err != nil {
		slog.Error("scan: get state failed", "err", err)
		return
	}
	if now := time.Now().UTC(); utcMidnight(now).After(state.DailyLossFloor) {
		if err := s.store.ResetDailyLoss(now); err != nil {
			slog.Warn("scan: daily loss reset failed", "err", err)
		}
	}
	if !state.IsRunning {
		s.log(EventInfo, "scan skipped: bot not running", nil)
		return
	}
	if state.Bankroll < s.cfg.MinTradeSize {
		s.log(EventWarning, "scan halted: bankroll below minimum trade size", map[string]float64{"bankroll": state.Bankroll})
		return
	}

	pending, err := s.store.CountUnsettledTrades()
	if err != nil {
		slog.Error("scan: count pending failed", "err", err)
		return
	}
	if pending >= s.cfg.MaxTotalPending {
		s.log(EventInfo, "scan skipped: max pending trades reached", map[string]int{"pending": pending})
		return
	}

	candles, source := s.candles.FetchRecentCandles(candleLookback)
	if len(candles) == 0 {
		s.log(EventWarning, "scan: all candle sources failed", nil)
		return
	}
	micro := indicator.Compute(candles, source)

	windows, err := s.catalog.ListActiveWindows(ctx)
	if err != nil {
		slog.Warn("scan: list windows failed", "err", err)
	}
	if len(windows) == 0 {
		s.log(EventInfo, "scan: no active windows", nil)
		return
	}

	type candidate struct {
		window window.Window
		signal *signal.Signal
	}
	var actionable []candidate
	for _, w := range windows {
		sig := s.engine.Generate(w, micro, source)
		if sig == nil {
			continue
		}
		// Only non-zero-edge signals feed the calibration record. Filtered
		// signals (edge zeroed by the engine) are neither persisted nor
		// ranked; their reasoning string is not kept.
		if sig.Edge != 0 {
			if err := s.store.InsertSignalIfNew(sig); err != nil {
				slog.Warn("scan: insert signal failed", "market", sig.MarketID, "err", err)
			}
		}
		if sig.PassesThreshold(s.cfg.MinEdgeThreshold) {
			actionable = append(actionable, candidate{window: w, signal: sig})
		}
	}

	// Stable so equal edges keep window-end order from the catalog.
	sort.SliceStable(actionable, func(i, j int) bool {
		return absEdge(actionable[i].signal.Edge) > absEdge(actionable[j].signal.Edge)
	})

	top := actionable
	if len(top) > s.cfg.MaxTradesPerScan {
		top = top[:s.cfg.MaxTradesPerScan]
	}
	for _, c := range top {
		slog.Info("scan: actionable signal",
			"event_slug", c.window.Slug, "direction", c.signal.Direction, "edge", c.signal.Edge)
	}

	executions := 0
	for _, c := range actionable {
		if executions >= s.cfg.MaxTradesPerScan {
			break
		}
		w, sig := c.window, c.signal

		open, err := s.store.CountUnsettledTradesForEvent(w.Slug)
		if err != nil {
			slog.Warn("scan: unsettled-trade check failed", "event_slug", w.Slug, "err", err)
			continue
		}
		if open >= s.cfg.MaxTradesPerWindow {
			continue
		}

		if s.dailyLoss.tripped(time.Now()) {
			s.log(EventWarning, "trade skipped: daily loss limit reached", map[string]string{"event_slug": w.Slug})
			continue
		}

		size := clampSize(sig.SuggestedSize, s.cfg.MinTradeSize, s.cfg.MaxTradeSize, state.Bankroll*s.cfg.MaxTradeFraction)
		entryPrice := w.EntryPrice(sig.Direction)

		t := &trade.Trade{
			MarketTicker:       w.MarketID,
			EventSlug:          w.Slug,
			Direction:          sig.Direction,
			EntryPrice:         entryPrice,
			Size:               size,
			Timestamp:          time.Now().UTC(),
			ModelProbability:   sig.ModelProbability,
			MarketPriceAtEntry: w.UpPrice,
			EdgeAtEntry:        sig.Edge,
			SignalID:           signalIDPtr(sig.ID),
			Result:             trade.Pending,
		}
		if err := s.store.InsertTrade(t); err != nil {
			slog.Error("scan: insert trade failed", "event_slug", w.Slug, "err", err)
			continue
		}

		if s.journal != nil {
			_ = s.journal.Log(journal.NewTradeEntered(
				t.EventSlug, t.MarketTicker, string(t.Direction),
				t.EntryPrice, t.Size, t.ModelProbability, t.EdgeAtEntry, s.cfg.DryRun,
			))
		}
		s.log(EventTrade, fmt.Sprintf("opened %s %s @ %.2f", t.Direction, t.EventSlug, t.EntryPrice), t)
		executions++
	}

	if err := s.store.TouchLastRun(time.Now().UTC()); err != nil {
		slog.Warn("scan: touch last_run failed", "err", err)
	}
}

// settle resolves pending trades against the venue's published outcome.
func (s *Scheduler) settle(ctx context.Context) {
	runExclusive(&s.settleBusy, func() { s.doSettle(ctx) })
}

func (s *Scheduler) doSettle(ctx context.Context) {
	results, err := s.recon.Run(ctx)
	if err != nil {
		slog.Error("settle: reconciler run failed", "err", err)
		s.log(EventError, "settlement batch failed", err.Error())
		return
	}

	for _, res := range results {
		s.dailyLoss.record(res.Update.PnL, res.Update.SettledAt)
		if s.journal != nil {
			_ = s.journal.Log(journal.NewSettlement(
				res.Trade.EventSlug, res.Trade.MarketTicker, string(res.Trade.Direction), string(res.Update.Result),
				res.Update.SettlementValue, res.Trade.EntryPrice, res.Trade.Size, res.Update.PnL, s.cfg.DryRun,
			))
		}
		s.log(EventSuccess, fmt.Sprintf("settled %s: %s pnl=%.2f", res.Trade.EventSlug, res.Update.Result, res.Update.PnL), res.Update)
	}
}

// heartbeat logs a lightweight liveness snapshot.
func (s *Scheduler) heartbeat(ctx context.Context) {
	runExclusive(&s.heartbeatBusy, func() { s.doHeartbeat() })
}

func (s *Scheduler) doHeartbeat() {
	snap, err := s.store.Heartbeat()
	if err != nil {
		slog.Error("heartbeat: snapshot failed", "err", err)
		return
	}
	s.log(EventData, "heartbeat", snap)
	slog.Info("heartbeat", "bankroll", snap.Bankroll, "pending", snap.PendingCount, "running", snap.IsRunning)
}

// runExclusive runs job only when mu is free, reporting whether it ran. A
// tick that fires while the previous invocation still holds mu is skipped
// outright, never queued.
func runExclusive(mu *sync.Mutex, job func()) bool {
	if !mu.TryLock() {
		return false
	}
	defer mu.Unlock()
	job()
	return true
}

func clampSize(suggested, min, max, fractionCap float64) float64 {
	size := suggested
	if size < min {
		size = min
	}
	if size > fractionCap {
		size = fractionCap
	}
	if size > max {
		size = max
	}
	return size
}

func signalIDPtr(id uint) *uint {
	if id == 0 {
		return nil
	}
	return &id
}

func absEdge(x float64) float64 {
	if x < 0 {
		return -x
	}
	return x
}

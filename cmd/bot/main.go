package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	osSignal "os/signal"
	"syscall"

	"github.com/tholloway/btc-updown-bot/internal/candle"
	"github.com/tholloway/btc-updown-bot/internal/config"
	"github.com/tholloway/btc-updown-bot/internal/journal"
	"github.com/tholloway/btc-updown-bot/internal/scheduler"
	"github.com/tholloway/btc-updown-bot/internal/settlement"
	"github.com/tholloway/btc-updown-bot/internal/signal"
	"github.com/tholloway/btc-updown-bot/internal/store"
	"github.com/tholloway/btc-updown-bot/internal/window"
)

func main() {
	dryRun := flag.Bool("dry-run", false, "paper trade only (no simulated orders persisted as executed)")
	debug := flag.Bool("debug", false, "enable debug logging")
	flag.Parse()

	logLevel := slog.LevelInfo
	if *debug {
		logLevel = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: logLevel})))

	cfg, err := config.Load()
	if err != nil {
		slog.Error("config error", "err", err)
		os.Exit(1)
	}
	if *dryRun {
		cfg.DryRun = true
	}

	slog.Info("btc updown bot starting",
		"venue", cfg.VenueBaseURL,
		"dryRun", cfg.DryRun,
		"initialBankroll", cfg.InitialBankroll,
	)

	st, err := store.New(cfg.DatabaseURL, cfg.InitialBankroll)
	if err != nil {
		slog.Error("store init failed", "err", err)
		os.Exit(1)
	}
	defer st.Close()

	// A previous shutdown leaves is_running=false; launching the binary is
	// the operator asking for scans again.
	if err := st.SetRunning(true); err != nil {
		slog.Error("could not mark bot running", "err", err)
		os.Exit(1)
	}

	j, err := journal.New(cfg.JournalPath)
	if err != nil {
		slog.Error("journal init failed", "err", err)
		os.Exit(1)
	}
	defer j.Close()
	_ = j.Log(journal.NewSessionStart(cfg.DryRun, cfg.InitialBankroll))
	slog.Info("journal opened", "path", cfg.JournalPath)

	cache := candle.NewCache(cfg.RedisAddr)
	fetcher := candle.NewFetcher(cache)

	venueClient := window.NewClient(cfg.VenueBaseURL)
	catalog := window.NewCatalog(venueClient)

	weights := signal.Weights{
		RSI: cfg.WeightRSI, Momentum: cfg.WeightMomentum, VWAP: cfg.WeightVWAP,
		SMA: cfg.WeightSMA, MarketSkew: cfg.WeightMarketSkew,
	}
	filters := signal.Filters{
		MaxEntryPrice:    cfg.MaxEntryPrice,
		MinTimeRemaining: cfg.MinTimeRemaining,
		MaxTimeRemaining: cfg.MaxTimeRemaining,
	}
	bankrollFn := func() float64 {
		state, err := st.GetState()
		if err != nil {
			slog.Warn("signal engine: failed to read bankroll, assuming zero", "err", err)
			return 0
		}
		return state.Bankroll
	}
	engine := signal.NewEngine(weights, filters, cfg.KellyFraction, cfg.MaxTradeFraction, cfg.MaxTradeSize, bankrollFn)

	reconciler := settlement.NewReconciler(venueClient, st)

	sched := scheduler.New(cfg, fetcher, catalog, engine, st, reconciler, j)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	osSignal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		slog.Info("received signal, shutting down", "signal", sig)
		_ = st.SetRunning(false)
		cancel()
	}()

	sched.Run(ctx)

	slog.Info("bot stopped")
}

// Package config loads the bot's runtime configuration from environment
// variables (and an optional .env file) into an immutable snapshot handed to
// every other package at startup.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config is the immutable, fully-resolved configuration for one run of the
// bot. It is built once in Load and passed by pointer to every component
// that needs it; nothing mutates it after startup.
type Config struct {
	DryRun      bool
	JournalPath string
	DatabaseURL string // GORM sqlite DSN, e.g. "./tradingbot.db"

	VenueBaseURL string // gamma-style events API base URL
	RedisAddr    string // optional; empty disables the Redis-backed candle cache

	// Sizing & bankroll
	InitialBankroll  float64
	KellyFraction    float64
	MaxTradeSize     float64
	MinTradeSize     float64
	MaxTradeFraction float64
	DailyLossLimit   float64

	// Entry filters
	MinEdgeThreshold   float64
	MaxEntryPrice      float64
	MinTimeRemaining   time.Duration
	MaxTimeRemaining   time.Duration
	MaxTotalPending    int
	MaxTradesPerWindow int
	MaxTradesPerScan   int

	// Composite weights (must sum to ~1.0)
	WeightRSI        float64
	WeightMomentum   float64
	WeightVWAP       float64
	WeightSMA        float64
	WeightMarketSkew float64

	// Cadence
	ScanInterval       time.Duration
	SettlementInterval time.Duration
	HeartbeatInterval  time.Duration
}

// Load reads configuration from the environment (loading .env first if
// present) and applies the documented defaults for anything unset.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		DryRun:      getEnvBool("DRY_RUN", true),
		JournalPath: getEnvDefault("JOURNAL_PATH", "./journal.jsonl"),
		DatabaseURL: getEnvDefault("DATABASE_URL", "./tradingbot.db"),

		VenueBaseURL: getEnvDefault("VENUE_BASE_URL", "https://gamma-api.polymarket.com"),
		RedisAddr:    os.Getenv("REDIS_ADDR"),

		InitialBankroll:  getEnvFloat("INITIAL_BANKROLL", 10000.0),
		KellyFraction:    getEnvFloat("KELLY_FRACTION", 0.25),
		MaxTradeSize:     getEnvFloat("MAX_TRADE_SIZE", 250.0),
		MinTradeSize:     getEnvFloat("MIN_TRADE_SIZE", 10.0),
		MaxTradeFraction: getEnvFloat("MAX_TRADE_FRACTION", 0.05),
		DailyLossLimit:   getEnvFloat("DAILY_LOSS_LIMIT", 500.0),

		MinEdgeThreshold:   getEnvFloat("MIN_EDGE_THRESHOLD", 0.03),
		MaxEntryPrice:      getEnvFloat("MAX_ENTRY_PRICE", 0.48),
		MinTimeRemaining:   getEnvSeconds("MIN_TIME_REMAINING", 60),
		MaxTimeRemaining:   getEnvSeconds("MAX_TIME_REMAINING", 240),
		MaxTotalPending:    getEnvInt("MAX_TOTAL_PENDING_TRADES", 20),
		MaxTradesPerWindow: getEnvInt("MAX_TRADES_PER_WINDOW", 1),
		MaxTradesPerScan:   getEnvInt("MAX_TRADES_PER_SCAN", 3),

		WeightRSI:        getEnvFloat("WEIGHT_RSI", 0.20),
		WeightMomentum:   getEnvFloat("WEIGHT_MOMENTUM", 0.35),
		WeightVWAP:       getEnvFloat("WEIGHT_VWAP", 0.20),
		WeightSMA:        getEnvFloat("WEIGHT_SMA", 0.15),
		WeightMarketSkew: getEnvFloat("WEIGHT_MARKET_SKEW", 0.10),

		ScanInterval:       getEnvSeconds("SCAN_INTERVAL_SECONDS", 60),
		SettlementInterval: getEnvSeconds("SETTLEMENT_INTERVAL_SECONDS", 120),
		HeartbeatInterval:  getEnvSeconds("HEARTBEAT_INTERVAL_SECONDS", 60),
	}

	if sum := cfg.WeightRSI + cfg.WeightMomentum + cfg.WeightVWAP + cfg.WeightSMA + cfg.WeightMarketSkew; sum < 0.99 || sum > 1.01 {
		return nil, fmt.Errorf("composite weights must sum to 1.0, got %.3f", sum)
	}
	if cfg.InitialBankroll <= 0 {
		return nil, fmt.Errorf("INITIAL_BANKROLL must be positive")
	}

	return cfg, nil
}

func getEnvDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getEnvBool(key string, def bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}

func getEnvFloat(key string, def float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return def
	}
	return f
}

func getEnvInt(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

func getEnvSeconds(key string, defSeconds int) time.Duration {
	return time.Duration(getEnvInt(key, defSeconds)) * time.Second
}

package store

import (
	"fmt"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/tholloway/btc-updown-bot/internal/signal"
	"github.com/tholloway/btc-updown-bot/internal/trade"
	"github.com/tholloway/btc-updown-bot/internal/window"
)

// Store is the durable relational record for signals, trades, and bot
// state. All writes are committed or rolled back atomically per operation.
type Store struct {
	db *gorm.DB
}

// New opens (creating if necessary) a SQLite database at dsn and migrates
// the schema, seeding the singleton BotState row with initialBankroll.
func New(dsn string, initialBankroll float64) (*Store, error) {
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		return nil, fmt.Errorf("store: open: %w", err)
	}

	if err := db.AutoMigrate(&SignalRecord{}, &TradeRecord{}, &BotStateRecord{}); err != nil {
		return nil, fmt.Errorf("store: migrate: %w", err)
	}

	s := &Store{db: db}
	if err := s.ensureBotState(initialBankroll); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Store) ensureBotState(initialBankroll float64) error {
	var count int64
	if err := s.db.Model(&BotStateRecord{}).Count(&count).Error; err != nil {
		return fmt.Errorf("store: count bot_state: %w", err)
	}
	if count > 0 {
		return nil
	}
	row := BotStateRecord{
		ID:             botStateSingletonID,
		Bankroll:       initialBankroll,
		IsRunning:      true,
		DailyLossFloor: time.Now().UTC().Truncate(24 * time.Hour),
	}
	if err := s.db.Create(&row).Error; err != nil {
		return fmt.Errorf("store: seed bot_state: %w", err)
	}
	return nil
}

// Close releases the underlying database connection.
func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// InsertSignalIfNew persists sig unless a signal already exists for the same
// (market, minute-floor(timestamp)) pair.
func (s *Store) InsertSignalIfNew(sig *signal.Signal) error {
	minuteFloor := sig.Timestamp.Truncate(time.Minute)

	var existing int64
	err := s.db.Model(&SignalRecord{}).
		Where("market_ticker = ? AND timestamp >= ? AND timestamp < ?",
			sig.MarketID, minuteFloor, minuteFloor.Add(time.Minute)).
		Count(&existing).Error
	if err != nil {
		return fmt.Errorf("store: check signal dedup: %w", err)
	}
	if existing > 0 {
		return nil
	}

	record := signalToRecord(sig)
	if err := s.db.Create(&record).Error; err != nil {
		return fmt.Errorf("store: insert signal: %w", err)
	}
	sig.ID = record.ID
	return nil
}

// HasUnsettledTrade reports whether an unsettled trade already exists for
// eventSlug.
func (s *Store) HasUnsettledTrade(eventSlug string) (bool, error) {
	var count int64
	err := s.db.Model(&TradeRecord{}).
		Where("event_slug = ? AND settled = ?", eventSlug, false).
		Count(&count).Error
	if err != nil {
		return false, fmt.Errorf("store: check unsettled trade: %w", err)
	}
	return count > 0, nil
}

// CountUnsettledTradesForEvent returns the number of open trades against one
// event slug, compared by the scheduler against the per-window trade cap.
func (s *Store) CountUnsettledTradesForEvent(eventSlug string) (int, error) {
	var count int64
	err := s.db.Model(&TradeRecord{}).
		Where("event_slug = ? AND settled = ?", eventSlug, false).
		Count(&count).Error
	if err != nil {
		return 0, fmt.Errorf("store: count unsettled trades for event: %w", err)
	}
	return int(count), nil
}

// CountUnsettledTrades returns the current exposure (number of open trades).
func (s *Store) CountUnsettledTrades() (int, error) {
	var count int64
	if err := s.db.Model(&TradeRecord{}).Where("settled = ?", false).Count(&count).Error; err != nil {
		return 0, fmt.Errorf("store: count unsettled trades: %w", err)
	}
	return int(count), nil
}

// InsertTrade persists t and atomically increments BotState.total_trades.
func (s *Store) InsertTrade(t *trade.Trade) error {
	record := tradeToRecord(t)
	return s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&record).Error; err != nil {
			return fmt.Errorf("store: insert trade: %w", err)
		}
		if err := tx.Model(&BotStateRecord{}).Where("id = ?", botStateSingletonID).
			UpdateColumn("total_trades", gorm.Expr("total_trades + 1")).Error; err != nil {
			return fmt.Errorf("store: increment total_trades: %w", err)
		}
		t.ID = record.ID
		return nil
	})
}

// ListUnsettledTrades returns every trade not yet settled.
func (s *Store) ListUnsettledTrades() ([]*trade.Trade, error) {
	var records []TradeRecord
	if err := s.db.Where("settled = ?", false).Find(&records).Error; err != nil {
		return nil, fmt.Errorf("store: list unsettled trades: %w", err)
	}
	trades := make([]*trade.Trade, len(records))
	for i, r := range records {
		trades[i] = recordToTrade(r)
	}
	return trades, nil
}

// finalizeTradeTx transitions one trade from settled=false to settled=true
// inside tx. Reports false when the trade was already settled (or missing),
// making repeated settlement passes a no-op.
func finalizeTradeTx(tx *gorm.DB, tradeID uint, settlementValue, pnl float64, result trade.Result, at time.Time) (bool, error) {
	res := tx.Model(&TradeRecord{}).
		Where("id = ? AND settled = ?", tradeID, false).
		Updates(map[string]any{
			"settled":          true,
			"result":           string(result),
			"settlement_value": settlementValue,
			"pnl":              pnl,
			"settlement_time":  at,
		})
	if res.Error != nil {
		return false, fmt.Errorf("store: finalize trade %d: %w", tradeID, res.Error)
	}
	return res.RowsAffected > 0, nil
}

// FinalizeTrade transitions a single trade to settled with its resolved
// value, P&L, and result. Reports whether the transition was applied (false
// when the trade had already settled).
func (s *Store) FinalizeTrade(tradeID uint, settlementValue, pnl float64, result trade.Result, at time.Time) (bool, error) {
	var applied bool
	err := s.db.Transaction(func(tx *gorm.DB) error {
		var err error
		applied, err = finalizeTradeTx(tx, tradeID, settlementValue, pnl, result, at)
		return err
	})
	return applied, err
}

// SettlementUpdate bundles one trade's resolved outcome.
type SettlementUpdate struct {
	TradeID         uint
	SettlementValue float64
	PnL             float64
	Result          trade.Result
	SettledAt       time.Time
	SignalID        *uint
	ActualOutcome   window.Direction
	OutcomeCorrect  bool
}

// ApplySettlements finalizes every trade in updates and adjusts BotState
// (bankroll, total_pnl, winning_trades) in a single transaction. Linked
// signals are updated with their actual outcome. If the batch commit fails
// the whole batch is rolled back for a retry on the next cycle.
func (s *Store) ApplySettlements(updates []SettlementUpdate) error {
	if len(updates) == 0 {
		return nil
	}

	return s.db.Transaction(func(tx *gorm.DB) error {
		var pnlSum float64
		var winCount int

		for _, u := range updates {
			applied, err := finalizeTradeTx(tx, u.TradeID, u.SettlementValue, u.PnL, u.Result, u.SettledAt)
			if err != nil {
				return err
			}
			if !applied {
				continue // already settled; idempotent no-op
			}

			pnlSum += u.PnL
			if u.Result == trade.Win {
				winCount++
			}

			if u.SignalID != nil {
				outcome := string(u.ActualOutcome)
				err := tx.Model(&SignalRecord{}).Where("id = ?", *u.SignalID).Updates(map[string]any{
					"actual_outcome":   &outcome,
					"outcome_correct":  &u.OutcomeCorrect,
					"settlement_value": &u.SettlementValue,
					"settled_at":       &u.SettledAt,
				}).Error
				if err != nil {
					return fmt.Errorf("store: link signal %d: %w", *u.SignalID, err)
				}
			}
		}

		if pnlSum == 0 && winCount == 0 {
			return nil
		}

		err := tx.Model(&BotStateRecord{}).Where("id = ?", botStateSingletonID).Updates(map[string]any{
			"bankroll":       gorm.Expr("bankroll + ?", pnlSum),
			"total_pnl":      gorm.Expr("total_pnl + ?", pnlSum),
			"winning_trades": gorm.Expr("winning_trades + ?", winCount),
			"daily_pnl":      gorm.Expr("daily_pnl + ?", pnlSum),
		}).Error
		if err != nil {
			return fmt.Errorf("store: apply bot_state settlement delta: %w", err)
		}
		return nil
	})
}

// BotState is the in-memory view of the singleton BotState row.
type BotState struct {
	Bankroll       float64
	TotalTrades    int
	WinningTrades  int
	TotalPnL       float64
	IsRunning      bool
	LastRun        *time.Time
	DailyLossFloor time.Time
	DailyPnL       float64
}

// GetState returns the current bot state snapshot.
func (s *Store) GetState() (*BotState, error) {
	var row BotStateRecord
	if err := s.db.First(&row, botStateSingletonID).Error; err != nil {
		return nil, fmt.Errorf("store: get bot_state: %w", err)
	}
	return &BotState{
		Bankroll:       row.Bankroll,
		TotalTrades:    row.TotalTrades,
		WinningTrades:  row.WinningTrades,
		TotalPnL:       row.TotalPnL,
		IsRunning:      row.IsRunning,
		LastRun:        row.LastRun,
		DailyLossFloor: row.DailyLossFloor,
		DailyPnL:       row.DailyPnL,
	}, nil
}

// SetRunning flips the bot's running flag.
func (s *Store) SetRunning(running bool) error {
	now := time.Now().UTC()
	err := s.db.Model(&BotStateRecord{}).Where("id = ?", botStateSingletonID).
		Updates(map[string]any{"is_running": running, "last_run": &now}).Error
	if err != nil {
		return fmt.Errorf("store: set_running: %w", err)
	}
	return nil
}

// TouchLastRun stamps BotState.last_run, recorded at the end of each scan.
func (s *Store) TouchLastRun(at time.Time) error {
	err := s.db.Model(&BotStateRecord{}).Where("id = ?", botStateSingletonID).
		UpdateColumn("last_run", &at).Error
	if err != nil {
		return fmt.Errorf("store: touch last_run: %w", err)
	}
	return nil
}

// ResetDailyLoss zeroes the daily P&L tally and advances the floor to the
// current UTC day, used by the scheduler's kill switch at each day boundary.
func (s *Store) ResetDailyLoss(asOf time.Time) error {
	floor := asOf.UTC().Truncate(24 * time.Hour)
	err := s.db.Model(&BotStateRecord{}).Where("id = ?", botStateSingletonID).
		Updates(map[string]any{"daily_pnl": 0, "daily_loss_floor": floor}).Error
	if err != nil {
		return fmt.Errorf("store: reset daily loss: %w", err)
	}
	return nil
}

// Reset clears all signals and trades and restores BotState to
// initialBankroll — used only by tests and manual operator resets.
func (s *Store) Reset(initialBankroll float64) error {
	return s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Exec("DELETE FROM signals").Error; err != nil {
			return err
		}
		if err := tx.Exec("DELETE FROM trades").Error; err != nil {
			return err
		}
		return tx.Model(&BotStateRecord{}).Where("id = ?", botStateSingletonID).Updates(map[string]any{
			"bankroll":       initialBankroll,
			"total_trades":   0,
			"winning_trades": 0,
			"total_pnl":      0,
			"daily_pnl":      0,
		}).Error
	})
}

// HeartbeatSnapshot is the lightweight state view the heartbeat job logs
// each tick.
type HeartbeatSnapshot struct {
	Bankroll     float64
	PendingCount int
	IsRunning    bool
}

// Heartbeat returns the telemetry the heartbeat job needs: bankroll and the
// running flag (read from the full BotState row) plus the unsettled-trade
// count.
func (s *Store) Heartbeat() (HeartbeatSnapshot, error) {
	state, err := s.GetState()
	if err != nil {
		return HeartbeatSnapshot{}, err
	}
	pending, err := s.CountUnsettledTrades()
	if err != nil {
		return HeartbeatSnapshot{}, err
	}
	return HeartbeatSnapshot{
		Bankroll:     state.Bankroll,
		PendingCount: pending,
		IsRunning:    state.IsRunning,
	}, nil
}

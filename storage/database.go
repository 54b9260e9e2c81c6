package storage

import (
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/web3guy0/pyrabot/ledger"
	"github.com/web3guy0/pyrabot/types"
)

// ═══════════════════════════════════════════════════════════════════════════════
// STORAGE - Closed-position history and risk snapshots
// ═══════════════════════════════════════════════════════════════════════════════
//
// SQLite by default, PostgreSQL when given a postgres:// DSN. Writes
// are best effort: the ledger's in-memory state stays authoritative
// for the running process.
//
// ═══════════════════════════════════════════════════════════════════════════════

type Database struct {
	db *gorm.DB
}

// ClosedTrade is the persisted form of a closed position, append-only
// and ordered by close time.
type ClosedTrade struct {
	ID            uint            `gorm:"primaryKey;autoIncrement"`
	Instrument    string          `gorm:"index"`
	EntryPrice    decimal.Decimal `gorm:"type:decimal(20,8)"`
	ExitPrice     decimal.Decimal `gorm:"type:decimal(20,8)"`
	InitialVolume decimal.Decimal `gorm:"type:decimal(20,8)"`
	TotalVolume   decimal.Decimal `gorm:"type:decimal(20,8)"`
	Levels        int
	Profit        decimal.Decimal `gorm:"type:decimal(20,8)"`
	ProfitPct     float64
	PeakProfit    decimal.Decimal `gorm:"type:decimal(20,8)"`
	ErosionUsed   decimal.Decimal `gorm:"type:decimal(20,8)"`
	Regime        string
	TrendStrength float64
	ExitReason    string
	EntryTime     time.Time
	ClosedAt      time.Time `gorm:"index"`
	CreatedAt     time.Time
}

// RiskSnapshot is a daily best-effort snapshot of account risk state.
type RiskSnapshot struct {
	Date      string          `gorm:"primaryKey"`
	Balance   decimal.Decimal `gorm:"type:decimal(20,8)"`
	OpenRisk  decimal.Decimal `gorm:"type:decimal(20,8)"`
	OpenCount int
	UpdatedAt time.Time
}

// New opens the database and migrates the schema.
func New(dsn string) (*Database, error) {
	var db *gorm.DB
	var err error

	if strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://") {
		db, err = gorm.Open(postgres.Open(dsn), &gorm.Config{
			Logger: logger.Default.LogMode(logger.Silent),
		})
		if err != nil {
			return nil, err
		}
		log.Info().Msg("💾 Database connected (PostgreSQL)")
	} else {
		dir := filepath.Dir(dsn)
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, err
		}
		db, err = gorm.Open(sqlite.Open(dsn), &gorm.Config{
			Logger: logger.Default.LogMode(logger.Silent),
		})
		if err != nil {
			return nil, err
		}
		log.Info().Str("path", dsn).Msg("💾 Database initialized (SQLite)")
	}

	if err := db.AutoMigrate(&ClosedTrade{}, &RiskSnapshot{}); err != nil {
		return nil, err
	}

	return &Database{db: db}, nil
}

// SaveClosedPosition appends one closed position. Implements
// ledger.HistoryStore.
func (d *Database) SaveClosedPosition(cp ledger.ClosedPosition) error {
	rec := ClosedTrade{
		Instrument:    cp.Instrument,
		EntryPrice:    cp.EntryPrice,
		ExitPrice:     cp.ExitPrice,
		InitialVolume: cp.InitialVolume,
		TotalVolume:   cp.TotalVolume,
		Levels:        cp.Levels,
		Profit:        cp.Profit,
		ProfitPct:     cp.ProfitPct,
		PeakProfit:    cp.PeakProfit,
		ErosionUsed:   cp.ErosionUsed,
		Regime:        string(cp.Regime),
		TrendStrength: cp.TrendStrength,
		ExitReason:    string(cp.ExitReason),
		EntryTime:     cp.EntryTime,
		ClosedAt:      cp.ClosedAt,
	}
	return d.db.Create(&rec).Error
}

// LoadClosedPositions returns the full history, oldest first.
func (d *Database) LoadClosedPositions() ([]ledger.ClosedPosition, error) {
	var recs []ClosedTrade
	if err := d.db.Order("closed_at ASC").Find(&recs).Error; err != nil {
		return nil, err
	}

	out := make([]ledger.ClosedPosition, len(recs))
	for i, r := range recs {
		out[i] = ledger.ClosedPosition{
			Instrument:    r.Instrument,
			EntryPrice:    r.EntryPrice,
			ExitPrice:     r.ExitPrice,
			InitialVolume: r.InitialVolume,
			TotalVolume:   r.TotalVolume,
			Levels:        r.Levels,
			Profit:        r.Profit,
			ProfitPct:     r.ProfitPct,
			PeakProfit:    r.PeakProfit,
			ErosionUsed:   r.ErosionUsed,
			Regime:        types.Regime(r.Regime),
			TrendStrength: r.TrendStrength,
			ExitReason:    types.ExitReason(r.ExitReason),
			EntryTime:     r.EntryTime,
			ClosedAt:      r.ClosedAt,
		}
	}
	return out, nil
}

// SaveRiskSnapshot upserts today's risk snapshot.
func (d *Database) SaveRiskSnapshot(balance, openRisk decimal.Decimal, openCount int) error {
	snap := RiskSnapshot{
		Date:      time.Now().Format("2006-01-02"),
		Balance:   balance,
		OpenRisk:  openRisk,
		OpenCount: openCount,
		UpdatedAt: time.Now(),
	}
	return d.db.Save(&snap).Error
}

// Close closes the underlying connection.
func (d *Database) Close() {
	if sqlDB, err := d.db.DB(); err == nil {
		sqlDB.Close()
	}
}

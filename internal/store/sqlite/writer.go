// Package sqlite persists bars, indicator columns, and signals in a
// local SQLite database. Writes are upserts keyed by
// (symbol, ts, period) so re-running an analysis pass is harmless.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"math"

	"tritrend/internal/model"

	_ "github.com/mattn/go-sqlite3"
)

// Store is a single-writer SQLite store with batched transactions.
type Store struct {
	db *sql.DB
}

// DB returns the underlying sql.DB for health checks.
func (s *Store) DB() *sql.DB { return s.db }

// New opens the database, enables WAL mode, and creates the schema.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_synchronous=NORMAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("sqlite open: %w", err)
	}

	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := createSchema(db); err != nil {
		return nil, fmt.Errorf("sqlite schema: %w", err)
	}

	log.Printf("[sqlite] opened database at %s", dbPath)
	return &Store{db: db}, nil
}

func createSchema(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS bars (
			symbol  TEXT    NOT NULL,
			ts      INTEGER NOT NULL,
			period  TEXT    NOT NULL,
			open    REAL    NOT NULL,
			high    REAL    NOT NULL,
			low     REAL    NOT NULL,
			close   REAL    NOT NULL,
			volume  REAL,
			PRIMARY KEY (symbol, ts, period)
		);

		CREATE TABLE IF NOT EXISTS indicators (
			symbol             TEXT    NOT NULL,
			ts                 INTEGER NOT NULL,
			period             TEXT    NOT NULL,
			ma_blue            REAL,
			ma_green           REAL,
			ma_orange          REAL,
			blue_slope         REAL,
			green_slope        REAL,
			orange_slope       REAL,
			blue_deviation     REAL,
			green_deviation    REAL,
			orange_deviation   REAL,
			volume_ma          REAL,
			volume_ratio       REAL,
			price_blue_cross   INTEGER,
			blue_green_cross   INTEGER,
			blue_orange_cross  INTEGER,
			green_orange_cross INTEGER,
			trend_strength     REAL,
			trend_consistency  INTEGER,
			PRIMARY KEY (symbol, ts, period)
		);

		CREATE TABLE IF NOT EXISTS signals (
			symbol         TEXT    NOT NULL,
			strategy       TEXT    NOT NULL,
			bar_ts         INTEGER NOT NULL,
			action         TEXT    NOT NULL,
			strength       REAL    NOT NULL,
			target_price   REAL    NOT NULL,
			quantity       REAL    NOT NULL,
			reason         TEXT,
			status         TEXT    NOT NULL,
			block_reason   TEXT,
			error          TEXT,
			order_id       TEXT,
			order_price    REAL,
			order_time     INTEGER,
			executed_price REAL,
			executed_at    INTEGER,
			created_at     INTEGER NOT NULL,
			PRIMARY KEY (symbol, strategy, bar_ts)
		);

		CREATE INDEX IF NOT EXISTS idx_signals_status ON signals (status);
	`)
	return err
}

// nf maps undefined indicator values to NULL.
func nf(v float64) any {
	if math.IsNaN(v) {
		return nil
	}
	return v
}

// SaveBars upserts bars in one transaction.
func (s *Store) SaveBars(ctx context.Context, bars []model.Bar) error {
	if len(bars) == 0 {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}

	stmt, err := tx.Prepare(`
		INSERT OR REPLACE INTO bars (symbol, ts, period, open, high, low, close, volume)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		tx.Rollback()
		return err
	}
	defer stmt.Close()

	for _, b := range bars {
		if _, err := stmt.Exec(b.Symbol, b.TS.Unix(), b.Period,
			b.Open, b.High, b.Low, b.Close, b.Volume); err != nil {
			tx.Rollback()
			return err
		}
	}
	return tx.Commit()
}

// SaveIndicators upserts the indicator columns in one transaction.
func (s *Store) SaveIndicators(ctx context.Context, series []model.IndicatorBar) error {
	if len(series) == 0 {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}

	stmt, err := tx.Prepare(`
		INSERT OR REPLACE INTO indicators (
			symbol, ts, period,
			ma_blue, ma_green, ma_orange,
			blue_slope, green_slope, orange_slope,
			blue_deviation, green_deviation, orange_deviation,
			volume_ma, volume_ratio,
			price_blue_cross, blue_green_cross, blue_orange_cross, green_orange_cross,
			trend_strength, trend_consistency
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		tx.Rollback()
		return err
	}
	defer stmt.Close()

	for i := range series {
		b := &series[i]
		ind := &b.Ind
		if _, err := stmt.Exec(
			b.Symbol, b.TS.Unix(), b.Period,
			nf(ind.Blue), nf(ind.Green), nf(ind.Orange),
			nf(ind.BlueSlope), nf(ind.GreenSlope), nf(ind.OrangeSlope),
			nf(ind.BlueDev), nf(ind.GreenDev), nf(ind.OrangeDev),
			nf(ind.VolumeMA), nf(ind.VolumeRatio),
			ind.PriceBlueCross, ind.BlueGreenCross, ind.BlueOrangeCross, ind.GreenOrangeCross,
			nf(ind.TrendStrength), ind.TrendConsistency,
		); err != nil {
			tx.Rollback()
			return err
		}
	}
	return tx.Commit()
}

// SaveSignal upserts one signal with its full status history collapsed
// to the latest state.
func (s *Store) SaveSignal(ctx context.Context, sig *model.Signal) error {
	var orderTime, executedAt any
	if !sig.OrderTime.IsZero() {
		orderTime = sig.OrderTime.Unix()
	}
	if !sig.ExecutedAt.IsZero() {
		executedAt = sig.ExecutedAt.Unix()
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO signals (
			symbol, strategy, bar_ts, action, strength, target_price, quantity,
			reason, status, block_reason, error,
			order_id, order_price, order_time, executed_price, executed_at, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		sig.Symbol, sig.Strategy, sig.BarTS.Unix(), string(sig.Action),
		sig.Strength, sig.TargetPrice, sig.Quantity,
		sig.Reason, string(sig.Status), sig.BlockReason, sig.Error,
		sig.OrderID, nf(sig.OrderPrice), orderTime, nf(sig.ExecutedPrice), executedAt,
		sig.CreatedAt.Unix(),
	)
	return err
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"tritrend/internal/model"
)

// LoadBars reads bars for one symbol and period, ordered by timestamp
// ascending, restricted to ts > afterTS (pass 0 for everything).
func (s *Store) LoadBars(ctx context.Context, symbol, period string, afterTS int64) ([]model.Bar, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT symbol, ts, period, open, high, low, close, volume
		FROM bars
		WHERE symbol = ? AND period = ? AND ts > ?
		ORDER BY ts ASC
	`, symbol, period, afterTS)
	if err != nil {
		return nil, fmt.Errorf("sqlite query bars: %w", err)
	}
	defer rows.Close()

	var bars []model.Bar
	for rows.Next() {
		var b model.Bar
		var tsUnix int64
		if err := rows.Scan(&b.Symbol, &tsUnix, &b.Period,
			&b.Open, &b.High, &b.Low, &b.Close, &b.Volume); err != nil {
			return nil, fmt.Errorf("sqlite scan bars: %w", err)
		}
		b.TS = time.Unix(tsUnix, 0).UTC()
		bars = append(bars, b)
	}
	return bars, rows.Err()
}

// LastBarTS returns the newest stored bar timestamp for a symbol and
// period, or zero if nothing is stored.
func (s *Store) LastBarTS(ctx context.Context, symbol, period string) (int64, error) {
	var ts sql.NullInt64
	err := s.db.QueryRowContext(ctx, `
		SELECT MAX(ts) FROM bars WHERE symbol = ? AND period = ?
	`, symbol, period).Scan(&ts)
	if err != nil {
		return 0, fmt.Errorf("sqlite last bar ts: %w", err)
	}
	if !ts.Valid {
		return 0, nil
	}
	return ts.Int64, nil
}

// LoadSignals reads signals with the given status, newest first.
// An empty status loads everything.
func (s *Store) LoadSignals(ctx context.Context, status model.SignalStatus, limit int) ([]model.Signal, error) {
	if limit <= 0 {
		limit = 100
	}
	query := `
		SELECT symbol, strategy, bar_ts, action, strength, target_price, quantity,
		       reason, status, block_reason, error,
		       order_id, order_price, order_time, executed_price, executed_at, created_at
		FROM signals
	`
	args := []any{}
	if status != "" {
		query += " WHERE status = ?"
		args = append(args, string(status))
	}
	query += " ORDER BY created_at DESC LIMIT ?"
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("sqlite query signals: %w", err)
	}
	defer rows.Close()

	var signals []model.Signal
	for rows.Next() {
		var sig model.Signal
		var barTS, createdAt int64
		var action, sigStatus string
		var reason, blockReason, sigErr, orderID sql.NullString
		var orderPrice, executedPrice sql.NullFloat64
		var orderTime, executedAt sql.NullInt64
		if err := rows.Scan(&sig.Symbol, &sig.Strategy, &barTS, &action,
			&sig.Strength, &sig.TargetPrice, &sig.Quantity,
			&reason, &sigStatus, &blockReason, &sigErr,
			&orderID, &orderPrice, &orderTime, &executedPrice, &executedAt,
			&createdAt); err != nil {
			return nil, fmt.Errorf("sqlite scan signals: %w", err)
		}
		sig.Action = model.Action(action)
		sig.Status = model.SignalStatus(sigStatus)
		sig.BarTS = time.Unix(barTS, 0).UTC()
		sig.CreatedAt = time.Unix(createdAt, 0).UTC()
		sig.Reason = reason.String
		sig.BlockReason = blockReason.String
		sig.Error = sigErr.String
		sig.OrderID = orderID.String
		sig.OrderPrice = orderPrice.Float64
		sig.ExecutedPrice = executedPrice.Float64
		if orderTime.Valid {
			sig.OrderTime = time.Unix(orderTime.Int64, 0).UTC()
		}
		if executedAt.Valid {
			sig.ExecutedAt = time.Unix(executedAt.Int64, 0).UTC()
		}
		signals = append(signals, sig)
	}
	return signals, rows.Err()
}

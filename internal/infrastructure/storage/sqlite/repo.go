package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"fundarb/internal/application/port"
	"fundarb/internal/domain/model"
)

// Repo 本地账本：决策、下单尝试、持仓
type Repo struct {
	db *sql.DB
}

func New(path string) (*Repo, error) {
	// ensure directory exists
	if dir := filepath.Dir(path); dir != "." && dir != "" {
		_ = os.MkdirAll(dir, 0o755)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)

	r := &Repo{db: db}
	if err := r.migrate(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return r, nil
}

func (r *Repo) Close() error { return r.db.Close() }

func (r *Repo) migrate(ctx context.Context) error {
	_, err := r.db.ExecContext(ctx, `
CREATE TABLE IF NOT EXISTS decisions (
  id TEXT PRIMARY KEY,
  ticker TEXT NOT NULL,
  trade INTEGER NOT NULL,
  arb_venue TEXT NOT NULL,
  arb_side TEXT NOT NULL,
  arb_rate REAL NOT NULL,
  hedge_venue TEXT NOT NULL,
  hedge_side TEXT NOT NULL,
  hedge_rate REAL NOT NULL,
  net_rate REAL NOT NULL,
  funding_time INTEGER NOT NULL,
  reason TEXT NOT NULL,
  payload TEXT NOT NULL,
  ts_ms INTEGER NOT NULL,
  created_at INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_decisions_ticker ON decisions(ticker);
CREATE INDEX IF NOT EXISTS idx_decisions_ts ON decisions(ts_ms);

CREATE TABLE IF NOT EXISTS order_attempts (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  cycle_id TEXT NOT NULL,
  exchange TEXT NOT NULL,
  symbol TEXT NOT NULL,
  role TEXT NOT NULL,
  side TEXT NOT NULL,
  attempt INTEGER NOT NULL,
  target_price REAL NOT NULL,
  target_size REAL NOT NULL,
  order_id TEXT NOT NULL,
  status TEXT NOT NULL,
  filled_size REAL NOT NULL,
  error TEXT NOT NULL,
  ts_ms INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_attempts_cycle ON order_attempts(cycle_id);

CREATE TABLE IF NOT EXISTS positions (
  id TEXT PRIMARY KEY,
  cycle_id TEXT NOT NULL,
  exchange TEXT NOT NULL,
  ticker TEXT NOT NULL,
  symbol TEXT NOT NULL,
  role TEXT NOT NULL,
  side TEXT NOT NULL,
  size REAL NOT NULL,
  entry_price REAL NOT NULL,
  close_price REAL NOT NULL,
  leverage INTEGER NOT NULL,
  status TEXT NOT NULL,
  opened_at INTEGER NOT NULL,
  closed_at INTEGER NOT NULL,
  updated_at INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_positions_status ON positions(status);
CREATE INDEX IF NOT EXISTS idx_positions_cycle ON positions(cycle_id);
`)
	return err
}

func (r *Repo) SaveDecision(ctx context.Context, d *model.ArbitrageDecision) error {
	payload, _ := json.Marshal(d)
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO decisions(
			id, ticker, trade, arb_venue, arb_side, arb_rate, hedge_venue, hedge_side, hedge_rate,
			net_rate, funding_time, reason, payload, ts_ms, created_at
		) VALUES(?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO NOTHING
	`, d.ID, d.Ticker, d.Trade, d.Arbitrage.Venue.String(), d.Arbitrage.Side.String(), d.Arbitrage.Rate,
		d.Hedge.Venue.String(), d.Hedge.Side.String(), d.Hedge.Rate,
		d.ExpectedNetRate, d.FundingTime, d.Reason, string(payload), d.Timestamp, time.Now().UnixMilli())
	return err
}

func (r *Repo) RecordAttempt(ctx context.Context, a model.OrderAttempt) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO order_attempts(
			cycle_id, exchange, symbol, role, side, attempt, target_price, target_size,
			order_id, status, filled_size, error, ts_ms
		) VALUES(?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, a.CycleID, a.Venue.String(), a.Symbol, a.Role.String(), a.Side.String(), a.Attempt,
		a.TargetPrice, a.TargetSize, a.OrderID, string(a.Status), a.FilledSize, a.Error, a.Timestamp)
	return err
}

// ListAttempts 按尝试顺序返回一个周期的所有下单记录
func (r *Repo) ListAttempts(ctx context.Context, cycleID string) ([]model.OrderAttempt, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT cycle_id, exchange, symbol, role, side, attempt, target_price, target_size,
		       order_id, status, filled_size, error, ts_ms
		FROM order_attempts WHERE cycle_id = ? ORDER BY id
	`, cycleID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.OrderAttempt
	for rows.Next() {
		var a model.OrderAttempt
		var venue, role, side, status string
		if err := rows.Scan(&a.CycleID, &venue, &a.Symbol, &role, &side, &a.Attempt, &a.TargetPrice,
			&a.TargetSize, &a.OrderID, &status, &a.FilledSize, &a.Error, &a.Timestamp); err != nil {
			return nil, err
		}
		a.Venue = model.Venue(venue)
		a.Role = model.ParseRole(role)
		a.Side = model.ParseSide(side)
		a.Status = model.OrderStatus(status)
		out = append(out, a)
	}
	return out, rows.Err()
}

func (r *Repo) SavePosition(ctx context.Context, p *model.Position) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO positions(
			id, cycle_id, exchange, ticker, symbol, role, side, size, entry_price, close_price,
			leverage, status, opened_at, closed_at, updated_at
		) VALUES(?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, p.ID, p.CycleID, p.Venue.String(), p.Ticker, p.Symbol, p.Role.String(), p.Side.String(), p.Size,
		p.EntryPrice, p.ClosePrice, p.Leverage, string(p.Status), p.OpenedAt, p.ClosedAt, time.Now().UnixMilli())
	return err
}

func (r *Repo) UpdatePosition(ctx context.Context, p *model.Position) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE positions SET size=?, entry_price=?, close_price=?, status=?, closed_at=?, updated_at=?
		WHERE id=?
	`, p.Size, p.EntryPrice, p.ClosePrice, string(p.Status), p.ClosedAt, time.Now().UnixMilli(), p.ID)
	return err
}

func (r *Repo) ListOpenPositions(ctx context.Context) ([]*model.Position, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, cycle_id, exchange, ticker, symbol, role, side, size, entry_price, close_price,
		       leverage, status, opened_at, closed_at
		FROM positions WHERE status = ? ORDER BY opened_at, id
	`, string(model.PositionOpen))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*model.Position
	for rows.Next() {
		var p model.Position
		var venue, role, side, status string
		if err := rows.Scan(&p.ID, &p.CycleID, &venue, &p.Ticker, &p.Symbol, &role, &side, &p.Size,
			&p.EntryPrice, &p.ClosePrice, &p.Leverage, &status, &p.OpenedAt, &p.ClosedAt); err != nil {
			return nil, err
		}
		p.Venue = model.Venue(venue)
		p.Role = model.ParseRole(role)
		p.Side = model.ParseSide(side)
		p.Status = model.PositionStatus(status)
		out = append(out, &p)
	}
	return out, rows.Err()
}

var _ port.Ledger = (*Repo)(nil)

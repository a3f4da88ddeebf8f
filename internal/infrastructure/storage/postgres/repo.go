package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"fundarb/internal/application/port"
	"fundarb/internal/domain/model"
)

// Repo 账本的 Postgres 镜像，表结构与 sqlite 一致
type Repo struct {
	db *sql.DB
}

func New(dsn string) (*Repo, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)

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
  trade BOOLEAN NOT NULL,
  arb_venue TEXT NOT NULL,
  arb_side TEXT NOT NULL,
  arb_rate DOUBLE PRECISION NOT NULL,
  hedge_venue TEXT NOT NULL,
  hedge_side TEXT NOT NULL,
  hedge_rate DOUBLE PRECISION NOT NULL,
  net_rate DOUBLE PRECISION NOT NULL,
  funding_time BIGINT NOT NULL,
  reason TEXT NOT NULL,
  payload JSONB NOT NULL,
  ts_ms BIGINT NOT NULL,
  created_at BIGINT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_decisions_ts ON decisions(ts_ms);

CREATE TABLE IF NOT EXISTS order_attempts (
  id BIGSERIAL PRIMARY KEY,
  cycle_id TEXT NOT NULL,
  exchange TEXT NOT NULL,
  symbol TEXT NOT NULL,
  role TEXT NOT NULL,
  side TEXT NOT NULL,
  attempt INTEGER NOT NULL,
  target_price DOUBLE PRECISION NOT NULL,
  target_size DOUBLE PRECISION NOT NULL,
  order_id TEXT NOT NULL,
  status TEXT NOT NULL,
  filled_size DOUBLE PRECISION NOT NULL,
  error TEXT NOT NULL,
  ts_ms BIGINT NOT NULL
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
  size DOUBLE PRECISION NOT NULL,
  entry_price DOUBLE PRECISION NOT NULL,
  close_price DOUBLE PRECISION NOT NULL,
  leverage INTEGER NOT NULL,
  status TEXT NOT NULL,
  opened_at BIGINT NOT NULL,
  closed_at BIGINT NOT NULL,
  updated_at BIGINT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_positions_status ON positions(status);
`)
	return err
}

func (r *Repo) SaveDecision(ctx context.Context, d *model.ArbitrageDecision) error {
	payload, _ := json.Marshal(d)
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO decisions(
			id, ticker, trade, arb_venue, arb_side, arb_rate, hedge_venue, hedge_side, hedge_rate,
			net_rate, funding_time, reason, payload, ts_ms, created_at
		) VALUES($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
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
		) VALUES($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
	`, a.CycleID, a.Venue.String(), a.Symbol, a.Role.String(), a.Side.String(), a.Attempt,
		a.TargetPrice, a.TargetSize, a.OrderID, string(a.Status), a.FilledSize, a.Error, a.Timestamp)
	return err
}

func (r *Repo) SavePosition(ctx context.Context, p *model.Position) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO positions(
			id, cycle_id, exchange, ticker, symbol, role, side, size, entry_price, close_price,
			leverage, status, opened_at, closed_at, updated_at
		) VALUES($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
	`, p.ID, p.CycleID, p.Venue.String(), p.Ticker, p.Symbol, p.Role.String(), p.Side.String(), p.Size,
		p.EntryPrice, p.ClosePrice, p.Leverage, string(p.Status), p.OpenedAt, p.ClosedAt, time.Now().UnixMilli())
	return err
}

func (r *Repo) UpdatePosition(ctx context.Context, p *model.Position) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE positions SET size=$1, entry_price=$2, close_price=$3, status=$4, closed_at=$5, updated_at=$6
		WHERE id=$7
	`, p.Size, p.EntryPrice, p.ClosePrice, string(p.Status), p.ClosedAt, time.Now().UnixMilli(), p.ID)
	return err
}

func (r *Repo) ListOpenPositions(ctx context.Context) ([]*model.Position, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, cycle_id, exchange, ticker, symbol, role, side, size, entry_price, close_price,
		       leverage, status, opened_at, closed_at
		FROM positions WHERE status = $1 ORDER BY opened_at, id
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

package composite

import (
	"context"
	"errors"

	"fundarb/internal/application/port"
	"fundarb/internal/domain/model"
)

// Repo 写操作广播到所有账本，读操作只走第一个（主账本）
type Repo struct {
	repos []port.Ledger
}

func New(repos ...port.Ledger) *Repo {
	out := make([]port.Ledger, 0, len(repos))
	for _, r := range repos {
		if r != nil {
			out = append(out, r)
		}
	}
	return &Repo{repos: out}
}

func (r *Repo) each(fn func(port.Ledger) error) error {
	var firstErr error
	for _, repo := range r.repos {
		if err := fn(repo); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func (r *Repo) SaveDecision(ctx context.Context, d *model.ArbitrageDecision) error {
	return r.each(func(l port.Ledger) error { return l.SaveDecision(ctx, d) })
}

func (r *Repo) RecordAttempt(ctx context.Context, a model.OrderAttempt) error {
	return r.each(func(l port.Ledger) error { return l.RecordAttempt(ctx, a) })
}

func (r *Repo) SavePosition(ctx context.Context, p *model.Position) error {
	return r.each(func(l port.Ledger) error { return l.SavePosition(ctx, p) })
}

func (r *Repo) UpdatePosition(ctx context.Context, p *model.Position) error {
	return r.each(func(l port.Ledger) error { return l.UpdatePosition(ctx, p) })
}

func (r *Repo) ListOpenPositions(ctx context.Context) ([]*model.Position, error) {
	if len(r.repos) == 0 {
		return nil, nil
	}
	return r.repos[0].ListOpenPositions(ctx)
}

func (r *Repo) Close() error {
	var errs []error
	for _, repo := range r.repos {
		if err := repo.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

var _ port.Ledger = (*Repo)(nil)

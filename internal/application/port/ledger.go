package port

import (
	"context"

	"fundarb/internal/domain/model"
)

// Ledger 决策、下单尝试与持仓的持久化
type Ledger interface {
	SaveDecision(ctx context.Context, d *model.ArbitrageDecision) error
	RecordAttempt(ctx context.Context, a model.OrderAttempt) error

	SavePosition(ctx context.Context, p *model.Position) error
	UpdatePosition(ctx context.Context, p *model.Position) error
	ListOpenPositions(ctx context.Context) ([]*model.Position, error)

	Close() error
}

// DecisionPublisher 决策广播与最新资金费率缓存
type DecisionPublisher interface {
	PublishDecision(ctx context.Context, d *model.ArbitrageDecision) error
	CacheFunding(ctx context.Context, rec *model.FundingRecord) error
	Close() error
}

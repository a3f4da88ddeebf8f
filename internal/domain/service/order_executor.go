package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"fundarb/internal/domain/model"
)

// OrderVenue 订单执行器依赖的交易所能力
type OrderVenue interface {
	Venue() model.Venue
	SubscribePrice(ctx context.Context, symbol string) (model.VenueQuote, error)
	PlaceOrder(ctx context.Context, req model.OrderRequest) (string, error)
	QueryOrderStatus(ctx context.Context, symbol, orderID string) (model.OrderFill, error)
	CancelOrder(ctx context.Context, symbol, orderID string) error
	QueryPosition(ctx context.Context, symbol string) (model.PositionInfo, error)
}

// AttemptRecorder 记录每一次下单尝试（账本）
type AttemptRecorder interface {
	RecordAttempt(ctx context.Context, a model.OrderAttempt) error
}

// ExecutorConfig 执行参数
type ExecutorConfig struct {
	Dwell              time.Duration // 下单后等待成交的时间
	RetryInterval      time.Duration // 撤单后到重新报价的间隔
	MaxRetries         int           // 最多尝试次数
	FillRatioThreshold float64       // 部分成交比例超过该值视为成功
	PriceBiasTicks     int           // 报价偏移 tick 数
}

// DefaultExecutorConfig 默认参数
func DefaultExecutorConfig() ExecutorConfig {
	return ExecutorConfig{
		Dwell:              10 * time.Second,
		RetryInterval:      3 * time.Second,
		MaxRetries:         10,
		FillRatioThreshold: 0.9,
		PriceBiasTicks:     DefaultPriceBiasTicks,
	}
}

// PriceFunc 根据最新报价给出目标价格，nil 时使用偏移报价
type PriceFunc func(quote model.VenueQuote) float64

// OrderIntent 一条腿的开/平仓意图
type OrderIntent struct {
	CycleID    string
	Role       model.Role
	Symbol     string
	Side       model.Side // 订单方向：Long 买入，Short 卖出
	Size       float64
	Spec       model.InstrumentSpec
	ReduceOnly bool
	Price      PriceFunc
}

// ExecutionReport 终态报告
type ExecutionReport struct {
	State      model.OrderState
	Attempts   []model.OrderAttempt
	FilledSize float64
	AvgPrice   float64
	Position   model.PositionInfo // 成交后 queryPosition 的结果
	PositionOK bool
}

// AttemptCount 尝试次数
func (r *ExecutionReport) AttemptCount() int { return len(r.Attempts) }

// OrderExecutor 订单执行状态机
// INIT → PRICED → SUBMITTED → {FILLED, PARTIALLY_FILLED_ACCEPTED, CANCELLED_RETRY, FAILED}
type OrderExecutor struct {
	venue    OrderVenue
	cfg      ExecutorConfig
	recorder AttemptRecorder
	sleep    func(ctx context.Context, d time.Duration) error
	now      func() time.Time
}

// NewOrderExecutor 创建执行器
func NewOrderExecutor(venue OrderVenue, cfg ExecutorConfig, recorder AttemptRecorder) *OrderExecutor {
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 1
	}
	if cfg.FillRatioThreshold <= 0 || cfg.FillRatioThreshold > 1 {
		cfg.FillRatioThreshold = 0.9
	}
	return &OrderExecutor{
		venue:    venue,
		cfg:      cfg,
		recorder: recorder,
		sleep:    sleepCtx,
		now:      time.Now,
	}
}

// WithSleeper 替换等待函数（测试用）
func (e *OrderExecutor) WithSleeper(fn func(ctx context.Context, d time.Duration) error) *OrderExecutor {
	e.sleep = fn
	return e
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Execute 运行状态机直到终态
func (e *OrderExecutor) Execute(ctx context.Context, in OrderIntent) (*ExecutionReport, error) {
	venue := e.venue.Venue()
	report := &ExecutionReport{State: model.StateInit}
	remaining := in.Size
	var filledTotal, notional float64

	var (
		current model.OrderAttempt
		lastErr error
	)

	for {
		if err := ctx.Err(); err != nil {
			report.State = model.StateFailed
			return report, err
		}

		switch report.State {
		case model.StateInit, model.StateCancelledRetry:
			if len(report.Attempts) >= e.cfg.MaxRetries {
				report.State = model.StateFailed
				continue
			}
			if report.State == model.StateCancelledRetry {
				if err := e.sleep(ctx, e.cfg.RetryInterval); err != nil {
					report.State = model.StateFailed
					return report, err
				}
			}

			current = model.OrderAttempt{
				CycleID:    in.CycleID,
				Venue:      venue,
				Symbol:     in.Symbol,
				Role:       in.Role,
				Side:       in.Side,
				Attempt:    len(report.Attempts) + 1,
				TargetSize: remaining,
				Status:     model.OrderPending,
				Timestamp:  e.now().UnixMilli(),
			}

			quote, err := e.venue.SubscribePrice(ctx, in.Symbol)
			if err != nil {
				lastErr = fmt.Errorf("quote: %w", err)
				e.finishAttempt(ctx, report, &current, model.OrderFailed, lastErr)
				report.State = model.StateCancelledRetry
				continue
			}
			current.TargetPrice = e.targetPrice(in, quote)
			report.State = model.StatePriced

		case model.StatePriced:
			orderID, err := e.venue.PlaceOrder(ctx, model.OrderRequest{
				Symbol:     in.Symbol,
				Side:       in.Side,
				Price:      current.TargetPrice,
				Size:       current.TargetSize,
				ReduceOnly: in.ReduceOnly,
			})
			if err != nil {
				lastErr = fmt.Errorf("place order: %w", err)
				e.finishAttempt(ctx, report, &current, model.OrderFailed, lastErr)
				log.Warn().Err(err).
					Str("exchange", venue.String()).
					Str("symbol", in.Symbol).
					Int("attempt", current.Attempt).
					Msg("place order failed")
				// 重新报价后再下单
				report.State = model.StateCancelledRetry
				continue
			}
			current.OrderID = orderID
			report.State = model.StateSubmitted

		case model.StateSubmitted:
			if err := e.sleep(ctx, e.cfg.Dwell); err != nil {
				report.State = model.StateFailed
				return report, err
			}

			fill, err := e.venue.QueryOrderStatus(ctx, in.Symbol, current.OrderID)
			if err != nil {
				lastErr = fmt.Errorf("query order: %w", err)
				fill = model.OrderFill{OrderID: current.OrderID, Status: model.OrderPending, RequestedSize: current.TargetSize}
			}
			if fill.RequestedSize <= 0 {
				fill.RequestedSize = current.TargetSize
			}
			if fill.Status == model.OrderFilled && fill.FilledSize <= 0 {
				fill.FilledSize = fill.RequestedSize
			}

			if fill.Status == model.OrderFilled {
				current.FilledSize = fill.FilledSize
				filledTotal, notional = accumulate(filledTotal, notional, fill, current.TargetPrice)
				e.finishAttempt(ctx, report, &current, model.OrderFilled, nil)
				report.State = model.StateFilled
				continue
			}

			if fill.Status == model.OrderPartiallyFilled && fill.FillRatio() > e.cfg.FillRatioThreshold {
				// 剩余挂单撤掉，部分成交视为成功
				if cerr := e.venue.CancelOrder(ctx, in.Symbol, current.OrderID); cerr != nil {
					log.Warn().Err(cerr).
						Str("exchange", venue.String()).
						Str("orderID", current.OrderID).
						Msg("cancel remainder of accepted partial fill failed")
				}
				current.FilledSize = fill.FilledSize
				filledTotal, notional = accumulate(filledTotal, notional, fill, current.TargetPrice)
				e.finishAttempt(ctx, report, &current, model.OrderPartiallyFilled, nil)
				report.State = model.StatePartiallyFilledAccepted
				continue
			}

			// 未成交：撤单，确认撤单结果后再决定是否重试
			if cerr := e.venue.CancelOrder(ctx, in.Symbol, current.OrderID); cerr != nil {
				log.Warn().Err(cerr).
					Str("exchange", venue.String()).
					Str("orderID", current.OrderID).
					Msg("cancel order failed, re-checking status")
				if again, qerr := e.venue.QueryOrderStatus(ctx, in.Symbol, current.OrderID); qerr == nil && again.Status == model.OrderFilled {
					if again.RequestedSize <= 0 {
						again.RequestedSize = current.TargetSize
					}
					current.FilledSize = again.FilledSize
					filledTotal, notional = accumulate(filledTotal, notional, again, current.TargetPrice)
					e.finishAttempt(ctx, report, &current, model.OrderFilled, nil)
					report.State = model.StateFilled
					continue
				}
			}

			current.FilledSize = fill.FilledSize
			if fill.FilledSize > 0 {
				filledTotal, notional = accumulate(filledTotal, notional, fill, current.TargetPrice)
				if rest, qerr := Quantize(remaining-fill.FilledSize, in.Spec.QuantityPrecision); qerr == nil {
					remaining = rest
				} else if errors.Is(qerr, ErrSizeTooSmall) {
					e.finishAttempt(ctx, report, &current, model.OrderPartiallyFilled, nil)
					report.State = model.StatePartiallyFilledAccepted
					continue
				}
			}
			lastErr = fmt.Errorf("%w: order %s %s after %s", ErrFillTimeout, current.OrderID, fill.Status, e.cfg.Dwell)
			e.finishAttempt(ctx, report, &current, model.OrderCancelled, lastErr)
			log.Info().
				Str("exchange", venue.String()).
				Str("symbol", in.Symbol).
				Str("orderID", current.OrderID).
				Int("attempt", current.Attempt).
				Float64("filled", fill.FilledSize).
				Msg("order not filled, cancelled")
			report.State = model.StateCancelledRetry

		case model.StateFilled, model.StatePartiallyFilledAccepted:
			report.FilledSize = filledTotal
			if filledTotal > 0 {
				report.AvgPrice = notional / filledTotal
			}
			if pos, err := e.venue.QueryPosition(ctx, in.Symbol); err == nil {
				report.Position = pos
				report.PositionOK = true
			} else {
				log.Warn().Err(err).
					Str("exchange", venue.String()).
					Str("symbol", in.Symbol).
					Msg("query position after fill failed, using order fill data")
			}
			log.Info().
				Str("exchange", venue.String()).
				Str("symbol", in.Symbol).
				Str("role", in.Role.String()).
				Str("side", in.Side.String()).
				Str("state", string(report.State)).
				Float64("filled", report.FilledSize).
				Float64("avg_price", report.AvgPrice).
				Int("attempts", report.AttemptCount()).
				Msg("order executed")
			return report, nil

		case model.StateFailed:
			report.FilledSize = filledTotal
			if filledTotal > 0 {
				report.AvgPrice = notional / filledTotal
			}
			err := fmt.Errorf("%w: %s %s after %d attempts", ErrRetriesExhausted, venue, in.Symbol, report.AttemptCount())
			if lastErr != nil {
				err = fmt.Errorf("%w (last: %v)", err, lastErr)
			}
			log.Error().Err(err).
				Str("exchange", venue.String()).
				Str("symbol", in.Symbol).
				Str("role", in.Role.String()).
				Str("side", in.Side.String()).
				Float64("size", in.Size).
				Float64("filled", filledTotal).
				Msg("order failed")
			return report, err

		default:
			return report, fmt.Errorf("unknown order state %q", report.State)
		}
	}
}

func (e *OrderExecutor) targetPrice(in OrderIntent, quote model.VenueQuote) float64 {
	tick := in.Spec.TickSize
	if tick <= 0 {
		tick = quote.TickSize
	}
	if in.Price != nil {
		return RoundToTick(in.Price(quote), tick)
	}
	return BiasedPrice(quote.Reference(in.Side), tick, e.cfg.PriceBiasTicks, in.Side)
}

func (e *OrderExecutor) finishAttempt(ctx context.Context, report *ExecutionReport, a *model.OrderAttempt, status model.OrderStatus, err error) {
	a.Status = status
	if err != nil {
		a.Error = err.Error()
	}
	report.Attempts = append(report.Attempts, *a)
	if e.recorder == nil {
		return
	}
	if rerr := e.recorder.RecordAttempt(ctx, *a); rerr != nil {
		log.Warn().Err(rerr).Str("orderID", a.OrderID).Msg("record order attempt failed")
	}
}

func accumulate(filled, notional float64, fill model.OrderFill, fallbackPrice float64) (float64, float64) {
	price := fill.AvgPrice
	if price <= 0 {
		price = fallbackPrice
	}
	return filled + fill.FilledSize, notional + fill.FilledSize*price
}

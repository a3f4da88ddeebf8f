package model

// InstrumentSpec 合约规格
type InstrumentSpec struct {
	Symbol            string  `json:"symbol"`
	QuantityPrecision int     `json:"quantity_precision"` // 下单数量小数位
	ContractSize      float64 `json:"contract_size"`      // 每张合约对应的币数量，非张数制交易所为 1
	TickSize          float64 `json:"tick_size"`
	MaxLeverage       int     `json:"max_leverage"`
}

// VenueQuote 价格样本，不落库
type VenueQuote struct {
	Venue    Venue   `json:"venue"`
	Symbol   string  `json:"symbol"`
	Bid      float64 `json:"bid"`
	Ask      float64 `json:"ask"`
	Last     float64 `json:"last"`
	TickSize float64 `json:"tick_size"`
	Ts       int64   `json:"ts_ms"`
}

// Reference 下单参考价：买单取买一，卖单取卖一，缺失时退回最新价
func (q VenueQuote) Reference(side Side) float64 {
	if side.IsBuy() && q.Bid > 0 {
		return q.Bid
	}
	if !side.IsBuy() && q.Ask > 0 {
		return q.Ask
	}
	return q.Last
}

// OrderStatus 交易所订单状态
type OrderStatus string

const (
	OrderPending         OrderStatus = "PENDING"
	OrderFilled          OrderStatus = "FILLED"
	OrderPartiallyFilled OrderStatus = "PARTIALLY_FILLED"
	OrderCancelled       OrderStatus = "CANCELLED"
	OrderFailed          OrderStatus = "FAILED"
)

// OrderFill queryOrderStatus 的返回
type OrderFill struct {
	OrderID       string      `json:"order_id"`
	Status        OrderStatus `json:"status"`
	RequestedSize float64     `json:"requested_size"`
	FilledSize    float64     `json:"filled_size"`
	AvgPrice      float64     `json:"avg_price"`
}

// FillRatio 成交比例
func (f OrderFill) FillRatio() float64 {
	if f.RequestedSize <= 0 {
		return 0
	}
	return f.FilledSize / f.RequestedSize
}

// OrderRequest 下单请求
type OrderRequest struct {
	Symbol     string  `json:"symbol"`
	Side       Side    `json:"side"`
	Price      float64 `json:"price"`
	Size       float64 `json:"size"`
	ReduceOnly bool    `json:"reduce_only"`
}

// OrderState 执行状态机状态
type OrderState string

const (
	StateInit                    OrderState = "INIT"
	StatePriced                  OrderState = "PRICED"
	StateSubmitted               OrderState = "SUBMITTED"
	StateFilled                  OrderState = "FILLED"
	StatePartiallyFilledAccepted OrderState = "PARTIALLY_FILLED_ACCEPTED"
	StateCancelledRetry          OrderState = "CANCELLED_RETRY"
	StateFailed                  OrderState = "FAILED"
)

// Terminal 是否终态
func (s OrderState) Terminal() bool {
	return s == StateFilled || s == StatePartiallyFilledAccepted || s == StateFailed
}

// OrderAttempt 每次重试一条记录，被取代的尝试不会复用
type OrderAttempt struct {
	CycleID     string      `json:"cycle_id"`
	Venue       Venue       `json:"venue"`
	Symbol      string      `json:"symbol"`
	Role        Role        `json:"role"`
	Side        Side        `json:"side"`
	Attempt     int         `json:"attempt"`
	TargetPrice float64     `json:"target_price"`
	TargetSize  float64     `json:"target_size"`
	OrderID     string      `json:"order_id"`
	Status      OrderStatus `json:"status"`
	FilledSize  float64     `json:"filled_size"`
	Error       string      `json:"error,omitempty"`
	Timestamp   int64       `json:"ts_ms"`
}

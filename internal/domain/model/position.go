package model

// PositionInfo queryPosition 的返回，SignedSize > 0 为多头、< 0 为空头
type PositionInfo struct {
	Symbol     string  `json:"symbol"`
	EntryPrice float64 `json:"entry_price"`
	SignedSize float64 `json:"signed_size"`
}

// Side 由带符号数量推出方向
func (p PositionInfo) Side() Side {
	if p.SignedSize < 0 {
		return SideShort
	}
	return SideLong
}

// AbsSize 数量绝对值
func (p PositionInfo) AbsSize() float64 {
	if p.SignedSize < 0 {
		return -p.SignedSize
	}
	return p.SignedSize
}

// PositionStatus 持仓状态
type PositionStatus string

const (
	PositionOpen   PositionStatus = "OPEN"
	PositionClosed PositionStatus = "CLOSED"
	PositionFailed PositionStatus = "FAILED"
)

// Position 一条腿的持仓，从成交开始直到平仓成交
type Position struct {
	ID         string         `json:"id"`
	CycleID    string         `json:"cycle_id"`
	Venue      Venue          `json:"venue"`
	Ticker     string         `json:"ticker"`
	Symbol     string         `json:"symbol"`
	Role       Role           `json:"role"`
	Side       Side           `json:"side"`
	Size       float64        `json:"size"`
	EntryPrice float64        `json:"entry_price"`
	ClosePrice float64        `json:"close_price"`
	Leverage   int            `json:"leverage"`
	Status     PositionStatus `json:"status"`
	OpenedAt   int64          `json:"opened_at"`
	ClosedAt   int64          `json:"closed_at"`
}

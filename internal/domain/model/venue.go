package model

import "strings"

// Venue 交易所代码（大写），同时作为日志里的 exchange 字段
type Venue string

const (
	VenueBinance     Venue = "BINANCE"
	VenueBybit       Venue = "BYBIT"
	VenueHyperliquid Venue = "HYPERLIQUID"
	VenueOKX         Venue = "OKX"
)

// AllVenues 固定的枚举顺序（按代码字典序）
var AllVenues = []Venue{VenueBinance, VenueBybit, VenueHyperliquid, VenueOKX}

// ParseVenue 解析配置/环境变量中的交易所名称
func ParseVenue(s string) (Venue, bool) {
	v := Venue(strings.ToUpper(strings.TrimSpace(s)))
	for _, known := range AllVenues {
		if v == known {
			return v, true
		}
	}
	return "", false
}

func (v Venue) String() string { return string(v) }

// Side 持仓方向。下单时 Long 即买入、Short 即卖出
type Side int

const (
	SideLong Side = iota + 1
	SideShort
)

// Opposite 反向
func (s Side) Opposite() Side {
	if s == SideLong {
		return SideShort
	}
	return SideLong
}

// Sign long = +1, short = -1
func (s Side) Sign() float64 {
	if s == SideLong {
		return 1
	}
	return -1
}

// IsBuy 该方向的订单是否为买单
func (s Side) IsBuy() bool { return s == SideLong }

func (s Side) String() string {
	switch s {
	case SideLong:
		return "LONG"
	case SideShort:
		return "SHORT"
	default:
		return "UNKNOWN"
	}
}

// OrderSide 交易所下单方向字符串 BUY / SELL
func (s Side) OrderSide() string {
	if s.IsBuy() {
		return "BUY"
	}
	return "SELL"
}

// Role 仓位角色：套利方收取资金费，对冲方只抵消价格风险
type Role int

const (
	RoleArbitrage Role = iota + 1
	RoleHedge
)

func (r Role) String() string {
	switch r {
	case RoleArbitrage:
		return "ARBITRAGE"
	case RoleHedge:
		return "HEDGE"
	default:
		return "UNKNOWN"
	}
}

// ParseSide LONG / SHORT，其它值返回 0
func ParseSide(s string) Side {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "LONG":
		return SideLong
	case "SHORT":
		return SideShort
	default:
		return 0
	}
}

// ParseRole ARBITRAGE / HEDGE
func ParseRole(s string) Role {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "ARBITRAGE":
		return RoleArbitrage
	case "HEDGE":
		return RoleHedge
	default:
		return 0
	}
}

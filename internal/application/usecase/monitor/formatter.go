package monitor

import (
	"fmt"
	"strings"

	"fundarb/internal/domain/model"
)

const (
	ansiReset    = "\033[0m"
	ansiRed      = "\033[31m"
	ansiGreen    = "\033[32m"
	ansiYellow   = "\033[33m"
	ansiDim      = "\033[2m"
	ansiClearEOL = "\033[K"
)

func colorize(s, c string) string { return c + s + ansiReset }

// Formatter 资金费率快照与决策的单行渲染
type Formatter struct {
	Color bool
}

func NewFormatter(color bool) *Formatter {
	return &Formatter{Color: color}
}

func (f *Formatter) paint(s, c string) string {
	if !f.Color {
		return s
	}
	return colorize(s, c)
}

// rateColor 正费率空头收钱（绿），负费率多头收钱（红）
func rateColor(r float64) string {
	switch {
	case r > 0:
		return ansiGreen
	case r < 0:
		return ansiRed
	default:
		return ansiYellow
	}
}

// RenderSnapshot BTC BINANCE:+0.0100% HYPERLIQUID:-0.0200% OKX:-- ...
func (f *Formatter) RenderSnapshot(rec *model.FundingRecord) string {
	var sb strings.Builder
	sb.WriteString(f.paint("[FUNDARB] ", ansiDim))
	sb.WriteString(rec.Ticker)

	for _, v := range model.AllVenues {
		sb.WriteString(" ")
		obs, ok := rec.Get(v)
		if !ok {
			sb.WriteString(f.paint(v.String()+":--", ansiDim))
			continue
		}
		sb.WriteString(f.paint(fmt.Sprintf("%s:%+.4f%%", v, obs.Rate*100), rateColor(obs.Rate)))
	}
	return sb.String()
}

// RenderDecision BTC LONG OKX / SHORT BINANCE net=+0.2840% 或 BTC no trade (reason)
func (f *Formatter) RenderDecision(d model.ArbitrageDecision) string {
	var sb strings.Builder
	sb.WriteString(f.paint("[FUNDARB] ", ansiDim))
	sb.WriteString(d.Ticker)
	sb.WriteString(" ")

	if !d.Trade {
		sb.WriteString(f.paint("no trade", ansiYellow))
		if d.Reason != "" {
			sb.WriteString(f.paint(" ("+d.Reason+")", ansiDim))
		}
		return sb.String()
	}

	sb.WriteString(f.paint(d.Arbitrage.Side.String()+" "+d.Arbitrage.Venue.String(), sideColor(d.Arbitrage.Side)))
	sb.WriteString(f.paint(" / ", ansiDim))
	sb.WriteString(f.paint(d.Hedge.Side.String()+" "+d.Hedge.Venue.String(), sideColor(d.Hedge.Side)))
	sb.WriteString(" ")
	sb.WriteString(f.paint(fmt.Sprintf("net=%+.4f%%", d.ExpectedNetRate*100), ansiGreen))
	if len(d.Excluded) > 0 {
		names := make([]string, 0, len(d.Excluded))
		for _, v := range d.Excluded {
			names = append(names, v.String())
		}
		sb.WriteString(f.paint(" excluded="+strings.Join(names, ","), ansiDim))
	}
	return sb.String()
}

func sideColor(s model.Side) string {
	if s == model.SideLong {
		return ansiGreen
	}
	return ansiRed
}

package strategy

import (
	"fmt"

	"trading-bot/pkg/exchanges/common"
)

// Signal is an entry decision emitted by a rule.
type Signal int

const (
	SignalNone Signal = iota
	SignalLong
	SignalShort
)

func (s Signal) String() string {
	switch s {
	case SignalLong:
		return "LONG"
	case SignalShort:
		return "SHORT"
	default:
		return "NONE"
	}
}

// Side maps an entry signal to the order side that opens it.
func (s Signal) Side() common.Side {
	if s == SignalShort {
		return common.SideSell
	}
	return common.SideBuy
}

// Rule evaluates a candle series and decides whether to enter. Rules are pure
// over their input; all position state lives in the instance.
type Rule interface {
	Name() string
	Evaluate(candles []common.Candle) Signal
}

// Params configures one strategy instance.
type Params struct {
	Type          string             `yaml:"type" json:"type"`
	Exchange      string             `yaml:"exchange" json:"exchange"`
	Symbol        string             `yaml:"symbol" json:"symbol"`
	Timeframe     string             `yaml:"timeframe" json:"timeframe"`
	BalancePct    float64            `yaml:"balance_pct" json:"balance_pct"`
	TakeProfitPct float64            `yaml:"take_profit_pct" json:"take_profit_pct"`
	StopLossPct   float64            `yaml:"stop_loss_pct" json:"stop_loss_pct"`
	Extra         map[string]float64 `yaml:"extra" json:"extra"`
}

// extra reads an optional tuning knob with a fallback.
func (p Params) extra(key string, def float64) float64 {
	if v, ok := p.Extra[key]; ok {
		return v
	}
	return def
}

// NewRule builds the rule named by p.Type.
func NewRule(p Params) (Rule, error) {
	switch p.Type {
	case "technical":
		return &TechnicalRule{
			RSILength: int(p.extra("rsi_length", 14)),
			EMAFast:   int(p.extra("ema_fast", 12)),
			EMASlow:   int(p.extra("ema_slow", 26)),
			EMASignal: int(p.extra("ema_signal", 9)),
		}, nil
	case "breakout":
		return &BreakoutRule{MinVolume: p.extra("min_volume", 0)}, nil
	default:
		return nil, fmt.Errorf("unknown strategy type %q", p.Type)
	}
}

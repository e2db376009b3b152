package strategy

import (
	"fmt"

	"trading-bot/pkg/exchanges/common"
)

// BreakoutRule enters when the live bar pushes through the previous bar's
// range on meaningful volume: long above the prior high, short below the
// prior low.
type BreakoutRule struct {
	MinVolume float64
}

func (r *BreakoutRule) Name() string {
	return fmt.Sprintf("breakout(min_volume=%v)", r.MinVolume)
}

// Evaluate compares the newest bar against the one before it.
func (r *BreakoutRule) Evaluate(candles []common.Candle) Signal {
	if len(candles) < 2 {
		return SignalNone
	}
	cur := candles[len(candles)-1]
	prev := candles[len(candles)-2]

	if cur.Volume <= r.MinVolume {
		return SignalNone
	}
	switch {
	case cur.Close > prev.High:
		return SignalLong
	case cur.Close < prev.Low:
		return SignalShort
	default:
		return SignalNone
	}
}

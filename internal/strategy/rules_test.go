package strategy

import (
	"testing"

	"trading-bot/pkg/exchanges/common"
)

func candlesFromCloses(closes ...float64) []common.Candle {
	out := make([]common.Candle, len(closes))
	for i, c := range closes {
		out[i] = common.Candle{Timestamp: int64(i) * 60_000, Open: c, High: c, Low: c, Close: c, Volume: 1, Timeframe: "1m"}
	}
	return out
}

// Small spans keep the arithmetic checkable by hand.
func tinyTechnical() *TechnicalRule {
	return &TechnicalRule{RSILength: 2, EMAFast: 1, EMASlow: 3, EMASignal: 2}
}

func TestTechnicalLongNeedsOversoldAndMACDConfluence(t *testing.T) {
	r := tinyTechnical()

	// Sharp drop then a bounce: RSI on the last closed bar is deep oversold
	// while the MACD line has crossed back above its signal line.
	if got := r.Evaluate(candlesFromCloses(100, 80, 60, 62, 64)); got != SignalLong {
		t.Fatalf("expected LONG, got %v", got)
	}

	// Pure decline: oversold, but MACD still under its signal line.
	if got := r.Evaluate(candlesFromCloses(100, 90, 80, 85)); got != SignalNone {
		t.Fatalf("oversold without MACD confluence must not enter, got %v", got)
	}
}

func TestTechnicalShortMirrorsLong(t *testing.T) {
	r := tinyTechnical()
	if got := r.Evaluate(candlesFromCloses(100, 120, 140, 138, 136)); got != SignalShort {
		t.Fatalf("expected SHORT, got %v", got)
	}
}

func TestTechnicalEvaluatesLastClosedBar(t *testing.T) {
	r := tinyTechnical()

	// Only the in-progress bar differs; the decision is made on the bar
	// before it and must not change.
	a := r.Evaluate(candlesFromCloses(100, 80, 60, 62, 64))
	b := r.Evaluate(candlesFromCloses(100, 80, 60, 62, 1000))
	if a != SignalLong || b != SignalLong {
		t.Fatalf("open-bar moves must not repaint the signal: %v vs %v", a, b)
	}
}

func TestTechnicalInsufficientHistory(t *testing.T) {
	r := &TechnicalRule{RSILength: 14, EMAFast: 12, EMASlow: 26, EMASignal: 9}
	if got := r.Evaluate(candlesFromCloses(100, 101, 102)); got != SignalNone {
		t.Fatalf("short history must yield no signal, got %v", got)
	}
}

func TestRSISeriesExtremes(t *testing.T) {
	rising := make([]float64, 20)
	for i := range rising {
		rising[i] = float64(i + 1)
	}
	rsi := rsiSeries(rising, 14)
	if rsi[19] != 100 {
		t.Fatalf("all-gain window must read 100, got %v", rsi[19])
	}

	falling := make([]float64, 20)
	for i := range falling {
		falling[i] = float64(100 - i)
	}
	rsi = rsiSeries(falling, 14)
	if rsi[19] != 0 {
		t.Fatalf("all-loss window must read 0, got %v", rsi[19])
	}
}

func TestEMASeriesConstantInput(t *testing.T) {
	ema := emaSeries([]float64{5, 5, 5, 5}, 3)
	for i, v := range ema {
		if v != 5 {
			t.Fatalf("constant input must give constant EMA, got %v at %d", v, i)
		}
	}
}

func TestBreakoutRule(t *testing.T) {
	r := &BreakoutRule{MinVolume: 10}

	prev := common.Candle{Open: 100, High: 105, Low: 95, Close: 100, Volume: 50}

	tests := []struct {
		name string
		cur  common.Candle
		want Signal
	}{
		{"above prior high", common.Candle{Close: 106, Volume: 20}, SignalLong},
		{"below prior low", common.Candle{Close: 94, Volume: 20}, SignalShort},
		{"inside range", common.Candle{Close: 101, Volume: 20}, SignalNone},
		{"breakout on thin volume", common.Candle{Close: 106, Volume: 5}, SignalNone},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := r.Evaluate([]common.Candle{prev, tt.cur}); got != tt.want {
				t.Fatalf("expected %v, got %v", tt.want, got)
			}
		})
	}

	if got := r.Evaluate([]common.Candle{prev}); got != SignalNone {
		t.Fatalf("single candle must yield no signal, got %v", got)
	}
}

func TestNewRuleDefaults(t *testing.T) {
	r, err := NewRule(Params{Type: "technical"})
	if err != nil {
		t.Fatalf("NewRule: %v", err)
	}
	tech, ok := r.(*TechnicalRule)
	if !ok || tech.RSILength != 14 || tech.EMAFast != 12 || tech.EMASlow != 26 || tech.EMASignal != 9 {
		t.Fatalf("defaults wrong: %+v", r)
	}

	r, err = NewRule(Params{Type: "breakout", Extra: map[string]float64{"min_volume": 42}})
	if err != nil {
		t.Fatalf("NewRule: %v", err)
	}
	if b := r.(*BreakoutRule); b.MinVolume != 42 {
		t.Fatalf("extra param not applied: %+v", b)
	}

	if _, err := NewRule(Params{Type: "martingale"}); err == nil {
		t.Fatalf("unknown type must error")
	}
}

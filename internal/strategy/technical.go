package strategy

import (
	"fmt"

	"trading-bot/pkg/exchanges/common"
)

// TechnicalRule enters on momentum extremes confirmed by trend: long when RSI
// is oversold while the MACD line sits above its signal line, short on the
// mirror condition.
type TechnicalRule struct {
	RSILength int
	EMAFast   int
	EMASlow   int
	EMASignal int
}

const (
	rsiOversold   = 30
	rsiOverbought = 70
)

func (r *TechnicalRule) Name() string {
	return fmt.Sprintf("technical(rsi=%d,macd=%d/%d/%d)", r.RSILength, r.EMAFast, r.EMASlow, r.EMASignal)
}

// Evaluate works on the last closed candle, one behind the in-progress bar,
// so a signal never repaints as the open bar keeps moving.
func (r *TechnicalRule) Evaluate(candles []common.Candle) Signal {
	need := r.EMASlow + r.EMASignal
	if n := r.RSILength + 2; n > need {
		need = n
	}
	if len(candles) < need {
		return SignalNone
	}

	closes := make([]float64, len(candles))
	for i, c := range candles {
		closes[i] = c.Close
	}

	i := len(closes) - 2

	rsi := rsiSeries(closes, r.RSILength)
	macd, signal := macdSeries(closes, r.EMAFast, r.EMASlow, r.EMASignal)

	switch {
	case rsi[i] < rsiOversold && macd[i] > signal[i]:
		return SignalLong
	case rsi[i] > rsiOverbought && macd[i] < signal[i]:
		return SignalShort
	default:
		return SignalNone
	}
}

// emaSeries computes an exponential moving average with alpha = 2/(span+1),
// seeded on the first value.
func emaSeries(values []float64, span int) []float64 {
	out := make([]float64, len(values))
	if len(values) == 0 {
		return out
	}
	alpha := 2.0 / (float64(span) + 1)
	out[0] = values[0]
	for i := 1; i < len(values); i++ {
		out[i] = alpha*values[i] + (1-alpha)*out[i-1]
	}
	return out
}

// macdSeries returns the MACD line (fast EMA minus slow EMA) and its signal
// line (EMA of the MACD line).
func macdSeries(closes []float64, fast, slow, signalSpan int) (macd, signal []float64) {
	fastEMA := emaSeries(closes, fast)
	slowEMA := emaSeries(closes, slow)

	macd = make([]float64, len(closes))
	for i := range closes {
		macd[i] = fastEMA[i] - slowEMA[i]
	}
	signal = emaSeries(macd, signalSpan)
	return macd, signal
}

// rsiSeries computes RSI with Wilder smoothing (alpha = 1/length). Gains and
// losses are seeded with a simple average over the first window, then smoothed
// recursively. A window with no losses reads 100.
func rsiSeries(closes []float64, length int) []float64 {
	out := make([]float64, len(closes))
	if len(closes) < length+1 {
		return out
	}

	var avgGain, avgLoss float64
	for i := 1; i <= length; i++ {
		d := closes[i] - closes[i-1]
		if d > 0 {
			avgGain += d
		} else {
			avgLoss -= d
		}
	}
	avgGain /= float64(length)
	avgLoss /= float64(length)
	out[length] = rsiValue(avgGain, avgLoss)

	for i := length + 1; i < len(closes); i++ {
		d := closes[i] - closes[i-1]
		gain, loss := 0.0, 0.0
		if d > 0 {
			gain = d
		} else {
			loss = -d
		}
		avgGain = (avgGain*float64(length-1) + gain) / float64(length)
		avgLoss = (avgLoss*float64(length-1) + loss) / float64(length)
		out[i] = rsiValue(avgGain, avgLoss)
	}
	return out
}

func rsiValue(avgGain, avgLoss float64) float64 {
	if avgLoss == 0 {
		return 100
	}
	rs := avgGain / avgLoss
	return 100 - 100/(1+rs)
}

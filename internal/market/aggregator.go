package market

import (
	"log"

	"trading-bot/pkg/exchanges/common"
)

// IngestResult tells the caller how a trade print changed the candle series.
type IngestResult int

const (
	// ResultSameBar means the current candle was updated in place.
	ResultSameBar IngestResult = iota
	// ResultNewBar means a fresh candle was opened, closing the previous one.
	ResultNewBar
	// ResultGapFilled means one or more empty candles were synthesized before
	// the fresh one because no trades arrived for whole intervals.
	ResultGapFilled
)

// Aggregator folds a stream of trade prints into fixed-interval candles. It is
// not safe for concurrent use; each strategy instance owns one and feeds it
// from a single goroutine.
type Aggregator struct {
	interval int64 // candle length in ms
	candles  []common.Candle
	tf       string
	symbol   string
}

// NewAggregator creates an aggregator for one symbol and timeframe, seeded
// with historical candles (oldest first). Seeding may be empty; the first
// print then opens the series.
func NewAggregator(symbol, tf string, seed []common.Candle) (*Aggregator, error) {
	interval, err := TimeframeMillis(tf)
	if err != nil {
		return nil, err
	}
	a := &Aggregator{
		interval: interval,
		tf:       tf,
		symbol:   symbol,
	}
	a.candles = append(a.candles, seed...)
	return a, nil
}

// Candles returns the live candle series. The slice is owned by the
// aggregator; callers must not mutate it.
func (a *Aggregator) Candles() []common.Candle {
	return a.candles
}

// Last returns the in-progress candle.
func (a *Aggregator) Last() (common.Candle, bool) {
	if len(a.candles) == 0 {
		return common.Candle{}, false
	}
	return a.candles[len(a.candles)-1], true
}

// Ingest folds one trade print into the series.
//
// A print inside the current interval updates the open candle. A print in the
// immediately following interval opens a new candle. A print further ahead
// first synthesizes flat candles at the previous close, one per skipped
// interval, with zero volume. Prints are never reordered or buffered; one
// with a timestamp behind the open candle is logged and folded into that
// candle like any other.
func (a *Aggregator) Ingest(trade common.TradePrint) IngestResult {
	if len(a.candles) == 0 {
		a.candles = append(a.candles, common.Candle{
			Timestamp: trade.Timestamp - trade.Timestamp%a.interval,
			Open:      trade.Price,
			High:      trade.Price,
			Low:       trade.Price,
			Close:     trade.Price,
			Volume:    trade.Size,
			Timeframe: a.tf,
		})
		return ResultNewBar
	}

	last := &a.candles[len(a.candles)-1]

	switch {
	case trade.Timestamp < last.Timestamp+a.interval:
		if trade.Timestamp < last.Timestamp {
			log.Printf("[MARKET] late print on %s %s: %d behind current bar %d",
				a.symbol, a.tf, trade.Timestamp, last.Timestamp)
		}
		if trade.Price > last.High {
			last.High = trade.Price
		}
		if trade.Price < last.Low {
			last.Low = trade.Price
		}
		last.Close = trade.Price
		last.Volume += trade.Size
		return ResultSameBar

	case trade.Timestamp < last.Timestamp+2*a.interval:
		a.candles = append(a.candles, common.Candle{
			Timestamp: last.Timestamp + a.interval,
			Open:      trade.Price,
			High:      trade.Price,
			Low:       trade.Price,
			Close:     trade.Price,
			Volume:    trade.Size,
			Timeframe: a.tf,
		})
		return ResultNewBar

	default:
		// Quiet market: whole intervals passed with no prints. Fill them with
		// flat zero-volume candles at the previous close so indicator lookback
		// windows stay contiguous.
		missing := (trade.Timestamp-last.Timestamp)/a.interval - 1
		prevClose := last.Close
		ts := last.Timestamp
		for i := int64(0); i < missing; i++ {
			ts += a.interval
			a.candles = append(a.candles, common.Candle{
				Timestamp: ts,
				Open:      prevClose,
				High:      prevClose,
				Low:       prevClose,
				Close:     prevClose,
				Volume:    0,
				Timeframe: a.tf,
			})
		}
		a.candles = append(a.candles, common.Candle{
			Timestamp: ts + a.interval,
			Open:      trade.Price,
			High:      trade.Price,
			Low:       trade.Price,
			Close:     trade.Price,
			Volume:    trade.Size,
			Timeframe: a.tf,
		})
		return ResultGapFilled
	}
}

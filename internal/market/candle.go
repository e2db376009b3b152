package market

import (
	"fmt"
	"time"
)

// timeframes maps the supported candle intervals to their duration.
var timeframes = map[string]time.Duration{
	"1m":  time.Minute,
	"5m":  5 * time.Minute,
	"15m": 15 * time.Minute,
	"30m": 30 * time.Minute,
	"1h":  time.Hour,
	"4h":  4 * time.Hour,
}

// TimeframeMillis returns the length of a candle interval in milliseconds.
func TimeframeMillis(tf string) (int64, error) {
	d, ok := timeframes[tf]
	if !ok {
		return 0, fmt.Errorf("unknown timeframe %q", tf)
	}
	return d.Milliseconds(), nil
}

// ValidTimeframe reports whether tf is a supported interval.
func ValidTimeframe(tf string) bool {
	_, ok := timeframes[tf]
	return ok
}

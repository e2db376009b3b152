package common

import "math"

// RoundToStep snaps value to the nearest multiple of step and trims the float
// noise left by the division. Exchanges reject quantities and prices that are
// not exact multiples of the contract's lot/tick size, so every submitted
// value goes through this.
func RoundToStep(value, step float64) float64 {
	if step <= 0 {
		return value
	}
	snapped := math.Round(value/step) * step
	// 8 decimals covers every lot/tick step Binance and BitMEX publish.
	return math.Round(snapped*1e8) / 1e8
}

// FloorToStep snaps value down to a multiple of step. Used for order sizing,
// where rounding up could exceed the available balance.
func FloorToStep(value, step float64) float64 {
	if step <= 0 {
		return value
	}
	snapped := math.Floor(value/step) * step
	return math.Round(snapped*1e8) / 1e8
}

package core

// The hardware driver's blocking read takes its timeout in scheduler ticks.
const (
	// TickRateHz is the driver tick frequency.
	TickRateHz = 1000

	// MaxDelay blocks a driver call indefinitely.
	MaxDelay = ^uint32(0)
)

// TicksFromMS converts a millisecond duration to driver ticks, rounding up so
// short non-zero timeouts never truncate to a zero-tick (non-blocking) wait.
func TicksFromMS(ms uint32) uint32 {
	return (ms*TickRateHz + 999) / 1000
}

// MSFromTicks converts driver ticks back to milliseconds.
func MSFromTicks(ticks uint32) uint32 {
	return ticks * 1000 / TickRateHz
}

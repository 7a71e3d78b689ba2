package clock

import "time"

// NowFunc returns current time. Override in tests for determinism.
var NowFunc = time.Now

// Now is a thin wrapper around NowFunc.
func Now() time.Time { return NowFunc() }

// Deadline returns the absolute expiry for timeout measured from now, or nil
// when timeout is not positive.
func Deadline(from time.Time, timeout time.Duration) *time.Time {
	if timeout <= 0 {
		return nil
	}
	at := from.Add(timeout)
	return &at
}

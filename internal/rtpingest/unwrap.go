// Package rtpingest adapts RTP packets into rectify.Frame pushes: it
// unwraps the 32-bit RTP timestamp into a monotonic 64-bit counter and
// rescales it from the stream's RTP clock rate into rectify's fixed
// CLOCK_RATE ticks.
package rtpingest

// TimeUnwrapper turns a bounded, wrapping counter (e.g. RTP's 32-bit
// timestamp) into a monotonically-extending int64 by tracking how many
// times the counter has rolled over. Ported from the original rectifier's
// time-unwrapping helper (lib_utils/time_unwrapper, exercised by
// lib_utils/unittests/time_unwrapper.cpp): forward rollover and backward
// rollback are both detected by comparing the raw delta against half the
// wrap period, so out-of-order values near a boundary unwrap consistently
// without a full resync.
type TimeUnwrapper struct {
	// WrapPeriod is the modulus of the wrapping counter, e.g. 1<<32 for a
	// standard RTP timestamp. Must be set before the first call to Unwrap.
	WrapPeriod int64

	cycles  int64
	lastRaw int64
	started bool
}

// NewTimeUnwrapper returns a TimeUnwrapper for a counter that wraps at
// wrapPeriod.
func NewTimeUnwrapper(wrapPeriod int64) *TimeUnwrapper {
	return &TimeUnwrapper{WrapPeriod: wrapPeriod}
}

// Unwrap feeds the next raw (wrapped) value and returns its unwrapped,
// monotonically-extending equivalent. Values are not required to be
// monotonic themselves (spec §1 allows reordered streams); only a jump of
// more than half the wrap period in either direction is treated as an
// actual rollover.
func (u *TimeUnwrapper) Unwrap(raw int64) int64 {
	period := u.WrapPeriod
	if period <= 0 {
		period = 1 << 32
	}
	half := period / 2

	if !u.started {
		u.started = true
		u.lastRaw = raw
		u.cycles = 0
		return raw
	}

	switch {
	case u.lastRaw-raw > half:
		u.cycles++
	case raw-u.lastRaw > half:
		u.cycles--
	}
	u.lastRaw = raw
	return raw + u.cycles*period
}

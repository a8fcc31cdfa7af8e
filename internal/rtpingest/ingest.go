package rtpingest

import (
	"github.com/pion/rtp"

	"rectifier/rectify"
)

// PayloadBytes is a minimal rectify.Payload wrapping a byte slice. It has
// no real reference counting since pion/rtp packets are not pooled in this
// adapter; Ref returns the same handle and Release is a no-op, which is a
// valid (if degenerate) implementation of the interface's contract.
type PayloadBytes struct {
	Bytes []byte
}

func (p *PayloadBytes) Ref() rectify.Payload { return p }
func (p *PayloadBytes) Release() error       { return nil }

// Source adapts an RTP packet stream on a single SSRC into
// rectify.Rectifier.OnFramePushed calls, unwrapping the 32-bit RTP
// timestamp and rescaling it from clockRate into rectify's CLOCK_RATE.
// Grounded on other_examples' livekit TrackSynchronizer.Initialize/adjust
// (first-packet-defines-origin, per-packet reset detection) with the
// reset/offset bookkeeping replaced by rectify's own epoch and
// discontinuity handling — Source's only job is unwrapping and rescaling,
// not re-deriving presentation time itself.
type Source struct {
	clockRate int64
	unwrapper *TimeUnwrapper
	toTicks   rectify.Fraction // multiply an unwrapped RTP timestamp by this to get rectify ticks
}

// NewSource builds a Source for an RTP stream running at clockRate Hz
// (e.g. 90000 for video, 48000 for Opus audio).
func NewSource(clockRate int64) *Source {
	return &Source{
		clockRate: clockRate,
		unwrapper: NewTimeUnwrapper(1 << 32),
		toTicks:   rectify.NewFraction(rectify.CLOCK_RATE, clockRate),
	}
}

// MediaTime unwraps and rescales an RTP packet's timestamp into a
// rectify.Time in ticks.
func (s *Source) MediaTime(pkt *rtp.Packet) rectify.Time {
	unwrapped := s.unwrapper.Unwrap(int64(pkt.Timestamp))
	return rectify.NewFraction(unwrapped, 1).Mul(s.toTicks).RoundInt64()
}

// Push unwraps pkt's timestamp and forwards it to r on the given port,
// wrapping the packet payload in a PayloadBytes handle.
func Push(r *rectify.Rectifier, port int, s *Source, pkt *rtp.Packet) error {
	mediaTime := s.MediaTime(pkt)
	payload := &PayloadBytes{Bytes: pkt.Payload}
	return r.OnFramePushed(port, mediaTime, payload)
}

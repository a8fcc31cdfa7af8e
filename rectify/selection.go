package rectify

// selectFrame implements spec §4.3's Selection Policy for one port at tick
// target media time targetMediaTime, given the port's frame period (for the
// stale/future windows). The stale window is half a frame period; no jitter
// tolerance is added to it.
//
// Returns the selected frame and whether one was available at all (false
// only when no queued frame is at or below the future ceiling and the port
// has never emitted anything, i.e. BootstrapPending for this port).
func selectFrame(q *portQueue, targetMediaTime Time, framePeriod Time) (Frame, bool) {
	half := framePeriod / 2
	staleThreshold := targetMediaTime - half
	futureCeiling := targetMediaTime + framePeriod

	// 1. Prune stale, keeping at least the single newest stale frame.
	q.dropStaleExceptNewest(staleThreshold)

	// 2 & 3. Pick closest among remaining frames that are not beyond the
	// future ceiling; tie-break by earlier arrival, then smaller media time.
	bestIdx := -1
	var bestDist Time
	var best Frame
	for i := 0; i < q.len(); i++ {
		f := q.at(i)
		if f.MediaTime > futureCeiling {
			// 5. Future-bias: never select frames beyond the ceiling;
			// they remain queued for a later tick. Arrival order is
			// not guaranteed to track media time (streams may be
			// reordered per spec §1), so skip rather than stop.
			continue
		}
		dist := f.MediaTime - targetMediaTime
		if dist < 0 {
			dist = -dist
		}
		if bestIdx == -1 || dist < bestDist ||
			(dist == bestDist && isEarlierTieBreak(f, best)) {
			bestIdx = i
			bestDist = dist
			best = f
		}
	}

	if bestIdx == -1 {
		// 4. Starvation: nothing usable in the queue for this tick.
		if q.haveLastEmitted {
			return *q.lastEmitted, true
		}
		return Frame{}, false
	}

	q.removeAt(bestIdx)
	q.setLastEmitted(best)
	return best, true
}

// isEarlierTieBreak reports whether candidate should win a tie against
// current: prefer the earlier-arrived frame (smaller ClockTime), then the
// smaller MediaTime (spec §4.3 step 3).
func isEarlierTieBreak(candidate, current Frame) bool {
	if candidate.ClockTime != current.ClockTime {
		return candidate.ClockTime < current.ClockTime
	}
	return candidate.MediaTime < current.MediaTime
}

package rectify

// ticksFromClock converts a Clock.Now() reading (an exact Fraction of
// ticks over CLOCK_RATE) into an integer tick count. The conversion is
// exact as long as the Fraction's reduced denominator divides CLOCK_RATE,
// which holds for every Clock implementation in this module (they are all
// built from integer tick counts in the first place).
func ticksFromClock(now Fraction) Time {
	return now.Mul(IntFraction(CLOCK_RATE)).RoundInt64()
}

// clockFraction is the inverse of ticksFromClock: the Fraction a Scheduler
// expects for a given tick count.
func clockFraction(ticks Time) Fraction {
	return NewFraction(ticks, CLOCK_RATE)
}

// scheduleNextTickLocked schedules the tick at r.nextTickIndex. Must be
// called with mu held.
func (r *Rectifier) scheduleNextTickLocked() error {
	t := r.clockOrigin + r.idealOffsetLocked(r.nextTickIndex)
	id, err := r.cfg.Scheduler.ScheduleAt(r.onTick, clockFraction(t))
	if err != nil {
		r.stopped = true
		return newSchedulerError("scheduleAt", err)
	}
	r.pendingTask = id
	return nil
}

// onTick is invoked by the Scheduler at (or after) the target time for tick
// k = r.nextTickIndex. It implements the per-tick loop of spec §4.2: for
// every bound port, select a frame for this tick's target media time, stamp
// PresentationTime, and emit. Grounded on the ticker-driven pacing loop in
// bridge/media_bridge.go's writeTG goroutine (time.NewTicker + per-iteration
// work), adapted from wall-clock pacing to scheduler-driven logical pacing.
func (r *Rectifier) onTick(_ Fraction) {
	r.mu.Lock()

	if r.stopped {
		r.mu.Unlock()
		return
	}

	k := r.nextTickIndex
	// presentationTime is the clean, zero-based nominal timeline the
	// rectifier hands downstream: k*framePeriod, independent of
	// clockOrigin. clockOrigin only anchors *when* ticks are scheduled in
	// wall/logical time (scheduleNextTickLocked); it never leaks into the
	// value stamped on frames, so output stays stable across restarts of
	// the wall clock or re-baselines of any single port's media epoch.
	presentationTime := r.idealOffsetLocked(k)

	master := r.ports[0]
	masterTarget := master.mediaOrigin + r.idealOffsetLocked(k)
	masterFrame, masterOK, masterRepeated := selectFrameVerbose(master.queue, masterTarget, r.framePeriodTicks)
	r.metrics.QueueDepth(master.index, master.queue.len())

	if !masterOK {
		// No master frame has ever been emitted: the tick is silently
		// deferred (spec §9, open question, resolved this way). Cadence
		// keeps advancing; this tick simply produces no output anywhere,
		// since downstream ports are only meaningful in alignment with
		// the master.
		r.nextTickIndex++
		err := r.scheduleNextTickLocked()
		r.mu.Unlock()
		if err != nil {
			r.logger.Error("rectifier: failed to reschedule tick after deferred master", "error", err)
		}
		return
	}

	type pending struct {
		port            *rectifierPort
		frame           Frame
		countRepeatOnOK bool // whether a successful emit should count as a FrameRepeated, decided while locked
	}
	work := make([]pending, 0, len(r.ports))

	masterFrame.PresentationTime = presentationTime
	work = append(work, pending{master, masterFrame, masterRepeated && !master.gapping})
	r.trackMissLocked(master, masterRepeated)

	for i := 1; i < len(r.ports); i++ {
		p := r.ports[i]
		if !p.bootstrapped {
			continue
		}
		target := p.mediaOrigin + r.idealOffsetLocked(k)
		f, ok, repeated := selectFrameVerbose(p.queue, target, r.framePeriodTicks)
		r.metrics.QueueDepth(p.index, p.queue.len())
		if !ok {
			continue
		}
		f.PresentationTime = presentationTime
		work = append(work, pending{p, f, repeated && !p.gapping})
		r.trackMissLocked(p, repeated)
	}

	if r.ticksHalted {
		// trackMissLocked just decided the master has been starved past
		// MaxMissed and StarvationPolicy says to stop (EndOfStream) or
		// rewind to a fresh bootstrap (Rebootstrap); either way no further
		// tick gets scheduled from here. OnFramePushed's bootstrap branch
		// is what schedules the next one, for Rebootstrap.
		r.ticksHalted = false
		r.pendingTask = nil
		r.mu.Unlock()
		for _, w := range work {
			r.emit(w.port, w.frame, w.countRepeatOnOK)
		}
		return
	}

	r.nextTickIndex++
	rescheduleErr := r.scheduleNextTickLocked()
	r.mu.Unlock()

	for _, w := range work {
		r.emit(w.port, w.frame, w.countRepeatOnOK)
	}

	if rescheduleErr != nil {
		r.logger.Error("rectifier: failed to reschedule tick", "error", rescheduleErr)
	}
}

// trackMissLocked updates a port's consecutive-miss counter from the tick
// loop's perspective (did selection have to repeat?) and re-baselines the
// port once the gap has outlasted MaxMissed consecutive ticks. Must be
// called with mu held.
func (r *Rectifier) trackMissLocked(p *rectifierPort, repeated bool) {
	if !repeated {
		p.missedConsecutive = 0
		return
	}
	if !p.gapping {
		// A repeat with no active forward-gap classification is an
		// isolated starvation blip (spec §4.3 step 4), not a
		// discontinuity; don't count it toward re-baseline.
		return
	}
	p.missedConsecutive++
	r.metrics.FrameRepeated(p.index)
	if p.missedConsecutive <= p.detector.maxMissed {
		return
	}
	// Sustained forward gap: re-anchor the port's epoch on the oldest
	// queued frame so that it is the target of the next tick, and later
	// arrivals are judged against the new epoch rather than being
	// classified as another gap. With nothing queued the epoch is kept.
	if p.queue.len() > 0 {
		p.mediaOrigin = p.queue.at(0).MediaTime - r.idealOffsetLocked(r.nextTickIndex+1)
	}
	p.missedConsecutive = 0
	p.gapping = false
	r.metrics.Rebaselined(p.index)

	if p.index != 0 {
		// StarvationPolicy only governs the master port (spec §9): a
		// sustained gap on a non-master port is handled entirely by the
		// re-baseline above, same as before.
		return
	}
	switch r.cfg.StarvationPolicy {
	case StarvationContinue:
		// Default: nothing more to do. The re-anchored epoch above lets
		// the next tick select the queued frame; with nothing queued,
		// selectFrame keeps repeating the last emitted master frame.
	case StarvationEndOfStream:
		r.ticksHalted = true
	case StarvationRebootstrap:
		r.ticksHalted = true
		r.bootstrapped = false
		for _, port := range r.ports {
			port.bootstrapped = false
			port.mediaOrigin = 0
			port.gapping = false
			port.missedConsecutive = 0
		}
	}
}

// selectFrameVerbose wraps selectFrame to additionally report whether the
// returned frame was a fresh selection or a starvation repeat of the last
// emitted frame, which the tick loop needs for miss-counting.
func selectFrameVerbose(q *portQueue, targetMediaTime, framePeriod Time) (Frame, bool, bool) {
	before := q.len()
	f, ok := selectFrame(q, targetMediaTime, framePeriod)
	if !ok {
		return f, false, false
	}
	repeated := q.len() == before // queue length unchanged => nothing was dequeued
	return f, true, repeated
}

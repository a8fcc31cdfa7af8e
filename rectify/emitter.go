package rectify

// emit delivers one selected frame to its port's output callback outside
// the rectifier's mutex (spec §5: only port state is guarded; emission
// itself is not). A failing OutputFunc is treated as backpressure: logged
// and counted, never fatal (spec §7 KindBackpressureDrop), matching the
// teacher's tolerance of a stalled downstream write in
// bridge/media_bridge.go's writeSIP/writeTG paths.
func (r *Rectifier) emit(p *rectifierPort, f Frame, countRepeatOnOK bool) {
	if p.output == nil {
		return
	}
	if err := p.output(f); err != nil {
		r.logger.Warn("rectifier: output dropped frame",
			"port", p.index,
			"presentationTime", f.PresentationTime,
			"mediaTime", f.MediaTime,
			"error", err,
		)
		r.metrics.FrameDropped(p.index, "backpressure")
		return
	}
	if countRepeatOnOK {
		// Gapping repeats are already counted by trackMissLocked; this
		// covers the isolated starvation-blip case (spec §4.3 step 4),
		// counted only once emission actually succeeds.
		r.metrics.FrameRepeated(p.index)
		return
	}
	r.metrics.FrameEmitted(p.index)
}

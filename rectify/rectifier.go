package rectify

import (
	"log/slog"
	"sync"

	"go.uber.org/multierr"
)

// StarvationPolicy controls what happens once the master port has repeated
// its last frame for more than MaxMissed consecutive ticks while a forward
// gap is flagged on it. Repeats with no forward gap flagged (input that
// simply stops arriving) are not counted and never trigger the policy.
// "Continue repeating" is the default.
type StarvationPolicy int

const (
	// StarvationContinue keeps repeating the last emitted master frame
	// indefinitely. Default.
	StarvationContinue StarvationPolicy = iota
	// StarvationEndOfStream stops scheduling further ticks once the
	// master has been starved past MaxMissed.
	StarvationEndOfStream
	// StarvationRebootstrap clears all port epochs and waits for a fresh
	// bootstrap on the next push. Queued frames and each port's last
	// emitted frame are kept.
	StarvationRebootstrap
)

// OutputFunc is how a rectified frame leaves the rectifier through one
// output port. It mirrors a module-framework output port's emit call
// (spec §6): synchronous, and the callee is expected not to block long.
type OutputFunc func(Frame) error

// RectifierConfig configures a Rectifier (spec §4.1). Clock and Scheduler
// must outlive the Rectifier.
type RectifierConfig struct {
	Clock     Clock
	Scheduler Scheduler
	FrameRate Fraction
	NumPorts  int

	// MaxQueueFrames and MaxMissed override the spec's §6 defaults when
	// non-zero. The jitter and gap tolerances are not configurable here.
	MaxQueueFrames int
	MaxMissed      int

	StarvationPolicy StarvationPolicy

	Logger  *slog.Logger
	Metrics MetricsSink
}

// MetricsSink receives rectifier observability events. A nil-safe no-op
// implementation is used when RectifierConfig.Metrics is nil, so internal
// callers never need a nil check.
type MetricsSink interface {
	FrameEmitted(port int)
	FrameRepeated(port int)
	FrameDropped(port int, reason string)
	QueueDepth(port int, depth int)
	DiscontinuityDetected(port int, kind string)
	Rebaselined(port int)
}

type noopMetrics struct{}

func (noopMetrics) FrameEmitted(int)                 {}
func (noopMetrics) FrameRepeated(int)                {}
func (noopMetrics) FrameDropped(int, string)         {}
func (noopMetrics) QueueDepth(int, int)              {}
func (noopMetrics) DiscontinuityDetected(int, string) {}
func (noopMetrics) Rebaselined(int)                  {}

type rectifierPort struct {
	index    int
	metadata Metadata
	output   OutputFunc
	queue    *portQueue
	detector discontinuityDetector

	bootstrapped        bool
	mediaOrigin         Time
	gapping             bool
	missedConsecutive   int
}

// Rectifier is the facade of §4.1: it aggregates per-port queues, the
// master epoch, the discontinuity detector, the tick scheduler, and the
// emitter behind the module-framework contract (BindPort / OnFramePushed /
// Flush). All state mutation happens inside the single mutex mu, matching
// spec §5's single re-entrant-mutex model; because Go's sync.Mutex is not
// itself reentrant, the code is structured so no call path re-acquires mu
// while already holding it (output callbacks run with mu released).
type Rectifier struct {
	mu sync.Mutex

	cfg              RectifierConfig
	framePeriod      Fraction // exact, ticks per frame
	framePeriodTicks Time     // rounded once, used for selection windows

	ports []*rectifierPort

	bootstrapped  bool
	clockOrigin   Time
	nextTickIndex int64
	pendingTask   TaskID
	stopped       bool
	everTicked    bool
	ticksHalted   bool // set by trackMissLocked, consumed once by onTick

	logger  *slog.Logger
	metrics MetricsSink
}

// NewRectifier validates construction-time config (spec §4.1, §7
// ConfigError for frame rate <= 0) and returns an un-bootstrapped
// Rectifier. Port-0-must-be-video is checked lazily, at the first pushed
// frame, per spec §4.1 ("fails... when the first frame arrives").
func NewRectifier(cfg RectifierConfig) (*Rectifier, error) {
	if cfg.Clock == nil || cfg.Scheduler == nil {
		return nil, newConfigError("NewRectifier", -1, errRequiredCollaborator)
	}
	if cfg.FrameRate.Num <= 0 || cfg.FrameRate.Den <= 0 {
		return nil, newConfigError("NewRectifier", -1, errNonPositiveFrameRate)
	}
	if cfg.NumPorts < 1 {
		return nil, newConfigError("NewRectifier", -1, errNoPorts)
	}
	if cfg.MaxQueueFrames <= 0 {
		cfg.MaxQueueFrames = MaxQueueFrames
	}
	if cfg.MaxMissed <= 0 {
		cfg.MaxMissed = MaxMissedDefault
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Metrics == nil {
		cfg.Metrics = noopMetrics{}
	}

	framePeriod := IntFraction(CLOCK_RATE).Div(cfg.FrameRate)
	r := &Rectifier{
		cfg:              cfg,
		framePeriod:      framePeriod,
		framePeriodTicks: framePeriod.RoundInt64(),
		ports:            make([]*rectifierPort, cfg.NumPorts),
		logger:           cfg.Logger,
		metrics:          cfg.Metrics,
	}
	for i := range r.ports {
		r.ports[i] = &rectifierPort{
			index:    i,
			queue:    newPortQueue(cfg.MaxQueueFrames),
			detector: newDiscontinuityDetector(r.framePeriodTicks, cfg.MaxMissed),
		}
	}
	return r, nil
}

// BindPort attaches a port's stream metadata and output callback. The host
// calls this once per port after construction, before any frames flow
// (spec §4.1: "exposes N input ports... and N output ports with the same
// metadata as the inputs").
func (r *Rectifier) BindPort(index int, metadata Metadata, output OutputFunc) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if index < 0 || index >= len(r.ports) {
		return newConfigError("BindPort", index, errPortOutOfRange)
	}
	r.ports[index].metadata = metadata
	r.ports[index].output = output
	return nil
}

// OnFramePushed is called by the host when an upstream module delivers a
// frame on portIndex (spec §4.1). It stamps ClockTime from the injected
// Clock, enqueues, and bootstraps the rectifier / the port's epoch as
// needed.
func (r *Rectifier) OnFramePushed(portIndex int, mediaTime Time, payload Payload) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.stopped {
		return nil
	}
	if portIndex < 0 || portIndex >= len(r.ports) {
		return newConfigError("OnFramePushed", portIndex, errPortOutOfRange)
	}

	clockTime := ticksFromClock(r.cfg.Clock.Now())
	frame := NewFrame(mediaTime, clockTime, payload)
	port := r.ports[portIndex]

	if !r.bootstrapped {
		if r.ports[0].metadata == nil || r.ports[0].metadata.Kind() != KindRawVideo {
			return newConfigError("bootstrap", 0, errPortZeroNotVideo)
		}
		r.clockOrigin = r.roundUpToFramePeriodLocked(clockTime)
		r.bootstrapped = true
		r.nextTickIndex = 0
		if err := r.scheduleNextTickLocked(); err != nil {
			return err
		}
	}

	if !port.bootstrapped {
		port.mediaOrigin = mediaTime - r.idealOffsetLocked(r.nextTickIndex)
		port.bootstrapped = true
	} else {
		r.applyDiscontinuityLocked(port, frame)
	}

	droppedBefore := port.queue.droppedOverflow
	port.queue.push(frame)
	if port.queue.droppedOverflow > droppedBefore {
		r.metrics.FrameDropped(portIndex, "overflow")
	}
	r.metrics.QueueDepth(portIndex, port.queue.len())
	return nil
}

// idealOffsetLocked returns round(framePeriod * k) without accumulating
// drift (spec §9: "approximating frame period as a floating-point tick
// count causes invariant (1) to fail").
func (r *Rectifier) idealOffsetLocked(k int64) Time {
	return r.framePeriod.MulInt(k).RoundInt64()
}

// roundUpToFramePeriodLocked rounds t up to the next multiple of framePeriod
// relative to the zero point shared by every Clock implementation in this
// module (spec §4.3 bootstrap step 1), computed as an exact Fraction rather
// than against the already-rounded framePeriodTicks so the result is
// consistent with idealOffsetLocked's per-tick arithmetic.
func (r *Rectifier) roundUpToFramePeriodLocked(t Time) Time {
	k := NewFraction(t, 1).Div(r.framePeriod).CeilToInt64()
	return r.idealOffsetLocked(k)
}

// applyDiscontinuityLocked implements spec §4.4's per-push classification
// against the port's own epoch.
func (r *Rectifier) applyDiscontinuityLocked(port *rectifierPort, frame Frame) {
	expected := port.mediaOrigin + r.idealOffsetLocked(r.nextTickIndex)
	delta := frame.MediaTime - expected

	switch port.detector.classify(delta) {
	case classBackwardJump:
		port.mediaOrigin = frame.MediaTime - r.idealOffsetLocked(r.nextTickIndex)
		port.queue.purgeOlderThan(frame.MediaTime)
		port.gapping = false
		port.missedConsecutive = 0
		r.metrics.DiscontinuityDetected(port.index, "backward")
		r.metrics.Rebaselined(port.index)
	case classForwardGap:
		wasGapping := port.gapping
		port.gapping = true
		if !wasGapping {
			r.metrics.DiscontinuityDetected(port.index, "forward")
		}
		// Consecutive-missed-tick counting (and the eventual re-baseline
		// once MaxMissed is exceeded) happens in the tick loop, where a
		// "miss" actually means something: no usable frame was available
		// to select, not merely that one push looked early/late.
	case classNormal:
		port.gapping = false
		port.missedConsecutive = 0
	}
}

// Flush cancels pending scheduler tasks, drains queues without emission,
// and releases payloads (spec §4.1). Safe to call more than once.
func (r *Rectifier) Flush() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.flushLocked()
}

func (r *Rectifier) flushLocked() error {
	if r.stopped {
		return nil
	}
	r.stopped = true
	if r.pendingTask != nil {
		r.cfg.Scheduler.Cancel(r.pendingTask)
		r.pendingTask = nil
	}

	var errs error
	for _, p := range r.ports {
		for p.queue.len() > 0 {
			f := p.queue.at(0)
			p.queue.removeAt(0)
			if f.Payload != nil {
				errs = multierr.Append(errs, f.Payload.Release())
			}
		}
		if p.queue.lastEmitted != nil && p.queue.lastEmitted.Payload != nil {
			// The repeat reference shares the payload with whatever
			// was last emitted downstream; release our hold on it.
			errs = multierr.Append(errs, p.queue.lastEmitted.Payload.Release())
			p.queue.lastEmitted = nil
		}
	}
	return errs
}

var (
	errRequiredCollaborator = errString("clock and scheduler are required")
	errNonPositiveFrameRate = errString("frameRate must be > 0")
	errNoPorts              = errString("numPorts must be >= 1")
	errPortOutOfRange       = errString("port index out of range")
	errPortZeroNotVideo     = errString("port 0 metadata must be RawVideo")
)

type errString string

func (e errString) Error() string { return string(e) }

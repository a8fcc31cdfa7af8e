package rectify

import "github.com/gammazero/deque"

// MaxQueueFrames is the default bound on a port's pending-frame queue
// (spec §3, §6). On overflow the oldest frame is dropped.
const MaxQueueFrames = 30

// portQueue is an ordered, bounded FIFO of Frame, keyed implicitly by the
// port that owns it. It is the rectifier's analogue of the teacher's
// PCMPlayoutBuffer (bridge/pcm/playout_buffer.go): there, bursty PCM
// production is decoupled from real-time 10ms consumption by a byte FIFO;
// here, bursty frame arrival is decoupled from per-tick selection by a
// Frame FIFO. Backed by gammazero/deque for O(1) push-back / pop-front /
// pop-back instead of a hand-rolled slice-shifting buffer.
type portQueue struct {
	maxFrames int
	frames    deque.Deque[Frame]

	lastEmitted       *Frame // last frame emitted on this port, for starvation repeat
	lastEmittedMediaTime Time
	haveLastEmitted   bool

	offset Time // learned media-time-to-ideal-time shift; see epoch.go

	droppedOverflow int // frames dropped due to queue overflow (metrics)
}

func newPortQueue(maxFrames int) *portQueue {
	if maxFrames < 1 {
		maxFrames = MaxQueueFrames
	}
	return &portQueue{maxFrames: maxFrames}
}

// push appends a frame, dropping the oldest on overflow (spec §3: "bounded
// by MAX_QUEUE_FRAMES; on overflow the oldest is dropped").
func (q *portQueue) push(f Frame) {
	if q.frames.Len() >= q.maxFrames {
		q.frames.PopFront()
		q.droppedOverflow++
	}
	q.frames.PushBack(f)
}

func (q *portQueue) len() int { return q.frames.Len() }

// dropStaleExceptNewest removes frames from the head whose MediaTime is
// below threshold, but always retains at least the single newest
// below-threshold frame so starvation can repeat it (spec §4.3 step 1).
func (q *portQueue) dropStaleExceptNewest(threshold Time) {
	for q.frames.Len() > 1 {
		if q.frames.Front().MediaTime >= threshold {
			return
		}
		// The next frame is also stale, so the front one is safe to
		// drop without losing the "newest stale frame" we must retain
		// for starvation repeats.
		if q.frames.At(1).MediaTime >= threshold {
			return
		}
		q.frames.PopFront()
	}
}

// purgeOlderThan drops frames whose MediaTime is strictly less than cutoff,
// unconditionally (used on backward discontinuity re-baseline, spec §4.4).
func (q *portQueue) purgeOlderThan(cutoff Time) {
	for q.frames.Len() > 0 && q.frames.Front().MediaTime < cutoff {
		q.frames.PopFront()
	}
}

// at returns the i-th queued frame (0 = oldest).
func (q *portQueue) at(i int) Frame { return q.frames.At(i) }

// removeAt removes the i-th queued frame.
func (q *portQueue) removeAt(i int) {
	// gammazero/deque doesn't expose arbitrary removal; rebuild around it.
	// Queues are bounded to MaxQueueFrames (default 30), so this is cheap.
	n := q.frames.Len()
	for j := i; j < n-1; j++ {
		q.frames.Set(j, q.frames.At(j+1))
	}
	q.frames.PopBack()
}

func (q *portQueue) setLastEmitted(f Frame) {
	ff := f
	q.lastEmitted = &ff
	q.lastEmittedMediaTime = f.MediaTime
	q.haveLastEmitted = true
}

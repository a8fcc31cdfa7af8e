package rectify

import (
	"errors"
	"sort"
	"testing"
)

// clockMock is a deterministic Clock+Scheduler test double, ported from the
// original rectifier's ClockMock fixture (lib_media/unittests/rectifier.cpp):
// scheduled tasks are kept in a time-sorted slice, and advancing the clock
// via setTime drains every task whose time has come, calling it with the
// clock already set to that task's time — exactly mirroring how a real
// scheduler would invoke a tick callback "at" its requested time.
type clockMock struct {
	now    Fraction
	tasks  []mockTask
	nextID int
}

type mockTask struct {
	id   int
	time Fraction
	fn   TaskFunc
}

func newClockMock() *clockMock {
	return &clockMock{now: IntFraction(0)}
}

func (c *clockMock) Now() Fraction { return c.now }

func (c *clockMock) ScheduleAt(task TaskFunc, at Fraction) (TaskID, error) {
	if at.Less(c.now) {
		return nil, errors.New("scheduling in the past")
	}
	id := c.nextID
	c.nextID++
	c.tasks = append(c.tasks, mockTask{id: id, time: at, fn: task})
	sort.SliceStable(c.tasks, func(i, j int) bool { return c.tasks[i].time.Less(c.tasks[j].time) })
	return id, nil
}

func (c *clockMock) Cancel(id TaskID) {
	iid, ok := id.(int)
	if !ok {
		return
	}
	for i, tsk := range c.tasks {
		if tsk.id == iid {
			c.tasks = append(c.tasks[:i], c.tasks[i+1:]...)
			return
		}
	}
}

// setTime advances the mock clock to t, firing every due task along the way.
func (c *clockMock) setTime(t Fraction) {
	for len(c.tasks) > 0 && !t.Less(c.tasks[0].time) {
		tsk := c.tasks[0]
		c.tasks = c.tasks[1:]
		c.now = tsk.time
		tsk.fn(c.now)
	}
	c.now = t
}

func (c *clockMock) setTimeTicks(ticks int64) {
	c.setTime(NewFraction(ticks, CLOCK_RATE))
}

// testEvent mirrors the original Fixture's Event: which port emitted, the
// clock time at the moment of emission, and the frame's rewritten
// presentation time.
type testEvent struct {
	port             int
	clockTimeAtEmit  Time
	presentationTime Time
}

type testPayload struct{}

func (testPayload) Ref() Payload   { return testPayload{} }
func (testPayload) Release() error { return nil }

// fixture wires a Rectifier to a clockMock and records every emitted frame,
// playing the role of the original test file's Fixture struct.
type fixture struct {
	t      *testing.T
	clock  *clockMock
	rect   *Rectifier
	actual []testEvent
}

func newFixture(t *testing.T, fps Fraction, numPorts int) *fixture {
	t.Helper()
	c := newClockMock()
	r, err := NewRectifier(RectifierConfig{
		Clock:     c,
		Scheduler: c,
		FrameRate: fps,
		NumPorts:  numPorts,
	})
	if err != nil {
		t.Fatalf("NewRectifier: %v", err)
	}
	return &fixture{t: t, clock: c, rect: r}
}

func (fx *fixture) bindPort(index int, kind StreamKind) {
	fx.t.Helper()
	var meta Metadata
	switch kind {
	case KindRawVideo:
		meta = RawVideoMetadata{}
	case KindRawAudio:
		meta = RawAudioMetadata{}
	default:
		meta = RawMetadata{}
	}
	err := fx.rect.BindPort(index, meta, func(f Frame) error {
		fx.actual = append(fx.actual, testEvent{
			port:             index,
			clockTimeAtEmit:  ticksFromClock(fx.clock.Now()),
			presentationTime: f.PresentationTime,
		})
		return nil
	})
	if err != nil {
		fx.t.Fatalf("BindPort(%d): %v", index, err)
	}
}

func (fx *fixture) setTime(ticks int64) { fx.clock.setTimeTicks(ticks) }

func (fx *fixture) push(port int, mediaTime int64) error {
	return fx.rect.OnFramePushed(port, mediaTime, testPayload{})
}

func (fx *fixture) drain() {
	fx.clock.setTime(fx.clock.now)
}

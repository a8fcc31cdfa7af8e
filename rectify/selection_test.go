package rectify

import "testing"

func TestSelectFrameChoosesClosestToTarget(t *testing.T) {
	q := newPortQueue(10)
	q.push(NewFrame(90, 0, nil))
	q.push(NewFrame(105, 0, nil))
	q.push(NewFrame(130, 0, nil))

	f, ok := selectFrame(q, 100, 100)
	if !ok {
		t.Fatal("expected a frame")
	}
	if f.MediaTime != 105 {
		t.Fatalf("selected MediaTime = %d, want 105 (closest to target 100)", f.MediaTime)
	}
}

func TestSelectFrameSkipsBeyondFutureCeilingEvenOutOfOrder(t *testing.T) {
	q := newPortQueue(10)
	// Push a far-future frame first, then the actually-closest one — arrival
	// order need not track media time (spec §1 allows reordering).
	q.push(NewFrame(500, 0, nil))
	q.push(NewFrame(100, 0, nil))

	f, ok := selectFrame(q, 100, 100)
	if !ok {
		t.Fatal("expected a frame")
	}
	if f.MediaTime != 100 {
		t.Fatalf("selected MediaTime = %d, want 100 (500 is beyond future ceiling and must be skipped, not picked)", f.MediaTime)
	}
	if q.len() != 1 || q.at(0).MediaTime != 500 {
		t.Fatalf("the far-future frame should remain queued for a later tick")
	}
}

func TestSelectFrameStarvationRepeatsLastEmitted(t *testing.T) {
	q := newPortQueue(10)
	q.setLastEmitted(NewFrame(50, 0, nil))

	f, ok := selectFrame(q, 1000, 100)
	if !ok {
		t.Fatal("expected starvation repeat, not BootstrapPending")
	}
	if f.MediaTime != 50 {
		t.Fatalf("repeated MediaTime = %d, want 50", f.MediaTime)
	}
}

func TestSelectFrameBootstrapPendingWhenNeverEmitted(t *testing.T) {
	q := newPortQueue(10)
	_, ok := selectFrame(q, 1000, 100)
	if ok {
		t.Fatal("expected no frame when queue is empty and nothing was ever emitted")
	}
}

func TestSelectFrameDropsStaleButKeepsNewestForRepeat(t *testing.T) {
	q := newPortQueue(10)
	q.push(NewFrame(0, 0, nil))
	q.push(NewFrame(10, 0, nil))
	// Target far in the future: both frames are stale, but the newest one
	// (10) must stay available for a starvation repeat rather than being
	// pruned outright.
	f, ok := selectFrame(q, 10000, 100)
	if !ok {
		t.Fatal("expected the retained newest-stale frame to be selected")
	}
	if f.MediaTime != 10 {
		t.Fatalf("selected MediaTime = %d, want 10", f.MediaTime)
	}
}

func TestSelectFrameTieBreaksOnEarlierArrival(t *testing.T) {
	q := newPortQueue(10)
	later := Frame{MediaTime: 105, ClockTime: 20}
	earlier := Frame{MediaTime: 95, ClockTime: 10}
	q.push(later)
	q.push(earlier)

	f, ok := selectFrame(q, 100, 1000)
	if !ok {
		t.Fatal("expected a frame")
	}
	if f.ClockTime != 10 {
		t.Fatalf("tie-break should prefer the earlier-arrived frame (ClockTime=10), got ClockTime=%d", f.ClockTime)
	}
}

package netplay

import "testing"

func TestNewPairQueuePreloadsDelay(t *testing.T) {
	q := NewPairQueue(64, 2, 0)

	if q.LocalQueueLength() != 2 {
		t.Fatalf("expected 2 preloaded local inputs, got %d", q.LocalQueueLength())
	}
	if q.RemoteQueueLength() != 0 {
		t.Fatalf("expected 0 preloaded remote inputs, got %d", q.RemoteQueueLength())
	}
}

func TestPairQueueSymmetricDelay(t *testing.T) {
	q := NewPairQueue(64, 2, 3)

	if q.LocalQueueLength() != 2 {
		t.Fatalf("expected 2 preloaded local inputs, got %d", q.LocalQueueLength())
	}
	if q.RemoteQueueLength() != 3 {
		t.Fatalf("expected 3 preloaded remote inputs, got %d", q.RemoteQueueLength())
	}
}

func TestAddLocalInputRejectsNonMonotonicTick(t *testing.T) {
	q := NewPairQueue(64, 0, 0)

	if err := q.AddLocalInput(PartialInput{LocalTick: 1}); err == nil {
		t.Fatal("expected non-monotonic tick to be rejected")
	}

	if err := q.AddLocalInput(PartialInput{LocalTick: 0}); err != nil {
		t.Fatalf("expected tick 0 to be accepted, got %v", err)
	}
}

func TestAddLocalInputRejectsOverflow(t *testing.T) {
	q := NewPairQueue(1, 0, 0)

	if err := q.AddLocalInput(PartialInput{LocalTick: 0}); err != nil {
		t.Fatalf("expected first input to be accepted, got %v", err)
	}

	if q.CanAddLocalInput() {
		t.Fatal("expected queue to report full at capacity")
	}

	if err := q.AddLocalInput(PartialInput{LocalTick: 1}); err == nil {
		t.Fatal("expected overflowing input to be rejected")
	}
}

func TestConsumeAndPeekLocalPairsByTick(t *testing.T) {
	q := NewPairQueue(64, 0, 0)

	for i := uint32(0); i < 3; i++ {
		if err := q.AddLocalInput(PartialInput{LocalTick: i, Joyflags: uint16(i)}); err != nil {
			t.Fatalf("AddLocalInput(%d): %v", i, err)
		}
	}
	for i := uint32(0); i < 2; i++ {
		if err := q.AddRemoteInput(PartialInput{LocalTick: i, Joyflags: uint16(i + 10)}); err != nil {
			t.Fatalf("AddRemoteInput(%d): %v", i, err)
		}
	}

	committable, tail := q.ConsumeAndPeekLocal()

	if len(committable) != 2 {
		t.Fatalf("expected 2 committable pairs, got %d", len(committable))
	}
	if len(tail) != 1 {
		t.Fatalf("expected 1 local-only tail entry, got %d", len(tail))
	}

	for i, pair := range committable {
		if pair.Local.LocalTick != uint32(i) || pair.Remote.LocalTick != uint32(i) {
			t.Fatalf("pair %d ticks out of sync: local=%d remote=%d", i, pair.Local.LocalTick, pair.Remote.LocalTick)
		}
	}

	if tail[0].LocalTick != 2 {
		t.Fatalf("expected tail tick 2, got %d", tail[0].LocalTick)
	}

	// The local-only tail must remain in the queue: only the committable
	// prefix is truncated.
	if q.LocalQueueLength() != 1 {
		t.Fatalf("expected 1 local input left after consuming, got %d", q.LocalQueueLength())
	}
	if q.RemoteQueueLength() != 0 {
		t.Fatalf("expected 0 remote inputs left after consuming, got %d", q.RemoteQueueLength())
	}
}

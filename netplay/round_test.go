package netplay

import (
	"bytes"
	"context"
	"io"
	"testing"

	"github.com/tangobattle/tango-sub001/replay"
)

// discardChannel is a Channel whose Send always succeeds and whose Recv
// blocks until the test is done; Round itself never calls Recv (only
// Match's dispatch loop does), so this is enough to exercise Round alone.
type discardChannel struct {
	sent [][]byte
}

func (c *discardChannel) Send(msg []byte) error {
	c.sent = append(c.sent, append([]byte(nil), msg...))
	return nil
}

func (c *discardChannel) Recv() ([]byte, error) {
	select {}
}

func (c *discardChannel) Close() error { return nil }

// fakeShadowCore mirrors fakeCore's StepFrame accounting, from the
// opposite side, so a clean-handshake scenario where both sides already
// agree on every tick's joyflags applies without surprises. It must report
// back exactly pair.Local.LocalTick, since Shadow.ApplyInput asserts that.
type fakeShadowCore struct{}

func (s *fakeShadowCore) AdvanceUntilFirstCommittedState() ([]byte, error) { return nil, nil }
func (s *fakeShadowCore) AdvanceUntilRoundEnd() error                      { return nil }

func (s *fakeShadowCore) ApplyInput(pair PartialPair) (uint32, []byte, error) {
	return pair.Local.LocalTick, []byte{byte(pair.Local.Joyflags ^ pair.Remote.Joyflags)}, nil
}

func newTestRound(t *testing.T, localPlayerIndex uint8, sink ReplaySink) (*Round, *fakeCore) {
	t.Helper()

	transport := NewTransport(&discardChannel{})
	transport.ReleaseRendezvous()

	round, err := NewRound(RoundConfig{
		Number:             1,
		LocalPlayerIndex:   localPlayerIndex,
		LocalDelay:         2,
		RemoteDelay:        0,
		MaxQueueLength:     64,
		Transport:          transport,
		Shadow:             NewShadow(&fakeShadowCore{}),
		Hooks:              fakeHooks{},
		FPS:                nil,
		LocalInitialState:  make([]byte, 6),
		RemoteInitialState: make([]byte, 6),
		ReplayMeta: func(roundNumber uint8) replay.Metadata {
			return replay.Metadata{RoundNumber: roundNumber}
		},
		ReplaySink: sink,
		MatchID:    "test",
	})
	if err != nil {
		t.Fatalf("NewRound: %v", err)
	}

	return round, &fakeCore{}
}

func TestRoundCleanHandshakeNoPrediction(t *testing.T) {
	var replayBody []byte
	sink := func(meta replay.Metadata, body []byte) { replayBody = body }

	round, core := newTestRound(t, 0, sink)

	// Two local-delay placeholder ticks (0, 1) plus the real 5-frame
	// stream mirror exactly on the remote side, so every pair commits
	// immediately with no prediction involved.
	remoteJoyflags := []uint16{0, 0, 0, 0, 1, 2, 0}
	for tick, jf := range remoteJoyflags {
		if err := round.AddRemoteInput(PartialInput{LocalTick: uint32(tick), Joyflags: jf}); err != nil {
			t.Fatalf("AddRemoteInput(%d): %v", tick, err)
		}
	}

	localRealStream := []uint16{0, 0, 1, 2, 0}
	ctx := context.Background()

	for _, jf := range localRealStream {
		if _, err := round.AddLocalInputAndFastforward(ctx, core, jf); err != nil {
			t.Fatalf("AddLocalInputAndFastforward(%d): %v", jf, err)
		}
	}

	if round.CurrentTick() != uint32(len(localRealStream)) {
		t.Fatalf("expected current tick %d, got %d", len(localRealStream), round.CurrentTick())
	}

	round.Close()

	if replayBody == nil {
		t.Fatal("expected replay sink to fire on Close")
	}

	r, _, err := replay.NewReader(bytes.NewReader(replayBody))
	if err != nil {
		t.Fatalf("replay.NewReader: %v", err)
	}

	var records []*replay.Record
	for {
		rec, err := r.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			t.Fatalf("replay Next: %v", err)
		}
		records = append(records, rec)
	}

	// 7 committed ticks (2 delay placeholders + 5 real), 2 records each
	// (local, remote).
	if len(records) != 14 {
		t.Fatalf("expected 14 replay records, got %d", len(records))
	}
	if records[0].Side != 0 || records[0].Joyflags != 0 {
		t.Fatalf("expected first local delay record to carry joyflags 0, got %+v", records[0])
	}
	if records[2].Side != 0 || records[2].Joyflags != 0 {
		t.Fatalf("expected second local delay record to carry joyflags 0, got %+v", records[2])
	}
	if r.Complete() {
		t.Fatal("expected an in-progress round closed mid-flight to be marked incomplete")
	}
}

func TestRoundDrawResolvesToPoliteWinner(t *testing.T) {
	cases := []struct {
		localPlayerIndex uint8
		want             Outcome
	}{
		{localPlayerIndex: 0, want: Win},
		{localPlayerIndex: 1, want: Loss},
	}

	for _, c := range cases {
		round, _ := newTestRound(t, c.localPlayerIndex, nil)

		core := &fakeCore{end: &RoundEnd{Tick: 1, Outcome: Draw}}

		if err := round.AddRemoteInput(PartialInput{LocalTick: 0}); err != nil {
			t.Fatalf("AddRemoteInput: %v", err)
		}
		if err := round.AddRemoteInput(PartialInput{LocalTick: 1}); err != nil {
			t.Fatalf("AddRemoteInput: %v", err)
		}

		outcome, err := round.AddLocalInputAndFastforward(context.Background(), core, 0)
		if err != nil {
			t.Fatalf("AddLocalInputAndFastforward: %v", err)
		}
		if outcome == nil {
			t.Fatalf("expected a final outcome for localPlayerIndex=%d", c.localPlayerIndex)
		}
		if *outcome != c.want {
			t.Fatalf("localPlayerIndex=%d: got %v, want %v", c.localPlayerIndex, *outcome, c.want)
		}
	}
}

func TestRoundCloseRestoresFPSTarget(t *testing.T) {
	fps := &recordingFPS{}

	transport := NewTransport(&discardChannel{})
	transport.ReleaseRendezvous()

	round, err := NewRound(RoundConfig{
		Number:             1,
		LocalDelay:         0,
		MaxQueueLength:     64,
		Transport:          transport,
		Shadow:             NewShadow(&fakeShadowCore{}),
		Hooks:              fakeHooks{},
		FPS:                fps,
		LocalInitialState:  make([]byte, 6),
		RemoteInitialState: make([]byte, 6),
	})
	if err != nil {
		t.Fatalf("NewRound: %v", err)
	}

	fps.target = 12.5
	round.Close()

	if fps.target != ExpectedFPS {
		t.Fatalf("expected FPS target reset to %v, got %v", ExpectedFPS, fps.target)
	}
}

type recordingFPS struct {
	target float32
}

func (f *recordingFPS) SetFPSTarget(fps float32) { f.target = fps }

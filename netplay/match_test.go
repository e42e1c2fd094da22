package netplay

import (
	"context"
	"testing"
)

// TestSeedSymmetry exercises the spec's testable property directly: given
// the same rng_seed, the two sides must compute opposite last_outcomes iff
// is_offerer differs. NewMatch fabricates this coin flip exactly once, at
// construction, so the property is checked against the seeded
// m.state.lastOutcome rather than a fresh draw.
func TestSeedSymmetry(t *testing.T) {
	seed := [16]byte{1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12, 13, 14, 15, 16}

	offerer := NewMatch(context.Background(), MatchConfig{RNGSeed: seed, IsOfferer: true})
	answerer := NewMatch(context.Background(), MatchConfig{RNGSeed: seed, IsOfferer: false})

	offererOutcome := *offerer.LastOutcome()
	answererOutcome := *answerer.LastOutcome()

	if offererOutcome == answererOutcome {
		t.Fatalf("expected opposite outcomes for differing is_offerer, got %v and %v", offererOutcome, answererOutcome)
	}
}

// TestSeedSymmetrySameOffererAgrees guards the other half of the property:
// two matches with the same seed and the same is_offerer must draw the same
// outcome, since they consume the identical PCG stream.
func TestSeedSymmetrySameOffererAgrees(t *testing.T) {
	seed := [16]byte{9, 9, 9, 9, 9, 9, 9, 9, 9, 9, 9, 9, 9, 9, 9, 9}

	a := NewMatch(context.Background(), MatchConfig{RNGSeed: seed, IsOfferer: true})
	b := NewMatch(context.Background(), MatchConfig{RNGSeed: seed, IsOfferer: true})

	if *a.LastOutcome() != *b.LastOutcome() {
		t.Fatal("expected identical outcomes for matching is_offerer and rng_seed")
	}
}

func TestMatchAddLocalInputWithoutRoundErrors(t *testing.T) {
	m := NewMatch(context.Background(), MatchConfig{})

	if _, err := m.AddLocalInputAndFastforward(context.Background(), nil, 0); err != ErrNoRoundInProgress {
		t.Fatalf("expected ErrNoRoundInProgress, got %v", err)
	}
}

// TestMatchSecondRoundUsesRealOutcome drives a round to a real (non-Draw)
// outcome and checks that the next StartRound assigns local_player_index
// from that outcome, not a fresh coin flip. Both cases share the same
// rng_seed and is_offerer, so under the old (buggy) behavior — redrawing
// the coin every StartRound — the two matches would land on the identical
// rng draw and therefore the identical local_player_index regardless of
// which real outcome was forced; only reading the stored outcome back
// produces the divergence asserted below.
func TestMatchSecondRoundUsesRealOutcome(t *testing.T) {
	drive := func(t *testing.T, forced Outcome) *Round {
		t.Helper()

		transport := NewTransport(&discardChannel{})
		transport.ReleaseRendezvous()

		m := NewMatch(context.Background(), MatchConfig{
			InputDelay:     2,
			MaxQueueLength: 64,
			RNGSeed:        [16]byte{7, 7, 7, 7, 7, 7, 7, 7, 7, 7, 7, 7, 7, 7, 7, 7},
			IsOfferer:      true,
			Shadow:         &fakeShadowCore{},
			Transport:      transport,
			Hooks:          fakeHooks{},
		})

		round1, err := m.StartRound(make([]byte, 6), make([]byte, 6), nil)
		if err != nil {
			t.Fatalf("StartRound (1): %v", err)
		}

		for _, tick := range []uint32{0, 1} {
			if err := round1.AddRemoteInput(PartialInput{LocalTick: tick}); err != nil {
				t.Fatalf("AddRemoteInput(%d): %v", tick, err)
			}
		}

		core := &fakeCore{end: &RoundEnd{Tick: 1, Outcome: forced}}
		outcome, err := m.AddLocalInputAndFastforward(context.Background(), core, 0)
		if err != nil {
			t.Fatalf("AddLocalInputAndFastforward: %v", err)
		}
		if outcome == nil || *outcome != forced {
			t.Fatalf("expected forced outcome %v, got %v", forced, outcome)
		}
		if m.LastOutcome() == nil || *m.LastOutcome() != forced {
			t.Fatalf("expected Match.LastOutcome() == %v, got %v", forced, m.LastOutcome())
		}

		round2, err := m.StartRound(make([]byte, 6), make([]byte, 6), nil)
		if err != nil {
			t.Fatalf("StartRound (2): %v", err)
		}

		return round2
	}

	winRound2 := drive(t, Win)
	lossRound2 := drive(t, Loss)

	if winRound2.LocalPlayerIndex() != 0 {
		t.Fatalf("expected local_player_index 0 after a real Win, got %d", winRound2.LocalPlayerIndex())
	}
	if lossRound2.LocalPlayerIndex() != 1 {
		t.Fatalf("expected local_player_index 1 after a real Loss, got %d", lossRound2.LocalPlayerIndex())
	}
}

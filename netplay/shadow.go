package netplay

import (
	"fmt"
	"sync"
)

// ShadowCore is the headless mirror emulator: the remote player's ROM and
// save, configured identically to the peer's (same match parameters, same
// initial PRNG seed), driven only in lockstep by the local side. It is the
// authority on what packet the remote would emit for a given tick.
type ShadowCore interface {
	// AdvanceUntilFirstCommittedState runs until the title signals it is
	// ready to play, returning the resulting state snapshot.
	AdvanceUntilFirstCommittedState() ([]byte, error)

	// AdvanceUntilRoundEnd runs until the title signals the round is over.
	AdvanceUntilRoundEnd() error

	// ApplyInput steps exactly one frame. pair.Local is what the real
	// remote player typed (from the remote's point of view) and
	// pair.Remote is what the real local player typed. It returns the
	// tick actually advanced to and the packet the shadow produced.
	ApplyInput(pair PartialPair) (tick uint32, packet []byte, err error)
}

// Shadow serializes access to a ShadowCore. It is held under a plain
// (non-context-aware) mutex because ApplyInput is invoked from within a
// trap callback on the stepper's thread, never awaited across.
type Shadow struct {
	mu   sync.Mutex
	core ShadowCore
}

func NewShadow(core ShadowCore) *Shadow {
	return &Shadow{core: core}
}

func (s *Shadow) AdvanceUntilFirstCommittedState() ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.core.AdvanceUntilFirstCommittedState()
}

func (s *Shadow) AdvanceUntilRoundEnd() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.core.AdvanceUntilRoundEnd()
}

// ApplyInput steps one frame and asserts the shadow's reported tick
// matches the requested one. A mismatch is a fatal desync: the function
// returns a wrapped ErrShadowTickMismatch and the caller is expected to
// treat the match as unrecoverable, per the spec's "abort the process"
// guidance for determinism breaks.
func (s *Shadow) ApplyInput(pair PartialPair) (tick uint32, packet []byte, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tick, packet, err = s.core.ApplyInput(pair)
	if err != nil {
		return 0, nil, fmt.Errorf("%w: %v", ErrApplyFailed, err)
	}

	if tick != pair.Local.LocalTick {
		return 0, nil, fmt.Errorf("%w: wanted tick %d, shadow reported %d", ErrShadowTickMismatch, pair.Local.LocalTick, tick)
	}

	return tick, packet, nil
}

package netplay

import (
	"context"
	"fmt"
)

// CommittedState is the last point from which rollback is known safe.
type CommittedState struct {
	State  []byte
	Tick   uint32
	Packet []byte
}

// RoundEnd is reported by StepperCore.StepFrame when a frame crosses a
// round-ending boundary.
type RoundEnd struct {
	Tick    uint32
	Outcome Outcome
}

// StepperCore is the emulator core the Stepper drives. Unlike the spec's
// description of a separate "throwaway instance" that is later loaded into
// a distinct live instance, this interface is driven directly against
// whatever core the caller already owns: rollback is "load base state,
// replay forward", and the core's state at the end of a Fastforward call
// already *is* the dirty state, with no extra snapshot/restore round trip.
// See SPEC_FULL.md §4.5 for why this is equivalent to the two-instance
// model.
type StepperCore interface {
	// LoadState rolls the core back to a previously snapshotted state.
	LoadState(state []byte) error

	// SnapshotState captures the core's current state.
	SnapshotState() ([]byte, error)

	// StepFrame advances exactly one frame given the local side's partial
	// input and the already-resolved (authoritative or predicted) full
	// remote input. It returns the full local input the title code
	// produced for that frame (including the outgoing packet captured at
	// the "packet send" trap), the tick reached, and a non-nil RoundEnd
	// if the "round end" trap fired on this frame.
	StepFrame(ctx context.Context, local PartialInput, remote Input) (localOut Input, tick uint32, end *RoundEnd, err error)
}

// ApplyShadowInput resolves the authoritative remote packet for one
// committed pair (Round routes it to Shadow). Fastforward calls it only for
// the committable prefix; packets for predicted pairs come from
// Hooks.PredictRX instead.
type ApplyShadowInput func(pair PartialPair) ([]byte, error)

// StepResult is the outcome of one Fastforward call.
type StepResult struct {
	CommittedState CommittedState
	DirtyState     CommittedState
	OutputPairs    []InputPair
	RoundResult    *RoundEnd
}

// Fastforward re-simulates from base across committable (authoritative)
// pairs followed by predicted pairs, producing a new committed checkpoint
// and the dirty (speculative) state the live core should continue from.
//
// pairs must be committable followed by predicted, with committableLen
// marking the boundary; predicted pairs' Remote field carries the
// synthesized sticky-bit guess (see Round.buildPredictedPairs), not a real
// received input.
func Fastforward(
	ctx context.Context,
	core StepperCore,
	base CommittedState,
	pairs []PartialPair,
	committableLen int,
	applyShadow ApplyShadowInput,
	hooks Hooks,
) (StepResult, error) {
	if committableLen > len(pairs) {
		return StepResult{}, fmt.Errorf("netplay: committableLen %d exceeds %d pairs", committableLen, len(pairs))
	}

	if err := core.LoadState(base.State); err != nil {
		return StepResult{}, fmt.Errorf("netplay: failed to load base state: %w", err)
	}

	result := StepResult{
		CommittedState: base,
		OutputPairs:    make([]InputPair, 0, len(pairs)),
	}

	predicted := append([]byte(nil), base.Packet...)

	for i, pair := range pairs {
		var packet []byte
		var err error

		if i < committableLen {
			packet, err = applyShadow(pair)
			if err != nil {
				return StepResult{}, err
			}
			predicted = append(predicted[:0], packet...)
		} else {
			hooks.PredictRX(predicted)
			packet = append([]byte(nil), predicted...)
		}

		remoteIn := Input{PartialInput: pair.Remote, Packet: packet}

		localOut, tick, end, err := core.StepFrame(ctx, pair.Local, remoteIn)
		if err != nil {
			return StepResult{}, fmt.Errorf("netplay: step frame %d failed: %w", pair.Local.LocalTick, err)
		}

		result.OutputPairs = append(result.OutputPairs, InputPair{Local: localOut, Remote: remoteIn})

		if i+1 == committableLen {
			snap, err := core.SnapshotState()
			if err != nil {
				return StepResult{}, fmt.Errorf("netplay: failed to snapshot committed state: %w", err)
			}

			result.CommittedState = CommittedState{
				State:  snap,
				Tick:   tick,
				Packet: append([]byte(nil), packet...),
			}
		}

		if end != nil {
			result.RoundResult = end

			snap, snapErr := core.SnapshotState()
			if snapErr != nil {
				return StepResult{}, fmt.Errorf("netplay: failed to snapshot dirty state at round end: %w", snapErr)
			}

			result.DirtyState = CommittedState{State: snap, Tick: tick}
			return result, nil
		}
	}

	if len(pairs) == 0 {
		result.DirtyState = base
		return result, nil
	}

	snap, err := core.SnapshotState()
	if err != nil {
		return StepResult{}, fmt.Errorf("netplay: failed to snapshot dirty state: %w", err)
	}

	last := result.OutputPairs[len(result.OutputPairs)-1]
	result.DirtyState = CommittedState{State: snap, Tick: last.Local.LocalTick}

	return result, nil
}

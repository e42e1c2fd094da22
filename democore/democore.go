// Package democore is a tiny deterministic stand-in for a real emulator
// core, used by cmd/lockstepd to exercise the netplay package end to end
// without depending on any actual console implementation. It plays a
// trivial tug-of-war: each side's joyflags bit 0 pulls a shared counter
// toward them by one per frame, and the round ends when the counter
// crosses either edge of its range.
package democore

import (
	"context"
	"encoding/binary"
	"fmt"

	"github.com/tangobattle/tango-sub001/netplay"
)

const (
	ropeHalfLength = 64
	maxTicks       = 10_000
	packetSize     = 4
)

// Core is a democore instance. The same type satisfies both
// netplay.StepperCore (driving the local player's view) and
// netplay.ShadowCore (driving the mirrored remote view); which role it
// plays is just a matter of which side's joyflags arrive over the wire
// versus locally.
type Core struct {
	tick     uint32
	rope     int32 // negative: side 0 is winning
	lastSalt uint32
}

func New() *Core {
	return &Core{rope: 0}
}

// LoadState restores tick/rope/lastSalt from a snapshot produced by
// SnapshotState.
func (c *Core) LoadState(state []byte) error {
	if len(state) != 12 {
		return fmt.Errorf("democore: bad state length %d", len(state))
	}

	c.tick = binary.LittleEndian.Uint32(state[0:4])
	c.rope = int32(binary.LittleEndian.Uint32(state[4:8]))
	c.lastSalt = binary.LittleEndian.Uint32(state[8:12])

	return nil
}

func (c *Core) SnapshotState() ([]byte, error) {
	buf := make([]byte, 12)
	binary.LittleEndian.PutUint32(buf[0:4], c.tick)
	binary.LittleEndian.PutUint32(buf[4:8], uint32(c.rope))
	binary.LittleEndian.PutUint32(buf[8:12], c.lastSalt)
	return buf, nil
}

func encodePacket(salt uint32, rope int32) []byte {
	buf := make([]byte, packetSize)
	binary.LittleEndian.PutUint32(buf, salt^uint32(rope))
	return buf
}

// StepFrame advances the tug of war by one tick: side 0's bit 0 pulls the
// rope toward -1, side 1's bit 0 pulls it toward +1 (local is always side
// 0 from its own point of view, so the sign flip happens in the caller's
// accounting of Outcome, not here).
func (c *Core) StepFrame(_ context.Context, local netplay.PartialInput, remote netplay.Input) (localOut netplay.Input, tick uint32, end *netplay.RoundEnd, err error) {
	if local.Joyflags&1 != 0 {
		c.rope--
	}
	if remote.Joyflags&1 != 0 {
		c.rope++
	}

	c.tick++
	c.lastSalt = c.lastSalt*1664525 + 1013904223

	localOut = netplay.Input{
		PartialInput: local,
		Packet:       encodePacket(c.lastSalt, c.rope),
	}

	if c.rope <= -ropeHalfLength {
		end = &netplay.RoundEnd{Tick: c.tick, Outcome: netplay.Win}
	} else if c.rope >= ropeHalfLength {
		end = &netplay.RoundEnd{Tick: c.tick, Outcome: netplay.Loss}
	} else if c.tick >= maxTicks {
		end = &netplay.RoundEnd{Tick: c.tick, Outcome: netplay.Draw}
	}

	return localOut, c.tick, end, nil
}

// AdvanceUntilFirstCommittedState is democore's ShadowCore startup hook:
// there is no loading screen to sit through, so it returns immediately.
func (c *Core) AdvanceUntilFirstCommittedState() ([]byte, error) {
	return c.SnapshotState()
}

// AdvanceUntilRoundEnd is unused by democore: a round's shadow is driven
// entirely by ApplyInput, never free-run.
func (c *Core) AdvanceUntilRoundEnd() error {
	return nil
}

// ApplyInput steps the shadow by exactly one tick and returns the packet
// it would have produced, mirroring StepFrame's accounting from the
// opposite side. The returned tick echoes pair.Local.LocalTick exactly, as
// netplay.Shadow requires, rather than an independent frame count: the
// shadow instance is never snapshotted or restored, so its own notion of
// "tick" only needs to track the frame identifier it was just handed.
func (c *Core) ApplyInput(pair netplay.PartialPair) (tick uint32, packet []byte, err error) {
	if pair.Local.Joyflags&1 != 0 {
		c.rope++
	}
	if pair.Remote.Joyflags&1 != 0 {
		c.rope--
	}

	c.tick = pair.Local.LocalTick
	c.lastSalt = c.lastSalt*1664525 + 1013904223

	return c.tick, encodePacket(c.lastSalt, c.rope), nil
}

// Hooks is democore's trivial netplay.Hooks implementation: there are no
// title-specific trap addresses to install, since democore's StepFrame
// already does everything a real trap table would do.
type Hooks struct{}

func (Hooks) PacketSize() int { return packetSize }

// PredictRX carries the last known packet forward unchanged; democore has
// no sticky fields worth decaying.
func (Hooks) PredictRX(lastCommitted []byte) {}

func (Hooks) CommonTraps() netplay.TrapTable { return nil }

func (Hooks) PrimaryTraps(joyflags *uint32, match *netplay.Match, token *netplay.CompletionToken) netplay.TrapTable {
	return nil
}

func (Hooks) StepperTraps(state any) netplay.TrapTable { return nil }

package netplay

import (
	"context"
	"encoding/binary"
	"testing"
)

// fakeCore is a minimal StepperCore: its "state" is just a tick counter and
// a running xor of every joyflags value it has ever seen, which makes
// rollback-then-replay divergence trivially observable in assertions.
type fakeCore struct {
	tick uint32
	xor  uint16
	end  *RoundEnd // fires on the configured tick, if set
}

func (c *fakeCore) LoadState(state []byte) error {
	c.tick = binary.LittleEndian.Uint32(state[0:4])
	c.xor = binary.LittleEndian.Uint16(state[4:6])
	return nil
}

func (c *fakeCore) SnapshotState() ([]byte, error) {
	buf := make([]byte, 6)
	binary.LittleEndian.PutUint32(buf[0:4], c.tick)
	binary.LittleEndian.PutUint16(buf[4:6], c.xor)
	return buf, nil
}

func (c *fakeCore) StepFrame(_ context.Context, local PartialInput, remote Input) (Input, uint32, *RoundEnd, error) {
	c.tick++
	c.xor ^= local.Joyflags ^ remote.Joyflags

	out := Input{PartialInput: local, Packet: []byte{byte(c.xor)}}

	var end *RoundEnd
	if c.end != nil && c.tick == c.end.Tick {
		end = c.end
	}

	return out, c.tick, end, nil
}

type fakeHooks struct{}

func (fakeHooks) PacketSize() int               { return 1 }
func (fakeHooks) PredictRX(lastCommitted []byte) {}
func (fakeHooks) CommonTraps() TrapTable        { return nil }
func (fakeHooks) PrimaryTraps(*uint32, *Match, *CompletionToken) TrapTable { return nil }
func (fakeHooks) StepperTraps(any) TrapTable    { return nil }

func TestFastforwardCommitsExactlyTheCommittablePrefix(t *testing.T) {
	core := &fakeCore{}
	base := CommittedState{State: make([]byte, 6)}

	pairs := []PartialPair{
		{Local: PartialInput{LocalTick: 0, Joyflags: 1}, Remote: PartialInput{LocalTick: 0, Joyflags: 2}},
		{Local: PartialInput{LocalTick: 1, Joyflags: 4}, Remote: PartialInput{LocalTick: 1, Joyflags: 8}},
		{Local: PartialInput{LocalTick: 2, Joyflags: 16}}, // predicted: no real remote yet
	}

	applyShadow := func(pair PartialPair) ([]byte, error) {
		return []byte{0}, nil
	}

	result, err := Fastforward(context.Background(), core, base, pairs, 2, applyShadow, fakeHooks{})
	if err != nil {
		t.Fatalf("Fastforward: %v", err)
	}

	if result.CommittedState.Tick != 2 {
		t.Fatalf("expected committed tick 2, got %d", result.CommittedState.Tick)
	}
	if len(result.OutputPairs) != 3 {
		t.Fatalf("expected 3 output pairs, got %d", len(result.OutputPairs))
	}
	if result.RoundResult != nil {
		t.Fatalf("expected no round result, got %+v", result.RoundResult)
	}
}

func TestFastforwardStopsAtRoundEnd(t *testing.T) {
	core := &fakeCore{end: &RoundEnd{Tick: 2, Outcome: Win}}
	base := CommittedState{State: make([]byte, 6)}

	pairs := []PartialPair{
		{Local: PartialInput{LocalTick: 0}, Remote: PartialInput{LocalTick: 0}},
		{Local: PartialInput{LocalTick: 1}, Remote: PartialInput{LocalTick: 1}},
		{Local: PartialInput{LocalTick: 2}, Remote: PartialInput{LocalTick: 2}},
	}

	applyShadow := func(pair PartialPair) ([]byte, error) { return []byte{0}, nil }

	result, err := Fastforward(context.Background(), core, base, pairs, 3, applyShadow, fakeHooks{})
	if err != nil {
		t.Fatalf("Fastforward: %v", err)
	}

	if result.RoundResult == nil || result.RoundResult.Outcome != Win {
		t.Fatalf("expected a Win round result, got %+v", result.RoundResult)
	}
	if len(result.OutputPairs) != 2 {
		t.Fatalf("expected early stop after 2 output pairs, got %d", len(result.OutputPairs))
	}
}

func TestFastforwardRejectsOversizedCommittableLen(t *testing.T) {
	core := &fakeCore{}
	_, err := Fastforward(context.Background(), core, CommittedState{}, nil, 1, nil, fakeHooks{})
	if err == nil {
		t.Fatal("expected an error when committableLen exceeds len(pairs)")
	}
}

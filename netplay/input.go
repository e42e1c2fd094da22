package netplay

// PartialInput is one side of a frame's input: the tick it was produced at,
// what that side believed the peer's tick was at the time, and the raw
// button state. It carries no packet, since the packet is produced only by
// Shadow or the real emulator core, never fabricated from the wire.
type PartialInput struct {
	LocalTick  uint32
	RemoteTick uint32
	Joyflags   uint16
}

// Lag reports how far ahead of its peer's last-known tick this side
// believed itself to be when the input was emitted.
func (p PartialInput) Lag() int32 {
	return int32(p.LocalTick) - int32(p.RemoteTick)
}

// Input is a PartialInput plus the opaque per-frame packet the title code
// exchanges with its peer (handshake data, RNG salt, etc).
type Input struct {
	PartialInput
	Packet []byte
}

// PartialPair pairs one tick's local and remote PartialInput. It is the Go
// expression of the spec's generic Pair<PartialInput, PartialInput>.
type PartialPair struct {
	Local  PartialInput
	Remote PartialInput
}

// InputPair pairs one tick's local and remote full Input, including
// packets. It is the Go expression of the spec's generic Pair<Input,Input>.
type InputPair struct {
	Local  Input
	Remote Input
}

// StickyButtonMask is the subset of joyflag bits carried over from the
// last committed remote input into a synthesized, predicted remote input.
// Keeping only a small sticky subset (here: the two face buttons) reduces
// the variance of mispredicted frames versus carrying the whole byte.
// Implementers may widen this mask if doing so measurably reduces rollback
// churn for a given title.
const (
	ButtonA uint16 = 1 << 0
	ButtonB uint16 = 1 << 1

	StickyButtonMask = ButtonA | ButtonB
)

// Outcome is the result of a round from the local player's perspective.
type Outcome int

const (
	Loss Outcome = iota
	Win
	// Draw is only ever produced by a StepperCore; Round always resolves
	// it to Win or Loss before returning an Outcome to its caller, per the
	// "polite win" convention.
	Draw
)

func (o Outcome) String() string {
	switch o {
	case Win:
		return "win"
	case Draw:
		return "draw"
	default:
		return "loss"
	}
}

package netplay

import (
	"fmt"
	"time"

	cache "github.com/patrickmn/go-cache"
)

// TrapFunc is a handler installed at a code address in the emulator core.
// Its contents are opaque to the netplay core: only the installation
// contract matters. Handlers capture typed state (an atomic joyflags
// value, a *Match, a *CompletionToken) and must be re-entrant with
// whatever runtime owns them; they take shared locks only, never the
// emulator's own lock, so a handler can never deadlock against the
// stepper that is driving it.
type TrapFunc func()

// TrapTable is a set of (address -> handler) installation points.
type TrapTable map[uint32]TrapFunc

// Hooks is the per-title adapter. Each title hard-codes different memory
// addresses for "read input", "send packet", "round boundary", and so on;
// Hooks confines that divergence to one small interface instead of letting
// it leak into the netplay core.
type Hooks interface {
	// PacketSize is the fixed size of this title's per-frame exchange
	// packet.
	PacketSize() int

	// PredictRX mutates lastCommitted in place to produce a plausible
	// next-frame packet when the real one for that frame is not yet
	// known. Implementations typically zero transient fields.
	PredictRX(lastCommitted []byte)

	// CommonTraps are installed on both the live core and the stepper's
	// scratch core.
	CommonTraps() TrapTable

	// PrimaryTraps are installed only on the live local core.
	PrimaryTraps(joyflags *uint32, match *Match, token *CompletionToken) TrapTable

	// StepperTraps are installed only on the stepper's core, with access
	// to whatever stepper-local state the title needs (e.g. the current
	// input_pairs cursor).
	StepperTraps(state any) TrapTable
}

// HooksRegistry resolves a Hooks implementation from a ROM/title
// identifier, memoizing constructed instances since building a trap table
// can itself be non-trivial.
type HooksRegistry struct {
	factories map[string]func() Hooks
	built     *cache.Cache
}

func NewHooksRegistry() *HooksRegistry {
	return &HooksRegistry{
		factories: make(map[string]func() Hooks),
		built:     cache.New(cache.NoExpiration, time.Hour),
	}
}

// Register associates a ROM identifier with a Hooks factory.
func (r *HooksRegistry) Register(romID string, factory func() Hooks) {
	r.factories[romID] = factory
}

// Resolve returns the Hooks for romID, building and caching it on first
// use.
func (r *HooksRegistry) Resolve(romID string) (Hooks, error) {
	if cached, ok := r.built.Get(romID); ok {
		return cached.(Hooks), nil
	}

	factory, ok := r.factories[romID]
	if !ok {
		return nil, fmt.Errorf("netplay: no hooks registered for rom %q", romID)
	}

	h := factory()
	r.built.Set(romID, h, cache.NoExpiration)

	return h, nil
}

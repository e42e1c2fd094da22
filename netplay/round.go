package netplay

import (
	"context"
	"fmt"
	"math"
	"sync"

	"go.uber.org/zap"

	"github.com/tangobattle/tango-sub001/replay"
)

// EXPECTED_FPS is the platform's native frame rate: 16777216/280896 cycles,
// matching the spec's definition exactly.
const ExpectedFPS float32 = 16777216.0 / 280896.0

// FPSController is the capability Round uses to trim the emulator's clock
// target in response to measured drift. It is supplied by the embedding
// application; Round never touches emulator internals directly.
type FPSController interface {
	SetFPSTarget(fps float32)
}

// ReplaySink receives a finished replay's bytes once a round concludes.
// The embedding application decides what to do with them (write to disk,
// upload, discard).
type ReplaySink func(meta replay.Metadata, body []byte)

// Round is the per-round state machine: the committed checkpoint, the
// lockstep queue, the clock-drift estimate, and (optionally) the replay
// writer.
type Round struct {
	number           uint8
	localPlayerIndex uint8

	currentTick uint32
	localDelay  uint32
	dtick       int32

	iq                       *PairQueue
	lastCommittedRemoteInput Input
	committedState           CommittedState

	firstCommittedOnce sync.Once
	firstCommittedCh   chan struct{}

	transport *Transport
	shadow    *Shadow
	hooks     Hooks
	fps       FPSController

	replayWriter *replay.Writer
	replayBuf    *countingBuffer
	replayMeta   replay.Metadata
	replaySink   ReplaySink
	replayDone   bool

	matchID string
	logger  *zap.Logger
}

// countingBuffer is the in-memory, append-only sink handed to replay.Writer;
// the replay body is small enough (bounded by max_queue_length frames per
// round) to buffer entirely and hand off to ReplaySink on Finish.
type countingBuffer struct {
	data []byte
}

func (b *countingBuffer) Write(p []byte) (int, error) {
	b.data = append(b.data, p...)
	return len(p), nil
}

// RoundConfig collects the parameters needed to start a round.
type RoundConfig struct {
	Number           uint8
	LocalPlayerIndex uint8
	LocalDelay       uint32
	RemoteDelay      uint32
	MaxQueueLength   int

	Transport *Transport
	Shadow    *Shadow
	Hooks     Hooks
	FPS       FPSController

	LocalInitialState  []byte
	RemoteInitialState []byte
	InitialPacket      []byte

	ReplayMeta ReplayMetaFunc
	ReplaySink ReplaySink

	MatchID string
	Logger  *zap.Logger
}

// ReplayMetaFunc builds the replay.Metadata for a round, given its number.
// Nil disables replay recording for the round.
type ReplayMetaFunc func(roundNumber uint8) replay.Metadata

// NewRound constructs a Round with a freshly seeded PairQueue and, if
// cfg.ReplayMeta is non-nil, an open in-memory replay writer.
func NewRound(cfg RoundConfig) (*Round, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	r := &Round{
		number:           cfg.Number,
		localPlayerIndex: cfg.LocalPlayerIndex,
		localDelay:       cfg.LocalDelay,
		iq:               NewPairQueue(cfg.MaxQueueLength, cfg.LocalDelay, cfg.RemoteDelay),
		committedState:   CommittedState{State: cfg.LocalInitialState, Packet: cfg.InitialPacket},
		firstCommittedCh: make(chan struct{}),
		transport:        cfg.Transport,
		shadow:           cfg.Shadow,
		hooks:            cfg.Hooks,
		fps:              cfg.FPS,
		replaySink:       cfg.ReplaySink,
		matchID:          cfg.MatchID,
		logger:           logger.With(zap.Uint8("round", cfg.Number)),
	}

	r.markFirstCommitted()

	if cfg.ReplayMeta != nil {
		meta := cfg.ReplayMeta(cfg.Number)
		if meta.LinkCode == "" {
			meta.LinkCode = cfg.MatchID
		}
		buf := &countingBuffer{}

		w, err := replay.NewWriter(buf, cfg.LocalPlayerIndex, uint8(cfg.Hooks.PacketSize()), meta, cfg.LocalInitialState, cfg.RemoteInitialState)
		if err != nil {
			return nil, fmt.Errorf("netplay: failed to open replay writer: %w", err)
		}

		r.replayWriter = w
		r.replayBuf = buf
		r.replayMeta = meta
	}

	return r, nil
}

func (r *Round) Number() uint8            { return r.number }
func (r *Round) LocalPlayerIndex() uint8  { return r.localPlayerIndex }
func (r *Round) CurrentTick() uint32      { return r.currentTick }
func (r *Round) Queue() *PairQueue        { return r.iq }
func (r *Round) DTick() int32             { return r.dtick }
func (r *Round) HasCommittedState() bool {
	select {
	case <-r.firstCommittedCh:
		return true
	default:
		return false
	}
}

// WaitForFirstCommittedState blocks until the round has its first committed
// state, or ctx is done. NewRound sets that state (the local initial state)
// and preloads the queue with delay frames, so for a Round built by
// NewRound this returns at once. The receive path must await this before
// enqueuing any remote input for the round.
func (r *Round) WaitForFirstCommittedState(ctx context.Context) error {
	select {
	case <-r.firstCommittedCh:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (r *Round) markFirstCommitted() {
	r.firstCommittedOnce.Do(func() { close(r.firstCommittedCh) })
}

// AddRemoteInput feeds one remote PartialInput into the queue.
func (r *Round) AddRemoteInput(in PartialInput) error {
	return r.iq.AddRemoteInput(in)
}

// buildPredictedPairs synthesizes the remote side of the local-only tail:
// same ticks, joyflags restricted to the sticky bitmask copied from the
// last committed remote input.
func (r *Round) buildPredictedPairs(tail []PartialInput) []PartialPair {
	out := make([]PartialPair, len(tail))

	sticky := r.lastCommittedRemoteInput.Joyflags & StickyButtonMask

	for i, local := range tail {
		out[i] = PartialPair{
			Local: local,
			Remote: PartialInput{
				LocalTick:  local.LocalTick,
				RemoteTick: r.lastCommittedRemoteInput.LocalTick,
				Joyflags:   sticky,
			},
		}
	}

	return out
}

// AddLocalInputAndFastforward is invoked once per frame from the "input
// read" trap of the local emulator core. It enqueues the local input,
// re-simulates the committed+predicted window, updates the round's clock
// trim, and returns a non-nil Outcome only once the round has reached a
// final (committed, not merely predicted) end.
func (r *Round) AddLocalInputAndFastforward(ctx context.Context, core StepperCore, joyflags uint16) (*Outcome, error) {
	localTick := r.currentTick + r.localDelay
	remoteTick := r.lastCommittedRemoteInput.LocalTick

	if !r.iq.CanAddLocalInput() {
		return nil, fmt.Errorf("%w: round %d at tick %d", ErrLocalOverflow, r.number, localTick)
	}

	tickDiff := remoteTick - localTick
	if err := r.transport.SendInput(ctx, InputMessage{
		RoundNumber: r.number,
		LocalTick:   localTick,
		TickDiff:    int8(int32(tickDiff)),
		Joyflags:    joyflags,
	}); err != nil {
		// Order matters: the input was not sent, so it must not be added
		// locally either, or the two sides would disagree about which
		// ticks exist.
		return nil, err
	}

	local := PartialInput{LocalTick: localTick, RemoteTick: remoteTick, Joyflags: joyflags}
	if err := r.iq.AddLocalInput(local); err != nil {
		return nil, err
	}

	committable, predictTail := r.iq.ConsumeAndPeekLocal()
	predicted := r.buildPredictedPairs(predictTail)
	pairs := append(committable, predicted...)

	queueLength.WithLabelValues(r.matchID, "local").Set(float64(r.iq.LocalQueueLength()))
	queueLength.WithLabelValues(r.matchID, "remote").Set(float64(r.iq.RemoteQueueLength()))
	rollbackDepth.WithLabelValues(r.matchID).Observe(float64(len(predicted)))

	applyShadow := func(pair PartialPair) ([]byte, error) {
		// The shadow runs the remote player's view: its Local is our Remote.
		_, packet, err := r.shadow.ApplyInput(PartialPair{Local: pair.Remote, Remote: pair.Local})
		return packet, err
	}

	baseTick := r.committedState.Tick
	commitTick := baseTick + uint32(len(committable))

	result, err := Fastforward(ctx, core, r.committedState, pairs, len(committable), applyShadow, r.hooks)
	if err != nil {
		return nil, err
	}

	r.committedState = result.CommittedState
	r.currentTick++

	// A round ending inside the committed prefix truncates OutputPairs
	// before every committable pair was processed; only write and commit
	// whichever prefix actually ran.
	committedOutputs := min(len(committable), len(result.OutputPairs))

	if committedOutputs > 0 {
		for i := 0; i < committedOutputs; i++ {
			if r.replayWriter != nil {
				pair := result.OutputPairs[i]
				if err := r.replayWriter.WritePair(
					replay.Record{Side: 0, LocalTick: pair.Local.LocalTick, RemoteTick: pair.Local.RemoteTick, Joyflags: pair.Local.Joyflags, Packet: pair.Local.Packet},
					replay.Record{Side: 1, LocalTick: pair.Remote.LocalTick, RemoteTick: pair.Remote.RemoteTick, Joyflags: pair.Remote.Joyflags, Packet: pair.Remote.Packet},
				); err != nil {
					r.logger.Error("failed to write replay record", zap.Error(err))
				}
			}
		}

		r.lastCommittedRemoteInput = result.OutputPairs[committedOutputs-1].Remote
		r.markFirstCommitted()
	}

	if len(result.OutputPairs) > 0 {
		last := result.OutputPairs[len(result.OutputPairs)-1]
		r.dtick = last.Local.Lag() - r.lastCommittedRemoteInput.Lag()
	}

	dtickGauge.WithLabelValues(r.matchID).Set(float64(r.dtick))

	if r.fps != nil {
		target := ExpectedFPS + tpsAdjustment(r.dtick)
		if target <= 0 {
			target = math.SmallestNonzeroFloat32
		}
		r.fps.SetFPSTarget(target)
	}

	if result.RoundResult == nil {
		return nil, nil
	}

	if result.RoundResult.Tick > commitTick {
		// Tentative: the round only ended inside the predicted suffix.
		// Next frame will re-predict and may observe a different result.
		return nil, nil
	}

	outcome := result.RoundResult.Outcome
	if outcome == Draw {
		// Draw resolution: polite convention.
		if r.localPlayerIndex == 0 {
			outcome = Win
		} else {
			outcome = Loss
		}
	}

	roundsTotal.WithLabelValues(r.matchID, outcome.String()).Inc()
	r.finalizeReplay(true)

	return &outcome, nil
}

func (r *Round) finalizeReplay(complete bool) {
	if r.replayWriter == nil || r.replayDone {
		return
	}
	r.replayDone = true

	if err := r.replayWriter.Finish(complete); err != nil {
		r.logger.Error("failed to finish replay", zap.Error(err))
		return
	}

	if r.replaySink != nil {
		r.replaySink(r.replayMeta, r.replayBuf.data)
	}
}

// tpsAdjustment implements the resolved Open Question (SPEC_FULL.md §4.6):
// a smooth, monotonically increasing, sign-preserving curve that nudges
// the slower side forward without oscillation.
func tpsAdjustment(dtick int32) float32 {
	if dtick == 0 {
		return 0
	}

	sign := float32(1)
	if dtick < 0 {
		sign = -1
	}

	mag := math.Abs(float64(dtick)) / 15.0
	return sign * float32(math.Pow(mag, 7.0/3.0))
}

// Close restores the emulator's FPS target to EXPECTED_FPS, unconditionally,
// and finalizes an in-progress replay as incomplete if it was never
// reached a terminal outcome. Clock drift belongs to a round, not the
// match it lives in.
func (r *Round) Close() {
	if r.fps != nil {
		r.fps.SetFPSTarget(ExpectedFPS)
	}
	r.finalizeReplay(false)
}

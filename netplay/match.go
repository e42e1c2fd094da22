package netplay

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// MatchConfig collects the per-match parameters the spec's external
// interface names: input delay, queue bound, match type, RNG seed and
// offerer side.
type MatchConfig struct {
	InputDelay     uint32
	RemoteDelay    uint32
	MaxQueueLength int
	MatchType      [2]uint8
	RNGSeed        [16]byte
	IsOfferer      bool

	Shadow    ShadowCore
	Transport *Transport
	Hooks     Hooks
	FPS       FPSController

	ReplayMeta ReplayMetaFunc
	ReplaySink ReplaySink

	Logger *zap.Logger
}

// roundState is the single mutable slot Match owns: at most one Round
// lives here at a time, protected by a single mutex so PairQueue mutations
// (which happen inside Round methods) are always serialized, per the
// spec's concurrency model.
type roundState struct {
	mu          sync.Mutex
	number      uint8
	round       *Round
	lastOutcome *Outcome
}

// Match owns the shadow simulation, the transport, and the round sequencer
// for one peer connection's lifetime.
type Match struct {
	ID uuid.UUID

	shadow    *Shadow
	transport *Transport
	hooks     Hooks
	fps       FPSController

	rngMu sync.Mutex
	rng   *rand.Rand

	matchType      [2]uint8
	inputDelay     uint32
	remoteDelay    uint32
	maxQueueLength int
	isOfferer      bool

	replayMeta ReplayMetaFunc
	replaySink ReplaySink

	state roundState

	roundStarted chan uint8

	cancel context.CancelFunc
	ctx    context.Context

	logger *zap.Logger
}

// NewMatch constructs a Match. The returned Match owns shadow for its
// entire lifetime. Cancel cancels the match context and closes the current
// round; it does not close the shadow or the transport.
func NewMatch(ctx context.Context, cfg MatchConfig) *Match {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	seed1 := binary.LittleEndian.Uint64(cfg.RNGSeed[0:8])
	seed2 := binary.LittleEndian.Uint64(cfg.RNGSeed[8:16])

	mctx, cancel := context.WithCancel(ctx)
	id := uuid.New()

	if cfg.Transport != nil {
		cfg.Transport.SetMatchID(id.String())
	}

	m := &Match{
		ID:             id,
		shadow:         NewShadow(cfg.Shadow),
		transport:      cfg.Transport,
		hooks:          cfg.Hooks,
		fps:            cfg.FPS,
		rng:            rand.New(rand.NewPCG(seed1, seed2)),
		matchType:      cfg.MatchType,
		inputDelay:     cfg.InputDelay,
		remoteDelay:    cfg.RemoteDelay,
		maxQueueLength: cfg.MaxQueueLength,
		isOfferer:      cfg.IsOfferer,
		replayMeta:     cfg.ReplayMeta,
		replaySink:     cfg.ReplaySink,
		roundStarted:   make(chan uint8, 1),
		cancel:         cancel,
		ctx:            mctx,
		logger:         logger.With(zap.String("match", id.String())),
	}

	// The polite-win coin flip is fabricated exactly once, at match
	// creation, to seed the first round's outcome. Every subsequent round
	// consumes whatever StartRound/AddLocalInputAndFastforward last wrote
	// to m.state.lastOutcome, real or seeded.
	seeded := m.decideSeedOutcome()
	m.state.lastOutcome = &seeded

	return m
}

// Cancel tears down the match: it cancels the match context and closes the
// current round, so the next AddLocalInputAndFastforward call on the
// emulator thread returns ErrNoRoundInProgress. It does not stop Run: the
// dispatch loop watches only the context passed to Run, and a Recv that is
// already blocked stays blocked until the transport returns.
func (m *Match) Cancel() {
	m.cancel()

	m.state.mu.Lock()
	defer m.state.mu.Unlock()

	if m.state.round != nil {
		m.state.round.Close()
		m.state.round = nil
	}
}

func (m *Match) Cancelled() <-chan struct{} {
	return m.ctx.Done()
}

func (m *Match) MatchType() [2]uint8 { return m.matchType }
func (m *Match) IsOfferer() bool     { return m.isOfferer }

// StartRound advances to the next round: local_player_index assigned from
// whichever outcome is already stored (the seeded coin flip before the
// first round, the real stepper-produced outcome thereafter), a fresh
// PairQueue preloaded with input_delay zero frames on both the local queue
// and the wire (so the peer sees matching delay frames), and a fresh
// (optional) replay writer.
func (m *Match) StartRound(localInitialState, remoteInitialState, initialPacket []byte) (*Round, error) {
	m.state.mu.Lock()
	defer m.state.mu.Unlock()

	if m.state.round != nil {
		m.state.round.Close()
	}

	m.state.number++

	localPlayerIndex := uint8(1)
	if m.state.lastOutcome != nil && *m.state.lastOutcome == Win {
		localPlayerIndex = 0
	}

	round, err := NewRound(RoundConfig{
		Number:             m.state.number,
		LocalPlayerIndex:   localPlayerIndex,
		LocalDelay:         m.inputDelay,
		RemoteDelay:        m.remoteDelay,
		MaxQueueLength:     m.maxQueueLength,
		Transport:          m.transport,
		Shadow:             m.shadow,
		Hooks:              m.hooks,
		FPS:                m.fps,
		LocalInitialState:  localInitialState,
		RemoteInitialState: remoteInitialState,
		InitialPacket:      initialPacket,
		ReplayMeta:         m.replayMeta,
		ReplaySink:         m.replaySink,
		MatchID:            m.ID.String(),
		Logger:             m.logger,
	})
	if err != nil {
		return nil, err
	}

	for i := uint32(0); i < m.inputDelay; i++ {
		if err := m.transport.SendInput(m.ctx, InputMessage{
			RoundNumber: m.state.number,
			LocalTick:   i,
			TickDiff:    0,
			Joyflags:    0,
		}); err != nil {
			return nil, fmt.Errorf("netplay: failed to preload delay frames: %w", err)
		}
	}

	m.state.round = round

	select {
	case m.roundStarted <- m.state.number:
	default:
		// Strictly paired with Run's consumer: a full channel here means
		// Run has not drained the previous round's start signal yet,
		// which would itself be a protocol violation, so we surface it
		// rather than silently dropping the notification.
		m.logger.Warn("round_started channel full, previous round not yet observed")
		<-m.roundStarted
		m.roundStarted <- m.state.number
	}

	return round, nil
}

// decideSeedOutcome draws the "polite win" coin flip: both sides compute
// opposite last_outcomes iff is_offerer differs, given the same rng_seed.
func (m *Match) decideSeedOutcome() Outcome {
	m.rngMu.Lock()
	politeWin := m.rng.IntN(2) == 1
	m.rngMu.Unlock()

	if politeWin == m.isOfferer {
		return Win
	}
	return Loss
}

// CurrentRound returns the active round, or nil if none is in progress.
func (m *Match) CurrentRound() *Round {
	m.state.mu.Lock()
	defer m.state.mu.Unlock()
	return m.state.round
}

// LastOutcome reports the most recently concluded round's outcome or,
// before any round has concluded, the polite-win outcome seeded by
// NewMatch. It is never nil for a Match built by NewMatch.
func (m *Match) LastOutcome() *Outcome {
	m.state.mu.Lock()
	defer m.state.mu.Unlock()
	return m.state.lastOutcome
}

// AddLocalInputAndFastforward locks the round state for the duration of
// the call, exactly as the spec requires ("write lock held across both
// send and enqueue"), and delegates to the active Round.
func (m *Match) AddLocalInputAndFastforward(ctx context.Context, core StepperCore, joyflags uint16) (*Outcome, error) {
	m.state.mu.Lock()
	defer m.state.mu.Unlock()

	if m.state.round == nil {
		return nil, ErrNoRoundInProgress
	}

	outcome, err := m.state.round.AddLocalInputAndFastforward(ctx, core, joyflags)
	if outcome != nil {
		m.state.lastOutcome = outcome
		m.state.round = nil
	}

	return outcome, err
}

// Receiver is the minimal surface Run needs to pull decoded messages off
// the wire; Transport satisfies it directly.
type Receiver interface {
	Recv() (DecodedMessage, error)
}

// Run is the Match dispatch task: it owns the transport receiver, answers
// pings, and feeds remote input into whichever round is current. It is the
// only goroutine that ever blocks awaiting the network, the
// round_started channel, or a round's first-committed-state signal.
func (m *Match) Run(ctx context.Context, recv Receiver) error {
	defer m.cancel()

	firstInputSeen := false

	for {
		msg, err := recv.Recv()
		if err != nil {
			select {
			case <-ctx.Done():
				return ctx.Err()
			default:
			}
			return err
		}

		switch msg.Tag {
		case TagInput:
			if !firstInputSeen {
				firstInputSeen = true
				m.transport.ReleaseRendezvous()
			}

			if err := m.dispatchInput(ctx, *msg.Input); err != nil {
				if errors.Is(err, ErrRemoteOverflow) || errors.Is(err, ErrNonMonotonicTick) {
					return err
				}
				m.logger.Warn("dropping input", zap.Error(err))
			}

		case TagPing:
			if err := m.transport.SendPong(msg.Ping.TS); err != nil {
				return err
			}

		case TagPong:
			m.transport.ObservePong(time.Now(), msg.Pong.TS)
		}
	}
}

func (m *Match) dispatchInput(ctx context.Context, in InputMessage) error {
	m.state.mu.Lock()
	round := m.state.round
	number := m.state.number
	m.state.mu.Unlock()

	if round == nil || in.RoundNumber != number {
		if in.RoundNumber > number {
			// Belongs to a round we haven't started yet: wait for it.
			for round == nil || number != in.RoundNumber {
				select {
				case <-m.roundStarted:
				case <-ctx.Done():
					return ctx.Err()
				}

				m.state.mu.Lock()
				round = m.state.round
				number = m.state.number
				m.state.mu.Unlock()
			}
		} else if round == nil && in.RoundNumber == number {
			// The round this belongs to already ended; StartRound hasn't
			// bumped the number yet. A stray late packet, not a protocol
			// violation.
			return fmt.Errorf("%w: round %d", ErrNoRoundInProgress, in.RoundNumber)
		} else {
			return fmt.Errorf("%w: got %d, have %d", ErrRoundNumberMismatch, in.RoundNumber, number)
		}
	}

	if err := round.WaitForFirstCommittedState(ctx); err != nil {
		return err
	}

	return round.AddRemoteInput(PartialInput{
		LocalTick:  in.LocalTick,
		RemoteTick: in.RemoteTick(),
		Joyflags:   in.Joyflags,
	})
}


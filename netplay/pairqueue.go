package netplay

import (
	"fmt"

	"github.com/tangobattle/tango-sub001/internal/ringbuf"
)

// PairQueue is a bounded lockstep queue that pairs local and remote inputs
// by tick. It is not internally synchronized: callers (Round, under
// Match's round-state lock) must serialize access, exactly as the spec's
// concurrency model requires ("PairQueue mutations are serialized by the
// round_state mutex").
type PairQueue struct {
	maxLength   int
	localDelay  uint32
	remoteDelay uint32

	local  *ringbuf.Buffer[PartialInput]
	remote *ringbuf.Buffer[PartialInput]

	nextLocalTick  uint32
	nextRemoteTick uint32
}

// NewPairQueue builds a queue pre-seeded with localDelay (and, for titles
// using the optional symmetric-delay extension, remoteDelay) zero-joyflag
// inputs, so the first real input on each side lands at
// tick = current_tick + delay.
func NewPairQueue(maxLength int, localDelay, remoteDelay uint32) *PairQueue {
	q := &PairQueue{
		maxLength:   maxLength,
		localDelay:  localDelay,
		remoteDelay: remoteDelay,
		local:       ringbuf.New[PartialInput](maxLength),
		remote:      ringbuf.New[PartialInput](maxLength),
	}

	for i := uint32(0); i < localDelay; i++ {
		q.local.PushBack(PartialInput{LocalTick: i})
		q.nextLocalTick++
	}

	for i := uint32(0); i < remoteDelay; i++ {
		q.remote.PushBack(PartialInput{LocalTick: i})
		q.nextRemoteTick++
	}

	return q
}

func (q *PairQueue) LocalDelay() uint32  { return q.localDelay }
func (q *PairQueue) RemoteDelay() uint32 { return q.remoteDelay }
func (q *PairQueue) MaxLength() int      { return q.maxLength }

func (q *PairQueue) LocalQueueLength() int  { return q.local.Len() }
func (q *PairQueue) RemoteQueueLength() int { return q.remote.Len() }

func (q *PairQueue) CanAddLocalInput() bool  { return q.local.Len() < q.maxLength }
func (q *PairQueue) CanAddRemoteInput() bool { return q.remote.Len() < q.maxLength }

// AddLocalInput appends a local PartialInput. The caller must have checked
// CanAddLocalInput first; calling this past capacity is a programmer error
// reported as ErrLocalOverflow rather than a silent drop.
func (q *PairQueue) AddLocalInput(in PartialInput) error {
	if !q.CanAddLocalInput() {
		return fmt.Errorf("%w: length %d at max %d", ErrLocalOverflow, q.local.Len(), q.maxLength)
	}
	if in.LocalTick != q.nextLocalTick {
		return fmt.Errorf("%w: local tick %d, expected %d", ErrNonMonotonicTick, in.LocalTick, q.nextLocalTick)
	}

	q.local.PushBack(in)
	q.nextLocalTick++
	return nil
}

// AddRemoteInput appends a remote PartialInput. Symmetric to
// AddLocalInput; a peer that sends faster than the queue is consumed
// surfaces ErrRemoteOverflow, a fatal desync signal.
func (q *PairQueue) AddRemoteInput(in PartialInput) error {
	if !q.CanAddRemoteInput() {
		return fmt.Errorf("%w: length %d at max %d", ErrRemoteOverflow, q.remote.Len(), q.maxLength)
	}
	if in.LocalTick != q.nextRemoteTick {
		return fmt.Errorf("%w: remote tick %d, expected %d", ErrNonMonotonicTick, in.LocalTick, q.nextRemoteTick)
	}

	q.remote.PushBack(in)
	q.nextRemoteTick++
	return nil
}

// ConsumeAndPeekLocal pops the committable prefix (both sides known,
// paired by matching tick) from both queues and returns it alongside the
// remaining local-only tail, which is left in place (cloned, not popped).
func (q *PairQueue) ConsumeAndPeekLocal() (committable []PartialPair, predictRequired []PartialInput) {
	k := min(q.local.Len(), q.remote.Len())

	committable = make([]PartialPair, k)
	for i := 0; i < k; i++ {
		local := q.local.At(i)
		remote := q.remote.At(i)

		if local.LocalTick != remote.LocalTick {
			panic(fmt.Sprintf("netplay: pairqueue desync: local tick %d != remote tick %d at index %d", local.LocalTick, remote.LocalTick, i))
		}

		committable[i] = PartialPair{Local: local, Remote: remote}
	}

	tail := q.local.Slice(k)
	predictRequired = make([]PartialInput, len(tail))
	copy(predictRequired, tail)

	q.local.TruncFront(k)
	q.remote.TruncFront(k)

	return committable, predictRequired
}

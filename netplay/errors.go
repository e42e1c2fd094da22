package netplay

import "errors"

// Queue errors. All are fatal: they terminate the round (and, because
// resync without a higher-level protocol is not possible, the match).
var (
	ErrLocalOverflow    = errors.New("netplay: local input queue overflow")
	ErrRemoteOverflow   = errors.New("netplay: remote input queue overflow")
	ErrNonMonotonicTick = errors.New("netplay: non-monotonic tick")
)

// Transport errors. All terminate the Match.
var (
	ErrTransportClosed = errors.New("netplay: transport closed")
	ErrMalformed       = errors.New("netplay: malformed message")
	ErrUnknownTag      = errors.New("netplay: unknown message tag")
)

// Stepper/Shadow errors. InputsExhausted and ShadowTickMismatch are
// invariant breaks: determinism is assumed lost and the caller should
// abort the process rather than continue silently.
var (
	ErrInputsExhausted    = errors.New("netplay: stepper ran out of input pairs")
	ErrShadowTickMismatch = errors.New("netplay: shadow produced tick mismatch")
	ErrApplyFailed        = errors.New("netplay: shadow failed to apply input")
)

// Round plumbing errors. Non-fatal: log and drop the offending message.
var (
	ErrNoRoundInProgress   = errors.New("netplay: no round in progress")
	ErrRoundNumberMismatch = errors.New("netplay: round number mismatch")
)

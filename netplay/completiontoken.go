package netplay

import "sync/atomic"

// CompletionToken is a one-shot boolean shared between trap handlers
// running on the emulator thread and the outer frame loop. It signals that
// a round has reached its terminal point from inside a trap handler, where
// the frame loop cannot itself observe the round state directly.
type CompletionToken struct {
	done atomic.Bool
}

// Complete marks the token as done. Idempotent.
func (c *CompletionToken) Complete() {
	c.done.Store(true)
}

// IsComplete reports whether Complete has ever been called. Monotone: once
// true, it stays true for the lifetime of the token.
func (c *CompletionToken) IsComplete() bool {
	return c.done.Load()
}

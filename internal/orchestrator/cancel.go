package orchestrator

import "sync/atomic"

// CancelToken is checked by the orchestrator between model executions. Once
// Set, no further models are scheduled; in-flight models are allowed to
// finish or time out.
type CancelToken struct {
	flag atomic.Bool
}

// NewCancelToken returns a token in the unset state.
func NewCancelToken() *CancelToken { return &CancelToken{} }

// Set marks the token, requesting cooperative cancellation.
func (c *CancelToken) Set() { c.flag.Store(true) }

// IsSet reports whether cancellation has been requested.
func (c *CancelToken) IsSet() bool { return c.flag.Load() }

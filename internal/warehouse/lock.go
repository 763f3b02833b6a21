package warehouse

import (
	"context"
	"fmt"
	"sync"

	log "github.com/sirupsen/logrus"
)

// AdvisoryLocks tracks an in-process named lock per master_model_id. If the
// warehouse engine does not itself serialize MERGE at the row level, the
// orchestrator must wrap the MERGE in a named lock scoped by
// master_model_id. The lock is process-local on both targets: the push
// package takes only this lock and no warehouse-level lock, so it
// serializes MERGEs issued by one control-plane process only.
//
// Mirrors the barrier role of materialize/sql/std_fence.go's Fence, adapted
// from "fence off stale runtime instances" to "serialize concurrent MERGEs
// against one master sink."
type AdvisoryLocks struct {
	mu    sync.Mutex
	locks map[string]chan struct{}
}

// NewAdvisoryLocks returns an empty lock table.
func NewAdvisoryLocks() *AdvisoryLocks {
	return &AdvisoryLocks{locks: make(map[string]chan struct{})}
}

func (a *AdvisoryLocks) chanFor(masterModelID string) chan struct{} {
	a.mu.Lock()
	defer a.mu.Unlock()
	ch, ok := a.locks[masterModelID]
	if !ok {
		ch = make(chan struct{}, 1)
		ch <- struct{}{}
		a.locks[masterModelID] = ch
	}
	return ch
}

// WithLock runs fn while holding the named lock for masterModelID, blocking
// until it is available or ctx is cancelled.
func (a *AdvisoryLocks) WithLock(ctx context.Context, masterModelID string, fn func() error) error {
	ch := a.chanFor(masterModelID)
	select {
	case <-ch:
	case <-ctx.Done():
		return fmt.Errorf("acquiring advisory lock for %s: %w", masterModelID, ctx.Err())
	}
	defer func() { ch <- struct{}{} }()

	log.WithField("master_model_id", masterModelID).Debug("acquired push-circuit advisory lock")
	return fn()
}

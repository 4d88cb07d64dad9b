package runner

import (
	"context"
	"sync"
)

// AbortManager owns the abort domain of one composer.
// Every new composer action calls Next, which cancels whatever the previous
// action was still doing and arms a fresh context. Two composers never share
// a manager, so aborting one never touches the other.
type AbortManager struct {
	mu     sync.Mutex
	parent context.Context
	ctx    context.Context
	cancel context.CancelFunc
}

// NewAbortManager creates a manager whose contexts derive from parent.
// Cancelling parent (e.g. on SIGINT) aborts the current action too.
func NewAbortManager(parent context.Context) *AbortManager {
	if parent == nil {
		parent = context.Background()
	}
	am := &AbortManager{parent: parent}
	am.ctx, am.cancel = context.WithCancel(parent)
	return am
}

// Context returns the current action context.
func (am *AbortManager) Context() context.Context {
	am.mu.Lock()
	defer am.mu.Unlock()
	return am.ctx
}

// Next cancels the current action and returns the context of the next one.
func (am *AbortManager) Next() context.Context {
	am.mu.Lock()
	defer am.mu.Unlock()
	am.cancel()
	am.ctx, am.cancel = context.WithCancel(am.parent)
	return am.ctx
}

// Abort cancels the current action and re-arms the manager, so the caller
// does not need to call Next before the following action.
func (am *AbortManager) Abort() {
	am.Next()
}

// Stop permanently cancels the current action. Later calls to Next still
// work but their contexts are only bound to parent.
func (am *AbortManager) Stop() {
	am.mu.Lock()
	defer am.mu.Unlock()
	am.cancel()
}

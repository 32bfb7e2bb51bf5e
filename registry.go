package scoped

import (
	"fmt"
	"sync"
)

// registry associates each live ScopeIdentity with the LIFO stack of binding
// layers opened within it. Rows are owned explicitly: every scope exit path
// must release its row, including fault and cancellation exits. Nothing here
// relies on garbage collection.
//
// A single coarse lock guards structural changes (push/pop/lookup/release);
// per-name work happens inside a layer under its own mutex.
type registry struct {
	mu   sync.RWMutex
	rows map[ID][]*bindingLayer
}

func newRegistry() *registry {
	return &registry{rows: make(map[ID][]*bindingLayer)}
}

// push opens a fresh layer on the stack for id, creating the row on first use.
func (r *registry) push(id ID) *bindingLayer {
	layer := newBindingLayer()
	r.mu.Lock()
	r.rows[id] = append(r.rows[id], layer)
	r.mu.Unlock()
	return layer
}

// pop removes the top layer for id, dropping the row once the stack empties.
// Popping a layer that was never pushed is a programming error.
func (r *registry) pop(id ID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	stack, ok := r.rows[id]
	if !ok || len(stack) == 0 {
		panic(fmt.Sprintf("scoped: pop on scope %s with no pushed layer", id))
	}
	if len(stack) == 1 {
		delete(r.rows, id)
		return
	}
	r.rows[id] = stack[:len(stack)-1]
}

// stack returns the layers for id ordered nearest (most recently pushed)
// first. The returned slice is a copy; the layers themselves are shared.
func (r *registry) stack(id ID) []*bindingLayer {
	r.mu.RLock()
	defer r.mu.RUnlock()
	stack, ok := r.rows[id]
	if !ok {
		return nil
	}
	out := make([]*bindingLayer, len(stack))
	for i := range stack {
		out[i] = stack[len(stack)-1-i]
	}
	return out
}

// release drops every layer registered for id. Used on handle teardown and
// when an entered call exits without transferring its layer.
func (r *registry) release(id ID) {
	r.mu.Lock()
	delete(r.rows, id)
	r.mu.Unlock()
}

// transfer atomically moves the call scope's layers under the suspendable
// handle's own identity, so a concurrent reader never observes the call row
// gone but the handle row missing.
func (r *registry) transfer(callID, handleID ID) {
	r.mu.Lock()
	stack := r.rows[callID]
	delete(r.rows, callID)
	r.rows[handleID] = append(r.rows[handleID], stack...)
	r.mu.Unlock()
}

package aio

// onProviderCompletion is the CompletionFunc passed to the active
// provider. head is a merge-chain head (spec.md §4.2); result is the
// combined bytes-transferred-or-negative-errno the provider observed
// for the whole chain. It implements the completion pipeline of
// spec.md §4.4: uncombine, shared-phase callback, then routing to
// retry, local, or foreign completion.
func (a *AIO) onProviderCompletion(head *Handle, result int64) {
	b := a.backendState(BackendID(head.Owner()))
	chain := mergeChain(head)
	uncombine(chain, result)

	for _, h := range chain {
		h.mu.Lock()
		h.state = stateReaped
		h.mu.Unlock()
		if b != nil {
			removeFromOwnerList(b, h)
			b.reaped.PushBack(h)
			b.inflightCount.Add(-1)
		}
	}

	for _, h := range chain {
		a.finishOne(b, h)
	}
}

// uncombine distributes a merge chain's single combined result back
// across its individual handles (spec.md §4.2 "uncombine"). A hard
// failure (negative result) applies to every member unchanged; a
// non-negative result is handed out in request order, so a short
// read/write leaves trailing chain members with zero bytes transferred,
// which their shared-phase callback then treats as a short transfer
// (a soft failure for buffer ops, a hard failure for WAL/generic writes).
func uncombine(chain []*Handle, result int64) {
	if result < 0 {
		for _, h := range chain {
			h.mu.Lock()
			h.result = result
			h.mu.Unlock()
		}
		return
	}

	remaining := result
	for _, h := range chain {
		h.mu.Lock()
		want := int64(h.payload.NBytes) - int64(h.payload.AlreadyDone)
		got := remaining
		if got > want {
			got = want
		}
		if got < 0 {
			got = 0
		}
		h.result = got
		remaining -= got
		h.mu.Unlock()
	}
}

// finishOne takes h off its backend's reaped list, runs its shared-phase
// callback, and routes it onward: unfinished (short/soft-failed) I/Os go
// to the slab-wide retry queue; finished ones branch on user_referenced
// (spec.md §4.4 step 5, original_source/src/backend/storage/ipc/aio.c
// completion path) — with a live caller reference they go to the
// backend's foreign_completed list for the owner to later pick up as a
// local completion (spec.md §4.9), otherwise nobody is left to call
// Wait/Release and the slot is fully recycled right here.
func (a *AIO) finishOne(b *BackendState, h *Handle) {
	if b != nil {
		b.reaped.Remove(h)
	}

	finished := a.runSharedCallback(h)

	h.mu.Lock()
	h.flags |= flagSharedCallbackCalled
	userRef := h.userReferenced
	if finished {
		h.state = stateDone
		h.systemReferenced = false
	} else {
		h.flags |= flagSharedFailed
	}
	h.cond.Broadcast()
	h.mu.Unlock()

	if b == nil {
		return
	}

	if !finished {
		a.slab.mu.Lock()
		a.slab.reapedUncompleted.PushBack(h)
		a.slab.mu.Unlock()
		return
	}

	b.stats.Executed++

	if !userRef {
		a.slab.releaseSlot(h)
		return
	}

	b.foreignMu.Lock()
	h.mu.Lock()
	h.flags |= flagForeignDone
	h.mu.Unlock()
	b.foreignCompleted.PushBack(h)
	b.stats.ForeignCompleted++
	b.foreignMu.Unlock()
}

// pumpForeignCompletions moves every handle waiting on b's
// foreign_completed list to local_completed and invokes its registered
// local callback, if any (spec.md §4.9 "local-phase completion"). The
// owner backend calls this from Wait/WaitRef on its own behalf; another
// backend's goroutine reaping b's I/O never calls it, which is what
// keeps the local callback invocation confined to the owning process.
func (a *AIO) pumpForeignCompletions(b *BackendState) {
	var moved []*Handle
	b.foreignMu.Lock()
	for {
		h := b.foreignCompleted.PopFront()
		if h == nil {
			break
		}
		moved = append(moved, h)
	}
	b.foreignMu.Unlock()

	for _, h := range moved {
		h.mu.Lock()
		h.flags &^= flagForeignDone
		h.mu.Unlock()
		b.localCompleted.PushBack(h)
		a.invokeLocalCallback(h)
	}
}

func (a *AIO) invokeLocalCallback(h *Handle) {
	h.mu.Lock()
	cb := h.localCallback
	ctx := h.localCallbackCtx
	already := h.flags.has(flagLocalCallbackCalled)
	if cb != nil && !already {
		h.flags |= flagLocalCallbackCalled
	}
	h.mu.Unlock()

	if cb != nil && !already {
		cb(h, ctx)
	}
}

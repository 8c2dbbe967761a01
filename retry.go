package aio

// Retry resubmits a handle the shared-phase callback marked
// SHARED_FAILED (a soft failure: a short buffer transfer or an
// EAGAIN/EINTR result within Config.MaxEintrRetries), re-resolving
// its file descriptor first since the underlying relation may have been
// remapped to a different segment since the original call (spec.md
// §4.11 "Retry").
//
// Only READ_BUFFER and WRITE_BUFFER are retryable; for every other op
// kind Retry returns an ErrCodeNotRetryable error.
func (a *AIO) Retry(h *Handle) error {
	h.mu.Lock()
	op := h.op
	idx := h.index
	owner := h.owner
	tag := h.payload.Tag
	alreadyDone := h.payload.AlreadyDone
	h.mu.Unlock()

	if !op.retryable() {
		return NewHandleError("retry", idx, owner, ErrCodeNotRetryable, "operation kind is not retryable")
	}

	b := a.backendState(BackendID(owner))
	if b == nil {
		return NewHandleError("retry", idx, owner, ErrCodeInvalidTransition, "handle has no live owner backend")
	}

	a.slab.mu.Lock()
	a.slab.reapedUncompleted.Remove(h)
	a.slab.mu.Unlock()

	if a.collab.Relation != nil {
		fd, fileOffset, err := a.collab.Relation.ResolveRelation(tag)
		if err != nil {
			return NewHandleError("retry", idx, owner, ErrCodeResolveFailed, err.Error())
		}
		h.mu.Lock()
		h.payload.FD = fd
		h.payload.Offset = fileOffset + int64(alreadyDone)
		h.mu.Unlock()
	}

	h.mu.Lock()
	h.flags &^= flagSharedFailed | flagSoftFailure | flagHardFailure | flagSharedCallbackCalled
	h.flags |= flagRetry
	h.state = statePending
	h.mu.Unlock()

	b.stats.Retries++
	b.pending.PushBack(h)
	a.SubmitPending(b)
	return nil
}

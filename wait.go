package aio

// Wait blocks until h reaches DONE, driving submission, provider waits,
// and soft-failure retries along the way, then surfaces a hard failure
// as an error (spec.md §4.10 "Reference & Waiting").
func (a *AIO) Wait(h *Handle) error {
	return a.waitHandle(h, true)
}

// WaitRef resolves ref against the live slab first, so a stale
// reference (the slot has since been recycled for a different I/O)
// fails fast instead of waiting on the wrong handle (spec.md §4.10
// "stale references").
func (a *AIO) WaitRef(ref Reference, callLocal bool) error {
	h, ok := ref.live(a.slab)
	if !ok {
		return NewError("wait", ErrCodeStaleReference, "reference no longer designates a live handle")
	}
	return a.waitHandle(h, callLocal)
}

func (a *AIO) waitHandle(h *Handle, callLocal bool) error {
	b := a.backendState(BackendID(h.Owner()))

	for {
		h.mu.Lock()
		st := h.state
		h.mu.Unlock()

		if st == statePending && b != nil {
			a.SubmitPending(b)
		}

		h.mu.Lock()
		sharedFailed := h.flags.has(flagSharedFailed)
		st = h.state
		h.mu.Unlock()

		if sharedFailed {
			if err := a.Retry(h); err != nil {
				return err
			}
			continue
		}

		if st == stateDone {
			break
		}

		if b != nil {
			a.pumpForeignCompletions(b)
		}

		if err := a.provider.WaitOne(h); err != nil && a.log != nil {
			a.log.ForHandle(h.Index(), h.Op().String(), h.RingID()).Warnf("provider wait failed: %v", err)
		}
	}

	if callLocal && b != nil {
		a.pumpForeignCompletions(b)
	}

	h.mu.Lock()
	result := h.result
	hard := h.flags.has(flagHardFailure)
	owner := h.owner
	h.mu.Unlock()

	if !hard {
		return nil
	}
	if result < 0 {
		return WrapErrno("wait", h.Index(), result)
	}
	return NewHandleError("wait", h.Index(), owner, ErrCodeHardFailure, "operation failed durability check")
}

package aio

import "sync"

// The methods in this file are the provider-facing view of a Handle:
// the read accessors a Provider implementation needs to actually issue
// a syscall, plus the one scratch slot it can use for its own
// bookkeeping (an iovec slice index, an *aiocb, an *overlapped). Core
// code in this package reaches the same fields directly; providers
// live in internal/provider/* and only get this surface.

// FD returns the payload's file descriptor.
func (h *Handle) FD() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.payload.FD
}

// Offset returns the payload's starting file offset.
func (h *Handle) Offset() int64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.payload.Offset
}

// NBytes returns the payload's requested transfer length.
func (h *Handle) NBytes() uint32 {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.payload.NBytes
}

// AlreadyDone returns how many bytes of NBytes a prior short
// transfer/retry round already completed.
func (h *Handle) AlreadyDone() uint32 {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.payload.AlreadyDone
}

// Buf returns the payload's data buffer, already advanced past
// AlreadyDone so a provider can pass it straight to a syscall.
func (h *Handle) Buf() []byte {
	h.mu.Lock()
	defer h.mu.Unlock()
	if int(h.payload.AlreadyDone) >= len(h.payload.Buf) {
		return nil
	}
	return h.payload.Buf[h.payload.AlreadyDone:]
}

// Barrier reports whether an FSYNC/FSYNC_WAL was requested as an
// ordering barrier.
func (h *Handle) Barrier() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.payload.Barrier
}

// Datasync reports whether an FSYNC should use fdatasync semantics.
func (h *Handle) Datasync() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.payload.Datasync
}

// NoReorder reports whether a write must not be reordered relative to
// other writes on the same fd.
func (h *Handle) NoReorder() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.payload.NoReorder
}

// SegNo returns the WAL segment number, for WAL-flavored ops.
func (h *Handle) SegNo() uint32 {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.payload.SegNo
}

// Chain returns h and every handle merged after it, head first
// (the exported counterpart of mergeChain, for providers that submit
// one syscall per chain).
func (h *Handle) Chain() []*Handle {
	return mergeChain(h)
}

// SetRingID records which provider context serviced this handle, shown
// in the observability dump.
func (h *Handle) SetRingID(id int) {
	h.mu.Lock()
	h.ringID = id
	h.mu.Unlock()
}

// Scratch returns the provider-private bookkeeping value previously
// stored with SetScratch, or nil.
func (h *Handle) Scratch() any {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.providerScratch
}

// SetScratch stores a provider-private bookkeeping value on h (an
// iovec slot index, an *aiocb, an *overlapped).
func (h *Handle) SetScratch(v any) {
	h.mu.Lock()
	h.providerScratch = v
	h.mu.Unlock()
}

// Cond exposes h's condition variable, broadcast whenever the core
// completion pipeline finalizes h's state, so a provider's WaitOne can
// block on it instead of busy-polling.
func (h *Handle) Cond() *sync.Cond { return h.cond }

// IsDone reports whether h has reached a state WaitOne should stop
// blocking on: fully done, or soft-failed and awaiting a caller Retry.
func (h *Handle) IsDone() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.state == stateDone || h.flags.has(flagSharedFailed)
}

// Lock/Unlock expose h's mutex so a provider's WaitOne can pair them
// with Cond().Wait the way sync.Cond requires.
func (h *Handle) Lock()   { h.mu.Lock() }
func (h *Handle) Unlock() { h.mu.Unlock() }

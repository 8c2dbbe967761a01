package aio

import "github.com/dbkit/aio/internal/constants"

// prepare fills in h's payload, transitions IDLE → PENDING, and appends
// h to b's pending list, triggering an implicit submission once enough
// work has accumulated (spec.md §4.1 "prepare", §4.2 "start_<op>").
func (a *AIO) prepare(h *Handle, b *BackendState, op OpKind, p payload) {
	h.mu.Lock()
	h.op = op
	h.payload = p
	h.state = statePending
	h.systemReferenced = true
	h.mu.Unlock()

	b.outstanding.Remove(h)
	b.pending.PushBack(h)

	if b.pending.Len() >= constants.StagingBatchThreshold {
		a.SubmitPending(b)
	}
}

// StartReadBuffer stages a buffered-page read.
func (a *AIO) StartReadBuffer(h *Handle, tag RelationTag, fd int, offset int64, nbytes uint32, buf []byte, bufferNo uint32, mode ReadMode) {
	b := a.backendState(BackendID(h.Owner()))
	a.prepare(h, b, OpReadBuffer, payload{
		FD: fd, Offset: offset, NBytes: nbytes, Buf: buf,
		Tag: tag, BufferNo: bufferNo, ReadMode: mode,
	})
}

// StartWriteBuffer stages a buffered-page write.
func (a *AIO) StartWriteBuffer(h *Handle, tag RelationTag, fd int, offset int64, nbytes uint32, buf []byte, bufferNo uint32) {
	b := a.backendState(BackendID(h.Owner()))
	a.prepare(h, b, OpWriteBuffer, payload{
		FD: fd, Offset: offset, NBytes: nbytes, Buf: buf,
		Tag: tag, BufferNo: bufferNo,
	})
}

// StartWriteWAL stages a WAL segment write.
func (a *AIO) StartWriteWAL(h *Handle, fd int, segNo uint32, offset int64, nbytes uint32, buf []byte, noReorder bool, writeNo uint64) {
	b := a.backendState(BackendID(h.Owner()))
	a.prepare(h, b, OpWriteWAL, payload{
		FD: fd, Offset: offset, NBytes: nbytes, Buf: buf,
		SegNo: segNo, NoReorder: noReorder, WriteNo: writeNo,
	})
}

// StartWriteGeneric stages a generic (non-buffer, non-WAL) write.
func (a *AIO) StartWriteGeneric(h *Handle, fd int, offset int64, nbytes uint32, buf []byte, noReorder bool) {
	b := a.backendState(BackendID(h.Owner()))
	a.prepare(h, b, OpWriteGeneric, payload{
		FD: fd, Offset: offset, NBytes: nbytes, Buf: buf, NoReorder: noReorder,
	})
}

// StartFsync stages an fsync.
func (a *AIO) StartFsync(h *Handle, fd int, segNo uint32, barrier bool) {
	b := a.backendState(BackendID(h.Owner()))
	a.prepare(h, b, OpFsync, payload{FD: fd, SegNo: segNo, Barrier: barrier})
}

// StartFdatasync stages an fdatasync (fsync with Datasync set).
func (a *AIO) StartFdatasync(h *Handle, fd int, segNo uint32, barrier bool) {
	b := a.backendState(BackendID(h.Owner()))
	a.prepare(h, b, OpFsync, payload{FD: fd, SegNo: segNo, Barrier: barrier, Datasync: true})
}

// StartFsyncWAL stages a WAL-segment fsync, notifying XLogFlushComplete
// on success.
func (a *AIO) StartFsyncWAL(h *Handle, fd int, segNo uint32, barrier, datasync bool, flushNo uint64) {
	b := a.backendState(BackendID(h.Owner()))
	a.prepare(h, b, OpFsyncWAL, payload{
		FD: fd, SegNo: segNo, Barrier: barrier, Datasync: datasync, FlushNo: flushNo,
	})
}

// StartFlushRange stages an advisory flush-range hint.
func (a *AIO) StartFlushRange(h *Handle, fd int, offset int64, nbytes uint32) {
	b := a.backendState(BackendID(h.Owner()))
	a.prepare(h, b, OpFlushRange, payload{FD: fd, Offset: offset, NBytes: nbytes})
}

// StartNop stages a no-op, useful for exercising the pipeline without
// touching a real fd.
func (a *AIO) StartNop(h *Handle) {
	b := a.backendState(BackendID(h.Owner()))
	a.prepare(h, b, OpNop, payload{})
}

// OnCompletionLocal registers a per-I/O callback invoked once h reaches
// its owner's local_completed list (spec.md §6).
func (a *AIO) OnCompletionLocal(h *Handle, cb LocalCompletionFunc, ctx any) {
	h.mu.Lock()
	h.localCallback = cb
	h.localCallbackCtx = ctx
	h.mu.Unlock()
}

// AssocBounce associates a bounce buffer with h, for providers that
// can't DMA to the caller's own address.
func (a *AIO) AssocBounce(h *Handle, bb *BounceBuffer) {
	h.mu.Lock()
	h.bounce = bb
	h.mu.Unlock()
}

// BounceGet allocates a bounce buffer from the shared pool, or nil if
// none are free.
func (a *AIO) BounceGet() *BounceBuffer {
	a.slab.mu.Lock()
	defer a.slab.mu.Unlock()
	return a.slab.bounce.get()
}

// BounceRelease drops a reference to bb, returning it to the pool once
// its refcount reaches zero.
func (a *AIO) BounceRelease(bb *BounceBuffer) {
	a.releaseBounce(bb)
}

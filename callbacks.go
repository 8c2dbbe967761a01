package aio

import (
	"syscall"
	"time"
)

// runSharedCallback runs the per-op-kind shared-phase completion logic
// (spec.md §4.9) and reports whether h is finished. A false return
// means h needs a caller-driven Retry before it can be considered done.
func (a *AIO) runSharedCallback(h *Handle) bool {
	h.mu.Lock()
	op := h.op
	result := h.result
	p := h.payload
	since := h.submittedAt
	h.mu.Unlock()

	latency := time.Duration(0)
	if !since.IsZero() {
		latency = time.Since(since)
	}

	switch op {
	case OpNop:
		return true
	case OpFlushRange:
		return true
	case OpFsync, OpFsyncWAL:
		return a.finishFsync(h, op, result, p, latency)
	case OpReadBuffer:
		return a.finishBufferOp(h, result, p, true, latency)
	case OpWriteBuffer:
		return a.finishBufferOp(h, result, p, false, latency)
	case OpWriteWAL:
		return a.finishWriteWAL(h, result, p, latency)
	case OpWriteGeneric:
		return a.finishWriteGeneric(h, result, p, latency)
	default:
		return true
	}
}

// finishFsync handles FSYNC and FSYNC_WAL: any negative result is
// durability-threatening and goes through reportHardFailure rather than
// the retry path (spec.md §4.9 "fsync variants never retry").
func (a *AIO) finishFsync(h *Handle, op OpKind, result int64, p payload, latency time.Duration) bool {
	if result < 0 {
		a.reportHardFailure(h, "fsync", result)
		if a.metrics != nil {
			a.metrics.ObserveFsync(latency, false)
		}
		return true
	}
	if op == OpFsyncWAL && a.collab.WAL != nil {
		a.collab.WAL.XLogFlushComplete(h, p.FlushNo)
	}
	if a.metrics != nil {
		a.metrics.ObserveFsync(latency, true)
	}
	return true
}

// finishBufferOp handles READ_BUFFER and WRITE_BUFFER: a transient
// errno (EAGAIN/EINTR) or a short transfer is a soft failure that leaves
// the handle unfinished for Retry; transient errnos count against
// Config.MaxEintrRetries and become a hard failure once it is reached;
// anything else is terminal (spec.md §4.9, §9 "bounded EAGAIN/EINTR
// retry").
func (a *AIO) finishBufferOp(h *Handle, result int64, p payload, isRead bool, latency time.Duration) bool {
	if result < 0 {
		errno := syscall.Errno(-result)
		h.mu.Lock()
		retries := h.retryCount
		h.mu.Unlock()

		if isTransientErrno(errno) && int(retries) < a.cfg.MaxEintrRetries {
			h.mu.Lock()
			h.retryCount++
			h.flags |= flagSoftFailure
			h.mu.Unlock()
			return false
		}

		h.mu.Lock()
		h.flags |= flagHardFailure
		idx := h.index
		ringID := h.ringID
		h.mu.Unlock()

		op := "read_buffer"
		if !isRead {
			op = "write_buffer"
		}
		err := WrapErrno(op, idx, result)
		if a.log != nil {
			a.log.ForHandle(idx, op, ringID).Warnf("buffer hard failure: block=%d fd=%d relation=%+v: %v", p.BufferNo, p.FD, p.Tag, err)
		}
		a.notifyBuffer(p, isRead, true)
		a.observeBufferOutcome(isRead, 0, latency, false)
		return true
	}

	wanted := int64(p.NBytes) - int64(p.AlreadyDone)
	if result < wanted {
		h.mu.Lock()
		h.payload.AlreadyDone += uint32(result)
		h.flags |= flagSoftFailure
		h.mu.Unlock()
		return false
	}

	a.notifyBuffer(p, isRead, false)
	a.observeBufferOutcome(isRead, uint64(p.NBytes), latency, true)
	return true
}

func (a *AIO) notifyBuffer(p payload, isRead, failed bool) {
	if a.collab.Buffers == nil {
		return
	}
	if isRead {
		a.collab.Buffers.ReadBufferCompleteRead(p.BufferNo, p.ReadMode, failed)
	} else {
		a.collab.Buffers.ReadBufferCompleteWrite(p.BufferNo, failed)
	}
}

func (a *AIO) observeBufferOutcome(isRead bool, bytes uint64, latency time.Duration, success bool) {
	if a.metrics == nil {
		return
	}
	if isRead {
		a.metrics.ObserveRead(bytes, latency, success)
	} else {
		a.metrics.ObserveWrite(bytes, latency, success)
	}
}

// finishWriteWAL handles WRITE_WAL: any negative result or short write
// is fatal, never retried, matching the WAL's need for writes to either
// fully land or bring the backend down (spec.md §4.9).
func (a *AIO) finishWriteWAL(h *Handle, result int64, p payload, latency time.Duration) bool {
	wanted := int64(p.NBytes) - int64(p.AlreadyDone)
	if result < 0 || result < wanted {
		a.reportHardFailure(h, "write_wal", result)
		if a.metrics != nil {
			a.metrics.ObserveWrite(0, latency, false)
		}
		return true
	}
	if a.collab.WAL != nil {
		a.collab.WAL.XLogWriteComplete(h, p.WriteNo)
	}
	if a.metrics != nil {
		a.metrics.ObserveWrite(uint64(p.NBytes), latency, true)
	}
	return true
}

// finishWriteGeneric handles WRITE_GENERIC the same way as WRITE_WAL,
// minus the WAL notification (spec.md §4.9).
func (a *AIO) finishWriteGeneric(h *Handle, result int64, p payload, latency time.Duration) bool {
	wanted := int64(p.NBytes) - int64(p.AlreadyDone)
	if result < 0 || result < wanted {
		a.reportHardFailure(h, "write_generic", result)
		if a.metrics != nil {
			a.metrics.ObserveWrite(0, latency, false)
		}
		return true
	}
	if a.metrics != nil {
		a.metrics.ObserveWrite(uint64(p.NBytes), latency, true)
	}
	return true
}

// reportHardFailure marks h HARD_FAILURE and routes the error through
// FatalHook if one is configured, or the logger otherwise. This package
// never calls os.Exit or panics on the embedder's behalf (spec.md §7).
func (a *AIO) reportHardFailure(h *Handle, op string, result int64) {
	h.mu.Lock()
	h.flags |= flagHardFailure
	idx := h.index
	owner := h.owner
	ringID := h.ringID
	h.mu.Unlock()

	var err *Error
	if result < 0 {
		err = WrapErrno(op, idx, result)
	} else {
		err = NewHandleError(op, idx, owner, ErrCodeHardFailure, "short write treated as durability failure")
	}

	if a.cfg.FatalHook != nil {
		a.cfg.FatalHook(err)
		return
	}
	if a.log != nil {
		a.log.ForHandle(idx, op, ringID).Errorf("durability-threatening I/O failure: %v", err)
	}
}

func isTransientErrno(errno syscall.Errno) bool {
	return errno == syscall.EAGAIN || errno == syscall.EINTR
}

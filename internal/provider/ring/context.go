package ring

import (
	"sync"
	"time"

	"github.com/pawelgaczynski/giouring"
	"golang.org/x/sys/unix"

	"github.com/dbkit/aio"
	"github.com/dbkit/aio/internal/logging"
)

// ringContext owns one io_uring instance plus the background goroutine
// that reaps its completion queue. Submission is serialized per context
// with a plain mutex: the kernel ring itself is single-writer, and
// Provider already spreads load across contexts before any one of them
// sees contention (spec.md §4.6).
type ringContext struct {
	ring *giouring.Ring

	mu sync.Mutex

	complete aio.CompletionFunc
	log      *logging.Logger

	closeOnce sync.Once
	stop      chan struct{}
	stopped   chan struct{}
}

func newRingContext(depth int, complete aio.CompletionFunc, log *logging.Logger) (*ringContext, error) {
	if depth <= 0 {
		depth = 256
	}
	r, err := giouring.CreateRing(uint32(depth))
	if err != nil {
		return nil, aio.NewError("ring_init", aio.ErrCodeProviderInit, err.Error())
	}

	rc := &ringContext{
		ring:     r,
		complete: complete,
		log:      log,
		stop:     make(chan struct{}),
		stopped:  make(chan struct{}),
	}
	go rc.reapLoop()
	return rc, nil
}

// submit prepares one SQE per chain head and bumps the SQ tail once for
// the whole batch, matching spec.md §4.3's "batch submission, per-chain
// completion" shape.
func (rc *ringContext) submit(heads []*aio.Handle) error {
	rc.mu.Lock()
	defer rc.mu.Unlock()

	for _, head := range heads {
		sqe := rc.ring.GetSQE()
		if sqe == nil {
			if _, err := rc.ring.Submit(); err != nil {
				return aio.NewError("submit", aio.ErrCodeSubmitFailed, err.Error())
			}
			sqe = rc.ring.GetSQE()
			if sqe == nil {
				return aio.NewError("submit", aio.ErrCodeSubmitFailed, "submission queue saturated")
			}
		}
		prepareSQE(sqe, head)
		sqe.UserData = handlePtr(head)
	}

	sfence()
	if _, err := rc.ring.Submit(); err != nil {
		return aio.NewError("submit", aio.ErrCodeSubmitFailed, err.Error())
	}
	mfence()
	return nil
}

// prepareSQE renders a chain head's merged payload as a single SQE, one
// readv/writev/fsync/nop opcode per aio.OpKind.
func prepareSQE(sqe *giouring.SubmissionQueueEntry, head *aio.Handle) {
	chain := head.Chain()
	fd := int32(head.FD())
	off := uint64(head.Offset())

	switch head.Op() {
	case aio.OpNop:
		sqe.PrepareNop()
	case aio.OpReadBuffer:
		sqe.PrepareReadv(fd, toIovecs(chain), off)
	case aio.OpWriteBuffer, aio.OpWriteWAL, aio.OpWriteGeneric:
		sqe.PrepareWritev(fd, toIovecs(chain), off)
	case aio.OpFsync, aio.OpFsyncWAL:
		var flags uint32
		if head.Datasync() {
			flags = giouring.FsyncDatasync
		}
		sqe.PrepareFsync(fd, flags)
	case aio.OpFlushRange:
		sqe.PrepareSyncFileRange(fd, uint32(head.NBytes()), off, unix.SYNC_FILE_RANGE_WRITE)
	default:
		sqe.PrepareNop()
	}
}

func toIovecs(chain []*aio.Handle) []unix.Iovec {
	iovs := make([]unix.Iovec, 0, len(chain))
	for _, h := range chain {
		buf := h.Buf()
		var iov unix.Iovec
		if len(buf) > 0 {
			iov.Base = &buf[0]
		}
		iov.SetLen(len(buf))
		iovs = append(iovs, iov)
	}
	return iovs
}

// drain services cqes already posted (wait=false) or blocks for at
// least one (wait=true, honoring timeout via WaitCQETimeout).
func (rc *ringContext) drain(wait bool, timeout time.Duration) (int, error) {
	n := 0
	for {
		var cqe *giouring.CompletionQueueEvent
		var err error
		if wait && n == 0 {
			if timeout > 0 {
				var ts unix.Timespec
				ts.Sec = int64(timeout / time.Second)
				ts.Nsec = int64(timeout % time.Second)
				cqe, err = rc.ring.WaitCQETimeout(&ts)
			} else {
				cqe, err = rc.ring.WaitCQE()
			}
		} else {
			cqe, err = rc.ring.PeekCQE()
		}
		if err != nil || cqe == nil {
			break
		}
		rc.handleCQE(cqe)
		n++
	}
	return n, nil
}

func (rc *ringContext) handleCQE(cqe *giouring.CompletionQueueEvent) {
	h := handleFromPtr(cqe.UserData)
	res := int64(cqe.Res)
	rc.ring.CQESeen(cqe)
	if h != nil {
		rc.complete(h, res)
	}
}

// reapLoop blocks on the ring's completion queue until close, reporting
// every completion through rc.complete as it arrives. This is what lets
// a foreign backend's handle become reaped even when no backend thread
// is actively calling Wait on it (spec.md §4.4 "shared-phase reaping").
func (rc *ringContext) reapLoop() {
	defer close(rc.stopped)
	for {
		select {
		case <-rc.stop:
			return
		default:
		}

		rc.mu.Lock()
		ts := unix.NsecToTimespec(int64(100 * time.Millisecond))
		cqe, err := rc.ring.WaitCQETimeout(&ts)
		if err != nil {
			if !isTimeoutErrno(err) && rc.log != nil {
				rc.log.Warnf("ring wait failed: %v", err)
			}
		} else if cqe != nil {
			rc.handleCQE(cqe)
		}
		rc.mu.Unlock()
	}
}

// isTimeoutErrno reports whether err is the ETIME a WaitCQETimeout
// deadline expiring with nothing posted yields, which the reap loop
// treats as routine rather than worth logging.
func isTimeoutErrno(err error) bool {
	errno, ok := err.(unix.Errno)
	return ok && errno == unix.ETIME
}

func (rc *ringContext) close() error {
	rc.closeOnce.Do(func() {
		close(rc.stop)
		<-rc.stopped
		rc.ring.QueueExit()
	})
	return nil
}

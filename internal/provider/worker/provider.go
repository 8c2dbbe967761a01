package worker

import (
	"sync"
	"time"

	"golang.org/x/sys/unix"

	"github.com/dbkit/aio"
	"github.com/dbkit/aio/internal/logging"
)

func init() {
	aio.RegisterProvider(aio.ProviderWorker, New)
}

// Provider dispatches each submitted merge chain to the pool as one
// blocking-syscall closure. It is grounded on the teacher's per-queue
// Runner (internal/queue/runner.go): that runner pinned one OS thread
// per hardware queue and drove a state machine off io_uring CQEs; this
// provider has no hardware queue to honor, so it generalizes to a
// plain goroutine pool where each goroutine just makes the blocking
// syscall directly, parking the scheduler while it's in the kernel
// instead of juggling a completion ring.
type Provider struct {
	complete aio.CompletionFunc
	log      *logging.Logger
	pool     *pool

	closingMu sync.RWMutex
	closing   bool
}

// New constructs the worker-pool provider. It satisfies
// aio.ProviderFactory.
func New(cfg *aio.Config, complete aio.CompletionFunc, log *logging.Logger) (aio.Provider, error) {
	p := &Provider{
		complete: complete,
		log:      log,
		pool:     newPool(cfg.Workers, cfg.WorkerQueueSize),
	}
	return p, nil
}

// Submit hands each chain head to the pool; the pool worker that picks
// it up runs the whole chain's syscall and reports through complete.
func (p *Provider) Submit(heads []*aio.Handle) error {
	p.closingMu.RLock()
	defer p.closingMu.RUnlock()
	if p.closing {
		return aio.NewError("submit", aio.ErrCodeSubmitFailed, "provider is closing")
	}
	for _, head := range heads {
		head := head
		p.pool.submit(func() { p.runChain(head) })
	}
	return nil
}

// Drain is a no-op for this provider: completions are reported
// directly from the worker goroutine that ran the syscall, so there is
// no separate reaping step for the caller to pump.
func (p *Provider) Drain(aio.BackendID, bool, time.Duration) (int, error) {
	return 0, nil
}

// WaitOne blocks on h's own condition variable, which the core
// completion pipeline broadcasts once h is finalized.
func (p *Provider) WaitOne(h *aio.Handle) error {
	h.Lock()
	defer h.Unlock()
	for !h.IsDone() {
		h.Cond().Wait()
	}
	return nil
}

// ChildInit has nothing to do for a pure in-process worker pool; every
// backend shares the same pool and fd table.
func (p *Provider) ChildInit(aio.BackendID) error { return nil }

// ClosingFd has nothing to drain proactively: in-flight syscalls
// against fd will simply fail or complete on their own, and the
// backend is expected to have waited out its own handles first.
func (p *Provider) ClosingFd(int) error { return nil }

// Close stops accepting new submissions and lets queued work drain.
func (p *Provider) Close() error {
	p.closingMu.Lock()
	p.closing = true
	p.closingMu.Unlock()
	p.pool.close()
	return nil
}

// runChain performs h's (and its merge-chain members') syscall and
// reports the combined result back to the core.
func (p *Provider) runChain(head *aio.Handle) {
	chain := head.Chain()
	result := p.execute(head.Op(), chain)
	p.complete(head, result)
}

func (p *Provider) execute(op aio.OpKind, chain []*aio.Handle) int64 {
	switch op {
	case aio.OpNop:
		return 0
	case aio.OpReadBuffer:
		return readv(chain)
	case aio.OpWriteBuffer, aio.OpWriteWAL, aio.OpWriteGeneric:
		return writev(chain)
	case aio.OpFsync, aio.OpFsyncWAL:
		return fsyncOne(chain[0])
	case aio.OpFlushRange:
		return flushRange(chain[0])
	default:
		return -int64(unix.EINVAL)
	}
}

func readv(chain []*aio.Handle) int64 {
	fd := chain[0].FD()
	off := chain[0].Offset()
	iovs := getIovecScratch(len(chain))
	defer putIovecScratch(iovs)
	for _, h := range chain {
		*iovs = append(*iovs, h.Buf())
	}
	n, err := unix.Preadv(fd, *iovs, off)
	if err != nil {
		return errnoResult(err)
	}
	return int64(n)
}

func writev(chain []*aio.Handle) int64 {
	fd := chain[0].FD()
	off := chain[0].Offset()
	iovs := getIovecScratch(len(chain))
	defer putIovecScratch(iovs)
	for _, h := range chain {
		*iovs = append(*iovs, h.Buf())
	}
	n, err := unix.Pwritev(fd, *iovs, off)
	if err != nil {
		return errnoResult(err)
	}
	return int64(n)
}

func fsyncOne(h *aio.Handle) int64 {
	fd := h.FD()
	var err error
	if h.Datasync() {
		err = unix.Fdatasync(fd)
	} else {
		err = unix.Fsync(fd)
	}
	if err != nil {
		return errnoResult(err)
	}
	return 0
}

func flushRange(h *aio.Handle) int64 {
	fd := h.FD()
	err := unix.SyncFileRange(fd, h.Offset(), int64(h.NBytes()), unix.SYNC_FILE_RANGE_WRITE)
	if err != nil {
		return errnoResult(err)
	}
	return 0
}

// errnoResult converts a syscall error into the negative-errno result
// the core completion pipeline expects.
func errnoResult(err error) int64 {
	if errno, ok := err.(unix.Errno); ok {
		return -int64(errno)
	}
	return -int64(unix.EIO)
}

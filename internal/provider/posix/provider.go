//go:build linux && cgo

package posix

import (
	"sync"
	"time"

	"golang.org/x/sys/unix"

	"github.com/dbkit/aio"
	"github.com/dbkit/aio/internal/logging"
)

func init() {
	aio.RegisterProvider(aio.ProviderPosix, New)
}

// completionSignal is the dedicated realtime signal POSIX AIO notifies
// on. The Go runtime itself claims the first few real-time signals, so
// this sits a few slots above SIGRTMIN.
var completionSignal = unix.SIGRTMIN() + 4

// Provider implements signal-driven POSIX AIO (spec.md §4.7). Unlike
// the kernel-ring and worker providers, POSIX AIO control blocks are
// single-buffer: a merge chain is not submitted as one vectored
// syscall, it is fanned out into one aiocb per chain member and
// recombined here once every member completes — the provider-local
// equivalent of spec.md's uncombine step, needed because this
// provider's ScatterGather capability is false.
type Provider struct {
	complete aio.CompletionFunc
	log      *logging.Logger
	queue    *completionQueue

	stop    chan struct{}
	stopped chan struct{}
}

// New installs the completion signal handler and starts the background
// drain loop. It satisfies aio.ProviderFactory.
func New(cfg *aio.Config, complete aio.CompletionFunc, log *logging.Logger) (aio.Provider, error) {
	if err := installHandler(completionSignal); err != nil {
		return nil, aio.NewError("ring_init", aio.ErrCodeProviderInit, err.Error())
	}

	p := &Provider{
		complete: complete,
		log:      log,
		queue:    newCompletionQueue(),
		stop:     make(chan struct{}),
		stopped:  make(chan struct{}),
	}
	go p.drainLoop()
	return p, nil
}

type chainState struct {
	mu        sync.Mutex
	head      *aio.Handle
	remaining int32
	total     int64
	failed    bool
	failedRes int64
}

type memberOp struct {
	cb    *cAiocb
	chain *chainState
}

// Submit fans every chain out to one aiocb per member.
func (p *Provider) Submit(heads []*aio.Handle) error {
	for _, head := range heads {
		chain := head.Chain()
		cs := &chainState{head: head, remaining: int32(len(chain))}
		for _, h := range chain {
			if err := p.submitOne(h, cs); err != nil {
				p.failMember(cs, submitErrResult(err))
			}
		}
	}
	return nil
}

func (p *Provider) submitOne(h *aio.Handle, cs *chainState) error {
	cb := allocCB()
	tok := p.queue.register(&memberOp{cb: cb, chain: cs})

	var err error
	switch h.Op() {
	case aio.OpNop:
		freeCB(cb)
		p.queue.take(tok)
		p.completeMember(cs, 0)
		return nil
	case aio.OpReadBuffer:
		err = submitRead(cb, h.FD(), h.Buf(), h.Offset(), completionSignal, tok)
	case aio.OpWriteBuffer, aio.OpWriteWAL, aio.OpWriteGeneric:
		err = submitWrite(cb, h.FD(), h.Buf(), h.Offset(), completionSignal, tok)
	case aio.OpFsync, aio.OpFsyncWAL:
		err = submitFsync(cb, h.FD(), h.Datasync(), completionSignal, tok)
	default:
		err = unix.EOPNOTSUPP
	}
	if err != nil {
		freeCB(cb)
		p.queue.take(tok)
	}
	return err
}

// Drain pumps the completion ring; wait blocks up to timeout for at
// least one completion.
func (p *Provider) Drain(owner aio.BackendID, wait bool, timeout time.Duration) (int, error) {
	n := p.queue.drainAvailable(p.handleToken)
	if n > 0 || !wait {
		return n, nil
	}
	deadline := time.Now().Add(timeout)
	for timeout <= 0 || time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
		if got := p.queue.drainAvailable(p.handleToken); got > 0 {
			return got, nil
		}
	}
	return 0, nil
}

// WaitOne blocks the calling backend on h's own condition variable;
// the drain loop goroutine is what actually advances h to done via the
// core completion pipeline's Broadcast.
func (p *Provider) WaitOne(h *aio.Handle) error {
	h.Lock()
	defer h.Unlock()
	for !h.IsDone() {
		h.Cond().Wait()
	}
	return nil
}

func (p *Provider) ChildInit(aio.BackendID) error { return nil }
func (p *Provider) ClosingFd(int) error           { return nil }

func (p *Provider) Close() error {
	close(p.stop)
	<-p.stopped
	return nil
}

// drainLoop is the sole consumer of the signal-fed ring; it decouples
// the async-signal-safe producer from aiocb bookkeeping and the core
// completion callback, neither of which is safe to run from the
// handler itself.
func (p *Provider) drainLoop() {
	defer close(p.stopped)
	ticker := time.NewTicker(200 * time.Microsecond)
	defer ticker.Stop()
	for {
		select {
		case <-p.stop:
			return
		case <-ticker.C:
			p.queue.drainAvailable(p.handleToken)
		}
	}
}

func (p *Provider) handleToken(tok uint64) {
	op, ok := p.queue.take(tok)
	if !ok {
		return
	}
	n, errno, pending := fetchResult(op.cb)
	if pending {
		// aio_error reported EINPROGRESS; re-register and wait for the
		// next signal (can happen if the ring delivered the token
		// before the kernel finished updating the control block).
		p.queue.reregister(tok, op)
		return
	}
	freeCB(op.cb)
	if errno != 0 {
		p.failMember(op.chain, -int64(errno))
		return
	}
	p.completeMember(op.chain, n)
}

func (p *Provider) completeMember(cs *chainState, n int64) {
	cs.mu.Lock()
	if !cs.failed {
		cs.total += n
	}
	cs.remaining--
	done := cs.remaining == 0
	result := cs.total
	if cs.failed {
		result = cs.failedRes
	}
	cs.mu.Unlock()
	if done {
		p.complete(cs.head, result)
	}
}

func (p *Provider) failMember(cs *chainState, errno int64) {
	cs.mu.Lock()
	if !cs.failed {
		cs.failed = true
		cs.failedRes = errno
	}
	cs.remaining--
	done := cs.remaining == 0
	result := cs.failedRes
	cs.mu.Unlock()
	if done {
		p.complete(cs.head, result)
	}
}

func submitErrResult(err error) int64 {
	if errno, ok := err.(unix.Errno); ok {
		return -int64(errno)
	}
	return -int64(unix.EIO)
}

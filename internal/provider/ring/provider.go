// Package ring implements the aio.Provider backed by one or more
// kernel io_uring completion rings via github.com/pawelgaczynski/giouring,
// the teacher's own direct dependency (go.mod) that its hand-rolled
// internal/uring client (now dropped — see DESIGN.md) had been
// shadowing instead of using.
package ring

import (
	"sync/atomic"
	"time"
	"unsafe"

	"github.com/dbkit/aio"
	"github.com/dbkit/aio/internal/logging"
)

func init() {
	aio.RegisterProvider(aio.ProviderKernelRing, New)
}

// Provider dispatches submitted merge chains across Config.RingContexts
// independent io_uring instances, each reaped by its own background
// goroutine (spec.md §4.6). Round-robin assignment spreads submission
// lock contention across rings the way a multi-queue NVMe device
// spreads I/O across hardware queues.
type Provider struct {
	complete aio.CompletionFunc
	log      *logging.Logger

	rings []*ringContext
	next  atomic.Uint32
}

// New constructs the kernel-ring provider. It satisfies
// aio.ProviderFactory.
func New(cfg *aio.Config, complete aio.CompletionFunc, log *logging.Logger) (aio.Provider, error) {
	n := cfg.RingContexts
	if n <= 0 {
		n = 1
	}
	p := &Provider{complete: complete, log: log}
	for i := 0; i < n; i++ {
		rc, err := newRingContext(cfg.MaxInFlight, complete, log)
		if err != nil {
			p.Close()
			return nil, err
		}
		p.rings = append(p.rings, rc)
	}
	return p, nil
}

func (p *Provider) pick() *ringContext {
	i := p.next.Add(1) - 1
	return p.rings[int(i)%len(p.rings)]
}

// Submit issues one SQE per chain head (a merged chain becomes one
// multi-segment op via the head's own Chain(), flattened into a single
// readv/writev-shaped SQE by prepareSQE).
func (p *Provider) Submit(heads []*aio.Handle) error {
	rc := p.pick()
	return rc.submit(heads)
}

// Drain pumps every ring's completion queue in turn, blocking on each
// up to timeout when wait is true; owner is unused since rings aren't
// partitioned by backend, only round-robin assigned per submission.
func (p *Provider) Drain(owner aio.BackendID, wait bool, timeout time.Duration) (int, error) {
	total := 0
	for _, rc := range p.rings {
		n, err := rc.drain(wait, timeout)
		if err != nil {
			return total, err
		}
		total += n
	}
	return total, nil
}

// WaitOne blocks on h's own condition variable; the ring that services
// h will have already broadcast it via the core completion pipeline by
// the time any caller reaches here through the normal Submit→complete
// path, so this provider does not need ring-specific wait plumbing.
func (p *Provider) WaitOne(h *aio.Handle) error {
	h.Lock()
	defer h.Unlock()
	for !h.IsDone() {
		h.Cond().Wait()
	}
	return nil
}

// ChildInit has nothing ring-specific to do: every backend shares the
// same set of rings and fd table.
func (p *Provider) ChildInit(aio.BackendID) error { return nil }

// ClosingFd has no ring-specific cancellation; in-flight SQEs against
// fd complete or fail on their own once the fd is closed.
func (p *Provider) ClosingFd(int) error { return nil }

// Close tears down every ring context.
func (p *Provider) Close() error {
	var first error
	for _, rc := range p.rings {
		if err := rc.close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}

// handlePtr/handleFromPtr round-trip a *aio.Handle through a CQE's
// 64-bit UserData field. Heap-allocated Go values aren't relocated by
// the collector once escaped, so the address stays valid for as long
// as something else (the owning backend's issued list) keeps h
// reachable — which it does until this exact completion fires.
func handlePtr(h *aio.Handle) uint64 {
	return uint64(uintptr(unsafe.Pointer(h)))
}

func handleFromPtr(ud uint64) *aio.Handle {
	return (*aio.Handle)(unsafe.Pointer(uintptr(ud)))
}

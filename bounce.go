package aio

import "sync/atomic"

// BounceBuffer is a fixed-size block of shared memory usable when a
// provider can't DMA to or from the caller's own address (spec.md §3).
type BounceBuffer struct {
	data     []byte
	refcount atomic.Int32
	next     *BounceBuffer // free-list link, guarded by Slab.mu
}

// Bytes returns the buffer's backing storage.
func (b *BounceBuffer) Bytes() []byte { return b.data }

// bouncePool is a fixed free list of pinned buffers. Unlike the scratch
// buffers a provider allocates for iovec bookkeeping, a bounce buffer's
// address must stay stable for as long as a syscall may be holding it,
// which rules out sync.Pool (the GC may reclaim or the caller may reslice
// a pooled []byte out from under an in-flight operation) — see DESIGN.md
// "Deviations".
type bouncePool struct {
	size int
	free *BounceBuffer
	all  []*BounceBuffer
}

func newBouncePool(count, size int) *bouncePool {
	p := &bouncePool{size: size, all: make([]*BounceBuffer, count)}
	var head *BounceBuffer
	for i := count - 1; i >= 0; i-- {
		bb := &BounceBuffer{data: make([]byte, size)}
		bb.next = head
		head = bb
		p.all[i] = bb
	}
	p.free = head
	return p
}

// get pops a buffer off the free list. Caller holds Slab.mu.
func (p *bouncePool) get() *BounceBuffer {
	bb := p.free
	if bb == nil {
		return nil
	}
	p.free = bb.next
	bb.next = nil
	bb.refcount.Store(1)
	return bb
}

// put returns bb to the free list once its refcount has reached zero.
// Caller holds Slab.mu.
func (p *bouncePool) put(bb *BounceBuffer) {
	bb.next = p.free
	p.free = bb
}

// release decrements bb's refcount and, if it reaches zero, returns it to
// the pool (spec.md §5 "Bounce-buffer refcount is atomic; release returns
// to free list when it reaches zero under the global lock").
func (a *AIO) releaseBounce(bb *BounceBuffer) {
	if bb.refcount.Add(-1) != 0 {
		return
	}
	a.slab.mu.Lock()
	a.slab.bounce.put(bb)
	a.slab.mu.Unlock()
}

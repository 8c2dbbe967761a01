package aio

import (
	"sync"
	"sync/atomic"
	"time"
)

// Slab is the shared array of I/O descriptors plus the process-global
// bookkeeping around it (spec.md §3 "Global control"). All of Slab's
// mutable bookkeeping — the free list, used count, and the retry queue —
// is guarded by mu, the AioCtlLock equivalent from spec.md §5, held only
// across short list splices.
type Slab struct {
	mu sync.Mutex

	handles []*Handle
	free    *handleList // global free list (owner-list linkage reused)
	used    atomic.Int32

	// reapedUncompleted holds handles whose shared callback reported
	// "not finished" and set SHARED_FAILED, awaiting a caller-driven
	// Retry (spec.md §4.4 step 3).
	reapedUncompleted *handleList

	bounce *bouncePool
}

func newSlab(cfg *Config) *Slab {
	s := &Slab{
		handles:           make([]*Handle, cfg.MaxInProgress),
		free:              newOwnerList(),
		reapedUncompleted: newIOList(),
		bounce:            newBouncePool(cfg.MaxBounceBuffers, cfg.BounceBufferSize),
	}
	for i := range s.handles {
		h := newHandle(int32(i))
		s.handles[i] = h
		s.free.PushBack(h)
	}
	return s
}

// at returns the handle at the given slot index, without regard to
// generation. Callers that need ABA-safety go through Reference.live.
func (s *Slab) at(index int32) *Handle { return s.handles[index] }

// Len returns the total number of slots in the slab.
func (s *Slab) Len() int { return len(s.handles) }

// Used returns the number of currently-allocated slots.
func (s *Slab) Used() int32 { return s.used.Load() }

// acquireSlot pops a handle off the global free list, or returns nil if
// none are free (spec.md §7 "Exhausted slots").
func (s *Slab) acquireSlot() *Handle {
	s.mu.Lock()
	defer s.mu.Unlock()
	h := s.free.PopFront()
	if h == nil {
		return nil
	}
	s.used.Add(1)
	return h
}

// releaseSlot returns h to the global free list and bumps its
// generation, invalidating any outstanding references (spec.md §3
// "Generation is advanced atomically with recycling"). Any bounce
// buffer h still holds is released back to the pool as part of the same
// recycle, not left for a caller to remember separately.
func (s *Slab) releaseSlot(h *Handle) {
	h.mu.Lock()
	bb := h.bounce
	h.state = stateUnused
	h.flags = 0
	h.owner = unownedBackend
	h.ringID = 0
	h.result = 0
	h.retryCount = 0
	h.submittedAt = time.Time{}
	h.mergeWith = nil
	h.bounce = nil
	h.localCallback = nil
	h.localCallbackCtx = nil
	h.providerScratch = nil
	h.payload = payload{}
	h.mu.Unlock()
	h.generation.Add(1)

	s.mu.Lock()
	if bb != nil && bb.refcount.Add(-1) == 0 {
		s.bounce.put(bb)
	}
	s.free.PushBack(h)
	s.used.Add(-1)
	s.mu.Unlock()
}

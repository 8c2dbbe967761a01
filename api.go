package aio

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/dbkit/aio/internal/logging"
)

// AIO is a configured instance of the subsystem: the shared slab, the
// active provider, and the registry of per-process backend states. It
// plays the role spec.md's "global control" plays (spec.md §3).
type AIO struct {
	cfg      *Config
	collab   Collaborators
	slab     *Slab
	provider Provider
	metrics  Observer
	log      *logging.Logger

	backendsMu    sync.RWMutex
	backends      map[BackendID]*BackendState
	nextBackendID atomic.Int32
}

// New constructs a subsystem instance with the given configuration and
// external collaborators, selecting and initializing the configured
// provider.
func New(cfg *Config, collab Collaborators) (*AIO, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	a := &AIO{
		cfg:      cfg,
		collab:   collab,
		slab:     newSlab(cfg),
		metrics:  cfg.Observer,
		log:      cfg.Logger,
		backends: make(map[BackendID]*BackendState),
	}
	if a.metrics == nil {
		a.metrics = NewMetrics()
	}

	factory, err := lookupProvider(cfg.ProviderKind)
	if err != nil {
		return nil, err
	}
	provider, err := factory(cfg, a.onProviderCompletion, a.log)
	if err != nil {
		return nil, err
	}
	a.provider = provider
	return a, nil
}

// Close tears down the active provider.
func (a *AIO) Close() error {
	return a.provider.Close()
}

// NewBackend registers a new process slot and runs the provider's
// per-backend init (spec.md §9 "child_init").
func (a *AIO) NewBackend() (*BackendState, error) {
	id := BackendID(a.nextBackendID.Add(1) - 1)
	b := newBackendState(id)

	a.backendsMu.Lock()
	a.backends[id] = b
	a.backendsMu.Unlock()

	if err := a.provider.ChildInit(id); err != nil {
		return nil, err
	}
	return b, nil
}

// backendState looks up a registered backend by id.
func (a *AIO) backendState(id BackendID) *BackendState {
	a.backendsMu.RLock()
	defer a.backendsMu.RUnlock()
	return a.backends[id]
}

// Acquire obtains a fresh handle for backend b, blocking on provider
// drains if the slab is momentarily exhausted (spec.md §6 "acquire",
// §7 "Exhausted slots": the acquirer drains every provider context once,
// then retries, rather than failing allocation).
func (a *AIO) Acquire(b *BackendState) *Handle {
	for {
		if h := b.unused.PopFront(); h != nil {
			a.beginAcquired(h, b)
			return h
		}
		if h := a.slab.acquireSlot(); h != nil {
			a.beginAcquired(h, b)
			return h
		}
		a.provider.Drain(b.id, false, 0)
		for _, other := range a.snapshotBackends() {
			a.provider.Drain(other.id, false, 0)
		}
		time.Sleep(time.Millisecond)
	}
}

func (a *AIO) snapshotBackends() []*BackendState {
	a.backendsMu.RLock()
	defer a.backendsMu.RUnlock()
	out := make([]*BackendState, 0, len(a.backends))
	for _, b := range a.backends {
		out = append(out, b)
	}
	return out
}

func (a *AIO) beginAcquired(h *Handle, b *BackendState) {
	h.mu.Lock()
	h.state = stateIdle
	h.userReferenced = true
	h.systemReferenced = false
	h.owner = int32(b.id)
	h.mu.Unlock()
	b.outstanding.PushBack(h)
}

// Release drops the caller's reference to h. If h is already DONE and
// unreferenced by the system, it is fully recycled back to UNUSED;
// otherwise it is left for the owner's normal completion path to recycle
// once the system reference is also dropped (spec.md §4.1 "DONE → UNUSED
// on release when not user_referenced").
func (a *AIO) Release(h *Handle) {
	h.mu.Lock()
	h.userReferenced = false
	owner := h.owner
	done := h.state == stateDone
	systemRef := h.systemReferenced
	h.mu.Unlock()

	b := a.backendState(BackendID(owner))
	if b != nil {
		removeFromOwnerList(b, h)
	}
	if done && !systemRef {
		a.slab.releaseSlot(h)
	}
}

// Recycle explicitly returns a DONE, unreferenced-by-system handle to
// UNUSED, bumping its generation (spec.md §4.1 "DONE → IDLE on
// recycle").
func (a *AIO) Recycle(h *Handle) {
	a.slab.releaseSlot(h)
}

// removeFromOwnerList takes h off whichever of the backend's owner-list
// lists it currently sits on (outstanding/issued/issuedAbandoned/unused).
func removeFromOwnerList(b *BackendState, h *Handle) {
	for _, l := range []*handleList{b.outstanding, b.issued, b.issuedAbandoned, b.unused} {
		if handleOnList(l, h) {
			l.Remove(h)
			return
		}
	}
}

// handleOnList reports whether h is currently linked into l, by walking
// l from its head.
func handleOnList(l *handleList, h *Handle) bool {
	for cur := l.head; cur != nil; cur = l.next(cur) {
		if cur == h {
			return true
		}
	}
	return false
}

// AtCommit flushes any pending I/O the backend staged and releases any
// user-referenced handles it leaked (spec.md §6 "At-commit / at-abort
// hooks").
func (a *AIO) AtCommit(b *BackendState) {
	a.SubmitPending(b)
	a.releaseLeaked(b)
}

// AtAbort behaves the same as AtCommit: pending I/O still completes
// (the subsystem provides no rollback of in-flight syscalls), and any
// leaked user references are dropped.
func (a *AIO) AtAbort(b *BackendState) {
	a.SubmitPending(b)
	a.releaseLeaked(b)
}

func (a *AIO) releaseLeaked(b *BackendState) {
	for {
		h := b.outstanding.Front()
		if h == nil {
			break
		}
		a.Release(h)
	}
}

package aio

import (
	"sync"
	"time"

	"github.com/dbkit/aio/internal/logging"
)

// syncProvider completes every submitted chain head immediately and
// synchronously with a caller-controlled result, for exercising the
// completion pipeline (merge/uncombine/shared-callback/retry routing)
// without a real syscall backing it. Grounded on the teacher's own
// MockBackend, generalized from one callback surface to the Provider
// vtable.
type syncProvider struct {
	mu       sync.Mutex
	result   int64
	results  map[int32]int64   // per-handle-index override, checked before result
	sequence map[int32][]int64 // per-handle-index result sequence, one entry consumed per submit
	submits  [][]*Handle
}

func newSyncProvider() *syncProvider {
	return &syncProvider{
		results:  make(map[int32]int64),
		sequence: make(map[int32][]int64),
	}
}

func (p *syncProvider) setResult(result int64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.result = result
}

func (p *syncProvider) setResultFor(index int32, result int64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.results[index] = result
}

// setResultSequence makes successive submits of the handle at index
// consume results one at a time (e.g. a short transfer followed by the
// retry's full one); the last entry repeats once exhausted.
func (p *syncProvider) setResultSequence(index int32, results ...int64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.sequence[index] = results
}

func (p *syncProvider) submitCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.submits)
}

func (p *syncProvider) Submit(heads []*Handle) error {
	p.mu.Lock()
	p.submits = append(p.submits, heads)
	p.mu.Unlock()
	return nil
}

func (p *syncProvider) Drain(BackendID, bool, time.Duration) (int, error) { return 0, nil }
func (p *syncProvider) WaitOne(h *Handle) error {
	h.Lock()
	defer h.Unlock()
	for !h.IsDone() {
		h.Cond().Wait()
	}
	return nil
}
func (p *syncProvider) ChildInit(BackendID) error { return nil }
func (p *syncProvider) ClosingFd(int) error       { return nil }
func (p *syncProvider) Close() error              { return nil }

// resultFor resolves the per-call result for h: a sequence entry first
// (consuming it), then a one-shot per-index override, then the
// provider's default.
func (p *syncProvider) resultFor(h *Handle) int64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	if seq, ok := p.sequence[h.index]; ok && len(seq) > 0 {
		next := seq[0]
		if len(seq) > 1 {
			p.sequence[h.index] = seq[1:]
		}
		return next
	}
	if r, ok := p.results[h.index]; ok {
		return r
	}
	return p.result
}

// newTestAIO builds an *AIO wired directly to a syncProvider, bypassing
// the ProviderKind registry entirely (an internal test file can't blank
// -import a provider package without creating an import cycle back into
// this package).
func newTestAIO(cfg *Config, collab Collaborators) (*AIO, *syncProvider) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	a := &AIO{
		cfg:      cfg,
		collab:   collab,
		slab:     newSlab(cfg),
		metrics:  NewMetrics(),
		log:      logging.NewLogger(logging.DefaultConfig()),
		backends: make(map[BackendID]*BackendState),
	}
	sp := newSyncProvider()
	a.provider = &drivingProvider{syncProvider: sp, a: a}
	return a, sp
}

// drivingProvider wraps syncProvider so Submit immediately drives the
// result the test configured through the real completion pipeline
// (onProviderCompletion), the way a real provider's background reaper
// would, but inline for deterministic tests.
type drivingProvider struct {
	*syncProvider
	a *AIO
}

func (d *drivingProvider) Submit(heads []*Handle) error {
	d.syncProvider.Submit(heads)
	for _, head := range heads {
		d.a.onProviderCompletion(head, d.resultFor(head))
	}
	return nil
}

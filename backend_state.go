package aio

import (
	"sync"
	"sync/atomic"
)

// BackendID identifies a process slot participating in the subsystem.
type BackendID int32

// BackendState holds one process's view of the shared slab: the handles
// it has acquired and where each sits in its lifecycle (spec.md §3
// "Per-backend state").
type BackendState struct {
	id BackendID

	// unused is this backend's local free cache; outstanding holds
	// user-held handles not yet submitted (or already drained);
	// pending holds staged-but-undispatched handles; issued and
	// issuedAbandoned hold in-flight handles depending on whether the
	// user reference was dropped; reaped holds completed-but-not-yet
	// -called-back handles; localCompleted holds handles whose shared
	// callback ran locally; foreignCompleted holds handles whose shared
	// callback ran in another process.
	unused          *handleList
	outstanding     *handleList
	pending         *handleList
	issued          *handleList
	issuedAbandoned *handleList
	reaped          *handleList
	localCompleted  *handleList

	foreignMu        sync.Mutex // guards foreignCompleted only (spec.md §5)
	foreignCompleted *handleList

	inflightCount atomic.Int32

	// Stats for the observability table (spec.md §6).
	stats BackendStats
}

// BackendStats are the per-backend counters surfaced by Stats()
// (spec.md §6 Observability).
type BackendStats struct {
	Executed         uint64
	Issued           uint64
	Submissions      uint64
	ForeignCompleted uint64
	Retries          uint64
}

func newBackendState(id BackendID) *BackendState {
	return &BackendState{
		id:               id,
		unused:           newOwnerList(),
		outstanding:      newOwnerList(),
		pending:          newIOList(),
		issued:           newOwnerList(),
		issuedAbandoned:  newOwnerList(),
		reaped:           newIOList(),
		localCompleted:   newIOList(),
		foreignCompleted: newIOList(),
	}
}

// ID returns the backend's process-slot id.
func (b *BackendState) ID() BackendID { return b.id }

// InflightCount returns the number of handles this backend currently has
// in flight with a provider.
func (b *BackendState) InflightCount() int32 { return b.inflightCount.Load() }

// Stats returns a snapshot of this backend's counters.
func (b *BackendState) Stats() BackendStats { return b.stats }

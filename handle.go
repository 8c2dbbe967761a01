package aio

import (
	"sync"
	"sync/atomic"
	"time"
)

// OpKind identifies the kind of operation a handle carries.
type OpKind uint8

const (
	OpInvalid OpKind = iota
	OpNop
	OpFsync
	OpFsyncWAL
	OpFlushRange
	OpReadBuffer
	OpWriteBuffer
	OpWriteWAL
	OpWriteGeneric
)

func (k OpKind) String() string {
	switch k {
	case OpNop:
		return "NOP"
	case OpFsync:
		return "FSYNC"
	case OpFsyncWAL:
		return "FSYNC_WAL"
	case OpFlushRange:
		return "FLUSH_RANGE"
	case OpReadBuffer:
		return "READ_BUFFER"
	case OpWriteBuffer:
		return "WRITE_BUFFER"
	case OpWriteWAL:
		return "WRITE_WAL"
	case OpWriteGeneric:
		return "WRITE_GENERIC"
	default:
		return "INVALID"
	}
}

// retryable reports whether the op kind may be resubmitted after a soft
// failure (spec.md §4.11: only buffer reads and writes are retryable).
func (k OpKind) retryable() bool {
	return k == OpReadBuffer || k == OpWriteBuffer
}

// fatalOnError reports whether any negative result for this op kind is
// treated as a durability-threatening hard failure (spec.md §4.9).
func (k OpKind) fatalOnError() bool {
	switch k {
	case OpFsync, OpFsyncWAL, OpWriteWAL, OpWriteGeneric:
		return true
	default:
		return false
	}
}

// state is a handle's dominant lifecycle state (spec.md §3 invariants:
// exactly one of UNUSED/IDLE/IN_PROGRESS/DONE holds at any time; Pending,
// Inflight and Reaped are the three IN_PROGRESS sub-states).
type state uint8

const (
	stateUnused state = iota
	stateIdle
	statePending
	stateInflight
	stateReaped
	stateDone
)

func (s state) inProgress() bool {
	return s == statePending || s == stateInflight || s == stateReaped
}

func (s state) String() string {
	switch s {
	case stateUnused:
		return "UNUSED"
	case stateIdle:
		return "IDLE"
	case statePending:
		return "PENDING"
	case stateInflight:
		return "INFLIGHT"
	case stateReaped:
		return "REAPED"
	case stateDone:
		return "DONE"
	default:
		return "?"
	}
}

// Event-marker flags, independent of the dominant state (spec.md §4.1).
type flags uint32

const (
	flagMerge flags = 1 << iota
	flagRetry
	flagHardFailure
	flagSoftFailure
	flagSharedFailed
	flagForeignDone
	flagPosixAIOReturned
	flagSharedCallbackCalled
	flagLocalCallbackCalled
)

func (f flags) has(bit flags) bool { return f&bit != 0 }

// ReadMode selects how a buffer read should be interpreted by the
// buffer-manager completion hook.
type ReadMode int

const (
	ReadNormal ReadMode = iota
	ReadZeroOnError
)

// unownedBackend is the sentinel owner id for a handle not currently
// associated with any backend (used only transiently; in steady state
// every acquired handle has a real owner).
const unownedBackend int32 = -1

// payload carries the op-specific fields a start_* call fills in.
// Realized as one struct with kind-specific fields rather than a C-style
// union (Go has no union type; the fields not relevant to the handle's
// OpKind are simply left zero, mirroring how Go ports of tagged unions
// are usually written — see DESIGN.md).
type payload struct {
	FD          int
	Offset      int64
	NBytes      uint32
	AlreadyDone uint32
	Buf         []byte

	// Relation-resolvable ops (buffer read/write).
	Tag      RelationTag
	BufferNo uint32
	ReadMode ReadMode

	// WAL ops.
	SegNo    uint32
	Timeline uint32
	WriteNo  uint64
	FlushNo  uint64

	// fsync variants.
	Barrier  bool
	Datasync bool

	// write ordering.
	NoReorder bool
}

// Handle is a single I/O descriptor in the shared slab (spec.md §3).
type Handle struct {
	mu   sync.Mutex
	cond *sync.Cond

	index int32 // position in the slab, fixed for the handle's lifetime

	op    OpKind
	state state
	flags flags

	userReferenced   bool
	systemReferenced bool

	owner  int32 // backend id that initiated the I/O, or unownedBackend
	ringID int

	result      int64
	retryCount  int32 // EAGAIN/EINTR soft failures already recorded (spec.md §9)
	submittedAt time.Time

	generation atomic.Uint64

	mergeWith *Handle // next handle in this merge chain, nil if tail

	payload payload

	bounce *BounceBuffer

	localCallback    LocalCompletionFunc
	localCallbackCtx any

	// providerScratch is an opaque per-handle slot for the owning
	// provider, reached through Scratch/SetScratch; none of the bundled
	// providers currently store anything in it.
	providerScratch any

	// list links; a handle is on at most one io-list and one owner-list
	// at a time (spec.md §3 invariants).
	ioPrev, ioNext       *Handle
	ownerPrev, ownerNext *Handle
}

// LocalCompletionFunc is a per-I/O callback registered via
// OnCompletionLocal, invoked once the handle reaches its owner's
// local_completed list.
type LocalCompletionFunc func(h *Handle, ctx any)

func newHandle(index int32) *Handle {
	h := &Handle{index: index, owner: unownedBackend}
	h.cond = sync.NewCond(&h.mu)
	return h
}

// Reference is an ABA-safe (slot index, generation) pair usable across
// processes (spec.md §3 "Reference").
type Reference struct {
	Index      int32
	Generation uint64
}

// Ref returns a Reference to h, safe to hand to another backend.
func Ref(h *Handle) Reference {
	return Reference{Index: h.index, Generation: h.generation.Load()}
}

// live reports whether ref still designates h's current incarnation.
func (ref Reference) live(slab *Slab) (*Handle, bool) {
	h := slab.at(ref.Index)
	if h.generation.Load() != ref.Generation {
		return nil, false
	}
	return h, true
}

// Index returns the handle's fixed slot index.
func (h *Handle) Index() int32 { return h.index }

// Op returns the handle's operation kind.
func (h *Handle) Op() OpKind {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.op
}

// Result returns the handle's result: negative is -errno, non-negative
// is bytes transferred.
func (h *Handle) Result() int64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.result
}

// Generation returns the handle's current recycle generation.
func (h *Handle) Generation() uint64 { return h.generation.Load() }

// Owner returns the backend id that initiated this I/O.
func (h *Handle) Owner() int32 {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.owner
}

// RingID returns the provider context id that serviced this I/O.
func (h *Handle) RingID() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.ringID
}

// flagString renders the flag bits for the per-handle observability dump
// (spec.md §6 Observability).
func (h *Handle) flagString() string {
	h.mu.Lock()
	defer h.mu.Unlock()
	s := h.state.String()
	add := func(b flags, name string) {
		if h.flags.has(b) {
			s += "|" + name
		}
	}
	add(flagMerge, "MERGE")
	add(flagRetry, "RETRY")
	add(flagHardFailure, "HARD_FAILURE")
	add(flagSoftFailure, "SOFT_FAILURE")
	add(flagSharedFailed, "SHARED_FAILED")
	add(flagForeignDone, "FOREIGN_DONE")
	add(flagPosixAIOReturned, "POSIX_AIO_RETURNED")
	add(flagSharedCallbackCalled, "SHARED_CALLBACK_CALLED")
	add(flagLocalCallbackCalled, "LOCAL_CALLBACK_CALLED")
	if h.userReferenced {
		s += "|USER_REF"
	}
	if h.systemReferenced {
		s += "|SYSTEM_REF"
	}
	return s
}

// RelationTag identifies a relation segment for fd re-resolution on
// retry (spec.md §3 payload, §4.11 retry). The concrete meaning of the
// tag is owned entirely by the embedding application's RelationResolver.
type RelationTag struct {
	SpaceID, DBID, RelID uint32
	ForkNum              uint8
	BlockNo              uint64
}
